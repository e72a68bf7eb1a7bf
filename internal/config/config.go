// Package config loads the YAML file configuration for the imgvet CLI and
// maps it onto the scan engine's configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/imgvet/imgvet/internal/scan"
)

// Config holds all configuration loaded from imgvet.yaml. Pointer fields
// distinguish "absent" from an explicit zero, which is a valid setting for
// the thresholds (bit-exact near matching, no pixel floor, warn on any RGBA).
type Config struct {
	Root          string   `yaml:"root"`
	Extensions    []string `yaml:"extensions"`
	InferClasses  *bool    `yaml:"infer_classes"`
	Labels        *Labels  `yaml:"labels"`
	Strategies    []string `yaml:"strategies"`
	NearThreshold *int     `yaml:"near_threshold"`
	Hygiene       Hygiene  `yaml:"hygiene"`
	Workers       int      `yaml:"workers"`
	MaxFiles      int      `yaml:"max_files"`
	LogLevel      string   `yaml:"log_level"`
}

// Labels selects Mode B and configures reconciliation.
type Labels struct {
	Path            string `yaml:"path"`
	FilenameColumn  string `yaml:"filename_column"`
	LabelColumn     string `yaml:"label_column"`
	Normalize       *bool  `yaml:"normalize"`
	StripExtensions *bool  `yaml:"strip_extensions"`
}

// Hygiene holds the warning thresholds. Absent fields fall back to the engine
// defaults; an explicit 0 is kept.
type Hygiene struct {
	MinPixels          *int     `yaml:"min_pixels"`
	MaxAspectRatio     float64  `yaml:"max_aspect_ratio"`
	RGBAShareThreshold *float64 `yaml:"rgba_share_threshold"`
	MaxDistinctModes   int      `yaml:"max_distinct_modes"`
	ImbalanceRatio     *float64 `yaml:"imbalance_ratio"`
}

// applyDefaults fills zero/empty fields with sensible defaults. Engine-level
// defaults (extensions, thresholds, workers) are applied by the scan package.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads and parses the YAML config file at path. If the file does not
// exist, Load returns a default Config so the CLI can run on flags alone.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		var cfg Config
		cfg.applyDefaults()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ToScan maps the file configuration onto the engine configuration. Pointer
// fields distinguish "unset" from an explicit value: infer_classes,
// normalize, and strip_extensions default to on, and absent thresholds take
// the engine defaults while explicit zeros survive the mapping.
func (c *Config) ToScan() scan.Config {
	cfg := scan.Config{
		Root:          c.Root,
		Extensions:    c.Extensions,
		InferClasses:  c.InferClasses == nil || *c.InferClasses,
		NearThreshold: intOr(c.NearThreshold, scan.DefaultNearThreshold),
		Hygiene: scan.HygieneThresholds{
			MinPixels:          intOr(c.Hygiene.MinPixels, scan.DefaultMinPixels),
			MaxAspectRatio:     c.Hygiene.MaxAspectRatio,
			RGBAShareThreshold: floatOr(c.Hygiene.RGBAShareThreshold, scan.DefaultRGBAShareThreshold),
			MaxDistinctModes:   c.Hygiene.MaxDistinctModes,
			ImbalanceRatio:     floatOr(c.Hygiene.ImbalanceRatio, scan.DefaultImbalanceRatio),
		},
		Workers:  c.Workers,
		MaxFiles: c.MaxFiles,
	}
	for _, s := range c.Strategies {
		cfg.Strategies = append(cfg.Strategies, scan.Strategy(s))
	}
	if c.Labels != nil {
		cfg.Labels = &scan.LabelOptions{
			TablePath:       c.Labels.Path,
			FilenameColumn:  c.Labels.FilenameColumn,
			LabelColumn:     c.Labels.LabelColumn,
			Normalize:       c.Labels.Normalize == nil || *c.Labels.Normalize,
			StripExtensions: c.Labels.StripExtensions == nil || *c.Labels.StripExtensions,
		}
	}
	return cfg
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
