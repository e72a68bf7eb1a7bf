package scan

import (
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Strategy selects a duplicate-detection fingerprint. The set is closed:
// exact and quick group by equal key, near-duplicate clusters by bounded
// Hamming distance.
type Strategy string

const (
	StrategyExact Strategy = "exact"
	StrategyQuick Strategy = "quick"
	StrategyNear  Strategy = "near-duplicate"
)

// Default threshold values, used by DefaultConfig and by the file-config
// layer when a setting is absent. They are not applied to zero fields:
// a threshold of 0 is a legitimate setting (bit-exact near-duplicate
// matching, no pixel floor, warn on any RGBA image).
const (
	DefaultNearThreshold      = 10
	DefaultMinPixels          = 64 * 64
	DefaultMaxAspectRatio     = 3.0
	DefaultRGBAShareThreshold = 0.3
	DefaultMaxDistinctModes   = 2
	DefaultImbalanceRatio     = 0.1
)

// HygieneThresholds holds the explicit limits hygiene warnings fire under.
// None of them is baked into logic, and zero values are honored as given.
type HygieneThresholds struct {
	// MinPixels is the smallest acceptable image area (width × height).
	MinPixels int
	// MaxAspectRatio bounds max(w/h, h/w); images beyond it are outliers.
	MaxAspectRatio float64
	// RGBAShareThreshold is the dataset fraction of RGBA images above which
	// a warning fires.
	RGBAShareThreshold float64
	// MaxDistinctModes is the number of distinct color modes tolerated
	// before a mode-variance warning fires.
	MaxDistinctModes int
	// ImbalanceRatio is the min/max class-count ratio below which the class
	// distribution is flagged as imbalanced.
	ImbalanceRatio float64
}

// LabelOptions configures Mode B reconciliation. A nil LabelOptions on Config
// means Mode A (folder-structure-only).
type LabelOptions struct {
	// TablePath is the label table (CSV) location.
	TablePath string
	// FilenameColumn and LabelColumn override automatic column detection.
	FilenameColumn string
	LabelColumn    string
	// Normalize case-folds and trims keys and label values before joining.
	Normalize bool
	// StripExtensions matches identifiers given without a file extension.
	StripExtensions bool
}

// Config is the immutable configuration for one scan run. Every component
// receives it at construction; behavior is a pure function of (inputs, Config).
type Config struct {
	// Root is the dataset directory to audit.
	Root string
	// Extensions is the allow-list (lowercase, leading dot). Files with other
	// extensions are silently skipped.
	Extensions []string
	// InferClasses derives a class from the immediate parent directory in
	// Mode A. Ignored in Mode B.
	InferClasses bool
	// Labels switches the scan to Mode B when non-nil.
	Labels *LabelOptions
	// Strategies selects the duplicate detectors to run.
	Strategies []Strategy
	// NearThreshold is the maximum Hamming distance (in bits, out of 64)
	// between near-duplicate fingerprints in one group.
	NearThreshold int
	// Hygiene holds the warning thresholds.
	Hygiene HygieneThresholds
	// Workers bounds the decode/fingerprint worker pools.
	Workers int
	// MaxFiles truncates the sorted record list when positive. Bounding scan
	// size is the caller's call; the engine has no timeouts.
	MaxFiles int
}

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{
	".bmp", ".gif", ".jpeg", ".jpg", ".png", ".tif", ".tiff", ".webp",
}

// DefaultConfig returns a Mode A configuration with sensible defaults for root.
func DefaultConfig(root string) Config {
	cfg := Config{
		Root:          root,
		InferClasses:  true,
		Strategies:    []Strategy{StrategyExact},
		NearThreshold: DefaultNearThreshold,
		Hygiene: HygieneThresholds{
			MinPixels:          DefaultMinPixels,
			MaxAspectRatio:     DefaultMaxAspectRatio,
			RGBAShareThreshold: DefaultRGBAShareThreshold,
			MaxDistinctModes:   DefaultMaxDistinctModes,
			ImbalanceRatio:     DefaultImbalanceRatio,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills only the fields whose zero value is never valid
// (validation would reject it): extensions, strategies, the aspect and mode
// bounds, and the worker count. NearThreshold, MinPixels, RGBAShareThreshold
// and ImbalanceRatio are left as given, because 0 is a meaningful setting for
// each of them; callers wanting the stock values start from DefaultConfig.
// Extension spellings are normalized to lowercase with a leading dot and
// de-duplicated, so the allow-list compares stably no matter how it was
// written.
func (c *Config) ApplyDefaults() {
	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), DefaultExtensions...)
	}
	c.Extensions = normalizeExtensions(c.Extensions)
	if len(c.Strategies) == 0 {
		c.Strategies = []Strategy{StrategyExact}
	}
	if c.Hygiene.MaxAspectRatio == 0 {
		c.Hygiene.MaxAspectRatio = DefaultMaxAspectRatio
	}
	if c.Hygiene.MaxDistinctModes == 0 {
		c.Hygiene.MaxDistinctModes = DefaultMaxDistinctModes
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Labels != nil && c.Labels.TablePath != "" && !filepath.IsAbs(c.Labels.TablePath) {
		c.Labels.TablePath = filepath.Join(c.Root, c.Labels.TablePath)
	}
}

// Validate rejects invalid settings before any file I/O begins. All failures
// are ScanError(INVALID_CONFIGURATION) so a bad run never partially scans.
func (c *Config) Validate() error {
	if c.Root == "" {
		return scanErrorf(KindInvalidConfig, "root directory not set")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return scanErrorf(KindInvalidConfig, "malformed extension %q", ext)
		}
	}
	seen := map[Strategy]bool{}
	for _, s := range c.Strategies {
		switch s {
		case StrategyExact, StrategyQuick, StrategyNear:
		default:
			return scanErrorf(KindInvalidConfig, "unknown duplicate strategy %q", s)
		}
		if seen[s] {
			return scanErrorf(KindInvalidConfig, "duplicate strategy %q listed twice", s)
		}
		seen[s] = true
	}
	if c.NearThreshold < 0 || c.NearThreshold > 64 {
		return scanErrorf(KindInvalidConfig, "near-duplicate threshold %d outside [0, 64]", c.NearThreshold)
	}
	if c.Hygiene.MinPixels < 0 {
		return scanErrorf(KindInvalidConfig, "negative minimum-pixel floor %d", c.Hygiene.MinPixels)
	}
	if c.Hygiene.MaxAspectRatio < 1 {
		return scanErrorf(KindInvalidConfig, "max aspect ratio %g below 1", c.Hygiene.MaxAspectRatio)
	}
	if c.Hygiene.RGBAShareThreshold < 0 || c.Hygiene.RGBAShareThreshold > 1 {
		return scanErrorf(KindInvalidConfig, "rgba share threshold %g outside [0, 1]", c.Hygiene.RGBAShareThreshold)
	}
	if c.Hygiene.MaxDistinctModes < 1 {
		return scanErrorf(KindInvalidConfig, "max distinct modes %d below 1", c.Hygiene.MaxDistinctModes)
	}
	if c.Hygiene.ImbalanceRatio < 0 || c.Hygiene.ImbalanceRatio > 1 {
		return scanErrorf(KindInvalidConfig, "imbalance ratio %g outside [0, 1]", c.Hygiene.ImbalanceRatio)
	}
	if c.Workers < 1 {
		return scanErrorf(KindInvalidConfig, "worker count %d below 1", c.Workers)
	}
	if c.MaxFiles < 0 {
		return scanErrorf(KindInvalidConfig, "negative max files %d", c.MaxFiles)
	}
	if c.Labels != nil && c.Labels.TablePath == "" {
		return scanErrorf(KindInvalidConfig, "labeled mode selected without a table path")
	}
	return nil
}

// Labeled reports whether the scan runs in Mode B.
func (c *Config) Labeled() bool { return c.Labels != nil }

// allowedExtension reports whether path's extension is on the allow-list.
func (c *Config) allowedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range c.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func normalizeExtensions(exts []string) []string {
	set := map[string]bool{}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	out := make([]string, 0, len(set))
	for ext := range set {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
