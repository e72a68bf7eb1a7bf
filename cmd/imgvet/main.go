package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/imgvet/imgvet/internal/config"
	"github.com/imgvet/imgvet/internal/report"
	"github.com/imgvet/imgvet/internal/scan"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "imgvet",
		Usage:   "audit an image dataset for silent quality defects",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "imgvet.yaml", Usage: "path to config file"},
			&cli.StringFlag{Name: "root", Usage: "dataset root (overrides config)"},
			&cli.StringFlag{Name: "labels", Usage: "label table path (overrides config, selects Mode B)"},
			&cli.StringSliceFlag{Name: "strategy", Usage: "duplicate strategy: exact, quick, near-duplicate"},
			&cli.StringFlag{Name: "json", Usage: "write the scan result JSON to this file"},
			&cli.StringFlag{Name: "report", Usage: "write the markdown report to this file"},
			&cli.StringFlag{Name: "issues", Usage: "write the flat issues CSV to this file"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("imgvet failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	fileCfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(fileCfg.LogLevel),
	})))

	cfg := fileCfg.ToScan()
	if root := cmd.String("root"); root != "" {
		cfg.Root = root
	}
	if labels := cmd.String("labels"); labels != "" {
		if cfg.Labels == nil {
			cfg.Labels = &scan.LabelOptions{Normalize: true, StripExtensions: true}
		}
		cfg.Labels.TablePath = labels
	}
	if strategies := cmd.StringSlice("strategy"); len(strategies) > 0 {
		cfg.Strategies = nil
		for _, s := range strategies {
			cfg.Strategies = append(cfg.Strategies, scan.Strategy(s))
		}
	}

	scanner, err := scan.New(cfg)
	if err != nil {
		return err
	}
	cfg = scanner.Config()
	result, err := scanner.Run(ctx)
	if err != nil {
		return err
	}

	if path := cmd.String("json"); path != "" {
		content, err := result.Content()
		if err != nil {
			return fmt.Errorf("serialize result: %w", err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	if path := cmd.String("issues"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create issues file: %w", err)
		}
		if err := report.WriteIssues(f, &cfg, result); err != nil {
			f.Close()
			return fmt.Errorf("write issues: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	md := report.Markdown(&cfg, result)
	if path := cmd.String("report"); path != "" {
		if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	} else {
		fmt.Print(md)
	}
	return nil
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
