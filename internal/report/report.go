// Package report renders a finished scan result for humans. It is a pure
// consumer: no validation, no computation beyond formatting.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/imgvet/imgvet/internal/scan"
)

// topGroups caps how many duplicate groups the markdown report lists per
// strategy.
const topGroups = 20

// Markdown renders the scan result as a markdown document.
func Markdown(cfg *scan.Config, result *scan.ScanResult) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("# Dataset Report")
	line("")
	line("## Configuration")
	line("")
	line("- Root: %s", cfg.Root)
	line("- Mode: %s", modeName(cfg))
	line("- Allowed extensions: %s", strings.Join(cfg.Extensions, " "))
	line("- Duplicate strategies: %s", strategyNames(cfg.Strategies))
	if hasStrategy(cfg.Strategies, scan.StrategyNear) {
		line("- Near-duplicate threshold: %d bits", cfg.NearThreshold)
	}
	if cfg.Labeled() {
		line("- Label table: %s", cfg.Labels.TablePath)
		if result.Coverage != nil {
			line("- Filename column: %s", result.Coverage.FilenameColumn)
			line("- Label column: %s", result.Coverage.LabelColumn)
		}
		line("- Normalize keys: %s", yesNo(cfg.Labels.Normalize))
		line("- Match without extension: %s", yesNo(cfg.Labels.StripExtensions))
	} else {
		line("- Infer classes: %s", yesNo(cfg.InferClasses))
	}
	line("- Thresholds: min_pixels=%d, max_aspect_ratio=%g, rgba_share=%g, max_distinct_modes=%d",
		cfg.Hygiene.MinPixels, cfg.Hygiene.MaxAspectRatio,
		cfg.Hygiene.RGBAShareThreshold, cfg.Hygiene.MaxDistinctModes)

	line("")
	line("## Summary")
	line("")
	line("- Total images: %d", len(result.Records))
	line("- Total bytes: %s", humanize.IBytes(uint64(totalBytes(result.Records))))
	line("- Corrupted images: %d", len(result.Corrupted))
	for _, strategy := range cfg.Strategies {
		line("- Duplicate groups (%s): %d", strategy, len(result.Duplicates[strategy]))
	}
	if result.Coverage != nil {
		line("- Missing images: %d", len(result.Coverage.MissingImages))
		line("- Orphan images: %d", len(result.Coverage.OrphanImages))
		line("- Rows without labels: %d", result.Coverage.MissingLabelCount)
	}

	line("")
	line("## Hygiene Warnings")
	line("")
	if len(result.Hygiene) == 0 {
		line("- None")
	}
	for _, w := range result.Hygiene {
		line("- **%s** (%s): %d affected", w.Kind, w.Threshold, w.Count)
		for _, example := range w.Examples {
			line("  - %s", example)
		}
	}

	if result.Coverage != nil {
		cov := result.Coverage
		line("")
		line("## Coverage")
		line("")
		line("- Coverage: %.1f%% (%d/%d)", cov.CoverageRatio*100, cov.Resolved, cov.Rows)
		line("- Orphan rate: %.1f%% (%d/%d)", cov.OrphanRate*100, len(cov.OrphanImages), len(result.Records))
		for _, warning := range cov.Warnings {
			line("- Warning: %s", warning)
		}
	}

	if len(result.ClassCounts) > 0 {
		line("")
		line("## Class Distribution")
		line("")
		line("| Class | Count |")
		line("| --- | --- |")
		for _, class := range sortedClasses(result.ClassCounts) {
			line("| %s | %d |", class, result.ClassCounts[class])
		}
	}

	if result.Stats != nil {
		st := result.Stats
		line("")
		line("## Resolution")
		line("")
		line("- Min: %dx%d", st.Min.Width, st.Min.Height)
		line("- Median: %dx%d", st.Median.Width, st.Median.Height)
		line("- Max: %dx%d", st.Max.Width, st.Max.Height)
		line("- Aspect ratio: median %.2f, max %.2f", st.Aspect.Median, st.Aspect.Max)
		line("")
		line("## Color Modes")
		line("")
		for _, mode := range sortedClasses(st.ModeCounts) {
			line("- %s: %d", mode, st.ModeCounts[mode])
		}
	}

	line("")
	line("## Corrupted Images")
	line("")
	if len(result.Corrupted) == 0 {
		line("- None")
	}
	for _, c := range result.Corrupted {
		line("- %s | %s", c.RelPath, c.Reason)
	}

	if result.Coverage != nil {
		line("")
		line("## Missing Images")
		line("")
		if len(result.Coverage.MissingImages) == 0 {
			line("- None")
		}
		for _, m := range result.Coverage.MissingImages {
			line("- %s | row %d", m.Reference, m.Row)
		}
		line("")
		line("## Orphan Images")
		line("")
		if len(result.Coverage.OrphanImages) == 0 {
			line("- None")
		}
		for _, orphan := range result.Coverage.OrphanImages {
			line("- %s", orphan)
		}
	}

	for _, strategy := range cfg.Strategies {
		groups := result.Duplicates[strategy]
		line("")
		line("## Duplicate Groups (%s, top %d)", strategy, topGroups)
		line("")
		if len(groups) == 0 {
			line("- None")
		}
		for i, grp := range groups {
			if i == topGroups {
				break
			}
			line("- %s", grp.Key)
			for _, member := range grp.Members {
				line("  - %s", member)
			}
		}
	}

	line("")
	return b.String()
}

func modeName(cfg *scan.Config) string {
	if cfg.Labeled() {
		return "B (images + label table)"
	}
	return "A (images only)"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func hasStrategy(strategies []scan.Strategy, s scan.Strategy) bool {
	for _, strategy := range strategies {
		if strategy == s {
			return true
		}
	}
	return false
}

func strategyNames(strategies []scan.Strategy) string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func totalBytes(records []scan.ImageRecord) int64 {
	var total int64
	for _, rec := range records {
		total += rec.Size
	}
	return total
}

func sortedClasses(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	// Descending count, then name, matching the usual class-distribution view.
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
