package scan

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// maxHygieneExamples caps the offending paths echoed per warning.
const maxHygieneExamples = 10

// Aggregate computes resolution, color-mode, and aspect-ratio distributions
// over the successfully decoded records. Min/median/max resolution are the
// width/height of the records at those percentiles of the pixel-area
// distribution (ties broken by relative path, for determinism).
func Aggregate(decoded []ImageRecord) *StatsSummary {
	if len(decoded) == 0 {
		return nil
	}

	byArea := append([]ImageRecord(nil), decoded...)
	sort.Slice(byArea, func(i, j int) bool {
		if ai, aj := byArea[i].Area(), byArea[j].Area(); ai != aj {
			return ai < aj
		}
		return byArea[i].RelPath < byArea[j].RelPath
	})

	ratios := make([]float64, len(decoded))
	modeCounts := make(map[string]int, 4)
	for i, rec := range decoded {
		ratios[i] = aspectRatio(rec)
		modeCounts[rec.Decode.Mode]++
	}
	sort.Float64s(ratios)

	// Sample stddev needs at least two observations; report 0 for a single
	// image so the summary stays serializable.
	stdDev := 0.0
	if len(ratios) > 1 {
		stdDev = stat.StdDev(ratios, nil)
	}

	resolution := func(rec ImageRecord) Resolution {
		return Resolution{Width: rec.Decode.Width, Height: rec.Decode.Height}
	}
	return &StatsSummary{
		Decoded:    len(decoded),
		Min:        resolution(byArea[0]),
		Median:     resolution(byArea[(len(byArea)-1)/2]),
		Max:        resolution(byArea[len(byArea)-1]),
		ModeCounts: modeCounts,
		Aspect: AspectSummary{
			Min:    ratios[0],
			Median: stat.Quantile(0.5, stat.Empirical, ratios, nil),
			Max:    ratios[len(ratios)-1],
			Mean:   stat.Mean(ratios, nil),
			StdDev: stdDev,
		},
	}
}

// aspectRatio is max(w/h, h/w), so 1.0 means square.
func aspectRatio(rec ImageRecord) float64 {
	w, h := float64(rec.Decode.Width), float64(rec.Decode.Height)
	if w == 0 || h == 0 {
		return 0
	}
	if w > h {
		return w / h
	}
	return h / w
}

// HygieneWarnings derives threshold-triggered findings from the decoded
// records and the class distribution. Every threshold comes from cfg; nothing
// is baked into the logic. Warnings are ordered by kind for stable output.
func HygieneWarnings(cfg *Config, decoded []ImageRecord, classCounts map[string]int) []HygieneWarning {
	warnings := []HygieneWarning{}

	var tiny, outliers []string
	rgba := 0
	modes := map[string]bool{}
	for _, rec := range decoded {
		if rec.Area() < cfg.Hygiene.MinPixels {
			tiny = append(tiny, rec.RelPath)
		}
		if aspectRatio(rec) > cfg.Hygiene.MaxAspectRatio {
			outliers = append(outliers, rec.RelPath)
		}
		if rec.Decode.Mode == "rgba" {
			rgba++
		}
		modes[rec.Decode.Mode] = true
	}

	if len(tiny) > 0 {
		warnings = append(warnings, HygieneWarning{
			Kind:      "tiny-image",
			Threshold: fmt.Sprintf("area < %d px", cfg.Hygiene.MinPixels),
			Count:     len(tiny),
			Examples:  capExamples(tiny),
		})
	}
	if len(outliers) > 0 {
		warnings = append(warnings, HygieneWarning{
			Kind:      "extreme-aspect-ratio",
			Threshold: fmt.Sprintf("ratio > %g", cfg.Hygiene.MaxAspectRatio),
			Count:     len(outliers),
			Examples:  capExamples(outliers),
		})
	}
	if total := len(decoded); total > 0 {
		if share := float64(rgba) / float64(total); share > cfg.Hygiene.RGBAShareThreshold {
			warnings = append(warnings, HygieneWarning{
				Kind:      "high-rgba-share",
				Threshold: fmt.Sprintf("share > %g", cfg.Hygiene.RGBAShareThreshold),
				Count:     rgba,
			})
		}
	}
	if len(modes) > cfg.Hygiene.MaxDistinctModes {
		warnings = append(warnings, HygieneWarning{
			Kind:      "mode-variance",
			Threshold: fmt.Sprintf("distinct modes > %d", cfg.Hygiene.MaxDistinctModes),
			Count:     len(modes),
		})
	}
	if imbalanced(classCounts, cfg.Hygiene.ImbalanceRatio) {
		minClass, maxClass := classExtremes(classCounts)
		warnings = append(warnings, HygieneWarning{
			Kind:      "class-imbalance",
			Threshold: fmt.Sprintf("min/max < %g", cfg.Hygiene.ImbalanceRatio),
			Count:     len(classCounts),
			Examples:  []string{minClass, maxClass},
		})
	}

	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Kind < warnings[j].Kind })
	return warnings
}

// ClassCounts tallies class membership over records carrying a class.
func ClassCounts(records []ImageRecord) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		if rec.Class != "" {
			counts[rec.Class]++
		}
	}
	return counts
}

// imbalanced reports whether the smallest class is under ratio × the largest.
func imbalanced(counts map[string]int, ratio float64) bool {
	if len(counts) < 2 {
		return false
	}
	minCount, maxCount := -1, 0
	for _, n := range counts {
		if minCount < 0 || n < minCount {
			minCount = n
		}
		if n > maxCount {
			maxCount = n
		}
	}
	if maxCount == 0 {
		return false
	}
	return float64(minCount)/float64(maxCount) < ratio
}

// classExtremes returns the names of the smallest and largest classes,
// breaking ties lexicographically.
func classExtremes(counts map[string]int) (minClass, maxClass string) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if minClass == "" || counts[name] < counts[minClass] {
			minClass = name
		}
		if maxClass == "" || counts[name] > counts[maxClass] {
			maxClass = name
		}
	}
	return minClass, maxClass
}

// capExamples sorts paths and keeps the first maxHygieneExamples.
func capExamples(paths []string) []string {
	sort.Strings(paths)
	if len(paths) > maxHygieneExamples {
		paths = paths[:maxHygieneExamples]
	}
	return paths
}
