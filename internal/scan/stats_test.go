package scan

import (
	"math"
	"testing"
)

// decodedRecord fabricates a record that already passed verification.
func decodedRecord(rel string, w, h int, mode string) ImageRecord {
	return ImageRecord{
		RelPath: rel,
		Decode:  DecodeOutcome{State: DecodeOK, Width: w, Height: h, Mode: mode},
	}
}

func TestAggregateResolutionPercentiles(t *testing.T) {
	decoded := []ImageRecord{
		decodedRecord("small.png", 10, 10, "gray"),
		decodedRecord("mid.png", 20, 20, "gray"),
		decodedRecord("large.png", 30, 30, "gray"),
	}
	stats := Aggregate(decoded)
	if stats == nil {
		t.Fatal("nil stats for non-empty input")
	}
	if stats.Min != (Resolution{Width: 10, Height: 10}) {
		t.Errorf("min = %+v, want 10x10", stats.Min)
	}
	if stats.Median != (Resolution{Width: 20, Height: 20}) {
		t.Errorf("median = %+v, want 20x20", stats.Median)
	}
	if stats.Max != (Resolution{Width: 30, Height: 30}) {
		t.Errorf("max = %+v, want 30x30", stats.Max)
	}
	if stats.ModeCounts["gray"] != 3 {
		t.Errorf("mode counts = %v, want gray:3", stats.ModeCounts)
	}
	if stats.Aspect.Median != 1.0 || stats.Aspect.StdDev != 0 {
		t.Errorf("aspect = %+v, want all-square summary", stats.Aspect)
	}
}

func TestAggregateAspectRatio(t *testing.T) {
	decoded := []ImageRecord{
		decodedRecord("wide.png", 40, 10, "rgb"),
		decodedRecord("tall.png", 10, 40, "rgb"),
	}
	stats := Aggregate(decoded)
	// Ratios are orientation-independent: both images score 4.0.
	if stats.Aspect.Min != 4.0 || stats.Aspect.Max != 4.0 {
		t.Errorf("aspect = %+v, want min=max=4.0", stats.Aspect)
	}
	if math.Abs(stats.Aspect.Mean-4.0) > 1e-9 {
		t.Errorf("mean = %g, want 4.0", stats.Aspect.Mean)
	}
}

func TestAggregateSingleImage(t *testing.T) {
	stats := Aggregate([]ImageRecord{decodedRecord("only.png", 16, 16, "gray")})
	if stats == nil {
		t.Fatal("nil stats for one record")
	}
	// A single observation has no sample stddev; it must come out as 0, not
	// NaN, or the result cannot be serialized.
	if math.IsNaN(stats.Aspect.StdDev) || stats.Aspect.StdDev != 0 {
		t.Errorf("stddev = %g, want 0 for a single image", stats.Aspect.StdDev)
	}
	if stats.Aspect.Min != 1.0 || stats.Aspect.Median != 1.0 || stats.Aspect.Max != 1.0 {
		t.Errorf("aspect = %+v, want all 1.0", stats.Aspect)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if stats := Aggregate(nil); stats != nil {
		t.Fatalf("got %+v for empty input, want nil", stats)
	}
}

func hygieneConfig() *Config {
	cfg := DefaultConfig(".")
	return &cfg
}

func warningKinds(warnings []HygieneWarning) []string {
	kinds := make([]string, len(warnings))
	for i, w := range warnings {
		kinds[i] = w.Kind
	}
	return kinds
}

func hasWarning(warnings []HygieneWarning, kind string) *HygieneWarning {
	for i := range warnings {
		if warnings[i].Kind == kind {
			return &warnings[i]
		}
	}
	return nil
}

func TestHygieneTinyImage(t *testing.T) {
	decoded := []ImageRecord{
		decodedRecord("tiny.png", 10, 10, "rgb"),
		decodedRecord("fine.png", 100, 100, "rgb"),
	}
	warnings := HygieneWarnings(hygieneConfig(), decoded, nil)
	w := hasWarning(warnings, "tiny-image")
	if w == nil {
		t.Fatalf("no tiny-image warning in %v", warningKinds(warnings))
	}
	if w.Count != 1 || len(w.Examples) != 1 || w.Examples[0] != "tiny.png" {
		t.Errorf("warning = %+v, want count 1 with example tiny.png", w)
	}
}

func TestHygieneExtremeAspectRatio(t *testing.T) {
	decoded := []ImageRecord{
		decodedRecord("banner.png", 400, 100, "rgb"),
		decodedRecord("square.png", 100, 100, "rgb"),
	}
	warnings := HygieneWarnings(hygieneConfig(), decoded, nil)
	w := hasWarning(warnings, "extreme-aspect-ratio")
	if w == nil {
		t.Fatalf("no extreme-aspect-ratio warning in %v", warningKinds(warnings))
	}
	if w.Count != 1 || w.Examples[0] != "banner.png" {
		t.Errorf("warning = %+v, want banner.png flagged", w)
	}
}

func TestHygieneRGBAShare(t *testing.T) {
	decoded := []ImageRecord{
		decodedRecord("a.png", 100, 100, "rgba"),
		decodedRecord("b.png", 100, 100, "rgba"),
		decodedRecord("c.png", 100, 100, "rgb"),
	}
	warnings := HygieneWarnings(hygieneConfig(), decoded, nil)
	w := hasWarning(warnings, "high-rgba-share")
	if w == nil {
		t.Fatalf("no high-rgba-share warning in %v", warningKinds(warnings))
	}
	if w.Count != 2 {
		t.Errorf("count = %d, want 2", w.Count)
	}
}

func TestHygieneModeVariance(t *testing.T) {
	decoded := []ImageRecord{
		decodedRecord("a.png", 100, 100, "rgb"),
		decodedRecord("b.png", 100, 100, "gray"),
		decodedRecord("c.png", 100, 100, "palette"),
	}
	warnings := HygieneWarnings(hygieneConfig(), decoded, nil)
	if hasWarning(warnings, "mode-variance") == nil {
		t.Fatalf("no mode-variance warning in %v", warningKinds(warnings))
	}
}

func TestHygieneClassImbalance(t *testing.T) {
	decoded := []ImageRecord{decodedRecord("a.png", 100, 100, "rgb")}
	counts := map[string]int{"rare": 1, "common": 100}
	warnings := HygieneWarnings(hygieneConfig(), decoded, counts)
	w := hasWarning(warnings, "class-imbalance")
	if w == nil {
		t.Fatalf("no class-imbalance warning in %v", warningKinds(warnings))
	}
	if len(w.Examples) != 2 || w.Examples[0] != "rare" || w.Examples[1] != "common" {
		t.Errorf("examples = %v, want [rare common]", w.Examples)
	}
}

func TestHygieneCleanDataset(t *testing.T) {
	decoded := []ImageRecord{
		decodedRecord("a.png", 100, 100, "rgb"),
		decodedRecord("b.png", 120, 100, "rgb"),
	}
	counts := map[string]int{"cats": 1, "dogs": 1}
	if warnings := HygieneWarnings(hygieneConfig(), decoded, counts); len(warnings) != 0 {
		t.Fatalf("clean dataset produced warnings: %v", warningKinds(warnings))
	}
}

func TestHygieneThresholdsAreConfiguration(t *testing.T) {
	cfg := hygieneConfig()
	cfg.Hygiene.MinPixels = 1 // floor low enough that nothing is tiny
	cfg.Hygiene.MaxAspectRatio = 100
	decoded := []ImageRecord{decodedRecord("tiny.png", 2, 2, "rgb")}
	if warnings := HygieneWarnings(cfg, decoded, nil); len(warnings) != 0 {
		t.Fatalf("relaxed thresholds still warned: %v", warningKinds(warnings))
	}
}
