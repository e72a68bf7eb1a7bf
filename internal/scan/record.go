package scan

import (
	"encoding/json"
	"time"
)

// DecodeState tags the outcome of a full-decode attempt on an image.
// Three states are needed: a record that was never decoded is neither good
// nor corrupted.
type DecodeState string

const (
	DecodeNotAttempted DecodeState = "not-attempted"
	DecodeOK           DecodeState = "ok"
	DecodeFailed       DecodeState = "failed"
)

// DecodeOutcome is the tagged result of the corruption check. Width, Height
// and Mode are meaningful only when State is DecodeOK; Reason only when
// State is DecodeFailed.
type DecodeOutcome struct {
	State  DecodeState `json:"state"`
	Width  int         `json:"width,omitempty"`
	Height int         `json:"height,omitempty"`
	Mode   string      `json:"mode,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// ImageRecord identifies one discovered file. RelPath is the stable sort key
// for everything downstream. Records are created once during classification
// and never mutated after the decode outcome is set.
type ImageRecord struct {
	Path    string        `json:"path"`
	RelPath string        `json:"rel_path"`
	Class   string        `json:"class,omitempty"`
	Size    int64         `json:"size"`
	Decode  DecodeOutcome `json:"decode"`
}

// Area returns the decoded pixel area, or 0 when the record never decoded.
func (r *ImageRecord) Area() int {
	if r.Decode.State != DecodeOK {
		return 0
	}
	return r.Decode.Width * r.Decode.Height
}

// CorruptedFile reports one record that failed the full-decode check.
type CorruptedFile struct {
	RelPath string `json:"rel_path"`
	Reason  string `json:"reason"`
}

// DuplicateGroup is a cluster of records sharing a fingerprint (exact/quick)
// or within the Hamming threshold of each other (near-duplicate). Members are
// relative paths in sorted order; Key is the fingerprint of the first member.
// Singleton groups are dropped before they reach a result.
type DuplicateGroup struct {
	Key     string   `json:"key"`
	Members []string `json:"members"`
}

// Resolution is a (width, height) pair reported at a selected percentile of
// the pixel-area distribution.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AspectSummary describes the aspect-ratio distribution, where each ratio is
// max(w/h, h/w) so 1.0 means square.
type AspectSummary struct {
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// StatsSummary aggregates distributions over successfully decoded records.
// Min/Median/Max are selected by pixel area.
type StatsSummary struct {
	Decoded    int            `json:"decoded"`
	Min        Resolution     `json:"min"`
	Median     Resolution     `json:"median"`
	Max        Resolution     `json:"max"`
	ModeCounts map[string]int `json:"mode_counts"`
	Aspect     AspectSummary  `json:"aspect"`
}

// HygieneWarning is a threshold-triggered finding about dataset composition.
// Threshold echoes the configured limit that fired; Examples carries up to
// maxHygieneExamples offending relative paths.
type HygieneWarning struct {
	Kind      string   `json:"kind"`
	Threshold string   `json:"threshold"`
	Count     int      `json:"count"`
	Examples  []string `json:"examples,omitempty"`
}

// MissingImage is a label-table row with no matching discovered file. Row is
// the line number in the table file, counting the header.
type MissingImage struct {
	Row       int    `json:"row"`
	Reference string `json:"reference"`
}

// ExtMismatch flags a resolved row whose CSV value implies a different file
// extension than the discovered file carries.
type ExtMismatch struct {
	Key      string `json:"key"`
	TableExt string `json:"table_ext"`
	FileExt  string `json:"file_ext"`
}

// CoverageReport reconciles the label table against discovered images.
// CoverageRatio = Resolved / Rows; OrphanRate = len(OrphanImages) / total
// discovered images. Both are computed at assembly, never cached.
type CoverageReport struct {
	FilenameColumn    string         `json:"filename_column"`
	LabelColumn       string         `json:"label_column,omitempty"`
	Rows              int            `json:"rows"`
	Resolved          int            `json:"resolved"`
	CoverageRatio     float64        `json:"coverage_ratio"`
	OrphanRate        float64        `json:"orphan_rate"`
	MissingImages     []MissingImage `json:"missing_images"`
	OrphanImages      []string       `json:"orphan_images"`
	ExtMismatches     []ExtMismatch  `json:"ext_mismatches,omitempty"`
	MissingLabelCount int            `json:"missing_label_count"`
	TableExtCounts    map[string]int `json:"table_ext_counts,omitempty"`
	TableNoExtCount   int            `json:"table_no_ext_count"`
	Warnings          []string       `json:"warnings,omitempty"`
}

// Metadata describes one scan run. It is reported separately from content so
// repeated scans of an unchanged dataset still serialize byte-for-byte equal.
type Metadata struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ScanResult is the terminal aggregate of a scan: constructed exactly once
// after all components join, never mutated, safe for concurrent readers.
type ScanResult struct {
	Metadata Metadata `json:"metadata,omitzero"`

	Records     []ImageRecord                 `json:"records"`
	Corrupted   []CorruptedFile               `json:"corrupted"`
	Duplicates  map[Strategy][]DuplicateGroup `json:"duplicates"`
	Stats       *StatsSummary                 `json:"stats,omitempty"`
	Hygiene     []HygieneWarning              `json:"hygiene"`
	ExtCounts   map[string]int                `json:"ext_counts"`
	ClassCounts map[string]int                `json:"class_counts,omitempty"`
	Coverage    *CoverageReport               `json:"coverage,omitempty"`
}

// Content serializes everything except Metadata. Two scans of an unchanged
// dataset and configuration produce identical Content bytes regardless of
// worker counts: slices are path-sorted at assembly and encoding/json writes
// map keys in sorted order.
func (r *ScanResult) Content() ([]byte, error) {
	shadow := *r
	shadow.Metadata = Metadata{}
	type content ScanResult // drop methods to avoid recursion
	return json.MarshalIndent((*content)(&shadow), "", "  ")
}

// DecodedRecords returns the records that passed the corruption check, in
// path-sorted order (the input order is already sorted).
func DecodedRecords(records []ImageRecord) []ImageRecord {
	out := make([]ImageRecord, 0, len(records))
	for _, rec := range records {
		if rec.Decode.State == DecodeOK {
			out = append(out, rec)
		}
	}
	return out
}
