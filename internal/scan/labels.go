package scan

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Ranked candidates for automatic column detection, matched case-insensitively.
var (
	filenameCandidates = []string{"filename", "file", "image", "image_path", "path", "img", "id"}
	labelCandidates    = []string{"label", "class", "category", "target", "y"}
)

// extMismatchShare is the fraction of rows above which extension-census
// warnings fire.
const extMismatchShare = 0.5

// LabelRow is one normalized entry from the label table. Row is the line
// number in the file counting the header, matching what an editor shows.
// Key is the join key after the configured normalization; Label is the
// normalized label value (empty when the row carries none).
type LabelRow struct {
	Row    int
	RawKey string
	Key    string
	Label  string
}

// labelTable is a parsed label file plus everything detected about it.
type labelTable struct {
	filenameCol string
	labelCol    string
	rows        []LabelRow
	extCounts   map[string]int
	noExtCount  int
	warnings    []string
}

// loadLabelTable reads and parses the label table. The file is decoded as
// UTF-8, falling back to Latin-1 when the bytes are not valid UTF-8 — an
// expected input variability recorded as a warning, never an error.
// Column detection honors explicit overrides first, then the ranked candidate
// lists; an undetectable filename column (or an override naming an absent
// column) is fatal.
func loadLabelTable(cfg *Config) (*labelTable, error) {
	opts := cfg.Labels
	raw, err := os.ReadFile(opts.TablePath)
	if err != nil {
		return nil, &ScanError{Kind: KindTableNotFound, Detail: opts.TablePath, Err: err}
	}

	table := &labelTable{extCounts: map[string]int{}}
	if !utf8.Valid(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, &ScanError{Kind: KindTableNotFound, Detail: opts.TablePath, Err: err}
		}
		raw = decoded
		table.warnings = append(table.warnings, "label table is not valid UTF-8; decoded as Latin-1")
		slog.Warn("label table decoded with fallback encoding", "path", opts.TablePath)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1 // tolerate ragged rows; missing cells read as empty
	reader.TrimLeadingSpace = true
	lines, err := reader.ReadAll()
	if err != nil {
		return nil, &ScanError{Kind: KindTableNotFound, Detail: opts.TablePath, Err: err}
	}
	if len(lines) == 0 {
		return nil, scanErrorf(KindColumnDetectionFailed, "label table %s is empty", opts.TablePath)
	}

	header := lines[0]
	if err := table.detectColumns(header, opts); err != nil {
		return nil, err
	}
	filenameIdx := columnIndex(header, table.filenameCol)
	labelIdx := -1
	if table.labelCol != "" {
		labelIdx = columnIndex(header, table.labelCol)
	}

	for i, line := range lines[1:] {
		// Line numbers count the header, so the first data line is row 2.
		row := LabelRow{Row: i + 2}
		if filenameIdx < len(line) {
			row.RawKey = strings.TrimSpace(line[filenameIdx])
		}
		if labelIdx >= 0 && labelIdx < len(line) {
			row.Label = normalizeLabel(line[labelIdx], opts.Normalize)
		}
		if row.RawKey != "" {
			row.Key = normalizeKey(row.RawKey, opts)
			if ext := strings.ToLower(filepath.Ext(row.RawKey)); ext != "" {
				table.extCounts[ext]++
			} else {
				table.noExtCount++
			}
		}
		table.rows = append(table.rows, row)
	}
	return table, nil
}

// detectColumns fixes the filename and label columns once, per the contract:
// overrides win, then ranked candidates, then failure (filename only — a
// missing label column degrades to presence-only reconciliation).
func (t *labelTable) detectColumns(header []string, opts *LabelOptions) error {
	if opts.FilenameColumn != "" {
		col := matchColumn(header, opts.FilenameColumn)
		if col == "" {
			return scanErrorf(KindColumnDetectionFailed,
				"filename column override %q not present in table", opts.FilenameColumn)
		}
		t.filenameCol = col
	} else {
		col, matches := chooseColumn(header, filenameCandidates)
		if col == "" {
			return scanErrorf(KindColumnDetectionFailed,
				"no filename column candidate matched header %v", header)
		}
		t.filenameCol = col
		if len(matches) > 1 {
			t.warnings = append(t.warnings,
				fmt.Sprintf("multiple possible filename columns %v; using %q", matches, col))
		}
	}

	if opts.LabelColumn != "" {
		col := matchColumn(header, opts.LabelColumn)
		if col == "" {
			return scanErrorf(KindColumnDetectionFailed,
				"label column override %q not present in table", opts.LabelColumn)
		}
		t.labelCol = col
	} else {
		col, matches := chooseColumn(header, labelCandidates)
		t.labelCol = col
		if col == "" {
			t.warnings = append(t.warnings, "no label column detected; checking presence only")
		} else if len(matches) > 1 {
			t.warnings = append(t.warnings,
				fmt.Sprintf("multiple possible label columns %v; using %q", matches, col))
		}
	}
	return nil
}

// chooseColumn returns the first candidate with an exact (case-insensitive)
// header match, falling back to substring matches. All matches are returned
// so callers can warn about ambiguity.
func chooseColumn(header, candidates []string) (string, []string) {
	var matches []string
	for _, cand := range candidates {
		for _, col := range header {
			if strings.EqualFold(col, cand) {
				matches = append(matches, col)
			}
		}
	}
	if len(matches) > 0 {
		return matches[0], matches
	}
	for _, col := range header {
		for _, cand := range candidates {
			if strings.Contains(strings.ToLower(col), cand) {
				matches = append(matches, col)
				break
			}
		}
	}
	if len(matches) > 0 {
		return matches[0], matches
	}
	return "", nil
}

func matchColumn(header []string, name string) string {
	for _, col := range header {
		if strings.EqualFold(col, name) {
			return col
		}
	}
	return ""
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if col == name {
			return i
		}
	}
	return -1
}

// normalizeKey produces the join key for a filename/ID value: slash-separated,
// optionally extension-stripped and case-folded. The same rules apply to
// every row and to every record key before the join.
func normalizeKey(value string, opts *LabelOptions) string {
	key := filepath.ToSlash(strings.TrimSpace(value))
	key = strings.TrimPrefix(key, "./")
	if opts.StripExtensions {
		key = strings.TrimSuffix(key, filepath.Ext(key))
	}
	if opts.Normalize {
		key = strings.ToLower(key)
	}
	return key
}

// normalizeLabel trims a label value and, when normalization is on,
// case-folds it so "Cat " and "cat" collapse to one class.
func normalizeLabel(value string, normalize bool) string {
	label := strings.TrimSpace(value)
	if strings.EqualFold(label, "nan") {
		return ""
	}
	if normalize {
		label = strings.ToLower(label)
	}
	return label
}

// Reconcile joins the label table against the discovered records and builds
// the coverage report. A row resolves against the full relative path first,
// then against the basename (so "001" finds "train/001.png"), and an exact
// extension-included match always wins: the stem fallback only kicks in when
// no file matches the reference as written, so "a.png" never binds to "a.jpg"
// while a.png exists. Matched rows assign their label as the record's class;
// extension disagreements between a resolved row and its file are flagged
// separately from presence/absence.
func Reconcile(cfg *Config, records []ImageRecord) (*CoverageReport, error) {
	table, err := loadLabelTable(cfg)
	if err != nil {
		return nil, err
	}
	opts := cfg.Labels
	exactOpts := *opts
	exactOpts.StripExtensions = false

	byRel := make(map[string][]int)
	byBase := make(map[string][]int)
	byRelStem := make(map[string][]int)
	byBaseStem := make(map[string][]int)
	for i, rec := range records {
		relKey := normalizeKey(rec.RelPath, &exactOpts)
		byRel[relKey] = append(byRel[relKey], i)
		baseKey := normalizeKey(filepath.Base(rec.RelPath), &exactOpts)
		if baseKey != relKey {
			byBase[baseKey] = append(byBase[baseKey], i)
		}
		if opts.StripExtensions {
			relStem := normalizeKey(rec.RelPath, opts)
			byRelStem[relStem] = append(byRelStem[relStem], i)
			baseStem := normalizeKey(filepath.Base(rec.RelPath), opts)
			if baseStem != relStem {
				byBaseStem[baseStem] = append(byBaseStem[baseStem], i)
			}
		}
	}

	report := &CoverageReport{
		FilenameColumn:  table.filenameCol,
		LabelColumn:     table.labelCol,
		Rows:            len(table.rows),
		MissingImages:   []MissingImage{},
		OrphanImages:    []string{},
		TableExtCounts:  table.extCounts,
		TableNoExtCount: table.noExtCount,
		Warnings:        table.warnings,
	}

	matched := make([]bool, len(records))
	for _, row := range table.rows {
		if row.Label == "" {
			report.MissingLabelCount++
		}
		if row.RawKey == "" {
			report.MissingImages = append(report.MissingImages,
				MissingImage{Row: row.Row, Reference: "<empty>"})
			continue
		}

		exactKey := normalizeKey(row.RawKey, &exactOpts)
		candidates := byRel[exactKey]
		if len(candidates) == 0 {
			candidates = byBase[exactKey]
		}
		if len(candidates) == 0 && opts.StripExtensions {
			candidates = byRelStem[row.Key]
			if len(candidates) == 0 {
				candidates = byBaseStem[row.Key]
			}
		}
		if len(candidates) == 0 {
			report.MissingImages = append(report.MissingImages,
				MissingImage{Row: row.Row, Reference: row.RawKey})
			continue
		}
		if len(candidates) > 1 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("multiple files match %q; using %q", row.RawKey, records[candidates[0]].RelPath))
		}

		idx := candidates[0]
		matched[idx] = true
		report.Resolved++
		if row.Label != "" {
			records[idx].Class = row.Label
		}

		tableExt := strings.ToLower(filepath.Ext(row.RawKey))
		fileExt := strings.ToLower(filepath.Ext(records[idx].RelPath))
		if tableExt != "" && tableExt != fileExt {
			report.ExtMismatches = append(report.ExtMismatches,
				ExtMismatch{Key: row.Key, TableExt: tableExt, FileExt: fileExt})
		}
	}

	for i, rec := range records {
		if !matched[i] {
			report.OrphanImages = append(report.OrphanImages, rec.RelPath)
		}
	}
	sort.Strings(report.OrphanImages)
	sort.Slice(report.MissingImages, func(i, j int) bool {
		a, b := report.MissingImages[i], report.MissingImages[j]
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Reference < b.Reference
	})
	sort.Slice(report.ExtMismatches, func(i, j int) bool {
		return report.ExtMismatches[i].Key < report.ExtMismatches[j].Key
	})

	if report.Rows > 0 {
		report.CoverageRatio = float64(report.Resolved) / float64(report.Rows)
	}
	if len(records) > 0 {
		report.OrphanRate = float64(len(report.OrphanImages)) / float64(len(records))
	}
	report.Warnings = append(report.Warnings, extensionCensusWarnings(
		ExtensionCounts(records), table.extCounts, cfg.Extensions)...)

	slog.Info("label reconciliation finished",
		"rows", report.Rows, "resolved", report.Resolved,
		"missing", len(report.MissingImages), "orphans", len(report.OrphanImages))
	return report, nil
}

// extensionCensusWarnings compares the extension distribution implied by the
// table against what is actually on disk. Fires when the dominant extensions
// disagree on both sides, or when the table heavily references extensions
// outside the allow-list.
func extensionCensusWarnings(imageExts, tableExts map[string]int, allowed []string) []string {
	var warnings []string
	tableTotal := 0
	for _, n := range tableExts {
		tableTotal += n
	}
	if tableTotal == 0 {
		return warnings
	}
	imageTotal := 0
	for _, n := range imageExts {
		imageTotal += n
	}

	topTable, topTableCount := dominantExt(tableExts)
	topImage, topImageCount := dominantExt(imageExts)
	tableShare := float64(topTableCount) / float64(tableTotal)
	imageShare := 0.0
	if imageTotal > 0 {
		imageShare = float64(topImageCount) / float64(imageTotal)
	}
	if topImage != "" && topTable != topImage &&
		tableShare >= extMismatchShare && imageShare >= extMismatchShare {
		warnings = append(warnings, fmt.Sprintf(
			"table references %q heavily (%.0f%%) but images are mostly %q (%.0f%%)",
			topTable, tableShare*100, topImage, imageShare*100))
	}

	allowedSet := map[string]bool{}
	for _, ext := range allowed {
		allowedSet[ext] = true
	}
	excluded := 0
	for ext, n := range tableExts {
		if !allowedSet[ext] {
			excluded += n
		}
	}
	if share := float64(excluded) / float64(tableTotal); share >= extMismatchShare {
		warnings = append(warnings, fmt.Sprintf(
			"table references extensions outside the allow-list (%.0f%% of rows)", share*100))
	}
	return warnings
}

// dominantExt returns the most frequent extension, ties broken
// lexicographically.
func dominantExt(counts map[string]int) (string, int) {
	best, bestCount := "", 0
	exts := make([]string, 0, len(counts))
	for ext := range counts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		if counts[ext] > bestCount {
			best, bestCount = ext, counts[ext]
		}
	}
	return best, bestCount
}
