package scan

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// Classify enumerates eligible images under cfg.Root and returns them sorted
// by relative path (case-sensitive, lexicographic) so output order is stable
// across filesystems. Traversal is a single sequential walk: its order is the
// base sort order for everything downstream, so it must not be parallelized.
//
// Files with disallowed extensions are silently skipped. In Mode A with class
// inference on, the class is the name of the immediate parent directory;
// images directly in the root have no class.
func Classify(cfg *Config) ([]ImageRecord, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, &ScanError{Kind: KindRootNotFound, Detail: cfg.Root, Err: err}
	}

	var records []ImageRecord
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtrees are skipped, not fatal: one bad directory
			// must not abort the scan.
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !cfg.allowedExtension(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			slog.Warn("skipping unstatable file", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		records = append(records, ImageRecord{
			Path:    path,
			RelPath: rel,
			Class:   inferClass(cfg, rel),
			Size:    info.Size(),
			Decode:  DecodeOutcome{State: DecodeNotAttempted},
		})
		return nil
	})
	if walkErr != nil {
		return nil, &ScanError{Kind: KindRootNotFound, Detail: root, Err: walkErr}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].RelPath < records[j].RelPath })

	if cfg.MaxFiles > 0 && len(records) > cfg.MaxFiles {
		// Truncate after sorting so the bound is deterministic.
		records = records[:cfg.MaxFiles]
	}

	if len(records) == 0 {
		return nil, scanErrorf(KindEmptyDataset, "no eligible images under %s", root)
	}
	return records, nil
}

// inferClass returns the immediate parent directory of rel, one level above
// the image. Mode B labels come from the table instead.
func inferClass(cfg *Config, rel string) string {
	if cfg.Labeled() || !cfg.InferClasses {
		return ""
	}
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." {
		return ""
	}
	parts := strings.Split(dir, "/")
	return parts[len(parts)-1]
}

// ExtensionCounts tallies file extensions (lowercased) over records.
func ExtensionCounts(records []ImageRecord) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[strings.ToLower(filepath.Ext(rec.RelPath))]++
	}
	return counts
}
