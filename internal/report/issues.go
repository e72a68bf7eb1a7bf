package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/imgvet/imgvet/internal/scan"
)

// WriteIssues exports the flat issues table: one row per corrupted file,
// missing image, orphan image, duplicate-group membership, and hygiene
// example. Row order follows the result's own ordering, so repeated exports
// of the same result are byte-identical.
func WriteIssues(w io.Writer, cfg *scan.Config, result *scan.ScanResult) error {
	cw := csv.NewWriter(w)
	write := func(row ...string) {
		// Writer errors surface on Flush.
		_ = cw.Write(row)
	}
	write("issue", "path", "detail")

	for _, c := range result.Corrupted {
		write("corrupted", c.RelPath, c.Reason)
	}
	if result.Coverage != nil {
		for _, m := range result.Coverage.MissingImages {
			write("missing-image", m.Reference, fmt.Sprintf("row %d", m.Row))
		}
		for _, orphan := range result.Coverage.OrphanImages {
			write("orphan-image", orphan, "")
		}
		for _, mismatch := range result.Coverage.ExtMismatches {
			write("ext-mismatch", mismatch.Key,
				fmt.Sprintf("table %s, file %s", mismatch.TableExt, mismatch.FileExt))
		}
	}
	for _, strategy := range cfg.Strategies {
		for _, grp := range result.Duplicates[strategy] {
			for _, member := range grp.Members {
				write("duplicate-"+string(strategy), member, grp.Key)
			}
		}
	}
	for _, warning := range result.Hygiene {
		for _, example := range warning.Examples {
			write("hygiene-"+warning.Kind, example, warning.Threshold)
		}
	}

	cw.Flush()
	return cw.Error()
}
