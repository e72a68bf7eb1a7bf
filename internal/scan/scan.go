package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Scanner runs full, independent audit passes over a dataset. It holds no
// state between runs; every scan is computed fresh from the filesystem and
// label table as they exist at invocation time.
type Scanner struct {
	cfg Config
}

// New validates cfg (before any file I/O) and returns a Scanner.
func New(cfg Config) (*Scanner, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{cfg: cfg}, nil
}

// Config returns the effective configuration after defaults were applied.
func (s *Scanner) Config() Config { return s.cfg }

// Run executes one scan and returns the immutable result.
//
// Classification is a single ordered traversal; its sorted output is the one
// shared input every other component consumes. Verification fans out over a
// worker pool; duplicate detection, statistics, and label reconciliation then
// run independently (none consumes another's output) and join before the
// result is assembled. A scan either completes fully or fails at a hard error
// before any partial result is exposed.
func (s *Scanner) Run(ctx context.Context) (*ScanResult, error) {
	startedAt := time.Now()
	runID := uuid.NewString()
	slog.Info("scan started", "run_id", runID, "root", s.cfg.Root, "labeled", s.cfg.Labeled())

	records, err := Classify(&s.cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("classification finished", "files", len(records))

	corrupted := Verify(ctx, &s.cfg, records)
	decoded := DecodedRecords(records)

	var (
		duplicates map[Strategy][]DuplicateGroup
		stats      *StatsSummary
		coverage   *CoverageReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		duplicates = DetectDuplicates(gctx, &s.cfg, decoded)
		return gctx.Err()
	})
	g.Go(func() error {
		stats = Aggregate(decoded)
		return nil
	})
	if s.cfg.Labeled() {
		g.Go(func() error {
			var err error
			coverage, err = Reconcile(&s.cfg, records)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	classCounts := ClassCounts(records)
	result := &ScanResult{
		Metadata: Metadata{
			RunID:      runID,
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
		},
		Records:     records,
		Corrupted:   orEmptyCorrupted(corrupted),
		Duplicates:  duplicates,
		Stats:       stats,
		Hygiene:     HygieneWarnings(&s.cfg, decoded, classCounts),
		ExtCounts:   ExtensionCounts(records),
		ClassCounts: classCounts,
		Coverage:    coverage,
	}

	slog.Info("scan finished",
		"run_id", runID,
		"files", len(records),
		"corrupted", len(result.Corrupted),
		"decoded", len(decoded),
		"duration", time.Since(startedAt).Round(time.Millisecond))
	return result, nil
}

// orEmptyCorrupted keeps the corrupted list non-nil so serialized output is
// identical whether or not any file failed to decode.
func orEmptyCorrupted(c []CorruptedFile) []CorruptedFile {
	if c == nil {
		return []CorruptedFile{}
	}
	return c
}
