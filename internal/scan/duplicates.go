package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// sampleBytes is the prefix/suffix window hashed by the quick strategy.
// Matches the partial-hash window used for large-file candidate filtering.
const sampleBytes = 64 * 1024

// fingerprint is one record's key under a strategy. For exact/quick it is a
// hex digest compared by equality; for near-duplicate it is a 64-bit
// difference hash compared by Hamming distance.
type fingerprint struct {
	digest string
	bits   uint64
	err    error
}

// DetectDuplicates runs every configured strategy over the non-corrupted
// records and returns one independent group partition per strategy.
// Fingerprinting fans out over a bounded pool; clustering is sequential in
// path-sorted order so group membership and ordering are deterministic
// regardless of upstream execution order.
func DetectDuplicates(ctx context.Context, cfg *Config, records []ImageRecord) map[Strategy][]DuplicateGroup {
	out := make(map[Strategy][]DuplicateGroup, len(cfg.Strategies))
	for _, strategy := range cfg.Strategies {
		prints := fingerprintAll(ctx, cfg, strategy, records)
		if strategy == StrategyNear {
			out[strategy] = clusterByDistance(records, prints, cfg.NearThreshold)
		} else {
			out[strategy] = groupByDigest(records, prints)
		}
		slog.Info("duplicate detection finished",
			"strategy", string(strategy), "groups", len(out[strategy]))
	}
	return out
}

// fingerprintAll computes one fingerprint per record. Results land in
// per-record slots keyed by index; workers share nothing else.
func fingerprintAll(ctx context.Context, cfg *Config, strategy Strategy, records []ImageRecord) []fingerprint {
	prints := make([]fingerprint, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch strategy {
			case StrategyExact:
				prints[i].digest, prints[i].err = exactHash(records[i].Path)
			case StrategyQuick:
				prints[i].digest, prints[i].err = quickHash(records[i].Path, records[i].Size)
			case StrategyNear:
				prints[i].bits, prints[i].err = differenceHash(records[i].Path)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range prints {
		if prints[i].err != nil {
			// The record already survived the corruption check, so a failure
			// here is unusual (e.g. the file vanished mid-scan). It is logged
			// and the record simply joins no group.
			slog.Warn("fingerprint failed",
				"strategy", string(strategy), "path", records[i].RelPath, "error", prints[i].err)
		}
	}
	return prints
}

// exactHash is the SHA-256 of the file's full contents.
func exactHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// quickHash is an approximate signature over the byte size plus the first and
// last sampleBytes of the file. It trades false-negative risk for speed on
// large files: two files differing only in untouched middle bytes collide.
// Whether that trade-off is acceptable is the caller's strategy choice.
func quickHash(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	fmt.Fprintf(h, "%d", size)

	first := make([]byte, sampleBytes)
	n, err := io.ReadFull(f, first)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	h.Write(first[:n])

	if size > 2*sampleBytes {
		if _, err := f.Seek(-sampleBytes, io.SeekEnd); err != nil {
			return "", err
		}
		last := make([]byte, sampleBytes)
		n, err := io.ReadFull(f, last)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return "", err
		}
		h.Write(last[:n])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// differenceHash is a 64-bit perceptual fingerprint: the image is
// tone-normalized to grayscale, downsampled to 9×8 with Lanczos resampling,
// and each bit records whether a pixel is darker than its right neighbor.
// Visually similar images yield fingerprints within a small Hamming distance.
func differenceHash(path string) (uint64, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, err
	}
	small := imaging.Resize(imaging.Grayscale(img), 9, 8, imaging.Lanczos)

	var hash uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			left := small.NRGBAAt(x, y).R
			right := small.NRGBAAt(x+1, y).R
			hash <<= 1
			if left < right {
				hash |= 1
			}
		}
	}
	return hash, nil
}

// hammingDistance counts differing bits between two fingerprints.
func hammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// groupByDigest partitions records by equal digest. Groups are ordered by
// their first member's relative path; singletons are dropped.
func groupByDigest(records []ImageRecord, prints []fingerprint) []DuplicateGroup {
	byDigest := make(map[string]*DuplicateGroup)
	var order []*DuplicateGroup
	for i := range records {
		if prints[i].err != nil {
			continue
		}
		digest := prints[i].digest
		grp, ok := byDigest[digest]
		if !ok {
			grp = &DuplicateGroup{Key: digest}
			byDigest[digest] = grp
			order = append(order, grp)
		}
		grp.Members = append(grp.Members, records[i].RelPath)
	}
	return dropSingletons(order)
}

// clusterByDistance forms near-duplicate groups by single linkage: records
// are visited in path-sorted order, each unclustered record opens a new
// group, and a record joins the first existing group within threshold of any
// member. With threshold 0 only bit-exact fingerprints cluster.
func clusterByDistance(records []ImageRecord, prints []fingerprint, threshold int) []DuplicateGroup {
	type cluster struct {
		group DuplicateGroup
		bits  []uint64
	}
	var clusters []*cluster

	for i := range records {
		if prints[i].err != nil {
			continue
		}
		fp := prints[i].bits
		var home *cluster
	search:
		for _, c := range clusters {
			for _, member := range c.bits {
				if hammingDistance(fp, member) <= threshold {
					home = c
					break search
				}
			}
		}
		if home == nil {
			home = &cluster{group: DuplicateGroup{Key: fmt.Sprintf("%016x", fp)}}
			clusters = append(clusters, home)
		}
		home.group.Members = append(home.group.Members, records[i].RelPath)
		home.bits = append(home.bits, fp)
	}

	groups := make([]*DuplicateGroup, len(clusters))
	for i, c := range clusters {
		groups[i] = &c.group
	}
	return dropSingletons(groups)
}

// dropSingletons filters out size-1 groups, preserving order. Every record
// appears in at most one group because each is assigned exactly once above.
func dropSingletons(groups []*DuplicateGroup) []DuplicateGroup {
	out := make([]DuplicateGroup, 0, len(groups))
	for _, grp := range groups {
		if len(grp.Members) > 1 {
			out = append(out, *grp)
		}
	}
	return out
}
