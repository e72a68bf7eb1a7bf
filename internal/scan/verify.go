package scan

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	// Full-decode support beyond the stdlib formats.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Verify attempts a full decode of every record over a bounded worker pool
// and sets each record's DecodeOutcome in place. A full decode (not a header
// peek) is required to catch truncated-body corruption.
//
// Failures are converted to data: a malformed file marks its record as
// corrupted and is excluded downstream, but never aborts the scan. Each worker
// writes only its own record slot, so no synchronization is needed beyond the
// final join.
func Verify(ctx context.Context, cfg *Config, records []ImageRecord) []CorruptedFile {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec.Decode = decodeOutcome(rec.Path)
			return nil
		})
	}
	// Workers only fail on context cancellation, which Run surfaces itself.
	_ = g.Wait()

	var corrupted []CorruptedFile
	for i := range records {
		if records[i].Decode.State == DecodeFailed {
			corrupted = append(corrupted, CorruptedFile{
				RelPath: records[i].RelPath,
				Reason:  records[i].Decode.Reason,
			})
		}
	}
	if len(corrupted) > 0 {
		slog.Info("corrupted images found", "count", len(corrupted))
	}
	return corrupted
}

// decodeOutcome fully decodes the file at path. Every failure mode — missing
// file, zero-length file, malformed bytes, unsupported format, even a decoder
// panic on hostile input — is returned as a DecodeFailed outcome.
func decodeOutcome(path string) (out DecodeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = DecodeOutcome{State: DecodeFailed, Reason: fmt.Sprintf("decoder panic: %v", r)}
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return DecodeOutcome{State: DecodeFailed, Reason: err.Error()}
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return DecodeOutcome{State: DecodeFailed, Reason: fmt.Sprintf("decode: %v", err)}
	}
	bounds := img.Bounds()
	return DecodeOutcome{
		State:  DecodeOK,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Mode:   colorMode(img, format),
	}
}

// colorMode names the decoded color representation, roughly matching the
// conventional mode names reported by image tooling. Alpha-capable images
// that are fully opaque count as plain RGB so the RGBA-share check reflects
// real transparency, not decoder representation.
func colorMode(img image.Image, format string) string {
	switch v := img.(type) {
	case *image.Gray:
		return "gray"
	case *image.Gray16:
		return "gray16"
	case *image.Paletted:
		return "palette"
	case *image.CMYK:
		return "cmyk"
	case *image.YCbCr:
		return "rgb"
	case *image.NYCbCrA:
		return alphaMode(v.Opaque())
	case *image.RGBA:
		return alphaMode(v.Opaque())
	case *image.NRGBA:
		return alphaMode(v.Opaque())
	case *image.RGBA64:
		return alphaMode(v.Opaque())
	case *image.NRGBA64:
		return alphaMode(v.Opaque())
	default:
		return format
	}
}

func alphaMode(opaque bool) string {
	if opaque {
		return "rgb"
	}
	return "rgba"
}
