package scan

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func verifyAll(t *testing.T, root string) []ImageRecord {
	t.Helper()
	cfg := testConfig(t, root)
	records, err := Classify(cfg)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	Verify(context.Background(), cfg, records)
	return records
}

func findRecord(t *testing.T, records []ImageRecord, rel string) *ImageRecord {
	t.Helper()
	for i := range records {
		if records[i].RelPath == rel {
			return &records[i]
		}
	}
	t.Fatalf("record %q not found", rel)
	return nil
}

func TestVerifyValidImage(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), grayRamp(32, 16, false))

	records := verifyAll(t, root)
	rec := findRecord(t, records, "a.png")
	if rec.Decode.State != DecodeOK {
		t.Fatalf("got state %q (%s), want ok", rec.Decode.State, rec.Decode.Reason)
	}
	if rec.Decode.Width != 32 || rec.Decode.Height != 16 {
		t.Errorf("got %dx%d, want 32x16", rec.Decode.Width, rec.Decode.Height)
	}
	if rec.Decode.Mode != "gray" {
		t.Errorf("got mode %q, want gray", rec.Decode.Mode)
	}
}

func TestVerifyTruncatedImage(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.png")
	writePNG(t, good, grayRamp(64, 64, false))
	truncateCopy(t, good, filepath.Join(root, "bad.png"))

	records := verifyAll(t, root)
	rec := findRecord(t, records, "bad.png")
	if rec.Decode.State != DecodeFailed {
		t.Fatalf("truncated image decoded: state %q", rec.Decode.State)
	}
	if rec.Decode.Reason == "" {
		t.Error("corrupted record carries no reason")
	}
	if decoded := DecodedRecords(records); len(decoded) != 1 || decoded[0].RelPath != "good.png" {
		t.Errorf("decoded set %v, want only good.png", decoded)
	}
}

func TestVerifyZeroLengthFile(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "ok.png"), grayRamp(8, 8, false))
	mustWriteFile(t, filepath.Join(root, "empty.png"), nil)

	records := verifyAll(t, root)
	if rec := findRecord(t, records, "empty.png"); rec.Decode.State != DecodeFailed {
		t.Fatalf("zero-length file decoded: state %q", rec.Decode.State)
	}
}

func TestVerifyNeverAborts(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "ok.png"), grayRamp(8, 8, false))
	mustWriteFile(t, filepath.Join(root, "junk.png"), []byte("definitely not a png"))
	mustWriteFile(t, filepath.Join(root, "junk2.jpg"), []byte{0xff, 0xd8, 0xff})

	cfg := testConfig(t, root)
	records, err := Classify(cfg)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	corrupted := Verify(context.Background(), cfg, records)
	if len(corrupted) != 2 {
		t.Fatalf("got %d corrupted, want 2: %v", len(corrupted), corrupted)
	}
}

func TestVerifyColorModes(t *testing.T) {
	root := t.TempDir()

	writePNG(t, filepath.Join(root, "opaque.png"), solidImage(8, 8, color.NRGBA{R: 10, G: 20, B: 30, A: 255}))
	writePNG(t, filepath.Join(root, "translucent.png"), solidImage(8, 8, color.NRGBA{R: 10, G: 20, B: 30, A: 128}))
	writePNG(t, filepath.Join(root, "gray.png"), grayRamp(8, 8, false))
	writeJPEG(t, filepath.Join(root, "photo.jpg"), solidImage(8, 8, color.NRGBA{R: 99, G: 50, B: 10, A: 255}))

	bmpPath := filepath.Join(root, "legacy.bmp")
	f := mustCreate(t, bmpPath)
	if err := bmp.Encode(f, solidImage(8, 8, color.NRGBA{R: 1, G: 2, B: 3, A: 255})); err != nil {
		t.Fatalf("encode bmp: %v", err)
	}
	f.Close()

	want := map[string]string{
		"opaque.png":      "rgb",
		"translucent.png": "rgba",
		"gray.png":        "gray",
		"photo.jpg":       "rgb",
		"legacy.bmp":      "rgb",
	}
	records := verifyAll(t, root)
	for rel, mode := range want {
		rec := findRecord(t, records, rel)
		if rec.Decode.State != DecodeOK {
			t.Errorf("%s: decode failed: %s", rel, rec.Decode.Reason)
			continue
		}
		if rec.Decode.Mode != mode {
			t.Errorf("%s: got mode %q, want %q", rel, rec.Decode.Mode, mode)
		}
	}
}
