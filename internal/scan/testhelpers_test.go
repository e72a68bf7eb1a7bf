package scan

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// grayRamp builds a grayscale image whose rows brighten left to right (or the
// reverse), giving difference-hash tests fully predictable fingerprints.
func grayRamp(w, h int, reverse bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			if reverse {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// colorOpaque is an arbitrary fully opaque fill for fixtures.
var colorOpaque = color.NRGBA{R: 120, G: 80, B: 40, A: 255}

// solidImage builds a uniformly filled NRGBA image.
func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// writePNG encodes img to path, creating parent directories as needed.
func writePNG(tb testing.TB, path string, img image.Image) {
	tb.Helper()
	mustMkdirAll(tb, filepath.Dir(path))
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		tb.Fatalf("encode %s: %v", path, err)
	}
}

// writeJPEG encodes img to path as JPEG.
func writeJPEG(tb testing.TB, path string, img image.Image) {
	tb.Helper()
	mustMkdirAll(tb, filepath.Dir(path))
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		tb.Fatalf("encode %s: %v", path, err)
	}
}

// truncateCopy writes the first half of src's bytes to dst, producing a file
// with a valid header but a corrupt body.
func truncateCopy(tb testing.TB, src, dst string) {
	tb.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		tb.Fatalf("read %s: %v", src, err)
	}
	if err := os.WriteFile(dst, data[:len(data)/2], 0o644); err != nil {
		tb.Fatalf("write %s: %v", dst, err)
	}
}

// copyFile duplicates src to dst byte for byte.
func copyFile(tb testing.TB, src, dst string) {
	tb.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		tb.Fatalf("read %s: %v", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", dst, err)
	}
}

func mustCreate(tb testing.TB, path string) *os.File {
	tb.Helper()
	mustMkdirAll(tb, filepath.Dir(path))
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	return f
}

func mustMkdirAll(tb testing.TB, dir string) {
	tb.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", dir, err)
	}
}

func mustWriteFile(tb testing.TB, path string, data []byte) {
	tb.Helper()
	mustMkdirAll(tb, filepath.Dir(path))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}

// testConfig returns a validated Mode A config rooted at root.
func testConfig(tb testing.TB, root string) *Config {
	tb.Helper()
	cfg := DefaultConfig(root)
	if err := cfg.Validate(); err != nil {
		tb.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}
