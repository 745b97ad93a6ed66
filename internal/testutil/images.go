// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// TestImagePNG returns an encoded PNG of the given size with a simple
// gradient fill, suitable as an upload fixture.
func TestImagePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, gradient(width, height)); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

// TestImageJPEG returns an encoded JPEG of the given size.
func TestImageJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, gradient(width, height), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

// DecodeSize decodes image bytes and returns their dimensions.
func DecodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode image config: %v", err)
	}
	return cfg.Width, cfg.Height
}

func gradient(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(width, 1)),
				G: uint8(y * 255 / max(height, 1)),
				B: 120,
				A: 255,
			})
		}
	}
	return img
}
