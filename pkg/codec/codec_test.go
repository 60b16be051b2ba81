package codec_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/sh4nks/stegoproxy/pkg/codec"
)

func solidPNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func solidJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func TestNullCodecRoundTrip(t *testing.T) {
	c := codec.NullCodec{}
	payload := []byte("aGVsbG8gd29ybGQ=")

	medium, err := c.Embed(nil, payload)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	got, err := c.Extract(medium)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestLSBCodecRoundTrip(t *testing.T) {
	c := codec.LSBCodec{}
	cover := solidPNG(64, 64)
	payload := []byte("the quick brown fox jumps over the lazy dog")

	medium, err := c.Embed(cover, payload)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	got, err := c.Extract(medium)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestLSBCodecRejectsOversizedPayload(t *testing.T) {
	c := codec.LSBCodec{}
	cover := solidPNG(4, 4)
	capacity, err := c.Capacity(cover)
	if err != nil {
		t.Fatalf("Capacity: %v", err)
	}
	payload := bytes.Repeat([]byte{0x41}, capacity+1)

	if _, err := c.Embed(cover, payload); err == nil {
		t.Fatalf("expected oversized payload to be rejected")
	}
}

func TestEXIFCodecRoundTrip(t *testing.T) {
	c := codec.EXIFCodec{}
	cover := solidJPEG(32, 32)
	payload := []byte("covert response body")

	medium, err := c.Embed(cover, payload)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	got, err := c.Extract(medium)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestEXIFCodecRejectsNonJPEGCover(t *testing.T) {
	c := codec.EXIFCodec{}
	if _, err := c.Embed(solidPNG(4, 4), []byte("x")); err == nil {
		t.Fatalf("expected non-JPEG cover to be rejected")
	}
}
