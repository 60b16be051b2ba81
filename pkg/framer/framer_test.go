package framer_test

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/sh4nks/stegoproxy/pkg/codec"
	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/framer"
)

func writeCoverPNG(t *testing.T, dir string, n int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x + n), G: uint8(y), B: 200, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "cover.png"))
	if err != nil {
		t.Fatalf("create cover: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode cover: %v", err)
	}
}

func TestFramerWrapUnwrapRequestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeCoverPNG(t, dir, 0)

	pool, err := codec.LoadPool(dir)
	if err != nil {
		t.Fatalf("LoadPool: %v", err)
	}
	f, err := framer.New(config.AlgorithmLSB, pool, config.DefaultMaxContentLen)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plaintext := []byte("GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n")

	req, err := f.WrapRequest(plaintext, nil)
	if err != nil {
		t.Fatalf("WrapRequest: %v", err)
	}

	br := bufio.NewReader(bytes.NewReader(req.Bytes()))
	_, _, got, err := f.UnwrapRequest(br, 0, nil)
	if err != nil {
		t.Fatalf("UnwrapRequest: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestFramerWrapUnwrapResponseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeCoverPNG(t, dir, 1)

	pool, err := codec.LoadPool(dir)
	if err != nil {
		t.Fatalf("LoadPool: %v", err)
	}
	f, err := framer.New(config.AlgorithmNull, pool, config.DefaultMaxContentLen)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plaintext := []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi")

	resp, err := f.WrapResponse(plaintext, nil)
	if err != nil {
		t.Fatalf("WrapResponse: %v", err)
	}

	br := bufio.NewReader(bytes.NewReader(resp.Bytes()))
	got, err := f.UnwrapResponse(br, nil)
	if err != nil {
		t.Fatalf("UnwrapResponse: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}
