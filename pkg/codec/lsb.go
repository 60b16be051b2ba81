package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// LSBCodec hides a payload in the least-significant bit of each color
// channel of a PNG cover image. A 32-bit big-endian length prefix comes
// first, followed by the payload bits, all written in raster order
// across R, then G, then B of each pixel (alpha is left untouched so
// compositing never changes). Grounded on
// original_source/stegoproxy/stego.py's stegano_hide_lsb/
// stegano_extract_lsb, reimplemented against the standard image/png
// package since the pack has no Go steganography library (see
// DESIGN.md).
type LSBCodec struct{}

const lsbLengthPrefixBits = 32
const lsbCapacityReserve = 1024

func (LSBCodec) Name() string { return "lsb" }

// Capacity returns ⌊w·h·3/8⌋ − 1024 bytes, reserving headroom for PNG
// re-encoding overhead and the length prefix itself.
func (LSBCodec) Capacity(cover []byte) (int, error) {
	img, err := png.Decode(bytes.NewReader(cover))
	if err != nil {
		return 0, stegoerr.NewCodecError("lsb-decode-cover", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cap := (w*h*3)/8 - lsbCapacityReserve
	if cap < 0 {
		cap = 0
	}
	return cap, nil
}

func (c LSBCodec) Embed(cover []byte, payload []byte) ([]byte, error) {
	capacity, err := c.Capacity(cover)
	if err != nil {
		return nil, err
	}
	if len(payload) > capacity {
		return nil, &ErrPayloadTooLarge{Payload: len(payload), Capacity: capacity}
	}

	img, err := png.Decode(bytes.NewReader(cover))
	if err != nil {
		return nil, stegoerr.NewCodecError("lsb-decode-cover", err)
	}

	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.NRGBAModel.Convert(img.At(x, y)))
		}
	}

	bits := newBitStream()
	bits.writeUint32(uint32(len(payload)))
	bits.writeBytes(payload)

	idx := 0
loop:
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if idx >= bits.len() {
				break loop
			}
			px := out.NRGBAAt(x, y)
			px.R = setLSB(px.R, bits.bit(idx))
			idx++
			if idx < bits.len() {
				px.G = setLSB(px.G, bits.bit(idx))
				idx++
			}
			if idx < bits.len() {
				px.B = setLSB(px.B, bits.bit(idx))
				idx++
			}
			out.SetNRGBA(x, y, px)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, stegoerr.NewCodecError("lsb-encode-medium", err)
	}
	return buf.Bytes(), nil
}

func (LSBCodec) Extract(medium []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(medium))
	if err != nil {
		return nil, stegoerr.NewCodecError("lsb-decode-medium", err)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		b := img.Bounds()
		conv := image.NewNRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				conv.Set(x, y, color.NRGBAModel.Convert(img.At(x, y)))
			}
		}
		nrgba = conv
	}

	b := nrgba.Bounds()
	var channelBits []byte
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := nrgba.NRGBAAt(x, y)
			channelBits = append(channelBits, px.R&1, px.G&1, px.B&1)
		}
	}

	if len(channelBits) < lsbLengthPrefixBits {
		return nil, stegoerr.NewCodecError("lsb-extract", fmt.Errorf("medium too small to hold a length prefix"))
	}

	length := bitsToUint32(channelBits[:lsbLengthPrefixBits])
	need := lsbLengthPrefixBits + int(length)*8
	if need > len(channelBits) {
		return nil, stegoerr.NewCodecError("lsb-extract", fmt.Errorf("declared payload length exceeds medium capacity"))
	}

	return bitsToBytes(channelBits[lsbLengthPrefixBits:need]), nil
}

func setLSB(v uint8, bit byte) uint8 {
	if bit == 0 {
		return v &^ 1
	}
	return v | 1
}

// bitStream accumulates bits MSB-first within each byte, matching the
// order Extract reads them back in.
type bitStream struct {
	bits []byte
}

func newBitStream() *bitStream { return &bitStream{} }

func (s *bitStream) writeUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	s.writeBytes(buf[:])
}

func (s *bitStream) writeBytes(data []byte) {
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			s.bits = append(s.bits, (b>>uint(i))&1)
		}
	}
}

func (s *bitStream) len() int        { return len(s.bits) }
func (s *bitStream) bit(i int) byte  { return s.bits[i] }

func bitsToUint32(bits []byte) uint32 {
	var v uint32
	for _, b := range bits {
		v = (v << 1) | uint32(b)
	}
	return v
}

func bitsToBytes(bits []byte) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b != 0 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}
