package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// EXIFCodec hides a payload inside a JPEG cover's EXIF ImageDescription
// tag: the payload is zlib-compressed, then base64-encoded so it survives
// as EXIF ASCII text, then written into a hand-built APP1/Exif segment
// spliced right after the cover's SOI marker. Grounded on
// original_source/stegoproxy/stego.py's zlib-based EXIF entry; goexif has
// no EXIF *writer*, only a reader (see DESIGN.md), so embedding is
// hand-rolled TIFF/IFD construction and extraction uses
// github.com/rwcarlsen/goexif/exif.
type EXIFCodec struct{}

// exifCapacity mirrors config.py's hard per-algorithm size limit on the
// pre-compression payload. A single APP1 segment is capped at 0xFFFF
// bytes by the JPEG spec, so Embed also rejects a payload whose
// compressed, base64-encoded segment exceeds that, even when the payload
// itself is within exifCapacity.
const exifCapacity = 65536

const (
	markerSOI  = 0xD8
	markerAPP1 = 0xE1
	tagImageDescription = 0x010E
	typeASCII            = 2
)

func (EXIFCodec) Name() string { return "exif" }

func (EXIFCodec) Capacity(cover []byte) (int, error) {
	return exifCapacity, nil
}

func (c EXIFCodec) Embed(cover []byte, payload []byte) ([]byte, error) {
	if len(payload) > exifCapacity {
		return nil, &ErrPayloadTooLarge{Payload: len(payload), Capacity: exifCapacity}
	}
	if len(cover) < 2 || cover[0] != 0xFF || cover[1] != markerSOI {
		return nil, stegoerr.NewCodecError("exif-embed", fmt.Errorf("cover is not a JPEG (missing SOI marker)"))
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		return nil, stegoerr.NewCodecError("exif-compress", err)
	}
	if err := zw.Close(); err != nil {
		return nil, stegoerr.NewCodecError("exif-compress", err)
	}

	encoded := base64.StdEncoding.EncodeToString(compressed.Bytes())
	segment, err := buildExifSegment(encoded)
	if err != nil {
		return nil, err
	}
	if len(segment) > 0xFFFF {
		return nil, &ErrPayloadTooLarge{Payload: len(payload), Capacity: exifCapacity}
	}

	out := make([]byte, 0, len(cover)+len(segment))
	out = append(out, cover[0], cover[1]) // SOI
	out = append(out, segment...)
	out = append(out, cover[2:]...)
	return out, nil
}

// buildExifSegment constructs a full APP1 marker segment containing a
// minimal TIFF/IFD0 with a single ImageDescription ASCII tag holding
// asciiValue.
func buildExifSegment(asciiValue string) ([]byte, error) {
	value := append([]byte(asciiValue), 0) // NUL-terminated ASCII
	count := uint32(len(value))

	// TIFF header (little-endian) + IFD0 with one entry.
	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, binary.LittleEndian, uint16(0x002A))
	binary.Write(&tiff, binary.LittleEndian, uint32(8)) // IFD0 offset

	const ifdHeaderLen = 2 + 12 + 4 // count + one entry + next-IFD offset
	dataOffset := uint32(8 + ifdHeaderLen)

	binary.Write(&tiff, binary.LittleEndian, uint16(1)) // one entry
	binary.Write(&tiff, binary.LittleEndian, uint16(tagImageDescription))
	binary.Write(&tiff, binary.LittleEndian, uint16(typeASCII))
	binary.Write(&tiff, binary.LittleEndian, count)
	if count <= 4 {
		var inline [4]byte
		copy(inline[:], value)
		tiff.Write(inline[:])
	} else {
		binary.Write(&tiff, binary.LittleEndian, dataOffset)
	}
	binary.Write(&tiff, binary.LittleEndian, uint32(0)) // no next IFD

	if count > 4 {
		tiff.Write(value)
	}

	var segment bytes.Buffer
	segment.WriteByte(0xFF)
	segment.WriteByte(markerAPP1)
	length := uint16(2 + len("Exif\x00\x00") + tiff.Len())
	binary.Write(&segment, binary.BigEndian, length)
	segment.WriteString("Exif\x00\x00")
	segment.Write(tiff.Bytes())

	return segment.Bytes(), nil
}

func (EXIFCodec) Extract(medium []byte) ([]byte, error) {
	x, err := exif.Decode(bytes.NewReader(medium))
	if err != nil {
		return nil, stegoerr.NewCodecError("exif-decode", err)
	}
	tag, err := x.Get(exif.ImageDescription)
	if err != nil {
		return nil, stegoerr.NewCodecError("exif-missing-tag", err)
	}
	asciiValue, err := tag.StringVal()
	if err != nil {
		return nil, stegoerr.NewCodecError("exif-read-tag", err)
	}

	compressed, err := base64.StdEncoding.DecodeString(asciiValue)
	if err != nil {
		return nil, stegoerr.NewCodecError("exif-base64-decode", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, stegoerr.NewCodecError("exif-decompress", err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, stegoerr.NewCodecError("exif-decompress", err)
	}
	return payload, nil
}
