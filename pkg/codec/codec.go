// Package codec implements the pluggable StegoCodec plugins named in
// spec.md §4.2: each hides an arbitrary byte payload inside a cover
// image and recovers it byte-exact. The framer always base64-encodes
// the plaintext HTTP bytes before handing them to Embed, and
// base64-decodes what Extract returns — codecs themselves never see or
// produce raw HTTP text, only opaque payload bytes (spec.md §4.3).
//
// Grounded on original_source/stegoproxy/stego.py's AVAILABLE_STEGOS
// registry (stegano_hide_lsb/stegano_extract_lsb, base64 passthrough)
// and embed/extract dispatch.
package codec

import (
	"fmt"

	"github.com/sh4nks/stegoproxy/pkg/config"
)

// Codec hides and recovers a payload inside a cover image.
type Codec interface {
	// Name identifies the algorithm, matching a config.Algorithm value.
	Name() string

	// Capacity returns the maximum payload size, in bytes, that cover
	// can hold.
	Capacity(cover []byte) (int, error)

	// Embed returns a new image with payload hidden inside cover. cover
	// is never mutated.
	Embed(cover []byte, payload []byte) ([]byte, error)

	// Extract recovers the payload previously embedded into medium.
	Extract(medium []byte) ([]byte, error)
}

// registry maps each supported algorithm to its Codec, mirroring
// stego.py's AVAILABLE_STEGOS dict.
var registry = map[config.Algorithm]Codec{
	config.AlgorithmNull: NullCodec{},
	config.AlgorithmLSB:  LSBCodec{},
	config.AlgorithmEXIF: EXIFCodec{},
}

// Get returns the Codec registered for alg.
func Get(alg config.Algorithm) (Codec, error) {
	c, ok := registry[alg]
	if !ok {
		return nil, fmt.Errorf("codec: unknown algorithm %q", alg)
	}
	return c, nil
}

// ErrPayloadTooLarge is returned by Embed when payload exceeds the
// cover's capacity.
type ErrPayloadTooLarge struct {
	Payload  int
	Capacity int
}

func (e *ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("codec: payload of %d bytes exceeds cover capacity of %d bytes", e.Payload, e.Capacity)
}
