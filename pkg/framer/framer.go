// Package framer implements the covert MessageFramer described in
// spec.md §4.3: it wraps an arbitrary HTTP request or response as the
// body of a synthesized "POST / HTTP/1.1" carrier message (headers in
// the clear, body steganographically embedded), and unwraps a received
// carrier message back into plaintext bytes. It composes pkg/httpmsg
// (wire framing) with pkg/codec (the pluggable embed/extract plugin),
// base64-encoding the plaintext exactly once before any chunking or
// embedding happens (spec.md §4.3's ordering requirement).
//
// Grounded on original_source/stegoproxy/handler.py's
// _build_stego_request/_build_stego_response and stego.py's embed/extract
// dispatch.
package framer

import (
	"bufio"
	"encoding/base64"
	"fmt"

	"github.com/sh4nks/stegoproxy/pkg/codec"
	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/httpmsg"
	"github.com/sh4nks/stegoproxy/pkg/metrics"
	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// Framer embeds and extracts covert carrier messages for one configured
// algorithm.
type Framer struct {
	Algorithm     config.Algorithm
	Codec         codec.Codec
	Covers        *codec.Pool
	MaxContentLen int
}

// New builds a Framer for alg, backed by covers, chunking at
// min(codec capacity, maxContentLen) per spec.md §4.6.
func New(alg config.Algorithm, covers *codec.Pool, maxContentLen int) (*Framer, error) {
	c, err := codec.Get(alg)
	if err != nil {
		return nil, err
	}
	if maxContentLen <= 0 {
		maxContentLen = config.DefaultMaxContentLen
	}
	return &Framer{Algorithm: alg, Codec: c, Covers: covers, MaxContentLen: maxContentLen}, nil
}

func (f *Framer) contentType() string {
	switch f.Algorithm {
	case config.AlgorithmLSB:
		return "image/png"
	case config.AlgorithmEXIF:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// embedSingle base64-encodes plaintext and embeds it into one cover
// copy, failing if it exceeds that cover's capacity. Requests are never
// chunked (grounded on stegoclient.py's do_COMMAND, which only ever
// calls StegoMedium(...).embed() once per request — chunked framing is
// a response-side addition, spec.md §4.6 step 7); an oversized request
// body is reported here, before anything is written to the server
// (spec.md §8 S3). ClientHandler has already opened its peer connection
// by then, but sends nothing on it.
func (f *Framer) embedSingle(plaintext []byte, timer *metrics.Timer) ([]byte, error) {
	if timer != nil {
		timer.StartEmbed()
		defer timer.EndEmbed()
	}

	encoded := []byte(base64.StdEncoding.EncodeToString(plaintext))

	cover, err := f.Covers.Lease(f.Algorithm)
	if err != nil {
		return nil, err
	}
	capacity, err := f.Codec.Capacity(cover)
	if err != nil {
		return nil, err
	}
	if capacity <= 0 || capacity > f.MaxContentLen {
		capacity = f.MaxContentLen
	}
	if len(encoded) > capacity {
		return nil, stegoerr.NewCodecError("embed", fmt.Errorf("plaintext of %d bytes exceeds cover capacity of %d bytes", len(encoded), capacity))
	}

	medium, err := f.Codec.Embed(cover, encoded)
	if err != nil {
		return nil, stegoerr.NewCodecError("embed", err)
	}
	return medium, nil
}

// embedChunks base64-encodes plaintext once, splits it into pieces that
// fit the codec's capacity, and embeds each piece into an independent
// cover copy — spec.md §4.6: "each chunk must be embedded into an
// independent copy of the cover".
func (f *Framer) embedChunks(plaintext []byte, timer *metrics.Timer) ([][]byte, error) {
	if timer != nil {
		timer.StartEmbed()
		defer timer.EndEmbed()
	}

	encoded := []byte(base64.StdEncoding.EncodeToString(plaintext))

	probeCover, err := f.Covers.Lease(f.Algorithm)
	if err != nil {
		return nil, err
	}
	capacity, err := f.Codec.Capacity(probeCover)
	if err != nil {
		return nil, err
	}
	if capacity <= 0 || capacity > f.MaxContentLen {
		capacity = f.MaxContentLen
	}

	pieces := httpmsg.SplitChunks(encoded, capacity)
	media := make([][]byte, len(pieces))

	for i, piece := range pieces {
		cover := probeCover
		if i > 0 {
			cover, err = f.Covers.Lease(f.Algorithm)
			if err != nil {
				return nil, err
			}
		}
		medium, err := f.Codec.Embed(cover, piece)
		if err != nil {
			return nil, stegoerr.NewCodecError("embed-chunk", err)
		}
		media[i] = medium
	}

	return media, nil
}

// ExtractFromMedia is the inverse of embedChunks: it extracts each
// independently-embedded medium, concatenates the recovered base64
// text in order, and decodes it once.
func (f *Framer) ExtractFromMedia(media [][]byte, timer *metrics.Timer) ([]byte, error) {
	if timer != nil {
		timer.StartExtract()
		defer timer.EndExtract()
	}

	var encoded []byte
	for _, medium := range media {
		piece, err := f.Codec.Extract(medium)
		if err != nil {
			return nil, stegoerr.NewCodecError("extract-chunk", err)
		}
		encoded = append(encoded, piece...)
	}

	plaintext, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, stegoerr.NewCodecError("base64-decode", err)
	}
	return plaintext, nil
}

// WrapRequest builds the covert carrier request for plaintext (which is
// itself a complete, wire-formatted HTTP message — e.g. the browser's
// original request bytes).
func (f *Framer) WrapRequest(plaintext []byte, timer *metrics.Timer) (*httpmsg.Request, error) {
	medium, err := f.embedSingle(plaintext, timer)
	if err != nil {
		return nil, err
	}

	h := httpmsg.NewHeader()
	h.Set("Host", "stego")
	h.Set("Content-Type", f.contentType())
	h.Set("Connection", "keep-alive")

	return httpmsg.BuildRequest("POST", "/", "HTTP/1.1", h, medium), nil
}

// WrapResponse builds the covert carrier response for plaintext.
func (f *Framer) WrapResponse(plaintext []byte, timer *metrics.Timer) (*httpmsg.Response, error) {
	media, err := f.embedChunks(plaintext, timer)
	if err != nil {
		return nil, err
	}

	h := httpmsg.NewHeader()
	h.Set("Content-Type", f.contentType())
	h.Set("Connection", "keep-alive")

	if len(media) == 1 {
		return httpmsg.BuildResponse("HTTP/1.1", 200, "OK", h, media[0]), nil
	}
	chunked, err := httpmsg.WriteChunkedBody(media)
	if err != nil {
		return nil, err
	}
	return httpmsg.BuildChunkedResponse("HTTP/1.1", 200, "OK", h, chunked), nil
}

// UnwrapRequest reads one covert carrier request directly off r and
// recovers the original plaintext bytes, along with the carrier's
// method/target. ServerHandler tells a covert POST from a decoy GET with
// httpmsg.PeekMethod before calling this, and ignores both values.
func (f *Framer) UnwrapRequest(r *bufio.Reader, maxHeaderBytes int, timer *metrics.Timer) (method, target string, plaintext []byte, err error) {
	method, target, _, _, media, err := httpmsg.ReadCovertRequest(r, maxHeaderBytes)
	if err != nil {
		return "", "", nil, err
	}
	plaintext, err = f.ExtractFromMedia(media, timer)
	return method, target, plaintext, err
}

// UnwrapResponse reads one covert carrier response directly off r and
// recovers the original plaintext bytes.
func (f *Framer) UnwrapResponse(r *bufio.Reader, timer *metrics.Timer) ([]byte, error) {
	_, statusCode, _, _, media, err := httpmsg.ReadCovertResponse(r)
	if err != nil {
		return nil, err
	}
	if statusCode != 200 {
		return nil, stegoerr.NewProtocolError("unwrap-response", errNon200(statusCode))
	}
	return f.ExtractFromMedia(media, timer)
}

func errNon200(code int) error {
	return fmt.Errorf("covert response carried non-200 status %d", code)
}
