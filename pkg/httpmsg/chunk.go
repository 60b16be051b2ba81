package httpmsg

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// SplitChunks partitions data into pieces no larger than maxSize, in
// order. Grounded on handler.BaseProxyHandler._split_into_chunks: a
// medium whose embedded payload would exceed one cover image's capacity
// is spread across multiple covers, sent as successive chunked-body
// chunks, each independently embedded (spec.md §4.6 — "each chunk must
// be embedded into an independent copy of the cover").
func SplitChunks(data []byte, maxSize int) [][]byte {
	if maxSize <= 0 || len(data) == 0 {
		return [][]byte{data}
	}
	var out [][]byte
	for len(data) > 0 {
		n := maxSize
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

// WriteChunkedBody serializes already-embedded chunk payloads as a
// chunked transfer-encoding body: one wire chunk per element of chunks,
// in the same order, followed by the terminating zero-length chunk.
// Grounded on handler.BaseProxyHandler._write_chunks / _write_end_of_chunks.
func WriteChunkedBody(chunks [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	for _, c := range chunks {
		if err := writeChunk(w, c); err != nil {
			return nil, stegoerr.NewProtocolError("write-chunk", err)
		}
	}
	if err := writeLastChunk(w); err != nil {
		return nil, stegoerr.NewProtocolError("write-last-chunk", err)
	}
	if err := w.Flush(); err != nil {
		return nil, stegoerr.NewProtocolError("flush-chunked-body", err)
	}
	return buf.Bytes(), nil
}

// ReadChunkedChunks decodes a chunked-transfer body back into its
// individual chunk payloads, preserving order (the inverse of
// WriteChunkedBody). Each element is one still-embedded medium to be
// passed to a StegoCodec.Extract call; strict ordering matters because
// extraction must concatenate results in the same sequence they were
// embedded (spec.md §8 property 1).
func ReadChunkedChunks(raw []byte) ([][]byte, error) {
	r := newBufReader(bufio.NewReader(bytes.NewReader(raw)))
	var chunks [][]byte

	for {
		line, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		size, err := parseChunkSizeLine(line)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			break
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r.Reader(), chunk); err != nil {
			return nil, stegoerr.NewProtocolError("read-chunk-data", err)
		}
		chunks = append(chunks, chunk)
		if _, err := r.ReadLine(); err != nil {
			return nil, stegoerr.NewProtocolError("read-chunk-crlf", err)
		}
	}

	return chunks, nil
}

func parseChunkSizeLine(line string) (int64, error) {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
	if err != nil {
		return 0, stegoerr.NewProtocolError("parse-chunk-size", err)
	}
	return size, nil
}
