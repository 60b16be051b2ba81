package httpmsg

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// ReadCovertRequest reads one covert carrier request directly off a live
// connection. Unlike ParseRequest/readBody, a chunked body is NOT
// concatenated into one byte slice: each wire chunk is one
// independently-embedded cover image, and merging their raw bytes would
// destroy every image but the first. media[i] is exactly the payload of
// the i-th chunk, in wire order.
func ReadCovertRequest(raw *bufio.Reader, maxHeaderBytes int) (method, target, version string, header *Header, media [][]byte, err error) {
	r := newBufReader(raw)

	line, err := r.ReadLine()
	if err != nil {
		return "", "", "", nil, nil, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", nil, nil, stegoerr.NewProtocolError("parse-request-line", errMalformedLine)
	}

	header, err = readHeaders(r, maxHeaderBytes)
	if err != nil {
		return "", "", "", nil, nil, err
	}

	media, err = readCovertMedia(r, header)
	if err != nil {
		return "", "", "", nil, nil, err
	}

	return parts[0], parts[1], parts[2], header, media, nil
}

// ReadCovertResponse is the response-side equivalent of ReadCovertRequest.
func ReadCovertResponse(raw *bufio.Reader) (version string, statusCode int, statusText string, header *Header, media [][]byte, err error) {
	r := newBufReader(raw)

	line, err := r.ReadLine()
	if err != nil {
		return "", 0, "", nil, nil, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", nil, nil, stegoerr.NewProtocolError("parse-status-line", errMalformedLine)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", nil, nil, stegoerr.NewProtocolError("parse-status-code", err)
	}
	text := ""
	if len(parts) == 3 {
		text = parts[2]
	}

	header, err = readHeaders(r, 0)
	if err != nil {
		return "", 0, "", nil, nil, err
	}

	media, err = readCovertMedia(r, header)
	if err != nil {
		return "", 0, "", nil, nil, err
	}

	return parts[0], code, text, header, media, nil
}

// readCovertMedia reads the body of a covert carrier message as a list
// of independent media payloads. Like readBody it checks
// Transfer-Encoding before Content-Length; unlike readBody it never
// merges chunks, and a missing or invalid Content-Length is an error
// rather than an empty or close-delimited body.
func readCovertMedia(r *bufReader, header *Header) ([][]byte, error) {
	if strings.Contains(strings.ToLower(header.Get("Transfer-Encoding")), "chunked") {
		return readChunkedMedia(r)
	}

	cl := header.Get("Content-Length")
	if cl == "" {
		return nil, stegoerr.NewProtocolError("read-covert-body", errMalformedLine)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || n < 0 {
		return nil, stegoerr.NewProtocolError("parse-content-length", errMalformedLine)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.Reader(), buf); err != nil {
		return nil, stegoerr.NewProtocolError("read-covert-body", err)
	}
	return [][]byte{buf}, nil
}

// readChunkedMedia mirrors readChunkedBody's wire walk but keeps each
// chunk's payload separate instead of appending it to one buffer.
func readChunkedMedia(r *bufReader) ([][]byte, error) {
	var media [][]byte

	for {
		sizeLine, err := r.ReadLine()
		if err != nil {
			return nil, stegoerr.NewProtocolError("read-chunk-size", err)
		}
		if idx := strings.IndexByte(sizeLine, ';'); idx >= 0 {
			sizeLine = sizeLine[:idx]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
		if err != nil {
			return nil, stegoerr.NewProtocolError("parse-chunk-size", err)
		}
		if size == 0 {
			break
		}

		chunk := make([]byte, size)
		if _, err := io.ReadFull(r.Reader(), chunk); err != nil {
			return nil, stegoerr.NewProtocolError("read-chunk-data", err)
		}
		media = append(media, chunk)

		if _, err := r.ReadLine(); err != nil {
			return nil, stegoerr.NewProtocolError("read-chunk-crlf", err)
		}
	}

	// Trailer section, discarded (covert carrier messages carry no
	// meaningful trailers).
	for {
		line, err := r.ReadLine()
		if err != nil {
			return nil, stegoerr.NewProtocolError("read-chunk-trailer", err)
		}
		if line == "" {
			break
		}
	}

	return media, nil
}
