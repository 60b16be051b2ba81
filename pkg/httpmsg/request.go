package httpmsg

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// Request is a parsed HTTP/1.1 request line, headers and body.
// Grounded on handler.BaseProxyHandler's build/parse of the wrapped
// request (_build_request, _build_stego_request).
type Request struct {
	Method  string
	Target  string
	Version string
	Header  *Header
	Body    []byte
}

// ParseRequest reads one HTTP request from raw bytes. maxHeaderBytes <= 0
// disables the header-size limit.
func ParseRequest(raw []byte, maxHeaderBytes int) (*Request, error) {
	return ReadRequest(bufio.NewReader(bytes.NewReader(raw)), maxHeaderBytes)
}

// ReadRequest reads one HTTP request directly off a live bufio.Reader —
// used by ServerHandler to parse a decoy (non-covert) request straight
// from the socket, without first buffering the whole connection.
func ReadRequest(raw *bufio.Reader, maxHeaderBytes int) (*Request, error) {
	r := newBufReader(raw)

	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, stegoerr.NewProtocolError("parse-request-line", errMalformedLine)
	}

	req := &Request{Method: parts[0], Target: parts[1], Version: parts[2]}

	req.Header, err = readHeaders(r, maxHeaderBytes)
	if err != nil {
		return nil, err
	}

	// A request body is only close-delimited in the degenerate HTTP/1.0
	// case; ordinarily absence of both headers means no body.
	body, err := readBody(r, req.Header, false)
	if err != nil {
		return nil, err
	}
	req.Body = body

	return req, nil
}

// PeekMethod returns the request method token (up to the first space)
// without consuming it, so a caller can decide which parser to use —
// ServerHandler dispatches the covert carrier POST one way and a decoy
// GET another (spec.md §4.8).
func PeekMethod(r *bufio.Reader) (string, error) {
	for n := 8; n <= 512; n *= 2 {
		b, err := r.Peek(n)
		full := err == nil
		if idx := bytes.IndexByte(b, ' '); idx >= 0 {
			return string(b[:idx]), nil
		}
		if full {
			continue
		}
		if len(b) == 0 {
			return "", stegoerr.NewProtocolError("peek-method", err)
		}
		return string(b), nil
	}
	return "", stegoerr.NewProtocolError("peek-method", errMalformedLine)
}

// Bytes serializes the request back to wire format, in the original
// header order and casing. Grounded on
// handler.BaseProxyHandler._build_request.
func (req *Request) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s\r\n", req.Method, req.Target, req.Version)
	b.Write(req.Header.Bytes())
	b.Write(req.Body)
	return b.Bytes()
}

// BuildRequest assembles a fresh request with Content-Length set to
// len(body), matching the length the body was actually given — used by
// Framer.WrapRequest when synthesizing the covert carrier POST
// (handler._build_stego_request). A decoded original request is
// forwarded with Request.Bytes as parsed, not rebuilt through this.
func BuildRequest(method, target, version string, header *Header, body []byte) *Request {
	h := header.Clone()
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
	h.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	return &Request{Method: method, Target: target, Version: version, Header: h, Body: body}
}
