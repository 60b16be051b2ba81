package httpmsg

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// Response is a parsed HTTP/1.1 status line, headers and body. Grounded
// on client.Client.readResponse and handler.BaseProxyHandler._build_response.
type Response struct {
	Version    string
	StatusCode int
	StatusText string
	Header     *Header
	Body       []byte
}

// ParseResponse reads one HTTP response from raw bytes. closeDelimited
// should be true when the underlying connection is known to have
// reached EOF after this response (no Content-Length, no chunking, and
// the peer closed) — the classic HTTP/1.0 body delimiter, still
// tolerated here as client.Client.readBody does.
func ParseResponse(raw []byte, closeDelimited bool) (*Response, error) {
	return ReadResponse(bufio.NewReader(bytes.NewReader(raw)), closeDelimited)
}

// ReadResponse reads one HTTP response directly off a live bufio.Reader
// — used by ServerHandler to read the origin's real response.
func ReadResponse(raw *bufio.Reader, closeDelimited bool) (*Response, error) {
	r := newBufReader(raw)

	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	resp, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	resp.Header, err = readHeaders(r, 0)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(resp.Header.Get("Connection"), "close") {
		closeDelimited = true
	}

	body, err := readBody(r, resp.Header, closeDelimited)
	if err != nil {
		return nil, err
	}
	resp.Body = body

	return resp, nil
}

// parseStatusLine splits "HTTP/1.1 200 OK" into its parts. Grounded on
// client.Client.parseStatusLine.
func parseStatusLine(line string) (*Response, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil, stegoerr.NewProtocolError("parse-status-line", errMalformedLine)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, stegoerr.NewProtocolError("parse-status-code", err)
	}
	text := ""
	if len(parts) == 3 {
		text = parts[2]
	}
	return &Response{Version: parts[0], StatusCode: code, StatusText: text}, nil
}

// Bytes serializes the response to wire format.
func (resp *Response) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %d %s\r\n", resp.Version, resp.StatusCode, resp.StatusText)
	b.Write(resp.Header.Bytes())
	b.Write(resp.Body)
	return b.Bytes()
}

// BuildResponse assembles a fresh response with Content-Length set to
// len(body). Used by ServerHandler when re-serializing the origin's
// decoded response before it is embedded for the return trip, and by
// Framer.WrapResponse for a single-cover carrier response.
func BuildResponse(version string, statusCode int, statusText string, header *Header, body []byte) *Response {
	h := header.Clone()
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
	h.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	return &Response{Version: version, StatusCode: statusCode, StatusText: statusText, Header: h, Body: body}
}

// BuildChunkedResponse assembles a response whose body is already-wire-
// formatted chunked bytes (from WriteChunkedBody) — used for the covert
// carrier response when a payload spans more than one cover image
// (spec.md §4.6 step 7).
func BuildChunkedResponse(version string, statusCode int, statusText string, header *Header, chunkedBody []byte) *Response {
	h := header.Clone()
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
	h.Set("Transfer-Encoding", "chunked")
	return &Response{Version: version, StatusCode: statusCode, StatusText: statusText, Header: h, Body: chunkedBody}
}

// NewErrorResponse builds a minimal synthesized error response, used by
// ProxyHandlerBase to surface Transport/Protocol/Codec failures to the
// browser (spec.md §7) with a Proxy-agent header identifying the hop
// that produced it.
func NewErrorResponse(statusCode int, statusText, proxyAgent, message string) *Response {
	h := NewHeader()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Proxy-agent", proxyAgent)
	h.Set("Connection", "close")
	return BuildResponse("HTTP/1.1", statusCode, statusText, h, []byte(message))
}
