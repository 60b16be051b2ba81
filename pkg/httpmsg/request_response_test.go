package httpmsg_test

import (
	"bytes"
	"testing"

	"github.com/sh4nks/stegoproxy/pkg/httpmsg"
)

func TestParseRequestRoundTrip(t *testing.T) {
	raw := []byte("POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello")

	req, err := httpmsg.ParseRequest(raw, 0)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Method != "POST" || req.Target != "/submit" || req.Version != "HTTP/1.1" {
		t.Fatalf("unexpected request line: %+v", req)
	}
	if req.Header.Get("Host") != "example.com" {
		t.Fatalf("missing Host header")
	}
	if !bytes.Equal(req.Body, []byte("hello")) {
		t.Fatalf("body = %q, want hello", req.Body)
	}
}

func TestParseRequestHeaderContinuation(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nX-Long: part-one\r\n part-two\r\n\r\n")

	req, err := httpmsg.ParseRequest(raw, 0)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if got := req.Header.Get("X-Long"); got != "part-one part-two" {
		t.Fatalf("X-Long = %q, want \"part-one part-two\"", got)
	}
}

func TestParseResponseChunkedBody(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")

	resp, err := httpmsg.ParseResponse(raw, false)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !bytes.Equal(resp.Body, []byte("hello world")) {
		t.Fatalf("body = %q, want 'hello world'", resp.Body)
	}
}

func TestBuildRequestSetsContentLength(t *testing.T) {
	h := httpmsg.NewHeader()
	h.Add("Host", "example.com")
	req := httpmsg.BuildRequest("POST", "/", "HTTP/1.1", h, []byte("abc"))

	if got := req.Header.Get("Content-Length"); got != "3" {
		t.Fatalf("Content-Length = %q, want 3", got)
	}

	out := req.Bytes()
	reparsed, err := httpmsg.ParseRequest(out, 0)
	if err != nil {
		t.Fatalf("re-parse built request: %v", err)
	}
	if !bytes.Equal(reparsed.Body, []byte("abc")) {
		t.Fatalf("round-tripped body = %q, want abc", reparsed.Body)
	}
}

func TestSplitAndReadChunksOrderPreserved(t *testing.T) {
	data := []byte("abcdefghij")
	chunks := httpmsg.SplitChunks(data, 4)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	wire, err := httpmsg.WriteChunkedBody(chunks)
	if err != nil {
		t.Fatalf("WriteChunkedBody: %v", err)
	}

	back, err := httpmsg.ReadChunkedChunks(wire)
	if err != nil {
		t.Fatalf("ReadChunkedChunks: %v", err)
	}

	var rejoined []byte
	for _, c := range back {
		rejoined = append(rejoined, c...)
	}
	if !bytes.Equal(rejoined, data) {
		t.Fatalf("rejoined = %q, want %q", rejoined, data)
	}
}
