package httpmsg_test

import (
	"testing"

	"github.com/sh4nks/stegoproxy/pkg/httpmsg"
)

func TestHeaderCaseInsensitiveLookup(t *testing.T) {
	h := httpmsg.NewHeader()
	h.Add("Content-Type", "text/plain")

	if got := h.Get("content-type"); got != "text/plain" {
		t.Fatalf("Get(content-type) = %q, want text/plain", got)
	}
	if got := h.Get("CONTENT-TYPE"); got != "text/plain" {
		t.Fatalf("Get(CONTENT-TYPE) = %q, want text/plain", got)
	}
}

func TestHeaderPreservesOriginalCasingAndOrder(t *testing.T) {
	h := httpmsg.NewHeader()
	h.Add("X-Custom-Header", "1")
	h.Add("Host", "example.com")

	out := string(h.Bytes())
	wantFirst := "X-Custom-Header: 1\r\n"
	wantSecond := "Host: example.com\r\n"
	if out[:len(wantFirst)] != wantFirst {
		t.Fatalf("expected first header %q, got %q", wantFirst, out)
	}
	if out[len(wantFirst):len(wantFirst)+len(wantSecond)] != wantSecond {
		t.Fatalf("expected second header %q, got %q", wantSecond, out)
	}
}

func TestHeaderFilterHopByHopIdempotent(t *testing.T) {
	h := httpmsg.NewHeader()
	h.Add("Connection", "keep-alive")
	h.Add("Transfer-Encoding", "chunked")
	h.Add("X-Keep-Me", "yes")

	h.FilterHopByHop()
	once := string(h.Bytes())
	h.FilterHopByHop()
	twice := string(h.Bytes())

	if once != twice {
		t.Fatalf("FilterHopByHop not idempotent: %q != %q", once, twice)
	}
	if h.Has("Connection") || h.Has("Transfer-Encoding") {
		t.Fatalf("hop-by-hop headers survived filtering: %q", once)
	}
	if !h.Has("X-Keep-Me") {
		t.Fatalf("end-to-end header was dropped: %q", once)
	}
}

func TestHeaderSetReplacesAllMatches(t *testing.T) {
	h := httpmsg.NewHeader()
	h.Add("X-A", "1")
	h.Add("x-a", "2")
	h.Set("X-A", "3")

	if got := h.Values("X-A"); len(got) != 1 || got[0] != "3" {
		t.Fatalf("Values(X-A) = %v, want [3]", got)
	}
}
