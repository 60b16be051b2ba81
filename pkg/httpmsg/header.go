// Package httpmsg implements the wire-exact HTTP/1.1 framing the covert
// channel needs: building and parsing request/response byte streams,
// chunked transfer encoding, and readers that keep a covert carrier's
// media chunks separate. Wrapping a medium as the body of a synthesized
// POST is done in pkg/framer. The package opens no sockets itself, but
// ReadRequest, ReadResponse, ReadCovertRequest and ReadCovertResponse
// read from whatever bufio.Reader they are given, including one over a
// live connection.
package httpmsg

import (
	"net/textproto"
	"strings"
)

// field is one "Name: Value" header line, in the exact casing it was
// built or parsed with.
type field struct {
	Name  string
	Value string
}

// Header is an ordered, case-insensitive multi-map, matching spec.md §3's
// invariant: "Header maps are case-insensitive on lookup but preserve
// original casing and order on serialization."
type Header struct {
	fields []field
}

// NewHeader returns an empty Header.
func NewHeader() *Header {
	return &Header{}
}

func canon(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add appends a header field, preserving the given casing.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, field{Name: name, Value: value})
}

// Set removes any existing fields matching name (case-insensitively) and
// adds a single field with the given casing and value.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Get returns the first value for name, case-insensitively, or "".
func (h *Header) Get(name string) string {
	key := canon(name)
	for _, f := range h.fields {
		if canon(f.Name) == key {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name, case-insensitively, in order.
func (h *Header) Values(name string) []string {
	key := canon(name)
	var out []string
	for _, f := range h.fields {
		if canon(f.Name) == key {
			out = append(out, f.Value)
		}
	}
	return out
}

// Has reports whether name is present, case-insensitively.
func (h *Header) Has(name string) bool {
	key := canon(name)
	for _, f := range h.fields {
		if canon(f.Name) == key {
			return true
		}
	}
	return false
}

// Del removes every field matching name, case-insensitively.
func (h *Header) Del(name string) {
	key := canon(name)
	kept := h.fields[:0]
	for _, f := range h.fields {
		if canon(f.Name) != key {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Clone returns an independent copy.
func (h *Header) Clone() *Header {
	out := &Header{fields: make([]field, len(h.fields))}
	copy(out.fields, h.fields)
	return out
}

// Names returns the canonical (lower-case) names currently present, each
// once, in first-seen order.
func (h *Header) Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range h.fields {
		key := canon(f.Name)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// hopByHop is the set of headers valid only for a single network hop
// (RFC 2616 §13.5.1, spec.md §3).
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// FilterHopByHop removes hop-by-hop headers in place. Idempotent:
// applying it twice is the same as applying it once (spec.md §8 property 2).
func (h *Header) FilterHopByHop() {
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !hopByHop[canon(f.Name)] {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Bytes serializes the header block as "Name: Value\r\n" lines, in
// insertion order, terminated by a blank line.
func (h *Header) Bytes() []byte {
	var b strings.Builder
	for _, f := range h.fields {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// readHeaders parses a CRLF-terminated header block from r, preserving
// original field casing and order. Grounded on the teacher's
// client.Client.readHeaders, extended to retain original header-name
// casing (the teacher canonicalizes via textproto.CanonicalMIMEHeaderKey,
// which the proxy cannot do without violating spec.md's
// preserve-original-casing invariant).
func readHeaders(r *bufReader, maxBytes int) (*Header, error) {
	h := NewHeader()
	total := 0
	var lastName string

	for {
		line, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		total += len(line) + 2
		if maxBytes > 0 && total > maxBytes {
			return nil, errHeadersTooLarge
		}
		if line == "" {
			break
		}

		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			// RFC 7230 §3.2.4 continuation line.
			if lastName != "" && len(h.fields) > 0 {
				last := &h.fields[len(h.fields)-1]
				last.Value += " " + strings.TrimSpace(line)
			}
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		name := line[:idx]
		value := strings.TrimSpace(line[idx+1:])
		h.Add(name, value)
		lastName = name
	}

	return h, nil
}

// canonicalName maps to the same key textproto would use, for callers
// that want RFC-canonical comparisons without losing original casing on
// the wire.
func canonicalName(name string) string {
	return textproto.CanonicalMIMEHeaderKey(name)
}
