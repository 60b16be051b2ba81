// Package stegoerr provides structured error types for the stego proxy.
package stegoerr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies an error per the taxonomy the proxy surfaces to
// callers and, ultimately, to the browser as an HTTP status.
type Category string

const (
	// Transport covers socket errors on any of the three links
	// (browser-client, client-server, server-origin). Terminal for the
	// current chain.
	Transport Category = "transport"

	// Protocol covers malformed HTTP from the browser or the peer.
	Protocol Category = "protocol"

	// Codec covers embed failures (plaintext exceeds cover capacity) and
	// extract failures (medium is corrupted).
	Codec Category = "codec"

	// Configuration covers unknown algorithms and unreachable remotes
	// discovered at startup. Fatal.
	Configuration Category = "configuration"
)

// Error is a structured error carrying enough context to log and to map
// onto the right HTTP status at the handler boundary.
type Error struct {
	Category  Category
	Op        string
	Message   string
	Cause     error
	Addr      string
	Timestamp time.Time
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Category))
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Addr != "" {
		parts = append(parts, e.Addr)
	}

	s := strings.Join(parts, " ")
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

func newErr(cat Category, op, addr, message string, cause error) *Error {
	return &Error{
		Category:  cat,
		Op:        op,
		Message:   message,
		Cause:     cause,
		Addr:      addr,
		Timestamp: time.Now(),
	}
}

// NewTransportError wraps a socket-level failure on one of the three links.
func NewTransportError(op, addr string, cause error) *Error {
	return newErr(Transport, op, addr, fmt.Sprintf("transport failure during %s", op), cause)
}

// NewProtocolError wraps a malformed-HTTP failure.
func NewProtocolError(op string, cause error) *Error {
	return newErr(Protocol, op, "", "malformed HTTP message", cause)
}

// NewCodecError wraps an embed/extract failure.
func NewCodecError(op string, cause error) *Error {
	return newErr(Codec, op, "", fmt.Sprintf("stego codec failure during %s", op), cause)
}

// NewConfigError wraps a startup configuration failure.
func NewConfigError(message string, cause error) *Error {
	return newErr(Configuration, "configure", "", message, cause)
}

// CategoryOf returns the category of a structured error, or "" if err is
// not one of ours.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// IsCategory reports whether err is a structured error of the given
// category.
func IsCategory(err error, cat Category) bool {
	return CategoryOf(err) == cat
}
