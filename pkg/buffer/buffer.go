// Package buffer provides a memory-then-disk byte store used as the
// outbound write queue for a Connection. A queued stego medium (an
// embedded PNG or JPEG cover) can run into the megabytes; spilling large
// queues to a temp file keeps a slow browser or origin from forcing the
// whole thing to live twice in memory.
package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// DefaultMemoryLimit is the default threshold before a Buffer spills to disk.
const DefaultMemoryLimit = 4 * 1024 * 1024 // 4MB

// Buffer stores bytes either in memory or spooled to a temporary file once
// above a configured threshold.
type Buffer struct {
	buf    bytes.Buffer
	file   *os.File
	path   string
	size   int64
	limit  int64
	mu     sync.Mutex
	closed bool
}

// New creates a Buffer with the given memory limit. A non-positive limit
// uses DefaultMemoryLimit.
func New(limit int64) *Buffer {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Buffer{limit: limit}
}

// NewWithData seeds a Buffer with existing bytes, e.g. a medium queued
// immediately after being embedded.
func NewWithData(data []byte) *Buffer {
	b := &Buffer{limit: DefaultMemoryLimit, size: int64(len(data))}
	b.buf.Write(data)
	return b
}

// Write appends p, spilling to disk once the buffer would exceed its
// memory limit.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, stegoerr.NewTransportError("buffer-write", "", os.ErrClosed)
	}

	b.size += int64(len(p))

	if b.file == nil && int64(b.buf.Len()+len(p)) <= b.limit {
		return b.buf.Write(p)
	}

	if b.file == nil {
		tmp, err := os.CreateTemp("", "stegoproxy-buffer-*.tmp")
		if err != nil {
			return 0, stegoerr.NewTransportError("buffer-spill", "", err)
		}
		b.file = tmp
		b.path = tmp.Name()

		if b.buf.Len() > 0 {
			if _, err := tmp.Write(b.buf.Bytes()); err != nil {
				b.closeLocked()
				return 0, stegoerr.NewTransportError("buffer-spill", "", err)
			}
		}
		b.buf.Reset()
	}

	n, err := b.file.Write(p)
	if err != nil {
		return n, stegoerr.NewTransportError("buffer-spill-write", "", err)
	}
	return n, nil
}

// Bytes returns the in-memory data, or nil if the buffer has spilled.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file != nil {
		return nil
	}
	return b.buf.Bytes()
}

// Path returns the filesystem path backing a spilled buffer, or "".
func (b *Buffer) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// Size returns the total number of bytes written.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// IsSpilled reports whether the buffer has moved to disk.
func (b *Buffer) IsSpilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file != nil
}

// Reader returns a fresh reader over the stored bytes.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, stegoerr.NewTransportError("buffer-reader", "", os.ErrClosed)
	}

	if b.file != nil {
		if err := b.file.Sync(); err != nil {
			return nil, stegoerr.NewTransportError("buffer-sync", "", err)
		}
		f, err := os.Open(b.path)
		if err != nil {
			return nil, stegoerr.NewTransportError("buffer-reopen", "", err)
		}
		return f, nil
	}

	return io.NopCloser(bytes.NewReader(b.buf.Bytes())), nil
}

// Close releases any spilled temp file. Safe to call more than once.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Buffer) closeLocked() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if b.file != nil {
		err := b.file.Close()
		if removeErr := os.Remove(b.path); removeErr != nil && err == nil {
			err = removeErr
		}
		b.file = nil
		b.path = ""
		if err != nil {
			return stegoerr.NewTransportError("buffer-close", "", err)
		}
	}
	return nil
}

// Reset clears the buffer, releasing any spilled file, and prepares it for
// reuse.
func (b *Buffer) Reset() error {
	if err := b.Close(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
	b.size = 0
	b.closed = false
	return nil
}
