package codec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// Pool holds cover images read once at startup, keyed by the file
// extension that matches each codec's expected format ("png" for LSB,
// "jpg"/"jpeg" for EXIF). Lease returns an independent copy so
// concurrent embeds never observe each other's writes — covers
// themselves are immutable (spec.md §4.7).
type Pool struct {
	mu     sync.RWMutex
	covers map[string][][]byte
	next   map[string]int
}

// LoadPool reads every image under dir into memory, grouped by
// extension.
func LoadPool(dir string) (*Pool, error) {
	p := &Pool{covers: map[string][][]byte{}, next: map[string]int{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, stegoerr.NewConfigError(fmt.Sprintf("reading cover directory %q", dir), err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(e.Name()), "."))
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, stegoerr.NewConfigError(fmt.Sprintf("reading cover file %q", e.Name()), err)
		}
		p.covers[ext] = append(p.covers[ext], data)
	}

	if len(p.covers) == 0 {
		return nil, stegoerr.NewConfigError(fmt.Sprintf("no cover images found under %q", dir), nil)
	}
	return p, nil
}

// extensionFor maps a config.Algorithm to the cover file extension it needs.
func extensionFor(alg config.Algorithm) string {
	switch alg {
	case config.AlgorithmLSB:
		return "png"
	case config.AlgorithmEXIF:
		return "jpg"
	default:
		return ""
	}
}

// Lease returns one cover image suitable for alg, cycling round-robin
// through the pool for that extension so repeated embeds don't always
// reuse the same bytes.
func (p *Pool) Lease(alg config.Algorithm) ([]byte, error) {
	ext := extensionFor(alg)
	if ext == "" {
		return nil, nil // null codec needs no cover image
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	covers, ok := p.covers[ext]
	if !ok || len(covers) == 0 {
		jpeg := p.covers["jpeg"]
		if ext == "jpg" && len(jpeg) > 0 {
			covers = jpeg
			ext = "jpeg"
		} else {
			return nil, stegoerr.NewConfigError(fmt.Sprintf("no %q cover images loaded for algorithm %q", ext, alg), nil)
		}
	}

	idx := p.next[ext] % len(covers)
	p.next[ext] = idx + 1

	out := make([]byte, len(covers[idx]))
	copy(out, covers[idx])
	return out, nil
}
