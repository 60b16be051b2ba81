// Package proxy implements ProxyHandlerBase and its two role-specific
// state machines, ClientHandler and ServerHandler (spec.md §5, §6).
// Grounded throughout on original_source/stegoproxy/handler.py,
// stegoclient.py and stegoserver.py.
package proxy

import (
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/framer"
	"github.com/sh4nks/stegoproxy/pkg/httpmsg"
	"github.com/sh4nks/stegoproxy/pkg/metrics"
)

// Base carries everything both ClientHandler and ServerHandler need:
// configuration, the covert framer, and a logger. Replaces the Python
// BaseProxyHandler's instance state (self.server, self.config, ...)
// with an explicit struct passed by reference, per spec.md's Design
// Notes on the anti-pattern of global mutable state.
type Base struct {
	Config     config.Config
	Framer     *framer.Framer
	Log        *zap.SugaredLogger
	ProxyAgent string
}

// NewBase wires a Base for the given role's proxy agent identifier.
func NewBase(cfg config.Config, fr *framer.Framer, log *zap.SugaredLogger, proxyAgent string) *Base {
	return &Base{Config: cfg, Framer: fr, Log: log, ProxyAgent: proxyAgent}
}

// ErrorResponse builds a synthesized error response carrying a
// Proxy-agent header so failures are traceable to the hop that produced
// them (spec.md §7).
func (b *Base) ErrorResponse(statusCode int, statusText, message string) *httpmsg.Response {
	return httpmsg.NewErrorResponse(statusCode, statusText, b.ProxyAgent, message)
}

// FilterHopByHop strips the headers that must not survive a hop,
// idempotently. Grounded on handler.BaseProxyHandler.filter_headers.
func FilterHopByHop(h *httpmsg.Header) {
	h.FilterHopByHop()
}

// tunnelSide pairs a net.Conn (used for deadlines, writes and closing)
// with the io.Reader actually used to pull bytes off it. The reader is
// often a *bufio.Reader that already has bytes buffered from parsing a
// preceding request/response line — reading through it instead of the
// raw net.Conn directly ensures those buffered bytes are never lost.
type tunnelSide struct {
	conn   net.Conn
	reader io.Reader
}

const tunnelBufSize = 32 * 1024

// pumpTunnel relays bytes between a and b until either side hits EOF, an
// error, or config.ConnectIdleTimeout of inactivity (treated as EOF per
// spec.md §4.4) — a dumb byte pipe, never parsed or stego-wrapped.
// Implemented as two concurrent copy loops sharing one close, the
// idiomatic Go shape for a CONNECT tunnel (grounded on
// other_examples' majorcontext-moat proxy.go's handleConnectTunnel,
// itself the same pattern SPEC_FULL.md's Design Notes call for), in
// place of the Python source's single select()-driven
// _process_connect loop (handler.BaseProxyHandler).
func pumpTunnel(a, b tunnelSide) {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			a.conn.Close()
			b.conn.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		copyUntilIdle(b.conn, a.conn, a.reader)
		closeBoth()
	}()
	go func() {
		defer wg.Done()
		copyUntilIdle(a.conn, b.conn, b.reader)
		closeBoth()
	}()
	wg.Wait()
}

// copyUntilIdle copies from src to dst, refreshing a read deadline on
// srcConn before every read so config.ConnectIdleTimeout of silence ends
// the copy the same way an error or EOF would.
func copyUntilIdle(dst io.Writer, srcConn net.Conn, src io.Reader) {
	buf := make([]byte, tunnelBufSize)
	for {
		if err := srcConn.SetReadDeadline(time.Now().Add(config.ConnectIdleTimeout)); err != nil {
			return
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// newTimer is a tiny indirection so handlers can be tested without
// caring about wall-clock metrics.
func newTimer() *metrics.Timer {
	return metrics.NewTimer()
}
