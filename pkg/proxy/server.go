package proxy

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sh4nks/stegoproxy/pkg/conn"
	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/dialer"
	"github.com/sh4nks/stegoproxy/pkg/httpmsg"
	"github.com/sh4nks/stegoproxy/pkg/metrics"
	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// ServerHandler is the origin-facing half of the pair. Grounded on
// original_source/stegoproxy/stegoserver.py's ServerProxyHandler: each
// incoming covert carrier is unwrapped, the nested request is replayed
// against the real origin, and the real response is wrapped back up.
type ServerHandler struct {
	*Base
}

// NewServerHandler builds a ServerHandler.
func NewServerHandler(b *Base) *ServerHandler {
	return &ServerHandler{Base: b}
}

// HandleConnection serves one incoming TCP connection: the paired
// stego-client's covert command channel, a raw CONNECT tunnel handshake
// (spec.md §4.4 — never stego-wrapped), or (spec.md §4.8) a decoy
// browser hitting the reverse-proxied hostname directly.
func (h *ServerHandler) HandleConnection(peer net.Conn) {
	defer peer.Close()
	br := bufio.NewReader(peer)

	method, err := httpmsg.PeekMethod(br)
	if err != nil {
		return
	}

	switch {
	case strings.EqualFold(method, "POST"):
		h.serveCovert(peer, br)
	case strings.EqualFold(method, "CONNECT"):
		h.serveConnectTunnel(peer, br)
	default:
		h.serveDecoy(peer, br)
	}
}

// serveCovert answers one or more covert carrier requests on this
// connection, in strict request/response order (keep-alive, no
// pipelining — spec.md Non-goals).
func (h *ServerHandler) serveCovert(peer net.Conn, br *bufio.Reader) {
	peerConn := conn.New(conn.RolePeer, peer)

	for {
		if err := peer.SetReadDeadline(time.Now().Add(config.DefaultReadTimeout)); err != nil {
			return
		}

		timer := newTimer()
		_, _, plaintext, err := h.Framer.UnwrapRequest(br, config.MaxHeaderBytes, timer)
		if err != nil {
			// A Codec-category failure means the carrier framing was fine
			// but the medium itself didn't decode (spec.md §8 S6) — worth
			// a synthesized 502. Anything else (EOF, malformed framing)
			// is treated as the peer simply going away.
			if stegoerr.IsCategory(err, stegoerr.Codec) {
				h.respondError(peerConn, timer, 502, "Bad Gateway", err)
			}
			return
		}

		req, err := httpmsg.ParseRequest(plaintext, config.MaxHeaderBytes)
		if err != nil {
			h.respondError(peerConn, timer, 400, "Bad Request", err)
			return
		}

		resp, err := h.forwardCommand(req, timer)
		if err != nil {
			h.respondError(peerConn, timer, 502, "Bad Gateway", err)
			return
		}
		if err := h.sendWrapped(peerConn, resp, timer); err != nil {
			return
		}

		chain := timer.Finish()
		h.Log.Debugw("covert round complete", "total", chain.Total, "dial", chain.Dial, "embed", chain.Embed, "extract", chain.Extract)

		if strings.EqualFold(req.Header.Get("Connection"), "close") {
			return
		}
	}
}

// serveConnectTunnel answers the stego-client's plain, non-covert
// CONNECT handshake, dials the real origin, and then pumps the tunnel
// as a dumb byte pipe — spec.md §4.4: "In CONNECT mode the proxy is a
// dumb byte pipe — it MUST NOT attempt to parse or stego-wrap the
// tunneled bytes." Grounded on stegoserver.py's ServerProxyHandler,
// which never overrides do_CONNECT and so gets handler.py's base
// behavior of dialing self.path's host:port directly and pumping raw.
func (h *ServerHandler) serveConnectTunnel(peer net.Conn, br *bufio.Reader) {
	req, err := httpmsg.ReadRequest(br, config.MaxHeaderBytes)
	if err != nil {
		return
	}

	origin, originHost, err := h.dialConnectTarget(req.Target)
	if err != nil {
		resp := h.ErrorResponse(502, "Bad Gateway", err.Error())
		peer.Write(resp.Bytes())
		return
	}
	defer origin.Close()
	h.Log.Debugw("tunnel established", "target", originHost)

	if _, err := peer.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	pumpTunnel(
		tunnelSide{conn: peer, reader: br},
		tunnelSide{conn: origin, reader: origin},
	)
}

// forwardCommand replays a non-CONNECT request against its real origin
// and returns the real response, hop-by-hop headers stripped both ways.
// Grounded on stegoserver.py's do_COMMAND: Unwrap/DialOrigin/
// ForwardVerbatim/ReadOrigin/Wrap.
func (h *ServerHandler) forwardCommand(req *httpmsg.Request, timer *metrics.Timer) (*httpmsg.Response, error) {
	FilterHopByHop(req.Header)

	host, port := targetFromRequest(req)
	originConn, err := dialer.Dial(context.Background(), h.Config, host, port, timer)
	if err != nil {
		return nil, err
	}
	defer originConn.Close()

	if err := originConn.SetWriteDeadline(time.Now().Add(h.Config.DialTimeout)); err != nil {
		return nil, err
	}
	if _, err := originConn.Write(req.Bytes()); err != nil {
		return nil, err
	}

	if err := originConn.SetReadDeadline(time.Now().Add(config.DefaultReadTimeout)); err != nil {
		return nil, err
	}
	resp, err := httpmsg.ReadResponse(bufio.NewReader(originConn), true)
	if err != nil {
		return nil, err
	}
	FilterHopByHop(resp.Header)
	return httpmsg.BuildResponse(resp.Version, resp.StatusCode, resp.StatusText, resp.Header, resp.Body), nil
}

func (h *ServerHandler) dialConnectTarget(target string) (net.Conn, string, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		host, portStr = target, "443"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 443
	}
	c, err := dialer.Dial(context.Background(), h.Config, host, port, nil)
	return c, net.JoinHostPort(host, portStr), err
}

func (h *ServerHandler) sendWrapped(peer *conn.Connection, resp *httpmsg.Response, timer *metrics.Timer) error {
	carrier, err := h.Framer.WrapResponse(resp.Bytes(), timer)
	if err != nil {
		return err
	}
	return peer.Send(carrier.Bytes())
}

func (h *ServerHandler) respondError(peer *conn.Connection, timer *metrics.Timer, status int, text string, cause error) {
	resp := h.ErrorResponse(status, text, cause.Error())
	h.sendWrapped(peer, resp, timer)
}

// targetFromRequest recovers the origin host:port from the request line
// (absolute-form target) or the Host header (origin-form target),
// mirroring handler.BaseProxyHandler._get_hostaddr_from_headers.
func targetFromRequest(req *httpmsg.Request) (host string, port int) {
	port = 80
	target := req.Target

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		rest := strings.SplitN(target, "://", 2)[1]
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			rest = rest[:idx]
		}
		target = rest
	} else {
		target = req.Header.Get("Host")
	}

	if h, p, err := net.SplitHostPort(target); err == nil {
		host = h
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
		return host, port
	}
	return target, port
}

// serveDecoy proxies a plain, non-covert request straight to the
// configured reverse hostname, so a port scan or curious onlooker sees
// what looks like an ordinary web server (spec.md §4.8).
func (h *ServerHandler) serveDecoy(peer net.Conn, br *bufio.Reader) {
	req, err := httpmsg.ReadRequest(br, config.MaxHeaderBytes)
	if err != nil {
		return
	}

	host, port := h.Config.ReverseHostname, 80
	if hh, pp, err := net.SplitHostPort(h.Config.ReverseHostname); err == nil {
		if n, err := strconv.Atoi(pp); err == nil {
			host, port = hh, n
		}
	}
	req.Header.Set("Host", host)

	originConn, err := dialer.Dial(context.Background(), h.Config, host, port, nil)
	if err != nil {
		return
	}
	defer originConn.Close()

	if _, err := originConn.Write(req.Bytes()); err != nil {
		return
	}
	resp, err := httpmsg.ReadResponse(bufio.NewReader(originConn), true)
	if err != nil {
		return
	}
	peer.Write(resp.Bytes())
}
