package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sh4nks/stegoproxy/pkg/conn"
	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/dialer"
	"github.com/sh4nks/stegoproxy/pkg/httpmsg"
	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// ClientHandler is the browser-facing half of the pair. Grounded on
// original_source/stegoproxy/stegoclient.py's ClientProxyHandler: every
// browser request is wrapped whole and sent to the paired stego-server,
// which does the real outbound connect (stegoclient.py's
// _connect_to_host calling self.server.connect()).
type ClientHandler struct {
	*Base
}

// NewClientHandler builds a ClientHandler.
func NewClientHandler(b *Base) *ClientHandler {
	return &ClientHandler{Base: b}
}

// HandleConnection serves one browser TCP connection until it closes or
// an unrecoverable error occurs.
func (h *ClientHandler) HandleConnection(browser net.Conn) {
	defer browser.Close()

	peerConn, err := h.dialPeer()
	if err != nil {
		h.Log.Errorw("dialing stego-server failed", "err", err)
		h.writeError(browser, 502, "Bad Gateway", err)
		return
	}
	defer peerConn.Close()

	br := bufio.NewReader(browser)
	for {
		if err := browser.SetReadDeadline(time.Now().Add(config.DefaultReadTimeout)); err != nil {
			return
		}
		req, err := httpmsg.ReadRequest(br, config.MaxHeaderBytes)
		if err != nil {
			return
		}

		if strings.EqualFold(req.Method, "CONNECT") {
			h.handleConnect(browser, br, peerConn, req)
			return
		}

		if err := h.relayCommand(browser, peerConn, req); err != nil {
			h.Log.Errorw("relaying request failed", "err", err)
			h.writeError(browser, 502, "Bad Gateway", err)
			return
		}

		if strings.EqualFold(req.Header.Get("Connection"), "close") {
			return
		}
	}
}

func (h *ClientHandler) dialPeer() (*conn.Connection, error) {
	host, portStr, err := net.SplitHostPort(h.Config.RemoteAddr)
	if err != nil {
		return nil, stegoerr.NewConfigError("invalid remote address "+h.Config.RemoteAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, stegoerr.NewConfigError("invalid remote port "+portStr, err)
	}

	socket, err := dialer.Dial(context.Background(), h.Config, host, port, nil)
	if err != nil {
		return nil, err
	}
	return conn.New(conn.RolePeer, socket), nil
}

// relayCommand wraps req whole, sends it to the stego-server, awaits the
// covert response, and relays it to the browser. Grounded on
// stegoclient.py's do_COMMAND: Wrap/Send/AwaitStegoResponse/Relay.
func (h *ClientHandler) relayCommand(browser net.Conn, peer *conn.Connection, req *httpmsg.Request) error {
	FilterHopByHop(req.Header)
	timer := newTimer()

	carrier, err := h.Framer.WrapRequest(req.Bytes(), timer)
	if err != nil {
		return err
	}
	if err := peer.Send(carrier.Bytes()); err != nil {
		return err
	}

	plaintext, err := h.Framer.UnwrapResponse(peer.BufioReader(), timer)
	if err != nil {
		return err
	}

	resp, err := httpmsg.ParseResponse(plaintext, false)
	if err != nil {
		return err
	}
	FilterHopByHop(resp.Header)

	_, err = browser.Write(resp.Bytes())
	if err != nil {
		return err
	}

	chain := timer.Finish()
	h.Log.Debugw("covert round complete", "total", chain.Total, "embed", chain.Embed, "extract", chain.Extract)
	return nil
}

// handleConnect forwards the CONNECT request to the stego-server
// verbatim (never stego-wrapped — spec.md §4.4: "In CONNECT mode the
// proxy is a dumb byte pipe — it MUST NOT attempt to parse or
// stego-wrap the tunneled bytes"), then, once the server confirms the
// tunnel, pumps raw bytes between the browser and the peer connection
// until either side closes or goes idle. Grounded on
// stegoclient.py's ClientProxyHandler, whose overridden
// _connect_to_host makes do_CONNECT open a plain (non-covert)
// connection to the stego-server for the whole tunnel's lifetime.
func (h *ClientHandler) handleConnect(browser net.Conn, br *bufio.Reader, peer *conn.Connection, req *httpmsg.Request) {
	if err := peer.Send(req.Bytes()); err != nil {
		h.writeError(browser, 502, "Bad Gateway", err)
		return
	}

	resp, err := httpmsg.ReadResponse(peer.BufioReader(), false)
	if err != nil || resp.StatusCode != 200 {
		h.writeError(browser, 502, "Bad Gateway", fmt.Errorf("server could not establish tunnel"))
		return
	}

	if _, err := browser.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	pumpTunnel(
		tunnelSide{conn: browser, reader: br},
		tunnelSide{conn: peer.RawConn(), reader: peer.BufioReader()},
	)
}

func (h *ClientHandler) writeError(browser net.Conn, status int, text string, cause error) {
	resp := h.ErrorResponse(status, text, cause.Error())
	browser.Write(resp.Bytes())
}
