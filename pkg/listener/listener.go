// Package listener runs the accept loop that wires a configured role
// (client or server) into live TCP connections. Grounded on
// original_source/stegoproxy/cli.py's server bootstrap, reimplemented
// as a threaded (goroutine-per-connection) Go accept loop in the style
// of the teacher library's listener-side examples.
package listener

import (
	"net"

	"go.uber.org/zap"

	"github.com/sh4nks/stegoproxy/pkg/codec"
	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/framer"
	"github.com/sh4nks/stegoproxy/pkg/proxy"
	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// connectionHandler is satisfied by both *proxy.ClientHandler and
// *proxy.ServerHandler.
type connectionHandler interface {
	HandleConnection(c net.Conn)
}

// Listener accepts connections on cfg.ListenAddr and dispatches each to
// handler on its own goroutine.
type Listener struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	handler connectionHandler
}

// NewClientListener builds a Listener running the ClientHandler role.
func NewClientListener(cfg config.Config, log *zap.SugaredLogger, covers *codec.Pool) (*Listener, error) {
	fr, err := framer.New(cfg.Algorithm, covers, cfg.MaxContentLen)
	if err != nil {
		return nil, err
	}
	base := proxy.NewBase(cfg, fr, log, "stego-client")
	return &Listener{cfg: cfg, log: log, handler: proxy.NewClientHandler(base)}, nil
}

// NewServerListener builds a Listener running the ServerHandler role.
func NewServerListener(cfg config.Config, log *zap.SugaredLogger, covers *codec.Pool) (*Listener, error) {
	fr, err := framer.New(cfg.Algorithm, covers, cfg.MaxContentLen)
	if err != nil {
		return nil, err
	}
	base := proxy.NewBase(cfg, fr, log, "stego-server")
	return &Listener{cfg: cfg, log: log, handler: proxy.NewServerHandler(base)}, nil
}

// Serve binds cfg.ListenAddr and accepts connections until ln errors out
// (typically because it was closed).
func (l *Listener) Serve() error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddr)
	if err != nil {
		return stegoerr.NewTransportError("listen", l.cfg.ListenAddr, err)
	}
	defer ln.Close()

	l.log.Infow("listening", "addr", l.cfg.ListenAddr, "algorithm", l.cfg.Algorithm)

	for {
		c, err := ln.Accept()
		if err != nil {
			return stegoerr.NewTransportError("accept", l.cfg.ListenAddr, err)
		}
		go l.handler.HandleConnection(c)
	}
}
