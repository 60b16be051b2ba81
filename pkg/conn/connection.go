// Package conn wraps a net.Conn with the buffered send/receive
// semantics spec.md §4.1 requires: outbound writes queue through a
// pkg/buffer.Buffer until explicitly flushed, so a handler can build up
// a full covert response (headers, each embedded chunk) before it
// touches the wire. Grounded on
// original_source/stegoproxy/connection.py's Connection/Server/Client
// classes.
package conn

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/sh4nks/stegoproxy/pkg/buffer"
	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

// Role identifies which side of a pair the Connection represents, used
// only for error messages and logging — behavior is identical either
// way (connection.py's Server/Client subclasses differ only in
// bookkeeping, not I/O).
type Role string

const (
	RoleBrowser Role = "browser"
	RoleOrigin  Role = "origin"
	RolePeer    Role = "peer" // the other stego proxy in the pair
)

// Connection is a buffered wrapper over a socket: reads go through a
// bufio.Reader on the underlying net.Conn, writes queue in an outbound
// buffer.Buffer until Flush.
type Connection struct {
	Role Role

	socket net.Conn
	reader *bufio.Reader
	out    *buffer.Buffer
	closed bool
}

// New wraps socket for the given role.
func New(role Role, socket net.Conn) *Connection {
	return &Connection{
		Role:   role,
		socket: socket,
		reader: bufio.NewReaderSize(socket, 64*1024),
		out:    buffer.New(0),
	}
}

// Write queues data in the outbound buffer without touching the wire.
// Grounded on connection.py's Connection.write.
func (c *Connection) Write(data []byte) error {
	if c.closed {
		return stegoerr.NewTransportError("conn-write", c.remoteAddr(), io.ErrClosedPipe)
	}
	_, err := c.out.Write(data)
	if err != nil {
		return err
	}
	return nil
}

// HasBuffer reports whether anything is queued to flush.
// Grounded on connection.py's Connection.has_buffer.
func (c *Connection) HasBuffer() bool {
	return c.out.Size() > 0
}

// Flush writes everything queued by Write to the socket and clears the
// outbound buffer. Grounded on connection.py's Connection.flush.
func (c *Connection) Flush() error {
	if c.closed {
		return stegoerr.NewTransportError("conn-flush", c.remoteAddr(), io.ErrClosedPipe)
	}
	if c.out.Size() == 0 {
		return nil
	}

	r, err := c.out.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	if _, err := io.Copy(c.socket, r); err != nil {
		return stegoerr.NewTransportError("conn-flush", c.remoteAddr(), err)
	}
	return c.out.Reset()
}

// Send queues data and immediately flushes it — the common case for a
// one-shot request or response. Grounded on connection.py's
// Connection.send.
func (c *Connection) Send(data []byte) error {
	if err := c.Write(data); err != nil {
		return err
	}
	return c.Flush()
}

// Recv reads up to n bytes from the socket, honoring deadline if
// non-zero. Grounded on connection.py's Connection.recv.
func (c *Connection) Recv(n int, deadline time.Duration) ([]byte, error) {
	if deadline > 0 {
		if err := c.socket.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return nil, stegoerr.NewTransportError("conn-set-deadline", c.remoteAddr(), err)
		}
	}
	buf := make([]byte, n)
	read, err := c.reader.Read(buf)
	if err != nil && read == 0 {
		return nil, stegoerr.NewTransportError("conn-recv", c.remoteAddr(), err)
	}
	return buf[:read], nil
}

// BufioReader exposes the underlying buffered reader directly, for
// handlers that need to parse a framed message incrementally (e.g.
// httpmsg.ParseRequest reading straight off the wire).
func (c *Connection) BufioReader() *bufio.Reader {
	return c.reader
}

// RawConn exposes the underlying net.Conn, for CONNECT tunnel pumping
// where the proxy handler needs direct io.Copy access in both
// directions rather than going through the buffered wrapper.
func (c *Connection) RawConn() net.Conn {
	return c.socket
}

// Close releases the socket and any queued outbound buffer.
// Grounded on connection.py's Connection.close.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	bufErr := c.out.Close()
	sockErr := c.socket.Close()
	if sockErr != nil {
		return stegoerr.NewTransportError("conn-close", c.remoteAddr(), sockErr)
	}
	return bufErr
}

func (c *Connection) remoteAddr() string {
	if c.socket == nil {
		return ""
	}
	if addr := c.socket.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
