package conn_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sh4nks/stegoproxy/pkg/conn"
)

func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func TestConnectionSendRecv(t *testing.T) {
	client, server := pipePair(t)
	c := conn.New(conn.RolePeer, client)
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		io.ReadFull(server, buf)
		server.Write(buf)
	}()

	if err := c.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := c.Recv(5, time.Second)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
	<-done
}

func TestConnectionWriteThenFlush(t *testing.T) {
	client, server := pipePair(t)
	c := conn.New(conn.RolePeer, client)
	defer c.Close()

	if err := c.Write([]byte("part-one ")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Write([]byte("part-two")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !c.HasBuffer() {
		t.Fatalf("expected queued data before Flush")
	}

	read := make(chan string, 1)
	go func() {
		buf := make([]byte, 17)
		n, _ := io.ReadFull(server, buf)
		read <- string(buf[:n])
	}()

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if got := <-read; got != "part-one part-two" {
		t.Fatalf("got %q, want \"part-one part-two\"", got)
	}
	if c.HasBuffer() {
		t.Fatalf("expected buffer to be empty after Flush")
	}
}
