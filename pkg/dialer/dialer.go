// Package dialer establishes the next-hop TCP connection for a handler:
// the client dialing the stego-server, or the server dialing an origin.
// Adapted from the teacher library's transport.Connect/connectViaSOCKS5Proxy,
// trimmed of TLS upgrade, HTTP/2 negotiation and connection pooling — none
// of which the covert channel or the CONNECT pipe needs.
package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sh4nks/stegoproxy/pkg/config"
	"github.com/sh4nks/stegoproxy/pkg/metrics"
	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
	netproxy "golang.org/x/net/proxy"
)

// Dial opens a TCP connection to host:port, honoring the configured
// dial timeout and, if set, an upstream SOCKS5 proxy.
func Dial(ctx context.Context, cfg config.Config, host string, port int, timer *metrics.Timer) (net.Conn, error) {
	if timer != nil {
		timer.StartDial()
		defer timer.EndDial()
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = config.DefaultDialTimeout
	}

	if cfg.UpstreamProxy != nil {
		conn, err := dialViaSOCKS5(ctx, cfg.UpstreamProxy, addr, timeout)
		if err != nil {
			return nil, stegoerr.NewTransportError("dial-via-proxy", addr, err)
		}
		return conn, nil
	}

	d := &net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, stegoerr.NewTransportError("dial", addr, err)
	}
	return conn, nil
}

func dialViaSOCKS5(ctx context.Context, proxy *config.ProxyConfig, targetAddr string, timeout time.Duration) (net.Conn, error) {
	var auth *netproxy.Auth
	if proxy.Username != "" {
		auth = &netproxy.Auth{User: proxy.Username, Password: proxy.Password}
	}

	proxyAddr := net.JoinHostPort(proxy.Host, fmt.Sprintf("%d", proxy.Port))
	d, err := netproxy.SOCKS5("tcp", proxyAddr, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
	}

	if cd, ok := d.(netproxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", targetAddr)
	}
	return d.Dial("tcp", targetAddr)
}
