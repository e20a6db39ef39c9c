package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// Dialer opens outbound connections for both server channels.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewDialer returns a SOCKS5 dialer when socksAddr is set, or a direct dialer.
// timeout bounds the TCP handshake for direct connections.
func NewDialer(socksAddr string, timeout time.Duration) (Dialer, error) {
	direct := &net.Dialer{Timeout: timeout}
	if socksAddr == "" {
		return direct, nil
	}

	d, err := proxy.SOCKS5("tcp", socksAddr, nil, direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", socksAddr, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 %s: dialer does not support contexts", socksAddr)
	}
	return cd, nil
}

// NewHTTPClient returns an HTTP client that dials through d.
func NewHTTPClient(d Dialer, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext:         d.DialContext,
		MaxIdleConns:        2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: timeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
