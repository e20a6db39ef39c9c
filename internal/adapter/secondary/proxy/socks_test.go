package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewDialer_Direct(t *testing.T) {
	d, err := NewDialer("", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*net.Dialer); !ok {
		t.Errorf("expected *net.Dialer, got %T", d)
	}
}

func TestNewDialer_SOCKS5(t *testing.T) {
	d, err := NewDialer("127.0.0.1:1080", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*net.Dialer); ok {
		t.Error("expected a proxy dialer")
	}
}

func TestNewHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	d, _ := NewDialer("", time.Second)
	client := NewHTTPClient(d, time.Second)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "ok" {
		t.Errorf("expected ok, got %q", b)
	}
}
