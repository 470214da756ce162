package httputil

import (
	"net/http"
	"testing"
	"time"

	"crexi_sync/config"
)

func TestNewClients_Proxy(t *testing.T) {
	cfg := &config.Config{
		Crexi: config.CrexiConfig{ProbeTimeout: 5 * time.Second},
		Proxy: config.ProxyConfig{URL: "http://proxy.internal:8080"},
	}

	clients := NewClients(cfg)
	if clients.Upstream.Timeout != 5*time.Second {
		t.Fatalf("expected 5s upstream timeout, got %s", clients.Upstream.Timeout)
	}

	transport, ok := clients.Upstream.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport")
	}
	req, _ := http.NewRequest("GET", "https://api.crexi.com/v1/listings", nil)
	proxyURL, err := transport.Proxy(req)
	if err != nil {
		t.Fatalf("proxy func failed: %v", err)
	}
	if proxyURL == nil || proxyURL.Host != "proxy.internal:8080" {
		t.Fatalf("unexpected proxy %v", proxyURL)
	}
	if clients.Store.Timeout != 30*time.Second {
		t.Fatalf("expected 30s store timeout, got %s", clients.Store.Timeout)
	}
}

func TestNewClients_DefaultTimeout(t *testing.T) {
	clients := NewClients(&config.Config{})
	if clients.Upstream.Timeout != 10*time.Second {
		t.Fatalf("expected 10s default, got %s", clients.Upstream.Timeout)
	}
}
