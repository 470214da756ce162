package httputil

import (
	"net/http"
	"net/url"
	"time"

	"crexi_sync/config"
)

type Clients struct {
	Upstream *http.Client // Crexi, proxied when configured
	Store    *http.Client // direct, for Supabase
}

func NewClients(cfg *config.Config) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy.URL != "" {
		if proxyURL, err := url.Parse(cfg.Proxy.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := cfg.Crexi.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Clients{
		Upstream: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		Store: &http.Client{Timeout: 30 * time.Second},
	}
}
