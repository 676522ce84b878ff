package client

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

/*
Package client provides the shared HTTP client rxglyph uses for RDAP lookups.

The client is configured once and reused so that lookups against the same registry share
keep-alive connections. Every request carries the rxglyph User-Agent.
*/

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// HTTP client-specific constants.
const (
	// DialTimeout is the maximum amount of time a dial will wait for a connect to complete.
	DialTimeout = 5 * time.Second
	// RequestTimeout bounds a whole request including reading the body.
	RequestTimeout = 10 * time.Second
	// MaxIdleConnsPerHost is the per-host idle pool. WHOIS workers rarely exceed it.
	MaxIdleConnsPerHost = 16
	// DefaultUserAgent identifies rxglyph to registries.
	DefaultUserAgent = "rxglyph/1.0 (+https://github.com/x-stp/rxglyph)"
	// DefaultMaxBodyBytes caps response bodies read by GetBody.
	DefaultMaxBodyBytes = 1 << 20
)

var (
	defaultKeepAliveTimeout = 60 * time.Second
	defaultIdleConnTimeout  = 90 * time.Second
	defaultMaxIdleConns     = 64
	defaultMaxConnsPerHost  = 32

	sharedClient      *http.Client
	sharedClientLock  sync.RWMutex
	clientInitialized bool
)

// Config holds HTTP client tuning. Zero fields take defaults.
type Config struct {
	DialTimeout         time.Duration
	KeepAliveTimeout    time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	RequestTimeout      time.Duration
	UserAgent           string
}

// DefaultConfig returns the default client settings.
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:         DialTimeout,
		KeepAliveTimeout:    defaultKeepAliveTimeout,
		IdleConnTimeout:     defaultIdleConnTimeout,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		RequestTimeout:      RequestTimeout,
		UserAgent:           DefaultUserAgent,
	}
}

// userAgentTransport sets the User-Agent header on requests that lack one.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// InitHTTPClient replaces the shared client with one built from config. A nil config means
// DefaultConfig. Idle connections of the previous client are closed.
func InitHTTPClient(config *Config) {
	sharedClientLock.Lock()
	defer sharedClientLock.Unlock()

	cfg := DefaultConfig()
	if config != nil {
		if config.DialTimeout > 0 {
			cfg.DialTimeout = config.DialTimeout
		}
		if config.KeepAliveTimeout > 0 {
			cfg.KeepAliveTimeout = config.KeepAliveTimeout
		}
		if config.IdleConnTimeout > 0 {
			cfg.IdleConnTimeout = config.IdleConnTimeout
		}
		if config.MaxIdleConns > 0 {
			cfg.MaxIdleConns = config.MaxIdleConns
		}
		if config.MaxIdleConnsPerHost > 0 {
			cfg.MaxIdleConnsPerHost = config.MaxIdleConnsPerHost
		}
		if config.MaxConnsPerHost > 0 {
			cfg.MaxConnsPerHost = config.MaxConnsPerHost
		}
		if config.RequestTimeout > 0 {
			cfg.RequestTimeout = config.RequestTimeout
		}
		if config.UserAgent != "" {
			cfg.UserAgent = config.UserAgent
		}
	}

	if sharedClient != nil {
		if old, ok := sharedClient.Transport.(*userAgentTransport); ok {
			if tr, ok := old.base.(*http.Transport); ok {
				tr.CloseIdleConnections()
			}
		}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAliveTimeout,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	}

	sharedClient = &http.Client{
		Transport: &userAgentTransport{base: transport, userAgent: cfg.UserAgent},
		Timeout:   cfg.RequestTimeout,
	}
	clientInitialized = true
}

// GetHTTPClient returns the shared client, initializing it with defaults on first use.
func GetHTTPClient() *http.Client {
	sharedClientLock.RLock()
	if !clientInitialized {
		sharedClientLock.RUnlock()
		InitHTTPClient(nil)
		sharedClientLock.RLock()
	}
	c := sharedClient
	sharedClientLock.RUnlock()
	return c
}

// StatusError is returned by GetBody for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// GetBody performs a GET with the given Accept header and returns at most maxBytes of the
// body. Non-2xx responses return a *StatusError.
func GetBody(ctx context.Context, c *http.Client, url, accept string, maxBytes int64) ([]byte, error) {
	if c == nil {
		c = GetHTTPClient()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
