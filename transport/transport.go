// ABOUTME: HTTP client construction for courier API calls
// ABOUTME: TLS settings, optional SSH+SOCKS5 tunnelling and OpenTelemetry client spans

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	proxy "github.com/cloudfoundry/socks5-proxy"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/syntlex/courier/config"
)

// DialContextFunc matches http.Transport.DialContext
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// New builds the client shared by the gateway and its token exchange.
func New(cfg *config.Config) (*http.Client, error) {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: 30 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 4,
	}

	if cfg.AllProxy != "" {
		dial, err := NewSOCKS5DialContext(cfg.AllProxy)
		if err != nil {
			return nil, fmt.Errorf("invalid COURIER_ALL_PROXY: %w", err)
		}
		base.Proxy = nil
		base.DialContext = dial
		slog.Info("Routing API traffic through SSH+SOCKS5 tunnel")
	}

	return &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(base),
	}, nil
}

// NewSOCKS5DialContext creates a dial function for SSH+SOCKS5 proxy connections.
// Supports format: ssh+socks5://user@host:port?private-key=/path/to/key
// The SSH tunnel is established lazily on the first dial.
func NewSOCKS5DialContext(allProxy string) (DialContextFunc, error) {
	allProxy = strings.TrimPrefix(allProxy, "ssh+")

	proxyURL, err := url.Parse(allProxy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
	}
	if proxyURL.Host == "" {
		return nil, errors.New("proxy URL has no host")
	}

	queryMap, err := url.ParseQuery(proxyURL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy query params: %w", err)
	}

	username := ""
	if proxyURL.User != nil {
		username = proxyURL.User.Username()
	}

	keyPath := queryMap.Get("private-key")
	if keyPath == "" {
		return nil, errors.New("missing required 'private-key' query param")
	}
	keyPath, err = ValidateKeyPath(keyPath)
	if err != nil {
		return nil, err
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key: %w", err)
	}

	socks5Proxy := proxy.NewSocks5Proxy(proxy.NewHostKey(), log.Default(), 1*time.Minute)

	var (
		dialer proxy.DialFunc
		mut    sync.RWMutex
	)

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mut.RLock()
		d := dialer
		mut.RUnlock()

		if d != nil {
			return d(network, address)
		}

		mut.Lock()
		defer mut.Unlock()
		if dialer == nil {
			proxyDialer, err := socks5Proxy.Dialer(username, string(key), proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
			}
			dialer = proxyDialer
		}
		return dialer(network, address)
	}, nil
}

// ValidateKeyPath rejects traversal segments (plain or URL-encoded) and anything
// that is not a regular file. It returns the cleaned absolute path.
func ValidateKeyPath(path string) (string, error) {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return "", fmt.Errorf("invalid key path %q: %w", path, err)
	}
	for _, seg := range strings.Split(filepath.ToSlash(decoded), "/") {
		if seg == ".." {
			return "", fmt.Errorf("key path %q must not contain '..'", path)
		}
	}

	abs, err := filepath.Abs(decoded)
	if err != nil {
		return "", fmt.Errorf("invalid key path %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("key file %q: %w", abs, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("key path %q is not a regular file", abs)
	}
	return abs, nil
}
