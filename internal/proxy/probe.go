package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// ErrUnavailable is the fatal gate error: the resolved proxy did not answer
// the connectivity probe and the caller did not ask to skip the check.
var ErrUnavailable = errors.New("proxy unavailable")

// Probe timeouts. The TCP probe only needs to see a listener; the
// functional probe makes a real round trip.
const (
	ConnectTimeout    = 2 * time.Second
	FunctionalTimeout = 5 * time.Second
)

// ProbeTarget is the known-reachable endpoint the functional probe fetches
// through the candidate proxy.
const ProbeTarget = "http://httpbin.org/get"

// CheckConnection performs a bounded TCP connect against the proxy
// endpoint.
func CheckConnection(cfg *Config) error {
	conn, err := net.DialTimeout("tcp", cfg.Addr(), ConnectTimeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, cfg.Addr(), err)
	}
	conn.Close()
	return nil
}

// VerifyWithRequest sends one real request through the candidate proxy and
// requires a successful status, confirming proxy-like behavior rather than
// an arbitrary open port.
func VerifyWithRequest(cfg *Config, target string) error {
	if target == "" {
		target = ProbeTarget
	}

	proxyURL, err := url.Parse(cfg.URL())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   FunctionalTimeout,
	}
	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("functional probe through %s failed: %w", cfg.Addr(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("functional probe through %s returned status %d", cfg.Addr(), resp.StatusCode)
	}
	return nil
}
