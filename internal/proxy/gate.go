package proxy

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
)

// GateOptions controls proxy resolution and the pre-dispatch health check.
type GateOptions struct {
	// Explicit is a user-specified endpoint. When set it is used as-is and
	// auto-detection never runs.
	Explicit *Config

	// SkipCheck bypasses both probes. The run proceeds against the resolved
	// endpoint unverified.
	SkipCheck bool

	// NoAutoDetect disables scanning the conventional ports when no
	// explicit endpoint exists.
	NoAutoDetect bool

	// FunctionalCheck enables the follow-up probe through the proxy. A
	// failure after a successful TCP probe is reported through Warn, not
	// treated as fatal.
	FunctionalCheck bool

	// ProbeTarget overrides the functional probe endpoint.
	ProbeTarget string

	// Warn receives non-fatal diagnostics. Optional.
	Warn func(format string, args ...interface{})
}

// Resolve applies the precedence rule and runs the health gate. It returns
// the verified endpoint, or ErrUnavailable before any collection traffic is
// sent. All-or-nothing: there is no degraded direct-connection mode.
func Resolve(opts GateOptions) (*Config, error) {
	warn := opts.Warn
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}

	cfg := opts.Explicit
	if !cfg.IsSet() {
		if opts.NoAutoDetect {
			return nil, fmt.Errorf("%w: no proxy configured and auto-detection disabled", ErrUnavailable)
		}
		cfg = Detect()
		if !cfg.IsSet() {
			return nil, fmt.Errorf("%w: no proxy configured and none detected on conventional ports", ErrUnavailable)
		}
	}

	if opts.SkipCheck {
		return cfg, nil
	}

	if err := CheckConnection(cfg); err != nil {
		return nil, err
	}

	if opts.FunctionalCheck {
		if err := VerifyWithRequest(cfg, opts.ProbeTarget); err != nil {
			warn("proxy %s accepted a connection but the functional probe failed: %v", cfg.Addr(), err)
		}
	}

	return cfg, nil
}

// Transport builds an http.Transport routing through the proxy, honoring
// the verify_ssl setting for intercepted TLS.
func Transport(cfg *Config) (*http.Transport, error) {
	proxyURL, err := url.Parse(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return &http.Transport{
		Proxy:           http.ProxyURL(proxyURL),
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifySSL},
	}, nil
}
