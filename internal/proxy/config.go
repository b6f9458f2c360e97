// Package proxy resolves, verifies, and wires up the intercepting proxy
// that all collection traffic is sent through.
package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfig is returned for unreadable or malformed proxy configuration.
var ErrConfig = errors.New("proxy config error")

// Config is the resolved proxy endpoint plus TLS behavior. Explicit reports
// whether the user supplied the endpoint directly; explicit settings are
// never overridden by auto-detection.
type Config struct {
	Host      string `json:"proxy_host" yaml:"proxy_host"`
	Port      int    `json:"proxy_port" yaml:"proxy_port"`
	VerifySSL bool   `json:"verify_ssl" yaml:"verify_ssl"`
	Verbose   bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	Explicit bool `json:"-" yaml:"-"`
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the proxy endpoint as an http URL string.
func (c *Config) URL() string {
	return "http://" + c.Addr()
}

// IsSet reports whether a proxy endpoint has been resolved.
func (c *Config) IsSet() bool {
	return c != nil && c.Host != "" && c.Port > 0
}

// ParseAddr splits a host:port argument into an explicit config.
func ParseAddr(addr string) (*Config, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid proxy address %q: %v", ErrConfig, addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid proxy port %q", ErrConfig, portStr)
	}
	return &Config{Host: host, Port: port, Explicit: true}, nil
}

// LoadConfig reads a proxy configuration file. JSON and YAML are accepted,
// chosen by file extension.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &cfg)
	default:
		err = json.Unmarshal(content, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfig, path, err)
	}

	if cfg.Host != "" && (cfg.Port < 1 || cfg.Port > 65535) {
		return nil, fmt.Errorf("%w: %s: port %d out of range", ErrConfig, path, cfg.Port)
	}
	cfg.Explicit = cfg.IsSet()
	return &cfg, nil
}

// SaveConfig writes the resolved configuration back to a file, matching the
// format the extension implies.
func SaveConfig(path string, cfg *Config) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrConfig, path, err)
	}
	return nil
}
