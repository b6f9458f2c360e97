package proxy

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenerConfig(t *testing.T) (*Config, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	port := ln.Addr().(*net.TCPAddr).Port
	return &Config{Host: "127.0.0.1", Port: port}, ln
}

func deadConfig(t *testing.T) *Config {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return &Config{Host: "127.0.0.1", Port: port}
}

func TestParseAddr(t *testing.T) {
	t.Run("valid host:port", func(t *testing.T) {
		cfg, err := ParseAddr("127.0.0.1:8080")
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", cfg.Host)
		assert.Equal(t, 8080, cfg.Port)
		assert.True(t, cfg.Explicit)
	})

	t.Run("missing port fails", func(t *testing.T) {
		_, err := ParseAddr("127.0.0.1")
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("non-numeric port fails", func(t *testing.T) {
		_, err := ParseAddr("localhost:burp")
		assert.ErrorIs(t, err, ErrConfig)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"proxy_host": "127.0.0.1", "proxy_port": 8080, "verify_ssl": false
		}`), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
		assert.True(t, cfg.Explicit)
		assert.False(t, cfg.VerifySSL)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("proxy_host: localhost\nproxy_port: 8090\nverify_ssl: true\n"), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "localhost:8090", cfg.Addr())
		assert.True(t, cfg.VerifySSL)
	})

	t.Run("invalid JSON fails", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o644))
		_, err := LoadConfig(path)
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("out of range port fails", func(t *testing.T) {
		path := filepath.Join(dir, "badport.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"proxy_host": "x", "proxy_port": 70000}`), 0o644))
		_, err := LoadConfig(path)
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("save and reload round trip", func(t *testing.T) {
		path := filepath.Join(dir, "saved.json")
		require.NoError(t, SaveConfig(path, &Config{Host: "localhost", Port: 8888, VerifySSL: true}))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "localhost:8888", cfg.Addr())
		assert.True(t, cfg.VerifySSL)
	})
}

func TestCheckConnection(t *testing.T) {
	t.Run("succeeds against a listener", func(t *testing.T) {
		cfg, _ := listenerConfig(t)
		assert.NoError(t, CheckConnection(cfg))
	})

	t.Run("fails against a closed port", func(t *testing.T) {
		err := CheckConnection(deadConfig(t))
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestVerifyWithRequest(t *testing.T) {
	t.Run("accepts a working proxy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		addr := server.Listener.Addr().(*net.TCPAddr)
		cfg := &Config{Host: "127.0.0.1", Port: addr.Port}
		assert.NoError(t, VerifyWithRequest(cfg, server.URL+"/get"))
	})

	t.Run("rejects an error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		addr := server.Listener.Addr().(*net.TCPAddr)
		cfg := &Config{Host: "127.0.0.1", Port: addr.Port}
		assert.Error(t, VerifyWithRequest(cfg, server.URL+"/get"))
	})
}

func TestDetect(t *testing.T) {
	t.Run("finds the first live candidate", func(t *testing.T) {
		live, _ := listenerConfig(t)
		candidates := []Config{*deadConfig(t), *live}

		found := detect(candidates)
		require.NotNil(t, found)
		assert.Equal(t, live.Addr(), found.Addr())
	})

	t.Run("returns nil when nothing listens", func(t *testing.T) {
		assert.Nil(t, detect([]Config{*deadConfig(t)}))
	})
}

func TestResolve(t *testing.T) {
	t.Run("explicit dead proxy halts with ErrUnavailable", func(t *testing.T) {
		_, err := Resolve(GateOptions{Explicit: deadConfig(t)})
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("explicit live proxy passes", func(t *testing.T) {
		live, _ := listenerConfig(t)
		cfg, err := Resolve(GateOptions{Explicit: live})
		require.NoError(t, err)
		assert.Equal(t, live.Addr(), cfg.Addr())
	})

	t.Run("skip check bypasses the probe", func(t *testing.T) {
		dead := deadConfig(t)
		cfg, err := Resolve(GateOptions{Explicit: dead, SkipCheck: true})
		require.NoError(t, err)
		assert.Equal(t, dead.Addr(), cfg.Addr())
	})

	t.Run("no proxy and auto-detect disabled halts", func(t *testing.T) {
		_, err := Resolve(GateOptions{NoAutoDetect: true})
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("functional probe failure is a warning, not fatal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()
		addr := server.Listener.Addr().(*net.TCPAddr)

		var warnings int
		cfg, err := Resolve(GateOptions{
			Explicit:        &Config{Host: "127.0.0.1", Port: addr.Port, Explicit: true},
			FunctionalCheck: true,
			ProbeTarget:     server.URL + "/get",
			Warn:            func(string, ...interface{}) { warnings++ },
		})
		require.NoError(t, err)
		assert.True(t, cfg.IsSet())
		assert.Equal(t, 1, warnings)
	})
}

func TestTransport(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 8080, VerifySSL: false}
	transport, err := Transport(cfg)
	require.NoError(t, err)

	req, err := http.NewRequest("GET", "http://example.com/", nil)
	require.NoError(t, err)
	proxyURL, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(8080), proxyURL.Host)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}
