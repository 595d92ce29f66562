package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fnruntime/config"
	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/natsclient"
)

func serveCommand(t *testing.T, configPath string, args ...string) (*cobra.Command, *ServeOptions) {
	t.Helper()
	opts := &ServeOptions{RootOptions: &RootOptions{ConfigPath: configPath, LogLevel: "info", LogFormat: "json"}}
	cmd := &cobra.Command{Use: "serve"}
	bindServeFlags(cmd, opts)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, opts
}

func testConfig(target string) *config.Config {
	cfg := config.Default()
	cfg.Function.Target = target
	cfg.Metrics.Port = 0
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fnruntime.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
function:
  target: examples.Echo
  timeout: 1m
server:
  port: 8081
`), 0600))

	t.Setenv(config.EnvPort, "8082")

	cmd, opts := serveCommand(t, path, "--timeout", "5s")
	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)

	assert.Equal(t, "examples.Echo", cfg.Function.Target, "from file")
	assert.Equal(t, 8082, cfg.Server.Port, "env overrides file")
	assert.Equal(t, 5*time.Second, cfg.Function.Timeout.Std(), "flag overrides file")

	cmd, opts = serveCommand(t, path, "--port", "9000", "--nats-subject", "functions.echo")
	cfg, err = loadConfig(cmd, opts)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port, "flag overrides env")
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, time.Minute, cfg.Function.Timeout.Std(), "unset flags keep the file value")
}

func TestLoadConfig_MissingTarget(t *testing.T) {
	cmd, opts := serveCommand(t, "")
	_, err := loadConfig(cmd, opts)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNewApp_ServesTarget(t *testing.T) {
	a, err := newApp(context.Background(), testConfig("examples.Echo"), discardLogger())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.invoker.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ping")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ping", rec.Body.String())

	m := a.metrics.CoreMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("examples.Echo", "http", "success")))

	rec = httptest.NewRecorder()
	a.health.Handler(appName).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_ResolutionFailures(t *testing.T) {
	tests := []struct {
		name          string
		target        string
		signatureType string
	}{
		{"unknown target", "examples.Missing", ""},
		{"signature mismatch", "examples.Echo", "cloudevent"},
		{"function set", "examples.Legacy", ""},
		{"missing artifact", "examples.Echo", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.target)
			cfg.Function.SignatureType = tt.signatureType
			if tt.name == "missing artifact" {
				cfg.Function.Artifact = filepath.Join(t.TempDir(), "missing.so")
			}
			_, err := newApp(context.Background(), cfg, discardLogger())
			assert.Error(t, err)
		})
	}
}

func TestApp_NATSOptions(t *testing.T) {
	cfg := testConfig("examples.Echo")
	a, err := newApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	plain, err := natsclient.NewClient(cfg.NATS.URL, a.natsOptions()...)
	require.NoError(t, err)

	cfg.NATS.TLSCert = "client.pem"
	cfg.NATS.TLSKey = "client.key"
	cfg.NATS.TLSCA = "ca.pem"
	cfg.NATS.Token = "secret"
	secured, err := natsclient.NewClient(cfg.NATS.URL, a.natsOptions()...)
	require.NoError(t, err)

	// client cert, root CAs and token
	assert.Len(t, secured.ConnectionOptions(), len(plain.ConnectionOptions())+3)
}

func TestApp_NATSHealth(t *testing.T) {
	a, err := newApp(context.Background(), testConfig("examples.Echo"), discardLogger())
	require.NoError(t, err)

	a.natsDisconnected(io.ErrUnexpectedEOF)
	status, ok := a.health.Get("nats")
	require.True(t, ok)
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Message, io.ErrUnexpectedEOF.Error())

	a.natsReconnected()
	status, _ = a.health.Get("nats")
	assert.True(t, status.Healthy)
	assert.Equal(t, "reconnected", status.Message)
}

func TestApp_RunAndShutdown(t *testing.T) {
	cfg := testConfig("examples.Greet")
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = config.Duration(time.Second)

	a, err := newApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port) + "/?name=fn"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && bytes.Equal(body, []byte("Hello, fn!"))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
