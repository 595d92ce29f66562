package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, appName, cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"serve", "targets", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestServeFlags(t *testing.T) {
	cmd := NewRootCommand()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	for _, name := range []string{"target", "port", "signature-type", "artifact", "timeout", "metrics-port", "nats-url", "nats-subject"} {
		assert.NotNil(t, serve.Flags().Lookup(name), name)
	}
	assert.Equal(t, "5m0s", serve.Flags().Lookup("timeout").DefValue)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fnruntime version "+Version+" (build "+BuildTime+")\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestTargetsCommand(t *testing.T) {
	out, err := execute(t, "targets")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 10)
	assert.Regexp(t, `^TARGET\s+CONTRACT$`, lines[0])
	assert.Regexp(t, `^examples\.Echo\s+http$`, lines[1])
	assert.Contains(t, out, "examples.Legacy")
	assert.Contains(t, out, "function set")
	assert.Regexp(t, `examples\.Sum\s+typed`, out)
}

func TestServe_InvalidConfig(t *testing.T) {
	_, err := execute(t, "serve", "--port", "0", "--target", "examples.Echo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
