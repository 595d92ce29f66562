package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"json", "config.json", true},
		{"yaml", "config.yaml", true},
		{"yml", "nested/config.yml", true},
		{"absolute", "/etc/fnruntime/config.yaml", true},
		{"empty", "", false},
		{"traversal", "../../etc/passwd.json", false},
		{"traversal after clean", "conf/../../secrets.yaml", false},
		{"nul byte", "config\x00.json", false},
		{"extension", "config.ini", false},
		{"too long", strings.Repeat("a", maxPathLen+1) + ".json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSafeReadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("regular file", func(t *testing.T) {
		path := filepath.Join(dir, "ok.json")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0600))
		data, err := safeReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(data))
	})

	t.Run("directory", func(t *testing.T) {
		path := filepath.Join(dir, "dir.json")
		require.NoError(t, os.Mkdir(path, 0700))
		_, err := safeReadFile(path)
		assert.ErrorContains(t, err, "not a regular file")
	})

	t.Run("too large", func(t *testing.T) {
		path := filepath.Join(dir, "big.json")
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, f.Truncate(maxConfigSize+1))
		require.NoError(t, f.Close())

		_, err = safeReadFile(path)
		assert.ErrorContains(t, err, "too large")
	})
}

func TestCheckDepth(t *testing.T) {
	nest := func(levels int) any {
		var v any = "leaf"
		for range levels {
			v = map[string]any{"k": v}
		}
		return v
	}

	tests := []struct {
		name string
		doc  any
		ok   bool
	}{
		{"config shape", map[string]any{"nats": map[string]any{"url": "nats://x"}}, true},
		{"at the limit", nest(maxConfigDepth - 1), true},
		{"too deep", nest(maxConfigDepth + 1), false},
		{"deep list", []any{[]any{[]any{[]any{[]any{[]any{[]any{[]any{[]any{1}}}}}}}}}, false},
		{"yaml keys", map[any]any{1: nest(maxConfigDepth)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDepth(tt.doc, 1)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadRaw_DepthLimitAppliesToYAML(t *testing.T) {
	var b strings.Builder
	for i := range maxConfigDepth + 1 {
		b.WriteString(strings.Repeat("  ", i) + "k:\n")
	}
	b.WriteString(strings.Repeat("  ", maxConfigDepth+1) + "k: v\n")

	path := filepath.Join(t.TempDir(), "deep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0600))

	_, err := loadRaw(path)
	assert.ErrorContains(t, err, "too deep")
}

func TestFormatOf(t *testing.T) {
	format, err := formatOf("fn.YML")
	require.NoError(t, err)
	assert.Equal(t, formatYAML, format)

	format, err = formatOf("fn.json")
	require.NoError(t, err)
	assert.Equal(t, formatJSON, format)

	_, err = formatOf("fn.toml")
	assert.Error(t, err)
}

func TestValidateEnvVar(t *testing.T) {
	assert.NoError(t, validateEnvVar("K", ""))
	assert.NoError(t, validateEnvVar("K", "value"))
	assert.Error(t, validateEnvVar("K", "a\x00b"))
	assert.Error(t, validateEnvVar("K", strings.Repeat("x", maxEnvValueLen+1)))
}
