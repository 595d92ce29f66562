package isolation

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
)

func TestScope_Resolve(t *testing.T) {
	s := NewScope()

	tests := []struct {
		symbol  string
		visible bool
	}{
		{"github.com/c360/fnruntime/functions.Typed", true},
		{"github.com/c360/fnruntime/functions.(*EventContext).Clone", true},
		{"github.com/c360/fnruntime/invoker.New", false},
		{"github.com/c360/fnruntime/resolver.(*Registry).Register", false},
		{"type:.eq.github.com/c360/fnruntime/event.Mapping", false},
		{"github.com/c360/fnruntime.Version", false},
		{"encoding/json.Marshal", true},
		{"github.com/c360/fnruntimex/other.Func", true},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			err := s.Resolve(tt.symbol)
			if tt.visible {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotVisible)
			}
		})
	}
}

func TestScope_WithAllowList(t *testing.T) {
	s := NewScope(WithAllowList(RuntimeModule+"/functions", RuntimeModule+"/event"))

	assert.True(t, s.Visible(RuntimeModule+"/event"))
	assert.False(t, s.Visible(RuntimeModule+"/invoker"))
	assert.Len(t, s.AllowList(), 2)
}

func TestScope_RunInstallsScope(t *testing.T) {
	s := NewScope()
	ctx := context.Background()

	_, ok := FromContext(ctx)
	require.False(t, ok)

	err := s.Run(ctx, "work", func(inner context.Context) error {
		got, ok := FromContext(inner)
		assert.True(t, ok)
		assert.Same(t, s, got)
		assert.Equal(t, int64(1), s.Active())
		return nil
	})
	require.NoError(t, err)

	_, ok = FromContext(ctx)
	assert.False(t, ok, "caller context is unchanged")
	assert.Equal(t, int64(0), s.Active())
}

func TestScope_RunRecoversPanic(t *testing.T) {
	s := NewScope()

	err := s.Run(context.Background(), "boom", func(context.Context) error {
		panic("kaboom")
	})

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, int64(0), s.Active(), "active count restored after panic")

	cause := fmt.Errorf("typed panic")
	err = s.Run(context.Background(), "boom", func(context.Context) error {
		panic(cause)
	})
	assert.ErrorIs(t, err, cause)
}

func TestScope_RunReturnsError(t *testing.T) {
	s := NewScope()
	want := fmt.Errorf("failed")
	assert.Equal(t, want, s.Run(context.Background(), "fail", func(context.Context) error { return want }))
}

func TestScope_RunConcurrent(t *testing.T) {
	s := NewScope()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Run(context.Background(), "concurrent", func(context.Context) error { return nil })
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), s.Active())
}

func TestScope_HiddenPackages(t *testing.T) {
	s := NewScope()
	hidden := s.hiddenPackages([]string{
		"github.com/c360/fnruntime/functions.JSON",
		"github.com/c360/fnruntime/invoker.New",
		"github.com/c360/fnruntime/invoker.(*Invoker).ServeHTTP",
		"go:itab.*github.com/c360/fnruntime/httpmsg.Request,github.com/c360/fnruntime/functions.HTTPRequest",
		"runtime.main",
	})
	assert.Equal(t, []string{RuntimeModule + "/httpmsg", RuntimeModule + "/invoker"}, hidden)
}

// buildFixture compiles testdata/<name> into a temporary binary.
func buildFixture(t *testing.T, name string, stripped bool) string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("artifact checks read ELF files")
	}
	if testing.Short() {
		t.Skip("builds fixture binaries")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}

	out := filepath.Join(t.TempDir(), name)
	args := []string{"build", "-o", out}
	if stripped {
		args = append(args, "-ldflags=-s -w")
	}
	args = append(args, "./testdata/"+name)

	cmd := exec.Command(goBin, args...)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, string(output))
	return out
}

// writeBareELF writes a valid ELF header with no sections.
func writeBareELF(t *testing.T) string {
	t.Helper()
	hdr := elf.Header64{
		Type:    uint16(elf.ET_DYN),
		Machine: uint16(elf.EM_X86_64),
		Version: uint32(elf.EV_CURRENT),
		Ehsize:  64,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))

	path := filepath.Join(t.TempDir(), "bare.so")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestScope_CheckArtifact(t *testing.T) {
	t.Run("not an ELF file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plugin.so")
		require.NoError(t, os.WriteFile(path, []byte("not elf"), 0o600))

		err := NewScope().CheckArtifact(path)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("no symbol information", func(t *testing.T) {
		err := NewScope().CheckArtifact(writeBareELF(t))
		assert.ErrorIs(t, err, ErrUnverifiable)
		assert.True(t, errors.IsInvalid(err))
	})

	tests := []struct {
		name     string
		fixture  string
		stripped bool
		hidden   bool
	}{
		{"authoring API only", "allowed", false, false},
		{"authoring API only, stripped", "allowed", true, false},
		{"runtime internals", "hidden", false, true},
		{"runtime internals, stripped", "hidden", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := buildFixture(t, tt.fixture, tt.stripped)

			err := NewScope().CheckArtifact(path)
			if !tt.hidden {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrNotVisible)
			assert.Contains(t, err.Error(), RuntimeModule+"/invoker")
		})
	}
}

func TestCompareDependencies(t *testing.T) {
	host := &debug.BuildInfo{Deps: []*debug.Module{
		{Path: "github.com/google/uuid", Version: "v1.6.0"},
		{Path: "github.com/cloudevents/sdk-go/v2", Version: "v2.16.0"},
		{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"},
	}}
	artifact := &debug.BuildInfo{Deps: []*debug.Module{
		{Path: "github.com/google/uuid", Version: "v1.6.0"},
		{Path: "github.com/cloudevents/sdk-go/v2", Version: "v2.15.0"},
		{Path: "example.com/only/artifact", Version: "v0.1.0"},
		{Path: "gopkg.in/yaml.v3", Version: "v3.0.0", Replace: &debug.Module{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"}},
	}}

	mismatches := CompareDependencies(host, artifact)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "github.com/cloudevents/sdk-go/v2", mismatches[0].Path)
	assert.Equal(t, "v2.16.0", mismatches[0].HostVersion)
	assert.Equal(t, "v2.15.0", mismatches[0].ArtifactVersion)

	assert.Nil(t, CompareDependencies(nil, artifact))
}

func TestAsRegisterFunc(t *testing.T) {
	plain := func(functions.Registrar) error { return nil }
	named := functions.RegisterFunc(plain)

	_, err := asRegisterFunc(plain)
	assert.NoError(t, err)
	_, err = asRegisterFunc(named)
	assert.NoError(t, err)
	_, err = asRegisterFunc(&named)
	assert.NoError(t, err)
	_, err = asRegisterFunc(func() {})
	assert.Error(t, err)
}

func TestLoader_RejectsMissingArtifact(t *testing.T) {
	l := NewLoader(NewScope(), nil)
	err := l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.so"), nil)
	assert.Error(t, err)
}
