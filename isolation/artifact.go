package isolation

import (
	"debug/buildinfo"
	"debug/elf"
	"debug/gosym"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/c360/fnruntime/errors"
)

// ErrUnverifiable is returned for an artifact that carries no symbol
// information at all, so its package references cannot be checked.
var ErrUnverifiable = errors.New("artifact carries no symbol information")

// CheckArtifact rejects a shared object that references runtime packages
// outside the allow-list.
func (s *Scope) CheckArtifact(path string) error {
	f, err := elf.Open(path)
	if err != nil {
		return errors.WrapInvalid(err, "Scope", "CheckArtifact", "open ELF artifact")
	}
	defer f.Close()

	names, err := symbolNames(f)
	if err != nil {
		return errors.WrapInvalid(err, "Scope", "CheckArtifact", "read symbols")
	}
	if hidden := s.hiddenPackages(names); len(hidden) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", ErrNotVisible, strings.Join(hidden, ", ")),
			"Scope", "CheckArtifact", "verify package visibility")
	}
	return nil
}

// symbolNames reads the ELF symbol table, then the Go line table, which
// survives -ldflags=-s, then the dynamic symbols.
func symbolNames(f *elf.File) ([]string, error) {
	symbols, err := f.Symbols()
	switch {
	case err == nil:
		return elfNames(symbols), nil
	case !errors.Is(err, elf.ErrNoSymbols):
		return nil, err
	}

	if names, ok := lineTableNames(f); ok {
		return names, nil
	}

	symbols, err = f.DynamicSymbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, ErrUnverifiable
	}
	if err != nil {
		return nil, err
	}
	return elfNames(symbols), nil
}

func elfNames(symbols []elf.Symbol) []string {
	names := make([]string, len(symbols))
	for i, sym := range symbols {
		names[i] = sym.Name
	}
	return names
}

// lineTableNames lists the function names in the Go pclntab.
func lineTableNames(f *elf.File) ([]string, bool) {
	var pcln *elf.Section
	for _, sec := range f.Sections {
		if strings.HasSuffix(sec.Name, ".gopclntab") {
			pcln = sec
			break
		}
	}
	text := f.Section(".text")
	if pcln == nil || text == nil {
		return nil, false
	}

	data, err := pcln.Data()
	if err != nil {
		return nil, false
	}
	table, err := gosym.NewTable(nil, gosym.NewLineTable(data, text.Addr))
	if err != nil {
		return nil, false
	}

	names := make([]string, len(table.Funcs))
	for i, fn := range table.Funcs {
		names[i] = fn.Name
	}
	return names, true
}

// hiddenPackages returns the sorted runtime packages referenced by symbols
// that the scope does not expose.
func (s *Scope) hiddenPackages(symbols []string) []string {
	seen := make(map[string]struct{})
	for _, name := range symbols {
		for _, pkg := range runtimePackages(name) {
			if !s.Visible(pkg) {
				seen[pkg] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for pkg := range seen {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}

// Mismatch is a module both builds depend on at different versions.
type Mismatch struct {
	Path            string
	HostVersion     string
	ArtifactVersion string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s (host %s, artifact %s)", m.Path, m.HostVersion, m.ArtifactVersion)
}

// CompareDependencies lists modules shared by host and artifact whose versions differ.
func CompareDependencies(host, artifact *debug.BuildInfo) []Mismatch {
	if host == nil || artifact == nil {
		return nil
	}
	hostVersions := make(map[string]string, len(host.Deps))
	for _, dep := range host.Deps {
		hostVersions[dep.Path] = moduleVersion(dep)
	}

	var out []Mismatch
	for _, dep := range artifact.Deps {
		hv, ok := hostVersions[dep.Path]
		if !ok {
			continue
		}
		if av := moduleVersion(dep); av != hv {
			out = append(out, Mismatch{Path: dep.Path, HostVersion: hv, ArtifactVersion: av})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func moduleVersion(m *debug.Module) string {
	if m.Replace != nil {
		return m.Replace.Version
	}
	return m.Version
}

// CheckDependencies rejects an artifact whose shared modules differ in version
// from the running binary.
func CheckDependencies(path string) error {
	artifact, err := buildinfo.ReadFile(path)
	if err != nil {
		return errors.WrapInvalid(err, "isolation", "CheckDependencies", "read artifact build info")
	}
	host, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	mismatches := CompareDependencies(host, artifact)
	if len(mismatches) == 0 {
		return nil
	}
	parts := make([]string, len(mismatches))
	for i, m := range mismatches {
		parts[i] = m.String()
	}
	return errors.WrapInvalid(
		fmt.Errorf("incompatible shared modules: %s", strings.Join(parts, "; ")),
		"isolation", "CheckDependencies", "compare module versions")
}
