package env

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Profile names a curated environment configuration.
type Profile string

const (
	ProfileMinimal     Profile = "minimal"
	ProfileStandard    Profile = "standard"
	ProfileFull        Profile = "full"
	ProfileDevelopment Profile = "development"
	ProfileProduction  Profile = "production"
	ProfileNetworking  Profile = "networking"
)

// Valid reports whether the profile is one of the known names.
func (p Profile) Valid() bool {
	switch p {
	case ProfileMinimal, ProfileStandard, ProfileFull,
		ProfileDevelopment, ProfileProduction, ProfileNetworking:
		return true
	}
	return false
}

// Catalog is the on-disk YAML description of profile package sets.
type Catalog struct {
	Profiles map[string]ProfileSpec `yaml:"profiles"`
}

// ProfileSpec lists what a profile provides.
type ProfileSpec struct {
	Description string   `yaml:"description"`
	Packages    []string `yaml:"packages"`
}

// Info is a snapshot of the resolved environment.
type Info struct {
	System      string  `json:"system"`
	Interpreter string  `json:"interpreter"`
	Version     string  `json:"version"`
	Profile     Profile `json:"profile"`
	CatalogPath string  `json:"catalog_path,omitempty"`
}

// Manager resolves the interpreter and profile catalog for the engine.
type Manager struct {
	profile     Profile
	interpreter string
	catalogPath string
	catalog     Catalog
}

// New creates a manager for a profile. interpreter is the command name or
// path ("lua" when empty). catalogPath may be empty; a missing catalog
// file is not an error.
func New(profile Profile, interpreter, catalogPath string) (*Manager, error) {
	if profile == "" {
		profile = ProfileStandard
	}
	if !profile.Valid() {
		return nil, fmt.Errorf("unknown environment profile: %s", profile)
	}
	if interpreter == "" {
		interpreter = "lua"
	}

	m := &Manager{
		profile:     profile,
		interpreter: interpreter,
		catalogPath: catalogPath,
	}
	if catalogPath != "" {
		if err := m.loadCatalog(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) loadCatalog() error {
	data, err := os.ReadFile(m.catalogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read catalog %s: %w", m.catalogPath, err)
	}
	if err := yaml.Unmarshal(data, &m.catalog); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", m.catalogPath, err)
	}
	return nil
}

// SaveCatalog writes the catalog back to its configured path.
func (m *Manager) SaveCatalog() error {
	if m.catalogPath == "" {
		return fmt.Errorf("no catalog path configured")
	}
	data, err := yaml.Marshal(m.catalog)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.catalogPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.catalogPath, data, 0o644)
}

// Profile returns the active profile.
func (m *Manager) Profile() Profile { return m.profile }

// SetProfile switches the active profile.
func (m *Manager) SetProfile(p Profile) error {
	if !p.Valid() {
		return fmt.Errorf("unknown environment profile: %s", p)
	}
	m.profile = p
	return nil
}

// ProfileSpec returns the catalog entry for the active profile, if any.
func (m *Manager) ProfileSpec() (ProfileSpec, bool) {
	spec, ok := m.catalog.Profiles[string(m.profile)]
	return spec, ok
}

// SetProfileSpec updates or adds a catalog entry.
func (m *Manager) SetProfileSpec(p Profile, spec ProfileSpec) {
	if m.catalog.Profiles == nil {
		m.catalog.Profiles = make(map[string]ProfileSpec)
	}
	m.catalog.Profiles[string(p)] = spec
}

// Interpreter resolves the interpreter binary on PATH.
func (m *Manager) Interpreter() (string, error) {
	path, err := exec.LookPath(m.interpreter)
	if err != nil {
		return "", fmt.Errorf("interpreter %q not found: %w", m.interpreter, err)
	}
	return path, nil
}

// Version probes the interpreter version ("lua -v" prints to stderr on
// some builds, stdout on others; both are captured).
func (m *Manager) Version(ctx context.Context) (string, error) {
	path, err := m.Interpreter()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-v").CombinedOutput()
	version := strings.TrimSpace(string(out))
	if err != nil && version == "" {
		return "", fmt.Errorf("failed to probe interpreter version: %w", err)
	}
	return version, nil
}

// Validate checks the environment and returns every problem found.
func (m *Manager) Validate(ctx context.Context) []string {
	var problems []string
	if _, err := m.Interpreter(); err != nil {
		problems = append(problems, err.Error())
	} else if _, err := m.Version(ctx); err != nil {
		problems = append(problems, err.Error())
	}
	if m.catalogPath != "" {
		if _, ok := m.catalog.Profiles[string(m.profile)]; !ok && len(m.catalog.Profiles) > 0 {
			problems = append(problems, fmt.Sprintf("profile %q missing from catalog %s", m.profile, m.catalogPath))
		}
	}
	return problems
}

// SystemInfo returns a snapshot of the resolved environment. Version is
// empty when the interpreter is unavailable.
func (m *Manager) SystemInfo(ctx context.Context) Info {
	info := Info{
		System:      runtime.GOOS,
		Interpreter: m.interpreter,
		Profile:     m.profile,
		CatalogPath: m.catalogPath,
	}
	if version, err := m.Version(ctx); err == nil {
		info.Version = version
	}
	return info
}

// IsDevelopment reports whether the development profile is active.
func (m *Manager) IsDevelopment() bool { return m.profile == ProfileDevelopment }

// IsProduction reports whether the production profile is active.
func (m *Manager) IsProduction() bool { return m.profile == ProfileProduction }
