package descriptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sparkgen/spark/pkg/fs"
)

const fileName = "package.json"

var (
	// ErrSaveBeforeLoad is returned when Save is called on a descriptor
	// that was never hydrated.
	ErrSaveBeforeLoad = errors.New("descriptor saved before load")

	// ErrAlreadySaved is returned when Save is called more than once;
	// the descriptor is persisted exactly once per run.
	ErrAlreadySaved = errors.New("descriptor already saved")
)

// VersionResolver yields an installable version range for a package name.
// Implementations never fail; degraded lookups return a fallback range.
type VersionResolver interface {
	Resolve(ctx context.Context, name string) string
}

// packageFile mirrors the on-disk package.json layout.
type packageFile struct {
	Name            string            `json:"name"`
	Private         bool              `json:"private"`
	Version         string            `json:"version"`
	Type            string            `json:"type,omitempty"`
	Scripts         map[string]string `json:"scripts,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
	Overrides       map[string]string `json:"overrides,omitempty"`
}

// Descriptor accumulates the generated project's package metadata. One
// instance is shared by every step in a run; steps mutate it in place and
// the orchestrator persists it exactly once after all steps settle.
//
// Writes are guarded by a mutex so concurrently scheduled steps can add
// entries safely. Two steps writing the same key is last-write-wins; a
// dependency key is expected to be owned by a single step.
type Descriptor struct {
	mu sync.Mutex

	filesystem *fs.FileSystem
	path       string
	log        zerolog.Logger

	loaded bool
	saved  bool

	name            string
	version         string
	private         bool
	moduleType      string
	scripts         map[string]string
	dependencies    map[string]string
	devDependencies map[string]string
	overrides       map[string]string
}

// New creates an empty, unloaded descriptor for the project directory.
func New(filesystem *fs.FileSystem, projectDir string, log *zerolog.Logger) *Descriptor {
	l := zerolog.Nop()
	if log != nil {
		l = *log
	}
	return &Descriptor{
		filesystem:      filesystem,
		path:            filepath.Join(projectDir, fileName),
		log:             l,
		scripts:         make(map[string]string),
		dependencies:    make(map[string]string),
		devDependencies: make(map[string]string),
		overrides:       make(map[string]string),
	}
}

// Load hydrates the descriptor from an existing package.json when updating
// an existing project, or seeds a default descriptor with the project name.
func (d *Descriptor) Load(projectName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filesystem.FileExists(d.path) {
		data, err := d.filesystem.ReadFile(d.path)
		if err != nil {
			return fmt.Errorf("loading descriptor: %w", err)
		}
		var file packageFile
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parsing %s: %w", d.path, err)
		}
		d.name = file.Name
		d.version = file.Version
		d.private = file.Private
		d.moduleType = file.Type
		if file.Scripts != nil {
			d.scripts = file.Scripts
		}
		if file.Dependencies != nil {
			d.dependencies = file.Dependencies
		}
		if file.DevDependencies != nil {
			d.devDependencies = file.DevDependencies
		}
		if file.Overrides != nil {
			d.overrides = file.Overrides
		}
		d.log.Debug().Str("path", d.path).Msg("Loaded existing descriptor")
	} else {
		d.name = projectName
		d.version = "0.0.0"
		d.private = true
		d.moduleType = "module"
		d.log.Debug().Str("name", projectName).Msg("Seeded new descriptor")
	}

	d.loaded = true
	return nil
}

// Add upserts a dependency (or dev dependency) range. Adding the same pair
// twice is a no-op; a different range for an existing name overwrites it.
func (d *Descriptor) Add(name, versionRange string, dev bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dev {
		d.devDependencies[name] = versionRange
	} else {
		d.dependencies[name] = versionRange
	}
}

// AddScript upserts a script entry.
func (d *Descriptor) AddScript(name, command string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[name] = command
}

// AddOverride upserts a forced version range, pinning a transitive
// dependency.
func (d *Descriptor) AddOverride(name, versionRange string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[name] = versionRange
}

// Dependency returns the tracked range for name, checking dependencies
// then devDependencies.
func (d *Descriptor) Dependency(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.dependencies[name]; ok {
		return v, true
	}
	v, ok := d.devDependencies[name]
	return v, ok
}

// Script returns the tracked command for a script name.
func (d *Descriptor) Script(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.scripts[name]
	return v, ok
}

// ResolveLatestVersions replaces every tracked dependency range with a live
// registry lookup, fanning out up to parallelism concurrent resolutions.
// One package's failure never aborts the others: a returned range is applied
// only when it passes the format sanity check, otherwise the previously
// pinned value is kept.
func (d *Descriptor) ResolveLatestVersions(ctx context.Context, resolver VersionResolver, parallelism int) {
	if parallelism < 1 {
		parallelism = 1
	}

	names := d.trackedNames()

	resolved := make(map[string]string, len(names))
	var resolvedMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, name := range names {
		name := name
		g.Go(func() error {
			v := resolver.Resolve(gctx, name)
			resolvedMu.Lock()
			resolved[name] = v
			resolvedMu.Unlock()
			return nil
		})
	}
	g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	for name, v := range resolved {
		if !looksLikeRange(v) {
			d.log.Debug().Str("package", name).Str("resolved", v).
				Msg("Discarding invalid resolved version, keeping pinned range")
			continue
		}
		if _, ok := d.dependencies[name]; ok {
			d.dependencies[name] = v
		}
		if _, ok := d.devDependencies[name]; ok {
			d.devDependencies[name] = v
		}
	}
}

func (d *Descriptor) trackedNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.dependencies)+len(d.devDependencies))
	for name := range d.dependencies {
		names = append(names, name)
	}
	for name := range d.devDependencies {
		names = append(names, name)
	}
	return names
}

// Save serializes the descriptor to package.json. Keys marshal in sorted
// order, keeping diffs stable across runs. Save is valid exactly once, and
// only after Load.
func (d *Descriptor) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return ErrSaveBeforeLoad
	}
	if d.saved {
		return ErrAlreadySaved
	}

	file := packageFile{
		Name:            d.name,
		Private:         d.private,
		Version:         d.version,
		Type:            d.moduleType,
		Scripts:         d.scripts,
		Dependencies:    d.dependencies,
		DevDependencies: d.devDependencies,
		Overrides:       d.overrides,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling descriptor: %w", err)
	}

	if err := d.filesystem.WriteFile(d.path, string(data)+"\n"); err != nil {
		return fmt.Errorf("saving descriptor: %w", err)
	}

	d.saved = true
	d.log.Debug().Str("path", d.path).Msg("Descriptor saved")
	return nil
}

// looksLikeRange reports whether s is an applicable version range: a
// release tag with an optional ^ or ~ prefix, or the wildcard "latest".
func looksLikeRange(s string) bool {
	if s == "latest" {
		return true
	}
	trimmed := strings.TrimLeft(s, "^~")
	if trimmed == "" {
		return false
	}
	v, err := semver.NewVersion(trimmed)
	if err != nil {
		return false
	}
	return v.Prerelease() == ""
}
