package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sparkgen/spark/pkg/descriptor"
	"github.com/sparkgen/spark/pkg/fs"
)

// Step is a single configurator: a named unit of work that reads the user's
// selections, mutates the shared package descriptor, and writes its own
// files. Steps must not call Save on the descriptor or assume exclusive
// access to it.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State is the shared context for one project-generation run. It is created
// once by the orchestrator and passed by reference to every step.
type State struct {
	ProjectPath string
	ProjectName string
	Selections  Selections
	Descriptor  *descriptor.Descriptor
	FileSystem  *fs.FileSystem
	Resolver    descriptor.VersionResolver
	Logger      *zerolog.Logger
}

// Selections holds the user's choices for a run: an option map plus an
// ordered list of optional features. It is immutable once constructed.
type Selections struct {
	options  map[string]string
	features []string
}

// NewSelections copies the given option map and feature list.
func NewSelections(options map[string]string, features []string) Selections {
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[k] = v
	}
	feats := make([]string, len(features))
	copy(feats, features)
	return Selections{options: opts, features: feats}
}

// Option returns the chosen value for an option name, or "" if unset.
func (s Selections) Option(name string) string {
	return s.options[name]
}

// OptionIs reports whether the option is set to the given value.
func (s Selections) OptionIs(name, value string) bool {
	return s.options[name] == value
}

// HasFeature reports whether an optional feature was selected.
func (s Selections) HasFeature(name string) bool {
	for _, f := range s.features {
		if f == name {
			return true
		}
	}
	return false
}

// Features returns the ordered feature list.
func (s Selections) Features() []string {
	out := make([]string, len(s.features))
	copy(out, s.features)
	return out
}
