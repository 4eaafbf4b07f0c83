package steps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sparkgen/spark/pkg/core"
	"github.com/sparkgen/spark/pkg/registry"
)

// Option and feature names the catalog's activation predicates read.
const (
	OptionLanguage = "language"
	OptionStyling  = "styling"
	OptionState    = "state"
	OptionRouting  = "routing"

	FeatureLinting  = "linting"
	FeaturePrettier = "prettier"
	FeatureReadme   = "readme"
	FeatureGit      = "git"
)

// RegisterDefaults registers the default configurator catalog. Each entry's
// loader runs at most once per process; predicates decide from the user's
// selections whether the step joins the run at all.
func RegisterDefaults(r *core.Registry) error {
	entries := []core.StepDescriptor{
		{
			Name:   "base",
			Tier:   core.TierBootstrap,
			Loader: func() (core.Step, error) { return &BaseStep{}, nil },
		},
		{
			Name:      "typescript",
			Tier:      core.TierBootstrap,
			DependsOn: []string{"base"},
			Loader:    func() (core.Step, error) { return &TypescriptStep{}, nil },
			IsActive: func(sel core.Selections) bool {
				return sel.OptionIs(OptionLanguage, "typescript")
			},
		},
		{
			Name:      "styling",
			DependsOn: []string{"base"},
			Loader:    func() (core.Step, error) { return &StylingStep{}, nil },
			IsActive: func(sel core.Selections) bool {
				return sel.Option(OptionStyling) != ""
			},
		},
		{
			Name:      "state",
			DependsOn: []string{"base"},
			Loader:    func() (core.Step, error) { return &StateStep{}, nil },
			IsActive: func(sel core.Selections) bool {
				v := sel.Option(OptionState)
				return v != "" && v != "none"
			},
		},
		{
			Name:      "router",
			DependsOn: []string{"base"},
			Loader:    func() (core.Step, error) { return &RouterStep{}, nil },
			IsActive: func(sel core.Selections) bool {
				return sel.OptionIs(OptionRouting, "react-router")
			},
		},
		{
			Name:      "linting",
			DependsOn: []string{"base", "typescript"},
			Loader:    func() (core.Step, error) { return &LintingStep{}, nil },
			IsActive: func(sel core.Selections) bool {
				return sel.HasFeature(FeatureLinting)
			},
		},
		{
			Name:      "prettier",
			DependsOn: []string{"base"},
			Loader:    func() (core.Step, error) { return &PrettierStep{}, nil },
			IsActive: func(sel core.Selections) bool {
				return sel.HasFeature(FeaturePrettier)
			},
		},
		{
			Name:      "readme",
			Tier:      core.TierFinal,
			DependsOn: []string{"base"},
			Loader:    func() (core.Step, error) { return &ReadmeStep{}, nil },
			IsActive: func(sel core.Selections) bool {
				return sel.HasFeature(FeatureReadme)
			},
		},
		{
			Name:      "git",
			Tier:      core.TierFinal,
			DependsOn: []string{"base"},
			Loader:    func() (core.Step, error) { return &GitStep{}, nil },
			IsActive: func(sel core.Selections) bool {
				return sel.HasFeature(FeatureGit)
			},
		},
	}
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// pin declares a dependency at its pinned fallback range; the orchestrator
// swaps in live registry versions after all steps settle.
func pin(state *core.State, name string, dev bool) {
	state.Descriptor.Add(name, registry.FallbackVersion(name), dev)
}

// BaseStep scaffolds the project skeleton: entry HTML, Vite config, the
// React entry point, and the core scripts and dependencies.
type BaseStep struct{}

func (s *BaseStep) Name() string { return "base" }

func (s *BaseStep) Execute(ctx context.Context, state *core.State) error {
	state.Logger.Debug().Msg("Scaffolding project base.")

	pin(state, "react", false)
	pin(state, "react-dom", false)
	pin(state, "vite", true)
	pin(state, "@vitejs/plugin-react", true)

	state.Descriptor.AddScript("dev", "vite")
	state.Descriptor.AddScript("build", "vite build")
	state.Descriptor.AddScript("preview", "vite preview")

	ts := state.Selections.OptionIs(OptionLanguage, "typescript")
	files := []struct {
		name    string
		content string
	}{
		{"index.html", indexHTML(state.ProjectName, srcPath("main", ts))},
		{configName("vite.config", ts), viteConfig},
		{srcPath("main", ts), mainEntry(ts)},
		{srcPath("App", ts), appComponent(state.ProjectName)},
	}
	for _, f := range files {
		if err := state.FileSystem.WriteFile(filepath.Join(state.ProjectPath, f.name), f.content); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return nil
}

// TypescriptStep adds the TypeScript toolchain and compiler configuration.
type TypescriptStep struct{}

func (s *TypescriptStep) Name() string { return "typescript" }

func (s *TypescriptStep) Execute(ctx context.Context, state *core.State) error {
	state.Logger.Debug().Msg("Configuring TypeScript.")

	pin(state, "typescript", true)
	pin(state, "@types/react", true)
	pin(state, "@types/react-dom", true)
	state.Descriptor.AddScript("build", "tsc -b && vite build")

	path := filepath.Join(state.ProjectPath, "tsconfig.json")
	if err := state.FileSystem.WriteFile(path, tsconfigJSON); err != nil {
		return fmt.Errorf("writing tsconfig.json: %w", err)
	}
	return nil
}

// StylingStep wires the selected styling approach.
type StylingStep struct{}

func (s *StylingStep) Name() string { return "styling" }

func (s *StylingStep) Execute(ctx context.Context, state *core.State) error {
	choice := state.Selections.Option(OptionStyling)
	state.Logger.Debug().Str("styling", choice).Msg("Configuring styling.")

	var css string
	switch choice {
	case "tailwind":
		pin(state, "tailwindcss", true)
		pin(state, "@tailwindcss/vite", true)
		css = "@import \"tailwindcss\";\n"
	default:
		css = baseCSS
	}

	path := filepath.Join(state.ProjectPath, "src", "index.css")
	if err := state.FileSystem.WriteFile(path, css); err != nil {
		return fmt.Errorf("writing src/index.css: %w", err)
	}
	return nil
}

// StateStep adds the selected state-management library.
type StateStep struct{}

func (s *StateStep) Name() string { return "state" }

func (s *StateStep) Execute(ctx context.Context, state *core.State) error {
	choice := state.Selections.Option(OptionState)
	state.Logger.Debug().Str("state", choice).Msg("Configuring state management.")

	ts := state.Selections.OptionIs(OptionLanguage, "typescript")
	switch choice {
	case "zustand":
		pin(state, "zustand", false)
		path := filepath.Join(state.ProjectPath, srcScript("store", ts))
		return state.FileSystem.WriteFile(path, zustandStore(ts))
	case "redux":
		pin(state, "@reduxjs/toolkit", false)
		pin(state, "react-redux", false)
		path := filepath.Join(state.ProjectPath, srcScript("store", ts))
		return state.FileSystem.WriteFile(path, reduxStore)
	default:
		return fmt.Errorf("unknown state library %q", choice)
	}
}

// RouterStep adds client-side routing.
type RouterStep struct{}

func (s *RouterStep) Name() string { return "router" }

func (s *RouterStep) Execute(ctx context.Context, state *core.State) error {
	state.Logger.Debug().Msg("Configuring routing.")
	pin(state, "react-router-dom", false)
	return nil
}

// LintingStep configures eslint. The eslint range is ceiling-constrained in
// the version resolver, so resolution never drifts past the supported major.
type LintingStep struct{}

func (s *LintingStep) Name() string { return "linting" }

func (s *LintingStep) Execute(ctx context.Context, state *core.State) error {
	state.Logger.Debug().Msg("Configuring linting.")

	pin(state, "eslint", true)
	pin(state, "@eslint/js", true)
	pin(state, "eslint-plugin-react-hooks", true)
	pin(state, "eslint-plugin-react-refresh", true)
	pin(state, "globals", true)
	if state.Selections.OptionIs(OptionLanguage, "typescript") {
		pin(state, "typescript-eslint", true)
	}
	state.Descriptor.AddScript("lint", "eslint .")

	path := filepath.Join(state.ProjectPath, "eslint.config.js")
	return state.FileSystem.WriteFile(path, eslintConfig)
}

// PrettierStep adds prettier and its configuration.
type PrettierStep struct{}

func (s *PrettierStep) Name() string { return "prettier" }

func (s *PrettierStep) Execute(ctx context.Context, state *core.State) error {
	state.Logger.Debug().Msg("Configuring prettier.")

	pin(state, "prettier", true)
	state.Descriptor.AddScript("format", "prettier --write .")

	path := filepath.Join(state.ProjectPath, ".prettierrc")
	return state.FileSystem.WriteFile(path, prettierConfig)
}

// ReadmeStep writes the project README from the final selections.
type ReadmeStep struct{}

func (s *ReadmeStep) Name() string { return "readme" }

func (s *ReadmeStep) Execute(ctx context.Context, state *core.State) error {
	state.Logger.Debug().Msg("Generating README.md.")
	path := filepath.Join(state.ProjectPath, "README.md")
	return state.FileSystem.WriteFile(path, readmeContent(state))
}

// GitStep marks the project as a git repository and writes .gitignore.
type GitStep struct{}

func (s *GitStep) Name() string { return "git" }

func (s *GitStep) Execute(ctx context.Context, state *core.State) error {
	state.Logger.Debug().Msg("Initializing git repository.")
	if err := state.FileSystem.InitializeGitRepo(state.ProjectPath); err != nil {
		return fmt.Errorf("initializing git repository: %w", err)
	}
	path := filepath.Join(state.ProjectPath, ".gitignore")
	return state.FileSystem.WriteFile(path, gitignoreContent)
}
