package steps

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkgen/spark/pkg/core"
	"github.com/sparkgen/spark/pkg/fs"
	"github.com/sparkgen/spark/pkg/registry"
)

func offlineResolver() *registry.Resolver {
	return registry.NewResolver(registry.Options{Offline: true})
}

func generate(t *testing.T, req *core.Request) *fs.FileSystem {
	t.Helper()
	reg := core.NewRegistry()
	require.NoError(t, RegisterDefaults(reg))

	memFS := fs.NewMemoryFileSystem()
	engine := core.NewProjectEngine(reg, offlineResolver(), memFS, nil, nil)
	require.NoError(t, engine.Generate(context.Background(), req))
	return memFS
}

func TestGenerate_FullTypescriptProject(t *testing.T) {
	req := &core.Request{
		ProjectName: "demo",
		TargetDir:   "/projects/demo",
		Options: map[string]string{
			OptionLanguage: "typescript",
			OptionStyling:  "tailwind",
			OptionState:    "zustand",
			OptionRouting:  "react-router",
		},
		Features:       []string{FeatureLinting, FeaturePrettier, FeatureReadme, FeatureGit},
		Strategy:       core.PhasedParallel,
		MaxConcurrency: 4,
	}
	memFS := generate(t, req)

	for _, path := range []string{
		"index.html",
		"vite.config.ts",
		"tsconfig.json",
		"src/main.tsx",
		"src/App.tsx",
		"src/index.css",
		"src/store.ts",
		"eslint.config.js",
		".prettierrc",
		"README.md",
		".gitignore",
		"package.json",
	} {
		assert.True(t, memFS.FileExists(filepath.Join("/projects/demo", path)), "missing %s", path)
	}
	assert.True(t, memFS.IsDir("/projects/demo/.git"))

	data, err := memFS.ReadFile("/projects/demo/package.json")
	require.NoError(t, err)
	var pkg struct {
		Name            string            `json:"name"`
		Scripts         map[string]string `json:"scripts"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	require.NoError(t, json.Unmarshal(data, &pkg))

	assert.Equal(t, "demo", pkg.Name)
	assert.Equal(t, "^19.0.0", pkg.Dependencies["react"])
	assert.Equal(t, "^5.0.0", pkg.Dependencies["zustand"])
	assert.Contains(t, pkg.Dependencies, "react-router-dom")
	assert.Contains(t, pkg.DevDependencies, "typescript")
	assert.Contains(t, pkg.DevDependencies, "eslint")
	assert.Equal(t, "tsc -b && vite build", pkg.Scripts["build"])
	assert.Equal(t, "eslint .", pkg.Scripts["lint"])
}

func TestGenerate_MinimalJavascriptProject(t *testing.T) {
	req := &core.Request{
		ProjectName: "plain",
		TargetDir:   "/projects/plain",
		Options: map[string]string{
			OptionLanguage: "javascript",
			OptionStyling:  "css",
			OptionState:    "none",
			OptionRouting:  "none",
		},
		Strategy:       core.SequentialWithProgress,
		MaxConcurrency: 1,
	}
	memFS := generate(t, req)

	assert.True(t, memFS.FileExists("/projects/plain/src/main.jsx"))
	assert.True(t, memFS.FileExists("/projects/plain/vite.config.js"))
	assert.False(t, memFS.FileExists("/projects/plain/tsconfig.json"))
	assert.False(t, memFS.FileExists("/projects/plain/README.md"))
	assert.False(t, memFS.FileExists("/projects/plain/src/store.js"))

	data, err := memFS.ReadFile("/projects/plain/package.json")
	require.NoError(t, err)
	var pkg struct {
		Scripts         map[string]string `json:"scripts"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	require.NoError(t, json.Unmarshal(data, &pkg))

	assert.NotContains(t, pkg.Dependencies, "zustand")
	assert.NotContains(t, pkg.DevDependencies, "typescript")
	assert.Equal(t, "vite build", pkg.Scripts["build"])
}

func TestGenerate_BothStrategiesProduceSameTree(t *testing.T) {
	base := func(strategy core.Strategy, dir string) *core.Request {
		return &core.Request{
			ProjectName: "twin",
			TargetDir:   dir,
			Options: map[string]string{
				OptionLanguage: "typescript",
				OptionStyling:  "tailwind",
				OptionState:    "redux",
				OptionRouting:  "none",
			},
			Features:       []string{FeatureReadme},
			Strategy:       strategy,
			MaxConcurrency: 4,
		}
	}

	seqFS := generate(t, base(core.SequentialWithProgress, "/a"))
	parFS := generate(t, base(core.PhasedParallel, "/b"))

	seqPkg, err := seqFS.ReadFile("/a/package.json")
	require.NoError(t, err)
	parPkg, err := parFS.ReadFile("/b/package.json")
	require.NoError(t, err)
	assert.JSONEq(t, string(seqPkg), string(parPkg))
}
