package core

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sparkgen/spark/pkg/descriptor"
	"github.com/sparkgen/spark/pkg/fs"
)

// Engine wires the step catalog, version resolver, and file system into
// project-generation runs.
type Engine struct {
	registry  *Registry
	resolver  descriptor.VersionResolver
	fs        *fs.FileSystem
	publisher StepPublisher
	logger    *zerolog.Logger
}

func NewProjectEngine(registry *Registry, resolver descriptor.VersionResolver, filesystem *fs.FileSystem, pub StepPublisher, logger *zerolog.Logger) *Engine {
	if pub == nil {
		pub = DefaultStepPublisher{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Engine{
		registry:  registry,
		resolver:  resolver,
		fs:        filesystem,
		publisher: pub,
		logger:    logger,
	}
}

// Generate runs one project generation for the request.
func (e *Engine) Generate(ctx context.Context, r *Request) error {
	projectPath, err := filepath.Abs(r.TargetDir)
	if err != nil {
		return fmt.Errorf("resolving target directory: %w", err)
	}
	if err := e.fs.EnsureDir(projectPath); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	state := &State{
		ProjectPath: projectPath,
		ProjectName: r.ProjectName,
		Selections:  NewSelections(r.Options, r.Features),
		Descriptor:  descriptor.New(e.fs, projectPath, e.logger),
		FileSystem:  e.fs,
		Resolver:    e.resolver,
		Logger:      e.logger,
	}

	pipeline := NewPipeline(state, e.registry, e.publisher, r.Strategy, r.MaxConcurrency)
	return pipeline.Execute(ctx)
}
