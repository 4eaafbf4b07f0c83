package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Strategy selects how the orchestrator drives the sorted step plan.
type Strategy int

const (
	// SequentialWithProgress runs steps one at a time in sorted order,
	// emitting a progress event per step.
	SequentialWithProgress Strategy = iota
	// PhasedParallel runs bootstrap steps sequentially, the wide middle
	// tier through the scheduler's pool, and the final tier last.
	PhasedParallel
)

// StepPublisher receives progress events as the run advances.
type StepPublisher interface {
	StepStarted(name string)
	StepCompleted(name string)
	StepFailed(name string, err error)
}

// DefaultStepPublisher discards all events.
type DefaultStepPublisher struct{}

func (DefaultStepPublisher) StepStarted(name string)           {}
func (DefaultStepPublisher) StepCompleted(name string)         {}
func (DefaultStepPublisher) StepFailed(name string, err error) {}

// prefetchAwaiter lets the pipeline join a background cache warm-up before
// finalizing, when the resolver supports one.
type prefetchAwaiter interface {
	AwaitPrefetch(ctx context.Context)
}

// Pipeline executes one project-generation run: resolve the active steps,
// order them, run them under the selected strategy, then finalize and
// persist the package descriptor exactly once.
type Pipeline struct {
	registry       *Registry
	scheduler      *Scheduler
	state          *State
	publisher      StepPublisher
	strategy       Strategy
	maxConcurrency int
}

func NewPipeline(state *State, registry *Registry, pub StepPublisher, strategy Strategy, maxConcurrency int) *Pipeline {
	if pub == nil {
		pub = DefaultStepPublisher{}
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if state.Logger == nil {
		nop := zerolog.Nop()
		state.Logger = &nop
	}
	return &Pipeline{
		registry:       registry,
		scheduler:      NewScheduler(state.Logger),
		state:          state,
		publisher:      pub,
		strategy:       strategy,
		maxConcurrency: maxConcurrency,
	}
}

// Execute runs the pipeline to completion. Any step failure or the final
// descriptor save failure aborts the run; version resolution never does.
func (p *Pipeline) Execute(ctx context.Context) error {
	log := p.state.Logger
	log.Debug().Msg("Starting pipeline execution")

	if err := p.state.Descriptor.Load(p.state.ProjectName); err != nil {
		return fmt.Errorf("loading package descriptor: %w", err)
	}

	active := p.registry.ActiveSteps(p.state.Selections)
	log.Debug().Strs("steps", active).Msg("Resolved active steps")

	sorted, err := p.registry.SortByDependencies(active)
	if err != nil {
		return err
	}

	switch p.strategy {
	case PhasedParallel:
		err = p.runPhased(ctx, sorted)
	default:
		err = p.runSequential(ctx, sorted)
	}
	if err != nil {
		return err
	}

	p.finalizeVersions(ctx)

	if err := p.state.Descriptor.Save(); err != nil {
		return err
	}
	log.Debug().Msg("Pipeline execution completed")
	return nil
}

// runSequential executes steps one at a time in sorted order. A single
// failure aborts immediately.
func (p *Pipeline) runSequential(ctx context.Context, sorted []string) error {
	for _, name := range sorted {
		if err := p.runStep(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// runPhased partitions the sorted steps into tiers and runs the bootstrap
// tier sequentially, then the main and final tiers through the scheduler.
// Cross-tier dependencies are already satisfied by the phase boundary, so
// each tier's task graph only keeps dependencies within the tier.
func (p *Pipeline) runPhased(ctx context.Context, sorted []string) error {
	var bootstrap, main, final []string
	for _, name := range sorted {
		d, ok := p.registry.Descriptor(name)
		if !ok {
			// Unknown steps stay on the plan so their absence surfaces as
			// a step failure rather than silently shrinking the run.
			main = append(main, name)
			continue
		}
		switch d.Tier {
		case TierBootstrap:
			bootstrap = append(bootstrap, name)
		case TierFinal:
			final = append(final, name)
		default:
			main = append(main, name)
		}
	}

	if err := p.runSequential(ctx, bootstrap); err != nil {
		return err
	}
	for _, tier := range [][]string{main, final} {
		if len(tier) == 0 {
			continue
		}
		if err := p.scheduler.Run(ctx, p.tierTasks(tier), p.maxConcurrency); err != nil {
			return err
		}
	}
	return nil
}

// tierTasks wraps the tier's step names as scheduler tasks, restricting
// declared dependencies to names within the tier.
func (p *Pipeline) tierTasks(tier []string) []Task {
	inTier := make(map[string]bool, len(tier))
	for _, name := range tier {
		inTier[name] = true
	}

	tasks := make([]Task, 0, len(tier))
	for _, name := range tier {
		name := name
		var deps []string
		if d, ok := p.registry.Descriptor(name); ok {
			for _, dep := range d.DependsOn {
				if inTier[dep] {
					deps = append(deps, dep)
				}
			}
		}
		tasks = append(tasks, Task{
			Name:      name,
			DependsOn: deps,
			Run: func(ctx context.Context) error {
				return p.runStep(ctx, name)
			},
		})
	}
	return tasks
}

// runStep loads and executes a single step, publishing progress events. A
// step on the execution plan that cannot be loaded is that step's failure.
func (p *Pipeline) runStep(ctx context.Context, name string) error {
	log := p.state.Logger
	p.publisher.StepStarted(name)

	step := p.registry.Load(name)
	if step == nil {
		err := fmt.Errorf("%w: %q", ErrUnknownStep, name)
		log.Error().Str("step", name).Msg("Step not found")
		p.publisher.StepFailed(name, err)
		return err
	}

	startTime := time.Now()
	if err := step.Execute(ctx, p.state); err != nil {
		log.Error().Err(err).Str("step", name).Msg("Error executing step")
		p.publisher.StepFailed(name, err)
		return fmt.Errorf("step %s: %w", name, err)
	}
	log.Debug().Str("step", name).Dur("duration", time.Since(startTime)).Msg("Step completed")
	p.publisher.StepCompleted(name)
	return nil
}

// finalizeVersions swaps pinned ranges for live registry versions. Network
// degradation here is silent: the run still succeeds on fallbacks.
func (p *Pipeline) finalizeVersions(ctx context.Context) {
	if p.state.Resolver == nil {
		return
	}
	if aw, ok := p.state.Resolver.(prefetchAwaiter); ok {
		aw.AwaitPrefetch(ctx)
	}
	p.state.Descriptor.ResolveLatestVersions(ctx, p.state.Resolver, p.maxConcurrency)
}
