package core

import (
	"errors"
	"fmt"
	"sync"
)

// Tier assigns a step to a coarse phase for the phased-parallel strategy.
type Tier int

const (
	// TierMain steps form the wide middle of the run and go through the
	// scheduler's pool. It is the zero value, so steps default here.
	TierMain Tier = iota
	// TierBootstrap steps run strictly sequentially before anything else.
	TierBootstrap
	// TierFinal steps depend on the middle tier and run last.
	TierFinal
)

var (
	// ErrCircularDependency indicates the declared step graph contains a
	// cycle and no valid order exists.
	ErrCircularDependency = errors.New("circular dependency")

	// ErrUnknownStep indicates a name with no registry entry.
	ErrUnknownStep = errors.New("unknown step")
)

// StepDescriptor is a static registry entry: a step name, a deferred factory
// for its implementation, the steps it must run after, and the predicate
// deciding whether it applies to a run at all.
type StepDescriptor struct {
	Name      string
	Loader    func() (Step, error)
	DependsOn []string
	Tier      Tier
	// IsActive decides whether the step applies to the given selections.
	// A nil predicate means always active.
	IsActive func(Selections) bool
}

// Registry is the step catalog. Entries are registered at process start and
// read-only thereafter; implementations are loaded lazily, at most once,
// and cached.
type Registry struct {
	mu      sync.Mutex
	entries map[string]StepDescriptor
	order   []string
	loaded  map[string]Step
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]StepDescriptor),
		loaded:  make(map[string]Step),
	}
}

// Register adds a step descriptor to the catalog.
func (r *Registry) Register(d StepDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Name == "" {
		return fmt.Errorf("step descriptor requires a name")
	}
	if d.Loader == nil {
		return fmt.Errorf("step %q requires a loader", d.Name)
	}
	if _, exists := r.entries[d.Name]; exists {
		return fmt.Errorf("step %q already registered", d.Name)
	}
	r.entries[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// ActiveSteps filters the catalog by each step's IsActive predicate and
// returns the active names in registration order.
func (r *Registry) ActiveSteps(sel Selections) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []string
	for _, name := range r.order {
		d := r.entries[name]
		if d.IsActive == nil || d.IsActive(sel) {
			active = append(active, name)
		}
	}
	return active
}

// Descriptor returns the registry entry for a step name.
func (r *Registry) Descriptor(name string) (StepDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.entries[name]
	return d, ok
}

// Load returns the executable step for a name, invoking its deferred loader
// on first use and caching the result. It returns nil, never an error, for
// an unknown name or a failed load; callers on a non-critical path log and
// continue, while the execution plan treats nil as that step's failure.
func (r *Registry) Load(name string) Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	if step, ok := r.loaded[name]; ok {
		return step
	}
	d, ok := r.entries[name]
	if !ok {
		return nil
	}
	step, err := d.Loader()
	if err != nil || step == nil {
		return nil
	}
	r.loaded[name] = step
	return step
}

// SortByDependencies returns the given step names in a dependency-respecting
// order using a depth-first topological sort restricted to the subset:
// dependencies on steps outside the subset are ignored. A cycle is fatal and
// names the offending step.
func (r *Registry) SortByDependencies(names []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inSet := make(map[string]bool, len(names))
	for _, n := range names {
		inSet[n] = true
	}

	var (
		sorted   []string
		done     = make(map[string]bool, len(names))
		visiting = make(map[string]bool, len(names))
		visit    func(string) error
	)
	visit = func(name string) error {
		if done[name] {
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("%w involving step %q", ErrCircularDependency, name)
		}
		visiting[name] = true
		if d, ok := r.entries[name]; ok {
			for _, dep := range d.DependsOn {
				if !inSet[dep] {
					continue
				}
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		visiting[name] = false
		done[name] = true
		sorted = append(sorted, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}
