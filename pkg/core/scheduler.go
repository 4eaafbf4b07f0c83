package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TaskState tracks one task instance within a run. Terminal states are
// sticky; a failed task's error becomes the run's failure cause.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is a named, dependency-annotated unit of work for the scheduler.
type Task struct {
	Name      string
	DependsOn []string
	Run       func(ctx context.Context) error
}

// Scheduler runs dependency-annotated tasks concurrently up to a pool
// limit. Rather than executing level by level behind barriers, it refills
// the pool the moment any running task settles, so uneven task durations
// never leave configured slots idle.
type Scheduler struct {
	log zerolog.Logger
}

func NewScheduler(log *zerolog.Logger) *Scheduler {
	l := zerolog.Nop()
	if log != nil {
		l = *log
	}
	return &Scheduler{log: l}
}

type taskResult struct {
	name string
	err  error
}

// Run executes tasks to completion or first unrecoverable failure. A task
// starts only after all of its declared dependencies have completed; at most
// maxConcurrency tasks run at once. The first failure aborts the run:
// tasks already running settle, but nothing new starts, and pending tasks
// whose dependencies can never complete surface as a dependency error.
func (s *Scheduler) Run(ctx context.Context, tasks []Task, maxConcurrency int) error {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	states := make(map[string]TaskState, len(tasks))
	for _, t := range tasks {
		if _, dup := states[t.Name]; dup {
			return fmt.Errorf("duplicate task name %q", t.Name)
		}
		states[t.Name] = TaskPending
	}

	completed := make(map[string]bool, len(tasks))
	results := make(chan taskResult)
	running := 0
	var failure error

	depsMet := func(t Task) bool {
		for _, dep := range t.DependsOn {
			if !completed[dep] {
				return false
			}
		}
		return true
	}

	for {
		// Fill: start every ready pending task while slots remain. After a
		// failure nothing new starts; tasks in flight settle on their own.
		if failure == nil {
			for _, t := range tasks {
				if running >= maxConcurrency {
					break
				}
				if states[t.Name] != TaskPending || !depsMet(t) {
					continue
				}
				states[t.Name] = TaskRunning
				running++
				s.log.Debug().Str("task", t.Name).Msg("Task started")
				go func(t Task) {
					results <- taskResult{name: t.Name, err: t.Run(ctx)}
				}(t)
			}
		}

		if running == 0 {
			if failure != nil {
				return failure
			}
			if stuck := pendingNames(tasks, states); len(stuck) > 0 {
				return fmt.Errorf("circular or unmet dependency, steps never became runnable: %s",
					strings.Join(stuck, ", "))
			}
			return nil
		}

		res := <-results
		running--
		if res.err != nil {
			states[res.name] = TaskFailed
			s.log.Error().Err(res.err).Str("task", res.name).Msg("Task failed")
			if failure == nil {
				failure = fmt.Errorf("step %s: %w", res.name, res.err)
			}
		} else {
			states[res.name] = TaskCompleted
			completed[res.name] = true
			s.log.Debug().Str("task", res.name).Msg("Task completed")
		}
	}
}

func pendingNames(tasks []Task, states map[string]TaskState) []string {
	var stuck []string
	for _, t := range tasks {
		if states[t.Name] == TaskPending {
			stuck = append(stuck, t.Name)
		}
	}
	return stuck
}

// GroupByLevel partitions tasks into dependency levels without executing
// anything: every task lands in a later level than all of its dependencies,
// and level 0 holds the tasks with none. Dependencies outside the given set
// are ignored, matching SortByDependencies. A set that cannot be fully
// leveled contains a cycle.
func GroupByLevel(tasks []Task) ([][]string, error) {
	inSet := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		inSet[t.Name] = true
	}

	level := make(map[string]int, len(tasks))
	assigned := 0
	for assigned < len(tasks) {
		progressed := false
		for _, t := range tasks {
			if _, ok := level[t.Name]; ok {
				continue
			}
			max := -1
			ready := true
			for _, dep := range t.DependsOn {
				if !inSet[dep] {
					continue
				}
				l, ok := level[dep]
				if !ok {
					ready = false
					break
				}
				if l > max {
					max = l
				}
			}
			if ready {
				level[t.Name] = max + 1
				assigned++
				progressed = true
			}
		}
		if !progressed {
			var stuck []string
			for _, t := range tasks {
				if _, ok := level[t.Name]; !ok {
					stuck = append(stuck, t.Name)
				}
			}
			sort.Strings(stuck)
			return nil, fmt.Errorf("%w among steps: %s", ErrCircularDependency, strings.Join(stuck, ", "))
		}
	}

	depth := 0
	for _, l := range level {
		if l+1 > depth {
			depth = l + 1
		}
	}
	groups := make([][]string, depth)
	for _, t := range tasks {
		groups[level[t.Name]] = append(groups[level[t.Name]], t.Name)
	}
	return groups, nil
}

// EstimateTimes approximates the sequential and parallel wall time for a
// task set given an average step duration: sequential is one slot per task,
// parallel is one slot per dependency level.
func EstimateTimes(tasks []Task, avgStep time.Duration) (sequential, parallel time.Duration, err error) {
	groups, err := GroupByLevel(tasks)
	if err != nil {
		return 0, 0, err
	}
	return time.Duration(len(tasks)) * avgStep, time.Duration(len(groups)) * avgStep, nil
}
