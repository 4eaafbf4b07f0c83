package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedTasks(run func(name string) error, specs map[string][]string) []Task {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	tasks := make([]Task, 0, len(specs))
	for _, name := range names {
		name := name
		tasks = append(tasks, Task{
			Name:      name,
			DependsOn: specs[name],
			Run: func(ctx context.Context) error {
				return run(name)
			},
		})
	}
	return tasks
}

func TestScheduler_ChainRunsInOrder(t *testing.T) {
	for _, maxConcurrency := range []int{1, 4} {
		var mu sync.Mutex
		var order []string
		tasks := namedTasks(func(name string) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}, map[string][]string{
			"a": nil,
			"b": {"a"},
			"c": {"b"},
		})

		s := NewScheduler(nil)
		require.NoError(t, s.Run(context.Background(), tasks, maxConcurrency))
		assert.Equal(t, []string{"a", "b", "c"}, order, "maxConcurrency=%d", maxConcurrency)
	}
}

func TestScheduler_IndependentTasksRunConcurrently(t *testing.T) {
	started := make(chan string, 3)
	release := make(chan struct{})
	tasks := namedTasks(func(name string) error {
		started <- name
		<-release
		return nil
	}, map[string][]string{
		"a": nil,
		"b": nil,
		"c": nil,
	})

	s := NewScheduler(nil)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), tasks, 3)
	}()

	// All three must start without any completing first.
	for i := 0; i < 3; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 3 independent tasks started", i)
		}
	}
	close(release)
	require.NoError(t, <-done)
}

func TestScheduler_ConcurrencyLimitNeverExceeded(t *testing.T) {
	for _, limit := range []int{1, 2, 4} {
		var current, peak int64
		tasks := namedTasks(func(name string) error {
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		}, map[string][]string{
			"a": nil, "b": nil, "c": nil, "d": nil,
			"e": nil, "f": nil, "g": nil, "h": nil,
		})

		s := NewScheduler(nil)
		require.NoError(t, s.Run(context.Background(), tasks, limit))
		assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit), "limit=%d", limit)
	}
}

func TestScheduler_PoolBackfillsFreedSlots(t *testing.T) {
	// d depends on a; with a pool of 2 it must start as soon as a settles,
	// even while the slower b still occupies the other slot.
	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	tasks := []Task{
		{Name: "a", Run: func(ctx context.Context) error { record("a"); return nil }},
		{Name: "b", Run: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			record("b")
			return nil
		}},
		{Name: "d", DependsOn: []string{"a"}, Run: func(ctx context.Context) error { record("d"); return nil }},
	}

	s := NewScheduler(nil)
	require.NoError(t, s.Run(context.Background(), tasks, 2))
	assert.Equal(t, []string{"a", "d", "b"}, order)
}

func TestScheduler_FirstFailureAbortsRun(t *testing.T) {
	boom := errors.New("boom")
	var mu sync.Mutex
	ran := make(map[string]bool)

	tasks := []Task{
		{Name: "a", Run: func(ctx context.Context) error { return boom }},
		{Name: "b", Run: func(ctx context.Context) error {
			mu.Lock()
			ran["b"] = true
			mu.Unlock()
			return nil
		}},
		{Name: "c", Run: func(ctx context.Context) error {
			mu.Lock()
			ran["c"] = true
			mu.Unlock()
			return nil
		}},
	}

	s := NewScheduler(nil)
	err := s.Run(context.Background(), tasks, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a")
	// Nothing scheduled after the failing step may start once the failure
	// is detected.
	assert.Empty(t, ran)
}

func TestScheduler_CircularDependencyDetected(t *testing.T) {
	executed := false
	tasks := namedTasks(func(name string) error {
		executed = true
		return nil
	}, map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})

	s := NewScheduler(nil)
	err := s.Run(context.Background(), tasks, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular or unmet dependency")
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
	assert.False(t, executed, "no step in a cycle may execute")
}

func TestScheduler_UnmetExternalDependency(t *testing.T) {
	tasks := namedTasks(func(name string) error { return nil }, map[string][]string{
		"a": {"missing"},
	})

	s := NewScheduler(nil)
	err := s.Run(context.Background(), tasks, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
}

func TestScheduler_DuplicateTaskName(t *testing.T) {
	tasks := []Task{
		{Name: "a", Run: func(ctx context.Context) error { return nil }},
		{Name: "a", Run: func(ctx context.Context) error { return nil }},
	}
	s := NewScheduler(nil)
	assert.Error(t, s.Run(context.Background(), tasks, 1))
}

func TestGroupByLevel_PartitionsAllNames(t *testing.T) {
	tasks := namedTasks(func(name string) error { return nil }, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
		"e": nil,
	})

	groups, err := GroupByLevel(tasks)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	var all []string
	levelOf := make(map[string]int)
	for i, group := range groups {
		for _, name := range group {
			all = append(all, name)
			levelOf[name] = i
		}
	}
	sort.Strings(all)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, all)

	// Every step sits in a later level than all of its dependencies.
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			assert.Greater(t, levelOf[task.Name], levelOf[dep],
				"%s must be in a later level than %s", task.Name, dep)
		}
	}
}

func TestGroupByLevel_CycleIsFatal(t *testing.T) {
	tasks := namedTasks(func(name string) error { return nil }, map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})
	_, err := GroupByLevel(tasks)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)
}

func TestEstimateTimes(t *testing.T) {
	tasks := namedTasks(func(name string) error { return nil }, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": nil,
	})
	sequential, parallel, err := EstimateTimes(tasks, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, sequential)
	assert.Equal(t, 2*time.Second, parallel)
}
