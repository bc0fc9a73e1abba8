package engine_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mensylisir/pbuild/pkg/engine"
	"github.com/mensylisir/pbuild/pkg/step"
	"github.com/mensylisir/pbuild/pkg/store"
)

// mockStep mirrors the teacher's mockEngineTestStep configurable-behaviour
// pattern (pkg/engine/executor_test.go in the teacher repo), adapted here
// to record execution order for stale-set ordering assertions.
type mockStep struct {
	step.Base
	id      string
	version string
	runFunc func() error
	order   *[]string
}

func newMockStep(id, version string, order *[]string) *mockStep {
	s := &mockStep{id: id, version: version, order: order}
	s.Init(s)
	return s
}

func (s *mockStep) StepID() string       { return s.id }
func (s *mockStep) InputVersion() string { return s.version }
func (s *mockStep) Run() error {
	if s.order != nil {
		*s.order = append(*s.order, s.id)
	}
	if s.runFunc != nil {
		return s.runFunc()
	}
	return nil
}

func newRegistry(t *testing.T) *step.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pbuild.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return step.NewRegistry(s.Root().Sub("steps"))
}

// TestScenario_HeaderChangePropagation models spec §8 scenario 1: a.c
// depends on a.h, which depends on b.h; touching b.h re-runs both header
// steps, the compile and the link, in order
// [dep(b.h), dep(a.h), compile(a.c), link].
func TestScenario_HeaderChangePropagation(t *testing.T) {
	reg := newRegistry(t)
	var order []string

	bHeader := reg.Intern("dep(b.h)", func() step.Step { return newMockStep("dep(b.h)", "v1", &order) })
	aHeader := reg.Intern("dep(a.h)", func() step.Step { return newMockStep("dep(a.h)", "v1", &order) })
	aHeader.AddDependency(bHeader)

	compile := reg.Intern("compile(a.c)", func() step.Step { return newMockStep("compile(a.c)", "v1", &order) })
	compile.AddDependency(aHeader)

	link := reg.Intern("link", func() step.Step { return newMockStep("link", "v1", &order) })
	link.AddDependency(compile)

	// First build: everything is stale (no persisted version yet).
	require.NoError(t, engine.Build(link, engine.Options{}))
	require.Equal(t, []string{"dep(b.h)", "dep(a.h)", "compile(a.c)", "link"}, order)

	// Second build, nothing changed: all up to date, zero runs.
	order = nil
	require.NoError(t, engine.Build(link, engine.Options{}))
	require.Empty(t, order)

	// Simulate touching b.h: bump its live input_version.
	order = nil
	bHeader.(*mockStep).version = "v2"
	require.NoError(t, engine.Build(link, engine.Options{}))
	require.Equal(t, []string{"dep(b.h)", "dep(a.h)", "compile(a.c)", "link"}, order)
}

// TestScenario_Dedup models spec §8 scenario 2: two steps sharing a common
// dependency produce it only once in to_update.
func TestScenario_Dedup(t *testing.T) {
	reg := newRegistry(t)
	var order []string

	common := reg.Intern("dep(common.h)", func() step.Step { return newMockStep("dep(common.h)", "v1", &order) })

	compileA := reg.Intern("compile(a.c)", func() step.Step { return newMockStep("compile(a.c)", "v1", &order) })
	compileA.AddDependency(common)
	compileB := reg.Intern("compile(b.c)", func() step.Step { return newMockStep("compile(b.c)", "v1", &order) })
	compileB.AddDependency(common)

	link := reg.Intern("link", func() step.Step { return newMockStep("link", "v1", &order) })
	link.AddDependency(compileA)
	link.AddDependency(compileB)

	toUpdate := engine.StaleSet(link)
	seen := map[string]int{}
	for _, s := range toUpdate {
		seen[s.StepID()]++
	}
	require.Equal(t, 1, seen["dep(common.h)"])
	require.Same(t, compileA.Dependencies()[0], compileB.Dependencies()[0])
}

// TestScenario_FailureReplay models spec §8 scenario 3: a step that fails
// once replays its stored message verbatim on the next build without
// re-running, until its input changes.
func TestScenario_FailureReplay(t *testing.T) {
	reg := newRegistry(t)
	var order []string

	boom := reg.Intern("boom", func() step.Step {
		s := newMockStep("boom", "v1", &order)
		s.runFunc = func() error { return errors.New("boom") }
		return s
	})

	err := engine.Build(boom, engine.Options{})
	var buildErr *engine.BuildError
	require.ErrorAs(t, err, &buildErr)
	require.Equal(t, []string{"boom"}, order)

	order = nil
	err = engine.Build(boom, engine.Options{})
	var replay *engine.PreviouslyFailedError
	require.ErrorAs(t, err, &replay)
	require.Contains(t, replay.Message, "boom")
	require.Empty(t, order, "a previously-failed step must not be re-run")

	// Changing the input clears the replay and allows a fresh run.
	order = nil
	m := boom.(*mockStep)
	m.version = "v2"
	m.runFunc = nil
	require.NoError(t, engine.Build(boom, engine.Options{}))
	require.Equal(t, []string{"boom"}, order)
}

func TestEmptyToUpdate_AllUpToDate(t *testing.T) {
	reg := newRegistry(t)
	s := reg.Intern("solo", func() step.Step { return newMockStep("solo", "v1", nil) })
	require.NoError(t, engine.Build(s, engine.Options{}))
	require.NoError(t, engine.Build(s, engine.Options{})) // second run: all up to date
}
