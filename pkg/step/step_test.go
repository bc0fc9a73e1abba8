package step_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mensylisir/pbuild/pkg/step"
	"github.com/mensylisir/pbuild/pkg/store"
)

// mockStep is the adapted form of the teacher's mockEngineTestStep pattern
// (pkg/engine/executor_test.go): a Step with configurable run behaviour and
// an execution-order recorder, used in this package's tests to assert
// spec §8's dedup invariants; pkg/engine's tests define their own copy.
type mockStep struct {
	step.Base
	id            string
	version       string
	runFunc       func() error
	executionLog  *[]string
}

func newMockStep(id, version string, log *[]string) *mockStep {
	s := &mockStep{id: id, version: version, executionLog: log}
	s.Init(s)
	return s
}

func (s *mockStep) StepID() string      { return s.id }
func (s *mockStep) InputVersion() string { return s.version }
func (s *mockStep) Run() error {
	if s.executionLog != nil {
		*s.executionLog = append(*s.executionLog, s.id)
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

func TestInternReturnsSameIdentityForSameStepID(t *testing.T) {
	reg := newRegistry(t)

	a := reg.Intern("dep { common.h }", func() step.Step {
		return newMockStep("dep { common.h }", "1", nil)
	})
	b := reg.Intern("dep { common.h }", func() step.Step {
		// a distinct instance, deliberately: must be discarded
		return newMockStep("dep { common.h }", "2", nil)
	})

	require.Same(t, a, b)
	require.Equal(t, "1", a.InputVersion()) // the first-built instance wins
	require.Equal(t, 1, reg.Len())
}

func TestDependenciesListSharedAcrossAliases(t *testing.T) {
	reg := newRegistry(t)
	dep := reg.Intern("dep", func() step.Step { return newMockStep("dep", "1", nil) })

	parentA := newMockStep("a", "1", nil)
	parentB := newMockStep("b", "1", nil)
	parentA.AddDependency(dep)
	parentB.AddDependency(dep)

	require.Same(t, parentA.Dependencies()[0], parentB.Dependencies()[0])
}

func TestBumpVersionPersistsLastTimeInputVersion(t *testing.T) {
	reg := newRegistry(t)
	s := reg.Intern("x", func() step.Step { return newMockStep("x", "42", nil) })

	require.Equal(t, step.InputVersionNotExistent, s.LastTimeInputVersion())
	require.NoError(t, s.BumpVersion(s.InputVersion()))
	require.Equal(t, "42", s.LastTimeInputVersion())
}

func TestFailThenResetErrorRoundtrip(t *testing.T) {
	reg := newRegistry(t)
	s := reg.Intern("y", func() step.Step { return newMockStep("y", "1", nil) })

	require.False(t, s.DidFailLastTime())
	s.Print("boom: %s", "trace")
	require.NoError(t, s.Fail())
	require.True(t, s.DidFailLastTime())
	require.Equal(t, "boom: trace\n", s.LastTimeFailMessage())

	require.NoError(t, s.ResetError())
	require.False(t, s.DidFailLastTime())
	require.Equal(t, "", s.LastTimeFailMessage())
}

func TestSetNameInvokesHook(t *testing.T) {
	reg := newRegistry(t)
	s := reg.Intern("z", func() step.Step { return newMockStep("z", "1", nil) }).(*mockStep)

	var seen string
	s.SetNameHook(func(st step.Step, name string) { seen = name })
	s.SetName("Compile x.c")
	require.Equal(t, "Compile x.c", seen)
	require.Equal(t, "Compile x.c", s.Name())
}
