// Package engine implements the Build Engine: stale-set computation via a
// post-order DAG walk and strictly serial execution with failure-replay
// semantics (spec.md §4.5, §5, §7).
package engine

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/mensylisir/pbuild/pkg/logger"
	"github.com/mensylisir/pbuild/pkg/step"
)

// Options configures a single Build invocation.
type Options struct {
	// ShowProgress enables the schollz/progressbar rendering of to_update,
	// the Go analogue of the Python original's alive_bar. Disable in tests.
	ShowProgress bool
}

// stale computes the stale set: a post-order walk from terminal,
// maintaining updateIDs and appending to toUpdate in post-order, exactly
// per spec §4.5 Phase 1.
func stale(terminal step.Step, updateIDs map[string]bool, toUpdate *[]step.Step) bool {
	anyDepsChanged := false
	for _, dep := range terminal.Dependencies() {
		if stale(dep, updateIDs, toUpdate) {
			anyDepsChanged = true
		}
	}

	isStale := (anyDepsChanged ||
		terminal.InputVersion() != terminal.LastTimeInputVersion() ||
		terminal.DidFailLastTime()) &&
		!updateIDs[terminal.StepID()]

	if isStale {
		*toUpdate = append(*toUpdate, terminal)
		updateIDs[terminal.StepID()] = true
	}
	return isStale
}

// StaleSet returns the ordered set of Steps that must be (re-)run to bring
// terminal up to date, per spec §4.5 Phase 1. Exported so callers
// (e.g. tests) can inspect planned work without executing it.
func StaleSet(terminal step.Step) []step.Step {
	updateIDs := map[string]bool{}
	var toUpdate []step.Step
	stale(terminal, updateIDs, &toUpdate)
	return toUpdate
}

// Build runs Phase 1 (stale-set computation) then Phase 2 (sequenced
// execution with failure propagation) against terminal, per spec §4.5.
func Build(terminal step.Step, opts Options) error {
	runID := uuid.NewString()
	toUpdate := StaleSet(terminal)

	if len(toUpdate) == 0 {
		logger.Success("[%s] All up to date", runID)
		return nil
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress {
		bar = progressbar.NewOptions(len(toUpdate),
			progressbar.OptionSetDescription("building"),
			progressbar.OptionShowCount(),
		)
	}

	ran := map[string]bool{}
	for _, s := range toUpdate {
		name := describe(s)
		stepLog := logger.Get().With("run_id", runID, "step_name", name)
		printHeader(name)
		if bar != nil {
			_ = bar.Describe(name)
		}

		depRan := false
		for _, dep := range s.Dependencies() {
			if ran[dep.StepID()] {
				depRan = true
			}
		}
		if s.DidFailLastTime() && !depRan && s.InputVersion() == s.LastTimeInputVersion() {
			msg := s.LastTimeFailMessage()
			stepLog.Errorf("%s", msg)
			return &PreviouslyFailedError{StepID: s.StepID(), Message: msg}
		}

		if err := s.BumpVersion(s.InputVersion()); err != nil {
			return &BuildError{StepID: s.StepID(), Cause: err}
		}
		if err := s.ResetError(); err != nil {
			return &BuildError{StepID: s.StepID(), Cause: err}
		}

		runErr := s.Run()
		if runErr != nil {
			s.Print("%v", runErr)
			stepLog.Errorf("step failed: %v", runErr)
			if err := s.Fail(); err != nil {
				return &BuildError{StepID: s.StepID(), Cause: err}
			}
		}

		if s.IsFailed() {
			return &BuildError{StepID: s.StepID(), Cause: runErr}
		}
		ran[s.StepID()] = true

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	logger.Success("[%s] Build finished, %d step(s) executed", runID, len(toUpdate))
	return nil
}

func describe(s step.Step) string {
	if n := s.Name(); n != "" {
		return n
	}
	return s.StepID()
}

var headerColor = color.New(color.FgCyan, color.Bold)

// printHeader is the Go analogue of pysbs/core/build.py's print_hader: a
// colored banner line printed before each step runs.
func printHeader(name string) {
	headerColor.Println(fmt.Sprintf("==> %s", name))
}
