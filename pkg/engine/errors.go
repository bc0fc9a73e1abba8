package engine

import "fmt"

// BuildError is returned by Build when a Step failed during this run: its
// Run returned an error, or its post-run failed flag was set (spec §7,
// "BuildFailed").
type BuildError struct {
	StepID string
	Cause  error
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("build failed at step %q: %v", e.StepID, e.Cause)
	}
	return fmt.Sprintf("build failed at step %q", e.StepID)
}

func (e *BuildError) Unwrap() error { return e.Cause }

// PreviouslyFailedError is returned by Build when a stale Step was already
// marked failed from a prior run and its input has not changed since: the
// Engine replays the stored fail message instead of re-running it
// (spec §7, "PreviouslyFailed").
type PreviouslyFailedError struct {
	StepID  string
	Message string
}

func (e *PreviouslyFailedError) Error() string {
	return fmt.Sprintf("step %q previously failed:\n%s", e.StepID, e.Message)
}
