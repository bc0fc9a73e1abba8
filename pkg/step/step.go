// Package step implements the Step abstraction and the process-wide Step
// Registry: identity-based deduplication by step_id, persisted version and
// failure bookkeeping in the Persistent Namespace Store, and the transient
// captured-output buffer used for failure replay (spec.md §3, §4.1).
package step

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mensylisir/pbuild/pkg/logger"
	"github.com/mensylisir/pbuild/pkg/store"
)

// InputVersionNotExistent is the sentinel last_time_input_version value for
// a Step that has never successfully completed a run, matching pysbs's
// INPUT_VERSION_NOT_EXISTENT = ''.
const InputVersionNotExistent = ""

// Step is the interface the Engine, Registry, and user build scripts speak
// to. Concrete variants (ExecStep, CDependencyStep, user-defined steps)
// embed Base for the bookkeeping methods and implement StepID,
// InputVersion, and Run themselves.
type Step interface {
	// StepID returns the stable string identity of this step. Two Steps
	// with equal StepID are the same object (see Registry.Intern).
	StepID() string
	// InputVersion returns a freshly computed token of the step's live
	// inputs (typically serialised mtimes).
	InputVersion() string
	// Run performs the step's action. A non-nil return is recorded via
	// Fail by the Engine; a Run may also call Fail itself and return nil
	// (the exec step does so on a non-zero exit code).
	Run() error

	Name() string
	SetName(name string)
	Dependencies() []Step
	AddDependency(dep Step)

	Namespace() *store.Namespace
	BindNamespace(ns *store.Namespace)

	LastTimeInputVersion() string
	DidFailLastTime() bool
	LastTimeFailMessage() string
	BumpVersion(inputVersion string) error
	ResetError() error
	Fail() error
	IsFailed() bool

	Print(format string, args ...interface{})
	CapturedOutput() string
}

// NameHook is invoked whenever SetName changes a step's name, mirroring
// pysbs's BuildStep._name_hook. The Engine does not install one; it labels
// its progress bar from Name directly.
type NameHook func(step Step, name string)

// Base provides the shared bookkeeping every concrete Step variant needs.
// It does not itself implement StepID/InputVersion/Run: embedding types
// must define those three and will shadow Base's promoted methods with
// their own where applicable.
type Base struct {
	mu sync.Mutex

	name     string
	nameHook NameHook
	self     Step

	deps []Step
	ns   *store.Namespace

	captured strings.Builder
	failed   bool
}

// Init must be called once by a concrete Step's constructor, passing the
// outer Step value so name hooks observe the right identity.
func (b *Base) Init(self Step) {
	b.self = self
}

func (b *Base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

func (b *Base) SetName(name string) {
	b.mu.Lock()
	b.name = name
	hook := b.nameHook
	self := b.self
	b.mu.Unlock()
	if hook != nil {
		hook(self, name)
	}
}

// SetNameHook registers the callback invoked on every SetName.
func (b *Base) SetNameHook(hook NameHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nameHook = hook
}

func (b *Base) Dependencies() []Step {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Step, len(b.deps))
	copy(out, b.deps)
	return out
}

// AddDependency appends dep to the dependency list; insertion order is the
// execution tie-break order (spec §3).
func (b *Base) AddDependency(dep Step) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deps = append(b.deps, dep)
}

func (b *Base) Namespace() *store.Namespace {
	return b.ns
}

func (b *Base) BindNamespace(ns *store.Namespace) {
	b.ns = ns
}

func (b *Base) LastTimeInputVersion() string {
	if b.ns == nil {
		return InputVersionNotExistent
	}
	return b.ns.GetString("last_time_input_version", InputVersionNotExistent)
}

func (b *Base) DidFailLastTime() bool {
	if b.ns == nil {
		return false
	}
	return b.ns.GetBool("has_failed", false)
}

func (b *Base) LastTimeFailMessage() string {
	if b.ns == nil {
		return ""
	}
	return b.ns.GetString("fail_message", "")
}

// BumpVersion persists the current input_version as last_time_input_version.
// Called by the Engine before invoking Run (spec §4.5).
func (b *Base) BumpVersion(inputVersion string) error {
	if b.ns == nil {
		return nil
	}
	return b.ns.SetString("last_time_input_version", inputVersion)
}

// ResetError clears has_failed/fail_message and the transient failed flag.
// Called by the Engine before invoking Run, giving idempotent failure
// semantics (spec §4.5).
func (b *Base) ResetError() error {
	b.mu.Lock()
	b.failed = false
	b.mu.Unlock()
	if b.ns == nil {
		return nil
	}
	if err := b.ns.SetBool("has_failed", false); err != nil {
		return err
	}
	return b.ns.SetString("fail_message", "")
}

// Fail persists has_failed=true and fail_message=captured output so far,
// and sets the transient failed flag observed by the Engine after Run
// returns.
func (b *Base) Fail() error {
	b.mu.Lock()
	b.failed = true
	msg := b.captured.String()
	b.mu.Unlock()
	if b.ns == nil {
		return nil
	}
	if err := b.ns.SetBool("has_failed", true); err != nil {
		return err
	}
	return b.ns.SetString("fail_message", msg)
}

func (b *Base) IsFailed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// Print writes a formatted line to the step's transient captured-output
// buffer (consulted on Fail/replay) and to the structured logger.
func (b *Base) Print(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	b.mu.Lock()
	b.captured.WriteString(line)
	b.captured.WriteByte('\n')
	b.mu.Unlock()
	logger.Info("%s", line)
}

func (b *Base) CapturedOutput() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captured.String()
}

// Registry is a process-wide mapping from step_id to Step (spec §3). At
// most one live Step exists per step_id per process.
type Registry struct {
	mu       sync.Mutex
	byID     map[string]Step
	stepsNS  *store.Namespace
}

// NewRegistry creates a registry rooted at stepsNS (conventionally
// store.Root().Sub("steps")); every interned step's namespace is
// stepsNS.Sub(stepID), per spec §4.2's "steps|<escaped step_id>" invariant.
func NewRegistry(stepsNS *store.Namespace) *Registry {
	return &Registry{byID: map[string]Step{}, stepsNS: stepsNS}
}

// Intern consults the registry for stepID: if present, build is not called
// and the stored instance is returned; otherwise build() makes the new
// instance, which is registered, has its persistent namespace bound, and is
// returned (spec §4.1).
func (r *Registry) Intern(stepID string, build func() Step) Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[stepID]; ok {
		return existing
	}
	s := build()
	if r.stepsNS != nil {
		s.BindNamespace(r.stepsNS.Sub(stepID))
	}
	r.byID[stepID] = s
	return s
}

// Lookup returns the interned step for stepID, if any.
func (r *Registry) Lookup(stepID string) (Step, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[stepID]
	return s, ok
}

// Len returns the number of currently-interned steps; mainly useful in tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
