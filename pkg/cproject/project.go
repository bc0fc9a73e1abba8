// Package cproject implements the C Include Resolver & Dependency Step
// (spec.md §4.4): CProject, CDependencyStep, and the compile/link Step
// builders on top of pkg/execstep, grounded in pysbs/c/project.py,
// pysbs/c/deps.py, and pysbs/c/compilation.py/linking.py.
package cproject

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mensylisir/pbuild/pkg/scanner"
	"github.com/mensylisir/pbuild/pkg/step"
)

// ExcludedZones is the C/C++ zone set used by the include scanner: block
// comments and line comments are ignored-by-parser (a directive may follow
// one on the same logical line); string literals are not, and have escape
// handling so an escaped quote does not terminate the zone early.
var ExcludedZones = []scanner.Zone{
	{Begin: "/*", End: "*/", IsIgnoredByParser: true},
	{Begin: "//", End: "\n", IsIgnoredByParser: true},
	{Begin: `"`, End: `"`, HasEscapes: true},
}

// IncludeRegexp matches `#include <...>` or `#include "..."`.
var IncludeRegexp = regexp.MustCompile(`#include ((?:<[^>]+>)|(?:"[^"]+"))`)

// Project is a CProject: a set of include search paths plus a notion of
// "system" roots outside of which dependency tracking does not recurse
// (spec §4.4 step 1).
type Project struct {
	IncludePaths []string
	SystemRoots  []string
}

// IsNotPartOfProject reports whether path lies under any configured
// system include root (spec §4.4 step 1).
func (p *Project) IsNotPartOfProject(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, root := range p.SystemRoots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			rootAbs = root
		}
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ResolveInclude resolves an include literal (still bracketed, e.g. `"x.h"`
// or `<x.h>`) relative to file, trying file's directory first and then
// each configured include path in order, per spec §4.4 step 3 / §8
// scenario 6.
func (p *Project) ResolveInclude(file, included string) (string, bool) {
	name := strings.Trim(included, `"<>`)
	candidates := append([]string{filepath.Dir(file)}, p.IncludePaths...)
	for _, dir := range candidates {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fileMTime(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(fi.ModTime().UnixNano(), 10), nil
}

// DependencyStep is CDependencyStep: a Step that performs no compilation
// itself, existing purely to force downstream re-evaluation when a header
// transitively changes (spec §4.4).
type DependencyStep struct {
	step.Base

	Project *Project
	Path    string
	reg     *step.Registry

	onResolveMiss func(file, include string)

	discoverOnce sync.Once
	discoverErr  error
}

// newDependencyStep constructs (without interning) a DependencyStep for
// path within project, tracked through reg so that recursively discovered
// headers are deduplicated via the Step Registry (spec §4.4 step 4). Use
// GetDependencyStep to construct-and-discover through the registry.
func newDependencyStep(project *Project, path string, reg *step.Registry) *DependencyStep {
	s := &DependencyStep{Project: project, Path: path, reg: reg}
	s.Init(s)
	return s
}

// GetDependencyStep interns the CDependencyStep for path and, the first
// time it is constructed, performs include discovery immediately (the Go
// analogue of pysbs/c/deps.py's __postinit__, which runs once per distinct
// step_id — see spec §4.1, §4.4). Re-requesting an already-interned path
// is a no-op beyond returning the shared instance; it never re-discovers.
func GetDependencyStep(project *Project, path string, reg *step.Registry) (*DependencyStep, error) {
	interned := reg.Intern("CDependencyStep { "+path+" }", func() step.Step {
		return newDependencyStep(project, path, reg)
	})
	ds := interned.(*DependencyStep)
	ds.discoverOnce.Do(ds.discover)
	return ds, ds.discoverErr
}

// OnResolveMiss installs a callback invoked for each #include that cannot
// be resolved (spec §7's ResolveMiss: logged, not fatal).
func (s *DependencyStep) OnResolveMiss(fn func(file, include string)) {
	s.onResolveMiss = fn
}

// StepID is `"CDependencyStep { " + path + " }"`, per spec §4.4.
func (s *DependencyStep) StepID() string {
	return "CDependencyStep { " + s.Path + " }"
}

// InputVersion is the file's mtime string, per spec §4.4.
func (s *DependencyStep) InputVersion() string {
	v, err := fileMTime(s.Path)
	if err != nil {
		return ""
	}
	return v
}

// Run is a no-op: a CDependencyStep performs no compilation. Its role is
// purely to force the Engine to re-evaluate downstream steps when a
// header transitively changes (spec §4.4); the dependency discovery that
// makes this possible happens once, at construction, in discover below.
func (s *DependencyStep) Run() error {
	return nil
}

// discover performs the one-time dependency discovery of spec §4.4 steps
// 1-4: a no-op under a system root, otherwise an (optionally cached)
// rescan followed by recursive, registry-deduped construction of one
// CDependencyStep per resolved in-project header.
func (s *DependencyStep) discover() {
	if s.Project.IsNotPartOfProject(s.Path) {
		return
	}

	includes, err := s.computeOrCachedIncludes()
	if err != nil {
		s.discoverErr = err
		return
	}

	for _, include := range includes {
		resolved, ok := s.Project.ResolveInclude(s.Path, include)
		if !ok {
			if s.onResolveMiss != nil {
				s.onResolveMiss(s.Path, include)
			}
			continue
		}
		if s.Project.IsNotPartOfProject(resolved) {
			continue
		}
		dep, err := GetDependencyStep(s.Project, resolved, s.reg)
		if err != nil {
			s.discoverErr = err
			return
		}
		s.AddDependency(dep)
	}
}

// computeOrCachedIncludes implements the include_cache_version memoisation
// of spec §4.4 step 2: if the file's current mtime equals the cached
// include_cache_version, the cached includes list is reused; otherwise the
// file is rescanned and both values are refreshed.
func (s *DependencyStep) computeOrCachedIncludes() ([]string, error) {
	ns := s.Namespace()
	current := s.InputVersion()

	if ns != nil {
		cachedVersion := ns.GetString("include_cache_version", "")
		if cachedVersion != "" && cachedVersion == current {
			if raw, ok := ns.Get("includes"); ok {
				return splitIncludes(string(raw)), nil
			}
		}
	}

	source, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	matches, err := scanner.Find(string(source), scanner.Options{Zones: ExcludedZones, HasNLEscapes: true}, IncludeRegexp)
	if err != nil {
		return nil, err
	}
	includes := make([]string, len(matches))
	for i, m := range matches {
		includes[i] = m.Groups[1]
	}

	if ns != nil {
		if err := ns.SetString("includes", joinIncludes(includes)); err != nil {
			return nil, err
		}
		if err := ns.SetString("include_cache_version", current); err != nil {
			return nil, err
		}
	}
	return includes, nil
}

// includes are cached as a newline-joined list; include literals never
// contain raw newlines (they terminate at the closing bracket on the same
// line), so no escaping is required here.
func joinIncludes(includes []string) string { return strings.Join(includes, "\n") }

func splitIncludes(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}
