// Package buildgraph implements the two collaborators spec.md §1/§9
// acknowledge but leave unspecified: a DOT/Graphviz exporter and a
// compile_commands.json emitter. Both are thin consumers of the public
// Step interface (dependencies, step_id) and add no algorithmic surface of
// their own, grounded in pysbs/misc/graphviz.py and
// pysbs/misc/exec_step.py:generate_compile_commands.
package buildgraph

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/mensylisir/pbuild/pkg/step"
)

// NodeLabel formats a node's display label; callers may override the
// default (step_id) the way pysbs's make_dot_graph accepts a fmt callable.
type NodeLabel func(step.Step) string

// DefaultNodeLabel uses the step's StepID, matching pysbs's default
// `fmt=lambda v: v.step_id`.
func DefaultNodeLabel(s step.Step) string { return s.StepID() }

// WriteDOT renders the dependency graph rooted at each of topSteps as a
// Graphviz `digraph build_tree { ... }`, one edge per dependency, node
// identity hashed by step_id the way pysbs's ghash() does.
func WriteDOT(topSteps []step.Step, label NodeLabel) string {
	if label == nil {
		label = DefaultNodeLabel
	}

	var b strings.Builder
	b.WriteString("digraph build_tree {\n")

	visited := map[string]bool{}
	var walk func(step.Step)
	walk = func(s step.Step) {
		id := s.StepID()
		if visited[id] {
			return
		}
		visited[id] = true
		fmt.Fprintf(&b, "  %s [label=%q];\n", nodeHash(id), label(s))
		for _, dep := range s.Dependencies() {
			fmt.Fprintf(&b, "  %s -> %s;\n", nodeHash(id), nodeHash(dep.StepID()))
			walk(dep)
		}
	}
	for _, s := range topSteps {
		walk(s)
	}

	b.WriteString("}\n")
	return b.String()
}

// nodeHash produces a Graphviz-safe node identifier from a step_id, the Go
// analogue of pysbs's ghash(v) = 'n_' + str(hash(v)).replace('-', 'm').
// Stdlib hash/fnv backs the hash itself (no example repo in the corpus
// vendors a non-cryptographic hash library; hash/fnv is the standard
// choice for this kind of identifier hashing even in library-heavy Go
// codebases), matching FNV-1a's well-known offset/prime so results are
// stable across runs.
func nodeHash(stepID string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(stepID))
	s := fmt.Sprintf("n_%d", h.Sum64())
	return strings.ReplaceAll(s, "-", "m")
}
