package buildgraph

import (
	"strconv"

	"github.com/tidwall/sjson"

	"github.com/mensylisir/pbuild/pkg/execstep"
	"github.com/mensylisir/pbuild/pkg/step"
)

// CommandEntry is one row of compile_commands.json.
type CommandEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
}

// GenerateCompileCommands walks the dependency tree of each of lastSteps
// and, for every execstep.Step with exactly one input file, emits a
// CommandEntry — the Go analogue of
// pysbs/misc/exec_step.py:generate_compile_commands.
func GenerateCompileCommands(lastSteps []step.Step, directory string) []CommandEntry {
	visited := map[string]bool{}
	var entries []CommandEntry

	var walk func(step.Step)
	walk = func(s step.Step) {
		id := s.StepID()
		if visited[id] {
			return
		}
		visited[id] = true

		if es, ok := s.(*execstep.Step); ok && len(es.InputFiles) == 1 {
			argv := make([]string, 0, len(es.Args)+1)
			argv = append(argv, es.Command)
			for _, a := range es.Args {
				argv = append(argv, a.Value)
			}
			entries = append(entries, CommandEntry{
				Directory: directory,
				File:      es.InputFiles[0],
				Arguments: argv,
			})
		}

		for _, dep := range s.Dependencies() {
			walk(dep)
		}
	}
	for _, s := range lastSteps {
		walk(s)
	}
	return entries
}

// MarshalCompileCommands renders entries as a compile_commands.json byte
// array, built incrementally via tidwall/sjson rather than encoding/json,
// matching how the rest of pbuild's domain stack favours the pack's
// gjson/sjson JSON tooling over ad hoc struct marshalling.
func MarshalCompileCommands(entries []CommandEntry) ([]byte, error) {
	doc := "[]"
	var err error
	for i, e := range entries {
		prefix := strconv.Itoa(i)
		doc, err = sjson.Set(doc, prefix+".directory", e.Directory)
		if err != nil {
			return nil, err
		}
		doc, err = sjson.Set(doc, prefix+".file", e.File)
		if err != nil {
			return nil, err
		}
		doc, err = sjson.Set(doc, prefix+".arguments", e.Arguments)
		if err != nil {
			return nil, err
		}
	}
	return []byte(doc), nil
}

