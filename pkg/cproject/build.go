package cproject

import (
	"github.com/mensylisir/pbuild/pkg/execstep"
	"github.com/mensylisir/pbuild/pkg/step"
)

// DefaultCompiler/DefaultFlags mirror pysbs/c/compilation.py's hardcoded
// g++ + FLAGS default toolchain.
var (
	DefaultCompiler = "g++"
	DefaultFlags    = []string{"-Wall", "-Wextra"}
)

// CompilationStep builds a CCompilationStep: an ExecStep compiling one
// translation unit, depending on its CDependencyStep tree so header
// changes invalidate the object file (spec §4.4, §4.6).
type CompilationStep struct {
	*execstep.Step

	// Output is the object file this step writes.
	Output string
}

// NewCompilationStep interns (via reg) both the CDependencyStep for input
// and the compile step itself, wiring the former as a dependency of the
// latter, the way pysbs/c/compilation.py's CCompilationStep does.
func NewCompilationStep(project *Project, reg *step.Registry, input, output string, includePaths []string, extraFlags []string) (*CompilationStep, error) {
	args := []execstep.ExecArgument{{Value: input, Fmt: execstep.FormatPath}}
	args = append(args, execstep.ExecArgument{Value: "-o"}, execstep.ExecArgument{Value: output, Fmt: execstep.FormatPath})
	for _, inc := range includePaths {
		args = append(args, execstep.ExecArgument{Value: "-I" + inc, Fmt: execstep.FormatInclude})
	}
	args = append(args, execstep.ExecArgument{Value: "-c"})
	for _, f := range DefaultFlags {
		args = append(args, execstep.ExecArgument{Value: f, Fmt: execstep.FormatCFlag})
	}
	for _, f := range extraFlags {
		args = append(args, execstep.ExecArgument{Value: f, Fmt: execstep.FormatCFlag})
	}

	es := execstep.New(DefaultCompiler, args, []string{input})
	interned := reg.Intern(es.StepID(), func() step.Step { return es })
	cs := &CompilationStep{Step: interned.(*execstep.Step), Output: output}
	cs.SetName("Compile " + input)

	dep, err := GetDependencyStep(project, input, reg)
	if err != nil {
		return nil, err
	}
	cs.AddDependency(dep)
	return cs, nil
}

// LinkingStep builds a CLinkingStep: an ExecStep linking object files into
// an output binary (spec §4.4, §4.6).
type LinkingStep struct {
	*execstep.Step
}

// NewLinkingStep interns a link ExecStep depending on each of objectSteps.
func NewLinkingStep(reg *step.Registry, objectSteps []*CompilationStep, output string, extraFlags []string) *LinkingStep {
	var args []execstep.ExecArgument
	inputFiles := make([]string, 0, len(objectSteps))
	for _, o := range objectSteps {
		inputFiles = append(inputFiles, o.Output)
		args = append(args, execstep.ExecArgument{Value: o.Output, Fmt: execstep.FormatPath})
	}
	args = append(args, execstep.ExecArgument{Value: "-o"}, execstep.ExecArgument{Value: output, Fmt: execstep.FormatPath})
	for _, f := range DefaultFlags {
		args = append(args, execstep.ExecArgument{Value: f, Fmt: execstep.FormatCFlag})
	}
	for _, f := range extraFlags {
		args = append(args, execstep.ExecArgument{Value: f, Fmt: execstep.FormatCFlag})
	}

	es := execstep.New(DefaultCompiler, args, inputFiles)
	interned := reg.Intern(es.StepID(), func() step.Step { return es })
	ls := &LinkingStep{Step: interned.(*execstep.Step)}
	ls.SetName("Link " + output)

	for _, o := range objectSteps {
		ls.AddDependency(o)
	}
	return ls
}
