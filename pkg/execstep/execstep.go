// Package execstep implements ExecStep, the concrete Step variant that
// wraps a subprocess invocation (spec.md §4.6). Identity and input version
// are derived from the command, argument vector, and declared input files;
// stdout/stderr are drained concurrently while the subprocess runs.
package execstep

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/mensylisir/pbuild/pkg/step"
)

// FormatterName selects how an ExecArgument is colorized when the run
// banner is printed, mirroring pysbs/misc/exec_step.py's FORMATTERS table.
type FormatterName int

const (
	FormatNormal FormatterName = iota
	FormatPath
	FormatCFlag
	FormatInclude
)

var formatters = map[FormatterName]*color.Color{
	FormatNormal:  color.New(color.Reset),
	FormatPath:    color.New(color.FgGreen),
	FormatCFlag:   color.New(color.FgYellow),
	FormatInclude: color.New(color.FgMagenta),
}

// BestLineWidth is the column at which the printed command wraps its
// argument list onto a new line, matching the Python original's
// BEST_LINE_WIDTH = 120.
const BestLineWidth = 120

// ExecArgument is one coloured, stringified argument of a subprocess
// invocation.
type ExecArgument struct {
	Value string
	Fmt   FormatterName
}

func (a ExecArgument) String() string { return a.Value }

func (a ExecArgument) colored() string {
	c, ok := formatters[a.Fmt]
	if !ok {
		c = formatters[FormatNormal]
	}
	return c.Sprint(a.Value)
}

// Step is a subprocess-backed Step. It embeds step.Base for bookkeeping;
// construct it via New and intern it through a Registry (see spec §4.1).
type Step struct {
	step.Base

	Command    string
	Args       []ExecArgument
	InputFiles []string

	mtime func(path string) (int64, error)
}

// New builds (but does not yet intern) an ExecStep. Callers normally go
// through a Registry.Intern call using StepID() as the key, mirroring
// CCompilationStep/CLinkingStep in pkg/cproject.
func New(command string, args []ExecArgument, inputFiles []string) *Step {
	s := &Step{Command: command, Args: args, InputFiles: inputFiles, mtime: fileMTime}
	s.Init(s)
	return s
}

// StepID is `"BuildExecStep " + json([command, args...])`, per spec §4.6.
func (s *Step) StepID() string {
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, s.Command)
	for _, a := range s.Args {
		parts = append(parts, a.Value)
	}
	encoded, _ := json.Marshal(parts)
	return "BuildExecStep " + string(encoded)
}

// InputVersion is the JSON-encoded list of input file mtimes, per spec §4.6.
func (s *Step) InputVersion() string {
	versions := make([]string, len(s.InputFiles))
	for i, f := range s.InputFiles {
		mt, err := s.mtime(f)
		if err != nil {
			versions[i] = ""
			continue
		}
		versions[i] = strconv.FormatInt(mt, 10)
	}
	encoded, _ := json.Marshal(versions)
	return string(encoded)
}

func fileMTime(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.ModTime().UnixNano(), nil
}

// printCommand prints the colorized, line-wrapped command banner, the Go
// analogue of ExecBuildStep._print_command.
func (s *Step) printCommand() {
	var b strings.Builder
	b.WriteString(color.New(color.FgCyan).Sprint("$ "))
	b.WriteString(s.Command)
	lineLen := len(s.Command) + 2
	for _, a := range s.Args {
		word := a.colored()
		if lineLen+len(a.Value)+1 > BestLineWidth {
			b.WriteString(" \\\n    ")
			lineLen = 4
		} else {
			b.WriteString(" ")
			lineLen += len(a.Value) + 1
		}
		b.WriteString(word)
	}
	s.Print("%s", b.String())
}

// Run spawns Command with Args, concurrently drains stdout/stderr into the
// captured-output buffer (and the process's own stdout), and calls Fail if
// the exit code is non-zero. Context-aware so callers can cancel a
// long-running subprocess (spec §5: suspension points are the subprocess
// spawn, stdout/stderr reads, and process exit).
func (s *Step) Run() error {
	return s.RunContext(context.Background())
}

// RunContext is the context-aware form of Run.
func (s *Step) RunContext(ctx context.Context) error {
	s.printCommand()

	argv := make([]string, len(s.Args))
	for i, a := range s.Args {
		argv[i] = a.Value
	}
	cmd := exec.CommandContext(ctx, s.Command, argv...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error { return s.drain(stdout) })
	g.Go(func() error { return s.drain(stderr) })

	drainErr := g.Wait()
	waitErr := cmd.Wait()
	if drainErr != nil {
		return drainErr
	}

	if waitErr != nil {
		s.Print("command exited with error: %v", waitErr)
		return s.Fail()
	}
	if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() != 0 {
		s.Print("command exited with code %d", cmd.ProcessState.ExitCode())
		return s.Fail()
	}
	return nil
}

// drain line-by-line forwards a pipe into the step's captured-output
// buffer, concurrently with its sibling stream, so that a chatty stderr
// cannot deadlock a full stdout pipe (spec §4.6, §5).
func (s *Step) drain(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.Print("%s", line)
		fmt.Println(line)
	}
	return scanner.Err()
}
