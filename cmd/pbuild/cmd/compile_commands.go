package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mensylisir/pbuild/pkg/buildgraph"
	"github.com/mensylisir/pbuild/pkg/cproject"
	"github.com/mensylisir/pbuild/pkg/step"
)

var compileCommandsOutput string

var compileCommandsCmd = &cobra.Command{
	Use:   "compile-commands [source-dir]",
	Short: "emit a compile_commands.json for the project's compile steps",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmdr *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runCompileCommands(dir)
	},
}

func init() {
	compileCommandsCmd.Flags().StringVarP(&compileCommandsOutput, "output", "o", "compile_commands.json", "output path")
}

func runCompileCommands(dir string) error {
	cfg, s, reg, err := openProject(dir)
	if err != nil {
		return err
	}
	defer s.Close()

	sources, err := discoverSources(dir)
	if err != nil {
		return err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}

	proj := &cproject.Project{IncludePaths: cfg.IncludePaths, SystemRoots: cfg.SystemRoots}
	var top []step.Step
	for _, src := range sources {
		output := strings.TrimSuffix(src, ".c") + ".o"
		cs, err := cproject.NewCompilationStep(proj, reg, src, output, cfg.IncludePaths, cfg.CompileFlags)
		if err != nil {
			return err
		}
		top = append(top, cs)
	}

	entries := buildgraph.GenerateCompileCommands(top, absDir)
	data, err := buildgraph.MarshalCompileCommands(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(compileCommandsOutput, data, 0o644)
}
