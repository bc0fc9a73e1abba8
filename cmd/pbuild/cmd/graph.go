package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mensylisir/pbuild/pkg/buildgraph"
	"github.com/mensylisir/pbuild/pkg/cproject"
	"github.com/mensylisir/pbuild/pkg/step"
)

var graphOutput string

var graphCmd = &cobra.Command{
	Use:   "graph [source-dir]",
	Short: "emit a Graphviz DOT rendering of the build dependency graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmdr *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runGraph(dir)
	},
}

func init() {
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "", "write DOT to this path instead of stdout")
}

func runGraph(dir string) error {
	cfg, s, reg, err := openProject(dir)
	if err != nil {
		return err
	}
	defer s.Close()

	sources, err := discoverSources(dir)
	if err != nil {
		return err
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

	dot := buildgraph.WriteDOT(top, nil)
	if graphOutput == "" {
		fmt.Print(dot)
		return nil
	}
	return os.WriteFile(graphOutput, []byte(dot), 0o644)
}
