// Package cmd is pbuild's cobra-based CLI entry point, following the
// teacher's cmd/kubexm/cmd/root.go structure: a root command with
// persistent flags, a PersistentPreRunE initialising the logger, and
// subcommands wired via AddCommand. Per spec.md §1/§6, the CLI surface is
// explicitly out of scope for algorithmic content — this package exists
// only to give the core packages a runnable presentation layer.
package cmd

import (
	figure "github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/mensylisir/pbuild/pkg/logger"
)

var (
	verbose     bool
	projectFile string
	storePath   string
)

var rootCmd = &cobra.Command{
	Use:   "pbuild",
	Short: "pbuild is an incremental C/C++ build engine",
	PersistentPreRunE: func(cmdr *cobra.Command, args []string) error {
		opts := logger.DefaultOptions()
		if verbose {
			opts.ConsoleLevel = logger.DebugLevel
		}
		logger.Init(opts)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&projectFile, "project-file", "pbuild.yaml", "path to the project configuration file")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "override the persistent store path from the project file")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(compileCommandsCmd)
	rootCmd.AddCommand(invalidateCmd)
}

// Execute runs the root command; banner() is printed first. go-figure sits
// in the teacher's go.mod as an indirect, never-imported dependency —
// banner() is the first thing in the corpus to actually call it.
func Execute() error {
	banner()
	return rootCmd.Execute()
}

func banner() {
	fig := figure.NewFigure("pbuild", "", true)
	fig.Print()
}
