package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mensylisir/pbuild/pkg/invalidator"
	"github.com/mensylisir/pbuild/pkg/logger"
)

var invalidateModulePath string

var invalidateCmd = &cobra.Command{
	Use:   "invalidate [script]",
	Short: "check whether the build script (and its imports) changed since the last run, dropping the step cache if so",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmdr *cobra.Command, args []string) error {
		return runInvalidate(args[0])
	},
}

func init() {
	invalidateCmd.Flags().StringVar(&invalidateModulePath, "module-path", "", "Go module path the build script belongs to, for import resolution")
}

func runInvalidate(scriptPath string) error {
	_, s, _, err := openProject(".")
	if err != nil {
		return err
	}
	defer s.Close()

	resolver := invalidator.GoBuildResolver{ModulePath: invalidateModulePath, Root: "."}
	changed, err := invalidator.InvalidateIfNeeded(s.Root(), scriptPath, resolver)
	if err != nil {
		return err
	}
	if changed {
		logger.Warn("build script changed, step cache dropped")
	} else {
		logger.Info("build script unchanged")
	}
	return nil
}
