package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mensylisir/pbuild/pkg/config"
	"github.com/mensylisir/pbuild/pkg/cproject"
	"github.com/mensylisir/pbuild/pkg/engine"
	"github.com/mensylisir/pbuild/pkg/step"
	"github.com/mensylisir/pbuild/pkg/store"
)

var (
	buildOutput  string
	buildSummary bool
)

var buildCmd = &cobra.Command{
	Use:   "build [source-dir]",
	Short: "compile and link every .c file under source-dir into an output binary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmdr *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runBuild(dir)
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "a.out", "linked binary output path")
	buildCmd.Flags().BoolVar(&buildSummary, "summary", false, "print a post-build step summary table")
}

func openProject(dir string) (*config.ProjectConfig, *store.Store, *step.Registry, error) {
	cfg, err := config.Load(filepath.Join(dir, projectFile))
	if err != nil {
		return nil, nil, nil, err
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil && !os.IsNotExist(err) {
		return nil, nil, nil, err
	}
	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, nil, err
	}
	reg := step.NewRegistry(s.Root().Sub("steps"))
	return cfg, s, reg, nil
}

func discoverSources(dir string) ([]string, error) {
	var sources []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".c") {
			sources = append(sources, path)
		}
		return nil
	})
	return sources, err
}

func runBuild(dir string) error {
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
	var objects []*cproject.CompilationStep
	for _, src := range sources {
		output := strings.TrimSuffix(src, ".c") + ".o"
		cs, err := cproject.NewCompilationStep(proj, reg, src, output, cfg.IncludePaths, cfg.CompileFlags)
		if err != nil {
			return err
		}
		objects = append(objects, cs)
	}
	if len(objects) == 0 {
		return fmt.Errorf("no .c sources found under %s", dir)
	}

	link := cproject.NewLinkingStep(reg, objects, buildOutput, cfg.LinkFlags)

	buildErr := engine.Build(link, engine.Options{ShowProgress: true})

	if buildSummary {
		printSummary(objects, link)
	}

	return buildErr
}

func printSummary(objects []*cproject.CompilationStep, link *cproject.LinkingStep) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Step", "Failed Last Run"})
	for _, o := range objects {
		table.Append([]string{o.Name(), fmt.Sprintf("%v", o.DidFailLastTime())})
	}
	table.Append([]string{link.Name(), fmt.Sprintf("%v", link.DidFailLastTime())})
	table.Render()
}
