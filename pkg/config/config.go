// Package config loads pbuild's optional project file (pbuild.yaml),
// following the teacher's YAML-based configuration loading idiom
// (cmd/kubexm's cluster config, generalised here from a Kubernetes cluster
// spec to a C project spec).
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ProjectConfig is the schema of pbuild.yaml: include paths and extra
// compiler/linker flags layered on top of pkg/cproject's defaults.
type ProjectConfig struct {
	IncludePaths []string `yaml:"includePaths"`
	SystemRoots  []string `yaml:"systemRoots"`
	CompileFlags []string `yaml:"compileFlags"`
	LinkFlags    []string `yaml:"linkFlags"`
	StorePath    string   `yaml:"storePath"`
}

// DefaultStorePath is used when the project file omits storePath.
const DefaultStorePath = ".pbuild/pbuild.db"

// Load reads and parses a pbuild.yaml project file at path. A missing file
// is not an error: Load returns a zero-value ProjectConfig with
// DefaultStorePath filled in, so a bare `pbuild build` works with no
// configuration at all.
func Load(path string) (*ProjectConfig, error) {
	cfg := &ProjectConfig{StorePath: DefaultStorePath}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading project config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing project config %s", path)
	}
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath
	}
	return cfg, nil
}
