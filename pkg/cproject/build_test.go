package cproject_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mensylisir/pbuild/pkg/cproject"
)

func TestCompilationStep_DependsOnItsIncludeTree(t *testing.T) {
	root := t.TempDir()
	reg := newRegistry(t)

	hdr := filepath.Join(root, "h.h")
	src := filepath.Join(root, "a.c")
	require.NoError(t, os.WriteFile(hdr, []byte("int h();\n"), 0o644))
	require.NoError(t, os.WriteFile(src, []byte(`#include "h.h"`+"\n"), 0o644))

	proj := &cproject.Project{}
	cs, err := cproject.NewCompilationStep(proj, reg, src, filepath.Join(root, "a.o"), nil, nil)
	require.NoError(t, err)

	require.Contains(t, cs.StepID(), "g++")
	deps := cs.Dependencies()
	require.Len(t, deps, 1)
	require.Equal(t, "CDependencyStep { "+src+" }", deps[0].StepID())
}

func TestLinkingStep_DependsOnCompilationSteps(t *testing.T) {
	root := t.TempDir()
	reg := newRegistry(t)

	a := filepath.Join(root, "a.c")
	b := filepath.Join(root, "b.c")
	require.NoError(t, os.WriteFile(a, []byte("int main(){return 0;}\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("int helper(){return 1;}\n"), 0o644))

	proj := &cproject.Project{}
	csA, err := cproject.NewCompilationStep(proj, reg, a, filepath.Join(root, "a.o"), nil, nil)
	require.NoError(t, err)
	csB, err := cproject.NewCompilationStep(proj, reg, b, filepath.Join(root, "b.o"), nil, nil)
	require.NoError(t, err)

	link := cproject.NewLinkingStep(reg, []*cproject.CompilationStep{csA, csB}, filepath.Join(root, "app"), nil)
	deps := link.Dependencies()
	require.Len(t, deps, 2)
	require.Same(t, csA, deps[0])
}
