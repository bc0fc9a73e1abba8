package invalidator_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mensylisir/pbuild/pkg/invalidator"
	"github.com/mensylisir/pbuild/pkg/store"
)

type fixedResolver map[string]string

func (r fixedResolver) Resolve(importPath string) (string, bool) {
	p, ok := r[importPath]
	return p, ok
}

func TestFindGoImports_IgnoresCommentsAndStrings(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "build.go")
	src := `package main

// "not/an/import" in a comment
import (
	"fmt"
	"os"
)

var s = "also/not/an/import"

func main() { fmt.Println(os.Args) }
`
	require.NoError(t, os.WriteFile(f, []byte(src), 0o644))

	imports, err := invalidator.FindGoImports(f)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"fmt", "os"}, imports)
}

func TestMakeDeptree_RecursesAndDedups(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "helper")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))

	helperFile := filepath.Join(pkgDir, "helper.go")
	require.NoError(t, os.WriteFile(helperFile, []byte("package helper\n"), 0o644))

	mainFile := filepath.Join(root, "build.go")
	require.NoError(t, os.WriteFile(mainFile, []byte(`package main

import (
	"example.com/proj/helper"
)
`), 0o644))

	resolver := fixedResolver{"example.com/proj/helper": pkgDir}
	tree, err := invalidator.MakeDeptree(mainFile, resolver)
	require.NoError(t, err)
	require.Len(t, tree.Deps, 1)
	require.Equal(t, helperFile, tree.Deps[0].Path)

	var order []string
	invalidator.WalkDeptree(tree, func(n *invalidator.DeptreeFile) { order = append(order, n.Path) })
	require.Equal(t, []string{helperFile, mainFile}, order)
}

func TestInvalidateIfNeeded_DropsStepsOnChange(t *testing.T) {
	root := t.TempDir()
	scriptPath := filepath.Join(root, "build.go")
	require.NoError(t, os.WriteFile(scriptPath, []byte("package main\n"), 0o644))

	dbPath := filepath.Join(root, "pbuild.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	stepsNS := s.Root().Sub("steps")
	require.NoError(t, stepsNS.Sub("x").SetString("last_time_input_version", "1"))

	changed, err := invalidator.InvalidateIfNeeded(s.Root(), scriptPath, fixedResolver{})
	require.NoError(t, err)
	require.True(t, changed, "first run has no stored mtimes, so it always invalidates")

	_, ok := stepsNS.Sub("x").Get("last_time_input_version")
	require.False(t, ok, "steps namespace must be dropped wholesale")

	// Second run, nothing changed: no further invalidation.
	changed, err = invalidator.InvalidateIfNeeded(s.Root(), scriptPath, fixedResolver{})
	require.NoError(t, err)
	require.False(t, changed)

	// Touch the script: invalidation must fire again.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(scriptPath, future, future))
	changed, err = invalidator.InvalidateIfNeeded(s.Root(), scriptPath, fixedResolver{})
	require.NoError(t, err)
	require.True(t, changed)
}
