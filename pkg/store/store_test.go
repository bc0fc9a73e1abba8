package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pbuild.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNamespaceGetSetRoundtrip(t *testing.T) {
	s := openTemp(t)
	ns := s.Root().Sub("steps").Sub("CDependencyStep { /a.h }")

	_, ok := ns.Get("last_time_input_version")
	require.False(t, ok)
	require.Equal(t, "", ns.GetString("last_time_input_version", ""))

	require.NoError(t, ns.SetString("last_time_input_version", "1690000000.0"))
	require.Equal(t, "1690000000.0", ns.GetString("last_time_input_version", ""))

	require.NoError(t, ns.SetBool("has_failed", true))
	require.True(t, ns.GetBool("has_failed", false))
}

func TestEscapeRuleOrdering(t *testing.T) {
	// backslash must be escaped first, then pipe, so a literal backslash
	// never gets misread as introducing the pipe-escape sequence.
	require.Equal(t, `a\\\|b`, esc(`a\|b`))
	require.Equal(t, `a\\b`, esc(`a\b`))
	require.Equal(t, `a\|b`, esc(`a|b`))
}

func TestNamespaceDropRemovesOnlyPrefixedKeys(t *testing.T) {
	s := openTemp(t)
	steps := s.Root().Sub("steps")
	a := steps.Sub("a")
	b := steps.Sub("b")
	other := s.Root().Sub("invalidator")

	require.NoError(t, a.SetString("last_time_input_version", "1"))
	require.NoError(t, b.SetString("last_time_input_version", "2"))
	require.NoError(t, other.SetString("/build.go", "3"))

	require.NoError(t, steps.Drop())

	_, ok := a.Get("last_time_input_version")
	require.False(t, ok)
	_, ok = b.Get("last_time_input_version")
	require.False(t, ok)
	v := other.GetString("/build.go", "")
	require.Equal(t, "3", v)
}

func TestDistinctNamespacesDoNotCollide(t *testing.T) {
	s := openTemp(t)
	a := s.Root().Sub("steps").Sub("x|y")
	b := s.Root().Sub("steps").Sub("x").Sub("y")

	require.NoError(t, a.SetString("k", "from-a"))
	require.NoError(t, b.SetString("k", "from-b"))

	require.Equal(t, "from-a", a.GetString("k", ""))
	require.Equal(t, "from-b", b.GetString("k", ""))
}
