package execstep

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStepID_EncodesCommandAndArgs(t *testing.T) {
	s := New("g++", []ExecArgument{{Value: "-c"}, {Value: "a.c", Fmt: FormatPath}}, nil)
	require.Equal(t, `BuildExecStep ["g++","-c","a.c"]`, s.StepID())
}

func TestInputVersion_ChangesWithMTime(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(f, []byte("int main(){}"), 0o644))

	s := New("true", nil, []string{f})
	v1 := s.InputVersion()

	// Simulate a later edit by advancing mtime.
	fi, err := os.Stat(f)
	require.NoError(t, err)
	newTime := fi.ModTime().Add(time.Hour)
	require.NoError(t, os.Chtimes(f, newTime, newTime))

	v2 := s.InputVersion()
	require.NotEqual(t, v1, v2)
}

func TestRunContext_SuccessfulCommand_NoFail(t *testing.T) {
	s := New("true", nil, nil)
	err := s.RunContext(context.Background())
	require.NoError(t, err)
	require.False(t, s.IsFailed())
}

func TestRunContext_NonZeroExit_SetsFailed(t *testing.T) {
	s := New("false", nil, nil)
	_ = s.RunContext(context.Background())
	require.True(t, s.IsFailed())
}

func TestRunContext_CapturesStdout(t *testing.T) {
	s := New("echo", []ExecArgument{{Value: "hello-pbuild"}}, nil)
	require.NoError(t, s.RunContext(context.Background()))
	require.Contains(t, s.CapturedOutput(), "hello-pbuild")
}
