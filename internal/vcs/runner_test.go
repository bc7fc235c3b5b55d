package vcs

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	requireShell(t)
	res, err := ExecRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `echo out; echo err >&2; echo "$FOO"`},
		Env:  []string{"FOO=bar"},
	})
	require.NoError(t, err)
	assert.Equal(t, "out\nbar\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestExecRunnerExitCode(t *testing.T) {
	requireShell(t)
	_, err := ExecRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo fatal: nope >&2; exit 3"},
	})

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.ExitCode)
	assert.False(t, perr.TimedOut)
	assert.Contains(t, perr.Error(), "fatal: nope")
}

func TestExecRunnerKillsOnTimeout(t *testing.T) {
	requireShell(t)
	start := time.Now()
	_, err := ExecRunner{}.Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "sleep 10"},
		Timeout: 100 * time.Millisecond,
	})

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.TimedOut)
	assert.Less(t, time.Since(start), 8*time.Second)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, -1, perr.ExitCode)
}

func TestCommandStringMasksPassword(t *testing.T) {
	c := Command{Name: "svn", Args: []string{"checkout", "--username", "u", "--password", "hunter2", "url"}}
	assert.Equal(t, "svn checkout --username u --password **** url", c.String())
}
