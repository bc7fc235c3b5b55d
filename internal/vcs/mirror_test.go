package vcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []Command
	// results are keyed by the first argument (the subcommand).
	results map[string]Result
	errs    map[string]error
	hook    func(Command)
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	if f.hook != nil {
		f.hook(cmd)
	}
	sub := cmd.Args[0]
	return f.results[sub], f.errs[sub]
}

func envValue(env []string, key string) (string, bool) {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

func TestSyncGitClonesWhenAbsent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "PRJ", "git", "app.git")
	r := &fakeRunner{}
	m := NewMirror(r, Credentials{Username: "alice", Password: "s3cret"}, nil)

	out, err := m.SyncGit(context.Background(), "https://example.backlog.com/git/PRJ/app.git", dir)
	require.NoError(t, err)

	assert.Equal(t, ActionClone, out.Action)
	require.Len(t, r.calls, 1)
	call := r.calls[0]
	assert.Equal(t, "git", call.Name)
	assert.Equal(t, []string{"clone", "--mirror", "--", "https://example.backlog.com/git/PRJ/app.git", dir}, call.Args)
	assert.Equal(t, DefaultGitTimeout, call.Timeout)
	assert.DirExists(t, filepath.Dir(dir))

	for _, a := range call.Args {
		assert.NotContains(t, a, "s3cret")
	}
	v, ok := envValue(call.Env, "GIT_TERMINAL_PROMPT")
	assert.True(t, ok)
	assert.Equal(t, "0", v)
	v, _ = envValue(call.Env, envPassword)
	assert.Equal(t, "s3cret", v)
	v, _ = envValue(call.Env, "GIT_CONFIG_KEY_1")
	assert.Equal(t, "credential.helper", v)
}

func TestSyncGitUpdatesWhenPresent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app.git")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	r := &fakeRunner{}
	m := NewMirror(r, Credentials{}, nil)

	out, err := m.SyncGit(context.Background(), "https://example/app.git", dir)
	require.NoError(t, err)

	assert.Equal(t, ActionUpdate, out.Action)
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"remote", "update", "--prune"}, r.calls[0].Args)
	assert.Equal(t, dir, r.calls[0].Dir)
	_, hasHelper := envValue(r.calls[0].Env, "GIT_CONFIG_COUNT")
	assert.False(t, hasHelper, "no credential helper without credentials")
}

func TestSyncGitTimeoutLeavesPartialDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app.git")
	r := &fakeRunner{
		errs: map[string]error{"clone": &ProcessError{Command: "git clone", TimedOut: true}},
		hook: func(Command) { _ = os.MkdirAll(filepath.Join(dir, "objects"), 0o755) },
	}
	m := NewMirror(r, Credentials{}, nil)

	_, err := m.SyncGit(context.Background(), "https://example/app.git", dir)

	var got *ProcessError
	require.ErrorAs(t, err, &got)
	assert.True(t, got.TimedOut)
	assert.DirExists(t, filepath.Join(dir, "objects"))

	// The next run sees the directory and updates instead of cloning.
	r.errs = nil
	out, err := m.SyncGit(context.Background(), "https://example/app.git", dir)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, out.Action)
}

func TestSyncSVNCheckoutThenUpdate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "svn", "PRJ")
	info := `<?xml version="1.0"?><info><entry kind="dir" path="." revision="42"><url>https://example/svn/PRJ</url></entry></info>`
	r := &fakeRunner{results: map[string]Result{"info": {Stdout: []byte(info)}}}
	m := NewMirror(r, Credentials{Username: "bob", Password: "pw"}, nil)

	out, err := m.SyncSVN(context.Background(), "https://example/svn/PRJ", dir)
	require.NoError(t, err)
	assert.Equal(t, ActionClone, out.Action)
	assert.Equal(t, "42", out.Revision)

	require.Len(t, r.calls, 2)
	co := r.calls[0]
	assert.Equal(t, "checkout", co.Args[0])
	assert.Contains(t, co.Args, "--non-interactive")
	assert.Contains(t, co.Args, "--no-auth-cache")
	assert.Equal(t, DefaultSVNCheckoutTimeout, co.Timeout)
	assert.Equal(t, []string{"--", "https://example/svn/PRJ", dir}, co.Args[len(co.Args)-3:])
	assert.NotContains(t, co.String(), "pw")
	assert.Contains(t, co.String(), "--password ****")

	saved, err := os.ReadFile(dir + ".info.xml")
	require.NoError(t, err)
	assert.Equal(t, info, string(saved))

	// The fake never creates dir, so make it exist to trigger an update.
	require.NoError(t, os.MkdirAll(dir, 0o755))
	out, err = m.SyncSVN(context.Background(), "https://example/svn/PRJ", dir)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, out.Action)
	up := r.calls[2]
	assert.Equal(t, "update", up.Args[0])
	assert.Equal(t, dir, up.Dir)
	assert.Equal(t, DefaultSVNUpdateTimeout, up.Timeout)
}

func TestSyncSVNInfoFailureIsNotFatal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "PRJ")
	r := &fakeRunner{errs: map[string]error{"info": errors.New("no info")}}
	m := NewMirror(r, Credentials{}, nil)

	out, err := m.SyncSVN(context.Background(), "u", dir)
	require.NoError(t, err)
	assert.Empty(t, out.Revision)
	assert.NoFileExists(t, dir+".info.xml")
}

func TestParseSVNRevision(t *testing.T) {
	rev, err := parseSVNRevision([]byte(`<info><entry revision="7"></entry></info>`))
	require.NoError(t, err)
	assert.Equal(t, "7", rev)

	_, err = parseSVNRevision([]byte(`<info></info>`))
	assert.Error(t, err)
}
