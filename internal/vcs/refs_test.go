package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRefs(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README")
	require.NoError(t, err)
	hash, err := wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)

	refs, err := ReadRefs(dir)
	require.NoError(t, err)

	var head, branch *Ref
	for i := range refs {
		switch refs[i].Name {
		case "HEAD":
			head = &refs[i]
		case "refs/heads/master":
			branch = &refs[i]
		}
	}
	require.NotNil(t, head)
	require.NotNil(t, branch)
	assert.Equal(t, "refs/heads/master", head.Target)
	assert.Equal(t, hash.String(), branch.Hash)
}

func TestReadRefsNotARepository(t *testing.T) {
	_, err := ReadRefs(t.TempDir())
	assert.Error(t, err)
}
