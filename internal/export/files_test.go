package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
	"github.com/ALT-F4-LLC/backlog-backup/internal/vcs"
)

// treeSource serves a fixed shared file tree.
type treeSource struct {
	mu      sync.Mutex
	dirs    map[string][]model.SharedFile
	content map[string]string
	listed  []string
}

func (s *treeSource) List(_ context.Context, _, dir string) ([]model.SharedFile, error) {
	s.mu.Lock()
	s.listed = append(s.listed, dir)
	s.mu.Unlock()
	entries, ok := s.dirs[dir]
	if !ok {
		return nil, errRemote
	}
	return entries, nil
}

func (s *treeSource) Download(_ context.Context, _ string, f model.SharedFile, local string) (int64, error) {
	body, ok := s.content[f.Path()]
	if !ok {
		return 0, errRemote
	}
	if err := os.WriteFile(local, []byte(body), 0o644); err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

func sampleTree() *treeSource {
	return &treeSource{
		dirs: map[string][]model.SharedFile{
			"/": {
				{ID: 1, Type: model.FileTypeDirectory, Dir: "/", Name: "docs"},
				{ID: 2, Type: model.FileTypeFile, Dir: "/", Name: "read:me.txt", Size: 5},
				{ID: 3, Type: model.FileTypeDirectory, Dir: "/", Name: "locked"},
			},
			"/docs": {
				{ID: 4, Type: model.FileTypeFile, Dir: "/docs/", Name: "a.txt", Size: 1},
				{ID: 5, Type: model.FileTypeFile, Dir: "/docs/", Name: "broken.txt", Size: 1},
				{ID: 6, Type: model.FileTypeDirectory, Dir: "/docs/", Name: "empty"},
			},
			"/docs/empty": {},
		},
		content: map[string]string{
			"/read:me.txt": "hello",
			"/docs/a.txt":  "A",
		},
	}
}

func TestFilesExport(t *testing.T) {
	src := sampleTree()
	out := t.TempDir()

	res, err := NewFilesExporter(src, Options{}).Export(context.Background(), model.Project{ProjectKey: "PRJ"}, out)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Items)
	assert.Equal(t, 2, res.Downloaded)
	assert.ElementsMatch(t, []string{"/", "/docs", "/docs/empty", "/locked"}, src.listed)

	failed := map[string]bool{}
	for _, f := range res.Failures {
		failed[f.Item] = true
	}
	assert.Equal(t, map[string]bool{"/docs/broken.txt": true, "/locked": true}, failed)

	root := filepath.Join(out, "files")
	data, err := os.ReadFile(filepath.Join(root, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	meta, err := os.ReadFile(filepath.Join(root, "readme.txt.meta.json"))
	require.NoError(t, err)
	var sf model.SharedFile
	require.NoError(t, json.Unmarshal(meta, &sf))
	assert.Equal(t, "read:me.txt", sf.Name)
	assert.Equal(t, int64(5), sf.Size)

	data, err = os.ReadFile(filepath.Join(root, "docs", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))
	assert.FileExists(t, filepath.Join(root, "docs", "a.txt.meta.json"))
	assert.DirExists(t, filepath.Join(root, "docs", "empty"))
	assert.NoFileExists(t, filepath.Join(root, "docs", "broken.txt"))
	assert.NoFileExists(t, filepath.Join(root, "docs", "broken.txt.meta.json"))
}

func TestFilesExportRootListingFailure(t *testing.T) {
	src := &treeSource{dirs: map[string][]model.SharedFile{}}
	_, err := NewFilesExporter(src, Options{}).Export(context.Background(), model.Project{ProjectKey: "PRJ"}, t.TempDir())
	assert.ErrorIs(t, err, errRemote)
}

func TestFilesExportStopsOnCycles(t *testing.T) {
	src := &treeSource{dirs: map[string][]model.SharedFile{
		"/":     {{Type: model.FileTypeDirectory, Name: "loop", RemotePath: "/loop"}},
		"/loop": {{Type: model.FileTypeDirectory, Name: "again", RemotePath: "/loop"}},
	}}
	_, err := NewFilesExporter(src, Options{}).Export(context.Background(), model.Project{ProjectKey: "PRJ"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/loop"}, src.listed)
}

type scriptedRunner struct {
	calls  []vcs.Command
	stdout []byte
	write  string
}

func (r *scriptedRunner) Run(_ context.Context, cmd vcs.Command) (vcs.Result, error) {
	r.calls = append(r.calls, cmd)
	if cmd.Args[0] == "download" {
		if err := os.WriteFile(cmd.Args[3], []byte(r.write), 0o644); err != nil {
			return vcs.Result{}, err
		}
	}
	return vcs.Result{Stdout: r.stdout}, nil
}

func TestCommandFileSource(t *testing.T) {
	r := &scriptedRunner{
		stdout: []byte(`[{"name":"a.txt","path":"/docs/a.txt","type":"file"},{"name":"sub","path":"/docs/sub","type":"directory"}]`),
		write:  "content",
	}
	src := CommandFileSource{Helper: "backlog-files", Runner: r}

	entries, err := src.List(context.Background(), "PRJ", "/docs")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/docs/a.txt", entries[0].Path())
	assert.True(t, entries[1].IsDir())
	assert.Equal(t, []string{"list", "PRJ", "/docs"}, r.calls[0].Args)
	assert.Equal(t, DefaultHelperTimeout, r.calls[0].Timeout)

	local := filepath.Join(t.TempDir(), "nested", "a.txt")
	n, err := src.Download(context.Background(), "PRJ", entries[0], local)
	require.NoError(t, err)
	assert.Equal(t, int64(len("content")), n)
	assert.Equal(t, []string{"download", "PRJ", "/docs/a.txt", local}, r.calls[1].Args)
}

func TestCommandFileSourceRejectsUnknownType(t *testing.T) {
	r := &scriptedRunner{stdout: []byte(`[{"name":"x","path":"/x","type":"symlink"}]`)}
	_, err := CommandFileSource{Helper: "h", Runner: r}.List(context.Background(), "PRJ", "/")
	assert.Error(t, err)
}

func TestThrottledFileSourceSpacesCalls(t *testing.T) {
	src := NewThrottledFileSource(sampleTree(), 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := src.List(context.Background(), "PRJ", "/")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestThrottledFileSourceHonoursCancellation(t *testing.T) {
	src := NewThrottledFileSource(sampleTree(), time.Hour)
	_, err := src.List(context.Background(), "PRJ", "/")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.List(ctx, "PRJ", "/")
	assert.Error(t, err)
}

func TestFilesExportKeepsSidecarsApartFromFiles(t *testing.T) {
	src := &treeSource{
		dirs: map[string][]model.SharedFile{
			"/": {
				{ID: 7, Type: model.FileTypeFile, Dir: "/", Name: "a.txt", Size: 1},
				{ID: 8, Type: model.FileTypeFile, Dir: "/", Name: "a.txt.meta.json", Size: 9},
			},
		},
		content: map[string]string{
			"/a.txt":           "A",
			"/a.txt.meta.json": "USERDATA!",
		},
	}
	out := t.TempDir()

	res, err := NewFilesExporter(src, Options{Workers: 2}).Export(context.Background(), model.Project{ProjectKey: "PRJ"}, out)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, res.Items)

	root := filepath.Join(out, "files")
	var meta model.SharedFile
	data, err := os.ReadFile(filepath.Join(root, "a.txt.meta.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, 7, meta.ID)

	user, err := os.ReadFile(filepath.Join(root, "a.txt.meta_8.json"))
	require.NoError(t, err)
	assert.Equal(t, "USERDATA!", string(user))
	assert.FileExists(t, filepath.Join(root, "a.txt.meta_8.json.meta.json"))
}
