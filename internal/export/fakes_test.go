package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

var errRemote = errors.New("remote failure")

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

// fakeAPI serves issues and wiki pages from memory.
type fakeAPI struct {
	mu sync.Mutex

	project  model.Project
	issues   []model.Issue
	details  map[string]model.Issue
	comments map[string][]model.Comment
	// files maps "<owner>/<attachment id>" to content; missing keys fail.
	files map[string][]byte

	pages     []model.WikiPage
	pageByID  map[int]model.WikiPage
	wikiAtts  map[int][]model.Attachment
	failPages map[int]bool

	getProjectCalls int
	downloads       []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		project:   model.Project{ID: 7, ProjectKey: "PRJ", Name: "Project"},
		details:   map[string]model.Issue{},
		comments:  map[string][]model.Comment{},
		files:     map[string][]byte{},
		pageByID:  map[int]model.WikiPage{},
		wikiAtts:  map[int][]model.Attachment{},
		failPages: map[int]bool{},
	}
}

func (f *fakeAPI) GetProject(_ context.Context, key string) (model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getProjectCalls++
	if key != f.project.ProjectKey {
		return model.Project{}, errRemote
	}
	return f.project, nil
}

func (f *fakeAPI) ListIssues(_ context.Context, projectID int) ([]model.Issue, error) {
	if projectID != f.project.ID {
		return nil, fmt.Errorf("unexpected project id %d", projectID)
	}
	return f.issues, nil
}

func (f *fakeAPI) GetIssue(_ context.Context, key string) (model.Issue, error) {
	is, ok := f.details[key]
	if !ok {
		return model.Issue{}, errRemote
	}
	return is, nil
}

func (f *fakeAPI) ListComments(_ context.Context, key string) ([]model.Comment, error) {
	return f.comments[key], nil
}

func (f *fakeAPI) fetch(owner string, id int) ([]byte, error) {
	key := fmt.Sprintf("%s/%d", owner, id)
	f.mu.Lock()
	f.downloads = append(f.downloads, key)
	f.mu.Unlock()
	data, ok := f.files[key]
	if !ok {
		return nil, errRemote
	}
	return data, nil
}

func (f *fakeAPI) DownloadIssueAttachment(_ context.Context, key string, id int) ([]byte, error) {
	return f.fetch(key, id)
}

func (f *fakeAPI) ListWikiPages(context.Context, string) ([]model.WikiPage, error) {
	return f.pages, nil
}

func (f *fakeAPI) GetWikiPage(_ context.Context, id int) (model.WikiPage, error) {
	if f.failPages[id] {
		return model.WikiPage{}, errRemote
	}
	return f.pageByID[id], nil
}

func (f *fakeAPI) ListWikiAttachments(_ context.Context, id int) ([]model.Attachment, error) {
	return f.wikiAtts[id], nil
}

func (f *fakeAPI) DownloadWikiAttachment(_ context.Context, wikiID, id int) ([]byte, error) {
	return f.fetch(fmt.Sprint(wikiID), id)
}

// memLedger is an in-memory Ledger.
type memLedger struct {
	mu      sync.Mutex
	records []model.ItemRecord
	skip    map[string]bool
}

func (l *memLedger) Unchanged(_, _, remoteID, _ string, _ int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.skip[remoteID], nil
}

func (l *memLedger) Record(item model.ItemRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, item)
	return nil
}

func (l *memLedger) statuses() map[string]model.ItemStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]model.ItemStatus{}
	for _, r := range l.records {
		out[r.RemoteID] = r.Status
	}
	return out
}

// snapshot returns every regular file under dir keyed by relative path.
func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
