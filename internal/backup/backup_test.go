package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/backlog-backup/internal/export"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
	"github.com/ALT-F4-LLC/backlog-backup/internal/storage"
)

var errBoom = errors.New("boom")

type fakeAPI struct {
	projects []model.Project
	listErr  error
	listArgs []any
}

func (a *fakeAPI) ListProjects(_ context.Context, all bool, archived *bool) ([]model.Project, error) {
	a.listArgs = []any{all, archived}
	return a.projects, a.listErr
}

func (a *fakeAPI) GetProject(_ context.Context, key string) (model.Project, error) {
	for _, p := range a.projects {
		if p.ProjectKey == key {
			return p, nil
		}
	}
	return model.Project{}, errBoom
}

// callLog records exporter invocations across all fakes of a test.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

type fakeExporter struct {
	domain model.Domain
	log    *callLog
	fail   map[string]error
	panic  bool
}

func (e *fakeExporter) Domain() model.Domain { return e.domain }

func (e *fakeExporter) Export(_ context.Context, p model.Project, dir string) (*export.Result, error) {
	e.log.add(p.ProjectKey + ":" + string(e.domain))
	if e.panic {
		panic("unexpected")
	}
	res := &export.Result{Domain: e.domain, Items: 2, Downloaded: 1, Bytes: 10}
	if err := e.fail[p.ProjectKey]; err != nil {
		return res, err
	}
	if err := os.WriteFile(filepath.Join(dir, string(e.domain)+".txt"), []byte("x"), 0o644); err != nil {
		return res, err
	}
	return res, nil
}

type fakeUploader struct {
	dirs []string
	err  error
}

func (u *fakeUploader) Upload(_ context.Context, key, dir string) (storage.Stats, error) {
	u.dirs = append(u.dirs, key+"="+dir)
	return storage.Stats{Objects: 3, Bytes: 30}, u.err
}

func exporters(log *callLog, domains ...model.Domain) []export.Exporter {
	out := make([]export.Exporter, len(domains))
	for i, d := range domains {
		out[i] = &fakeExporter{domain: d, log: log}
	}
	return out
}

func TestExportersRunInDomainOrder(t *testing.T) {
	log := &callLog{}
	api := &fakeAPI{projects: []model.Project{{ID: 1, ProjectKey: "PRJ", Name: "Project"}}}
	o := New(api, t.TempDir(), exporters(log, model.DomainSVN, model.DomainIssues, model.DomainGit, model.DomainWiki))

	assert.Equal(t, []model.Domain{model.DomainIssues, model.DomainWiki, model.DomainGit, model.DomainSVN}, o.Domains())

	targets, err := o.Resolve(context.Background(), Selection{Keys: []string{"PRJ"}})
	require.NoError(t, err)
	rep, err := o.Run(context.Background(), targets)
	require.NoError(t, err)

	assert.Equal(t, []string{"PRJ:issues", "PRJ:wiki", "PRJ:git", "PRJ:svn"}, log.calls)
	require.Len(t, rep.Projects, 1)
	assert.Equal(t, "Project", rep.Projects[0].Name)
	assert.Equal(t, model.RunOK, rep.Status())
	assert.Equal(t, 8, rep.Totals().Items)
	assert.FileExists(t, filepath.Join(rep.OutputDir, "PRJ", "wiki.txt"))
}

func TestExporterFailureDoesNotStopSiblings(t *testing.T) {
	log := &callLog{}
	api := &fakeAPI{projects: []model.Project{
		{ID: 1, ProjectKey: "ONE"},
		{ID: 2, ProjectKey: "TWO"},
	}}
	exps := []export.Exporter{
		&fakeExporter{domain: model.DomainIssues, log: log, fail: map[string]error{"ONE": errBoom}},
		&fakeExporter{domain: model.DomainWiki, log: log, panic: true},
		&fakeExporter{domain: model.DomainFiles, log: log},
	}
	o := New(api, t.TempDir(), exps)

	targets, err := o.Resolve(context.Background(), Selection{AllProjects: true})
	require.NoError(t, err)
	rep, err := o.Run(context.Background(), targets)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ONE:issues", "ONE:wiki", "ONE:files",
		"TWO:issues", "TWO:wiki", "TWO:files",
	}, log.calls)

	one := rep.Projects[0]
	assert.Equal(t, "boom", one.Domains[0].Error)
	assert.Equal(t, 2, one.Domains[0].Items)
	assert.Contains(t, one.Domains[1].Error, "panicked")
	assert.True(t, one.Domains[2].OK())
	assert.Equal(t, 2, one.Failures())
	assert.Equal(t, 1, rep.Projects[1].Failures())
	assert.Equal(t, model.RunPartial, rep.Status())
}

func TestUnknownProjectIsReported(t *testing.T) {
	log := &callLog{}
	api := &fakeAPI{projects: []model.Project{{ID: 1, ProjectKey: "PRJ"}}}
	o := New(api, t.TempDir(), exporters(log, model.DomainIssues))

	targets, err := o.Resolve(context.Background(), Selection{Keys: []string{"NOPE", "PRJ"}})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.ErrorIs(t, targets[0].Err, errBoom)

	rep, err := o.Run(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, []string{"PRJ:issues"}, log.calls)
	assert.Equal(t, "boom", rep.Projects[0].Error)
	assert.NoDirExists(t, filepath.Join(rep.OutputDir, "NOPE"))
	assert.Equal(t, model.RunPartial, rep.Status())
}

func TestAllProjectsFailedIsFailedRun(t *testing.T) {
	o := New(&fakeAPI{}, t.TempDir(), nil)
	targets, err := o.Resolve(context.Background(), Selection{Keys: []string{"A"}})
	require.NoError(t, err)
	rep, err := o.Run(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, rep.Status())
}

func TestResolve(t *testing.T) {
	archived := false
	api := &fakeAPI{}
	o := New(api, t.TempDir(), nil)

	_, err := o.Resolve(context.Background(), Selection{})
	assert.Error(t, err)

	_, err = o.Resolve(context.Background(), Selection{AllProjects: true, SpaceWide: true, Archived: &archived})
	require.NoError(t, err)
	assert.Equal(t, []any{true, &archived}, api.listArgs)

	api.listErr = errBoom
	_, err = o.Resolve(context.Background(), Selection{AllProjects: true})
	assert.ErrorIs(t, err, errBoom)
}

func TestUploadAfterProject(t *testing.T) {
	log := &callLog{}
	up := &fakeUploader{err: errBoom}
	out := t.TempDir()
	o := New(&fakeAPI{}, out, exporters(log, model.DomainIssues), WithUploader(up))

	rep, err := o.Run(context.Background(), []Target{{Project: model.Project{ID: 1, ProjectKey: "PRJ"}}})
	require.NoError(t, err)

	assert.Equal(t, []string{"PRJ=" + filepath.Join(out, "PRJ")}, up.dirs)
	require.NotNil(t, rep.Projects[0].Upload)
	assert.Equal(t, 3, rep.Projects[0].Upload.Objects)
	assert.Equal(t, "boom", rep.Projects[0].Upload.Error)
	assert.Equal(t, 1, rep.Failures())
}

func TestRunStopsWhenCancelled(t *testing.T) {
	log := &callLog{}
	o := New(&fakeAPI{}, t.TempDir(), exporters(log, model.DomainIssues))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := o.Run(ctx, []Target{{Project: model.Project{ID: 1, ProjectKey: "PRJ"}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rep.Projects)
	assert.Empty(t, log.calls)
}

func TestReportElapsedUsesClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	o := New(&fakeAPI{}, t.TempDir(), nil, WithClock(clock))
	rep, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, rep.Elapsed())
}
