package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sourcegraph/conc/pool"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
	"github.com/ALT-F4-LLC/backlog-backup/internal/vcs"
)

// RepoAPI is the part of the Backlog client the repository exporters use.
type RepoAPI interface {
	ListRepositories(ctx context.Context, projectKey string, kind model.RepoKind) ([]model.Repository, error)
	RepositoryURL(projectKey string, kind model.RepoKind, repo model.Repository) string
}

// Syncer mirrors one repository into a local directory.
type Syncer interface {
	SyncGit(ctx context.Context, url, dir string) (vcs.Outcome, error)
	SyncSVN(ctx context.Context, url, dir string) (vcs.Outcome, error)
}

// RepoExporter mirrors every git or svn repository of a project under
// git/ or svn/. Repositories are synced in parallel and independently: a
// failed or timed out sync is recorded and its partial directory is kept.
type RepoExporter struct {
	kind   model.RepoKind
	api    RepoAPI
	syncer Syncer
	opts   Options
}

// NewGitExporter returns an exporter for the project's git repositories.
func NewGitExporter(api RepoAPI, syncer Syncer, opts Options) *RepoExporter {
	return &RepoExporter{kind: model.RepoGit, api: api, syncer: syncer, opts: opts.withDefaults()}
}

// NewSVNExporter returns an exporter for the project's svn repositories.
func NewSVNExporter(api RepoAPI, syncer Syncer, opts Options) *RepoExporter {
	return &RepoExporter{kind: model.RepoSVN, api: api, syncer: syncer, opts: opts.withDefaults()}
}

func (e *RepoExporter) Domain() model.Domain {
	if e.kind == model.RepoGit {
		return model.DomainGit
	}
	return model.DomainSVN
}

func (e *RepoExporter) Export(ctx context.Context, project model.Project, projectDir string) (*Result, error) {
	domain := e.Domain()
	res := newResult(domain)
	log := e.opts.Logger.With("project", project.ProjectKey, "domain", domain)
	dir := filepath.Join(projectDir, string(domain))
	if err := fsutil.EnsureDir(dir); err != nil {
		return res, err
	}

	repos, err := e.api.ListRepositories(ctx, project.ProjectKey, e.kind)
	if err != nil {
		return res, fmt.Errorf("listing %s repositories: %w", e.kind, err)
	}
	if len(repos) == 0 {
		log.Info("no repositories")
		return res, nil
	}
	log.Info("mirroring repositories", "count", len(repos))

	p := pool.New().WithMaxGoroutines(e.opts.Workers)
	for _, repo := range repos {
		p.Go(func() {
			e.syncOne(ctx, project.ProjectKey, dir, repo, res)
		})
	}
	p.Wait()
	return res, nil
}

func (e *RepoExporter) syncOne(ctx context.Context, projectKey, dir string, repo model.Repository, res *Result) {
	url := e.api.RepositoryURL(projectKey, e.kind, repo)
	target := filepath.Join(dir, repo.MirrorDirName(e.kind))
	log := e.opts.Logger.With("project", projectKey, "repository", repo.Name)

	var (
		out vcs.Outcome
		err error
	)
	if e.kind == model.RepoGit {
		out, err = e.syncer.SyncGit(ctx, url, target)
	} else {
		out, err = e.syncer.SyncSVN(ctx, url, target)
	}
	if err != nil {
		log.Error("repository sync failed", "dir", target, "err", err)
		res.fail(repo.Name, err)
		return
	}
	log.Info("repository synced", "action", out.Action, "dir", target)
	res.addItem()
}
