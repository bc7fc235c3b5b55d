// Package backup sequences the exporters over the selected projects.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/ALT-F4-LLC/backlog-backup/internal/export"
	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
	"github.com/ALT-F4-LLC/backlog-backup/internal/storage"
)

// ProjectAPI is the part of the Backlog client the orchestrator uses.
type ProjectAPI interface {
	ListProjects(ctx context.Context, all bool, archived *bool) ([]model.Project, error)
	GetProject(ctx context.Context, keyOrID string) (model.Project, error)
}

// Selection names the projects of a run: either explicit keys or every
// accessible project.
type Selection struct {
	Keys        []string
	AllProjects bool
	// SpaceWide includes every project of the space, not only the ones the
	// user has joined. It needs administrator rights.
	SpaceWide bool
	Archived  *bool
}

// Orchestrator runs a fixed, ordered set of exporters for each project.
type Orchestrator struct {
	api       ProjectAPI
	outputDir string
	exporters []export.Exporter
	uploader  storage.Uploader
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithUploader uploads each project tree after its exporters finished.
func WithUploader(u storage.Uploader) Option {
	return func(o *Orchestrator) { o.uploader = u }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an orchestrator writing below outputDir. Exporters always run
// in domain order (issues, wiki, files, git, svn) whatever order they are
// passed in.
func New(api ProjectAPI, outputDir string, exporters []export.Exporter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:       api,
		outputDir: outputDir,
		exporters: slices.Clone(exporters),
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	slices.SortStableFunc(o.exporters, func(a, b export.Exporter) int {
		return domainIndex(a.Domain()) - domainIndex(b.Domain())
	})
	return o
}

func domainIndex(d model.Domain) int {
	i := slices.Index(model.AllDomains, d)
	if i < 0 {
		return len(model.AllDomains)
	}
	return i
}

// Domains returns the domains that will be exported, in order.
func (o *Orchestrator) Domains() []model.Domain {
	out := make([]model.Domain, len(o.exporters))
	for i, e := range o.exporters {
		out[i] = e.Domain()
	}
	return out
}

// ListProjects returns the accessible projects. It has no side effects on the
// local filesystem.
func (o *Orchestrator) ListProjects(ctx context.Context, all bool, archived *bool) ([]model.Project, error) {
	projects, err := o.api.ListProjects(ctx, all, archived)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// Target is a project to back up. Err is set when an explicitly selected
// project could not be fetched; the run reports it and moves on.
type Target struct {
	Project model.Project
	Err     error
}

// Resolve turns a selection into targets. With AllProjects a failed listing
// is returned as an error.
func (o *Orchestrator) Resolve(ctx context.Context, sel Selection) ([]Target, error) {
	if sel.AllProjects {
		projects, err := o.ListProjects(ctx, sel.SpaceWide, sel.Archived)
		if err != nil {
			return nil, err
		}
		targets := make([]Target, len(projects))
		for i, p := range projects {
			targets[i] = Target{Project: p}
		}
		return targets, nil
	}
	if len(sel.Keys) == 0 {
		return nil, errors.New("no projects selected")
	}
	targets := make([]Target, 0, len(sel.Keys))
	for _, key := range sel.Keys {
		p, err := o.api.GetProject(ctx, key)
		if err != nil {
			o.logger.Error("could not resolve project", "project", key, "err", err)
			targets = append(targets, Target{Project: model.Project{ProjectKey: key}, Err: err})
			continue
		}
		targets = append(targets, Target{Project: p})
	}
	return targets, nil
}

// Run exports every project in turn. Exporter and project failures are
// logged and reported, never returned; Run only returns an error when ctx is
// done, together with the report of the work finished so far.
func (o *Orchestrator) Run(ctx context.Context, targets []Target) (*Report, error) {
	rep := &Report{
		OutputDir: o.outputDir,
		Domains:   o.Domains(),
		StartedAt: o.now(),
	}
	defer func() { rep.FinishedAt = o.now() }()

	if err := fsutil.EnsureDir(o.outputDir); err != nil {
		return rep, fmt.Errorf("creating output directory: %w", err)
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if t.Err != nil {
			rep.Projects = append(rep.Projects, ProjectReport{Key: t.Project.ProjectKey, Error: t.Err.Error()})
			continue
		}
		rep.Projects = append(rep.Projects, o.runProject(ctx, t.Project))
	}
	return rep, ctx.Err()
}

func (o *Orchestrator) runProject(ctx context.Context, p model.Project) ProjectReport {
	start := o.now()
	pr := ProjectReport{Key: p.ProjectKey, Name: p.Name}
	log := o.logger.With("project", p.ProjectKey)

	dir := filepath.Join(o.outputDir, fsutil.SanitizeFilename(p.ProjectKey))
	pr.Dir = dir
	if err := fsutil.EnsureDir(dir); err != nil {
		log.Error("could not create project directory", "dir", dir, "err", err)
		pr.Error = err.Error()
		pr.Elapsed = o.now().Sub(start)
		return pr
	}

	log.Info("starting project backup", "dir", dir)
	for _, e := range o.exporters {
		if ctx.Err() != nil {
			break
		}
		pr.Domains = append(pr.Domains, o.runExporter(ctx, log, e, p, dir))
	}

	if o.uploader != nil && ctx.Err() == nil {
		st, err := o.uploader.Upload(ctx, p.ProjectKey, dir)
		pr.Upload = &UploadReport{Objects: st.Objects, Bytes: st.Bytes}
		if err != nil {
			log.Error("upload failed", "err", err)
			pr.Upload.Error = err.Error()
		}
	}

	pr.Elapsed = o.now().Sub(start)
	log.Info("finished project backup", "elapsed", pr.Elapsed.Round(time.Millisecond), "failures", pr.Failures())
	return pr
}

func (o *Orchestrator) runExporter(ctx context.Context, log *slog.Logger, e export.Exporter, p model.Project, dir string) DomainReport {
	start := o.now()
	dr := DomainReport{Domain: e.Domain()}

	res, err := safeExport(ctx, e, p, dir)
	dr.Elapsed = o.now().Sub(start)
	if res != nil {
		dr.Items = res.Items
		dr.Downloaded = res.Downloaded
		dr.Skipped = res.Skipped
		dr.Bytes = res.Bytes
		dr.Failures = res.Failures
	}
	if err != nil {
		log.Error("exporter failed", "domain", e.Domain(), "err", err)
		dr.Error = err.Error()
	}
	return dr
}

// safeExport turns a panicking exporter into an error so sibling exporters
// still run.
func safeExport(ctx context.Context, e export.Exporter, p model.Project, dir string) (res *export.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s exporter panicked: %v", e.Domain(), r)
		}
	}()
	return e.Export(ctx, p, dir)
}
