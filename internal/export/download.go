package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sourcegraph/conc/pool"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// job is one file to fetch into Path.
type job struct {
	// RemoteID identifies the item in the ledger.
	RemoteID string
	// Label names the item in logs and failures.
	Label string
	Path  string
	// Size is the remote size, or zero when unknown.
	Size int64
	Save func(ctx context.Context, path string) (int64, error)
}

// fetchTo adapts a byte-returning download into a job's Save.
func fetchTo(fetch func(ctx context.Context) ([]byte, error)) func(context.Context, string) (int64, error) {
	return func(ctx context.Context, path string) (int64, error) {
		data, err := fetch(ctx)
		if err != nil {
			return 0, err
		}
		if err := fsutil.WriteFile(path, data); err != nil {
			return 0, err
		}
		return int64(len(data)), nil
	}
}

// runJobs downloads every job with at most o.Workers in flight. A failed
// job is logged, recorded and skipped; it never cancels its siblings.
// Paths must be distinct.
func (o Options) runJobs(ctx context.Context, project string, domain model.Domain, jobs []job, res *Result) {
	if len(jobs) == 0 {
		return
	}
	p := pool.New().WithMaxGoroutines(o.Workers)
	for _, j := range jobs {
		p.Go(func() {
			o.runJob(ctx, project, domain, j, res)
		})
	}
	p.Wait()
}

func (o Options) runJob(ctx context.Context, project string, domain model.Domain, j job, res *Result) {
	rec := model.ItemRecord{
		Project:   project,
		Domain:    string(domain),
		RemoteID:  j.RemoteID,
		LocalPath: j.Path,
		Size:      j.Size,
	}

	unchanged, err := o.Ledger.Unchanged(project, string(domain), j.RemoteID, j.Path, j.Size)
	if err != nil {
		o.Logger.Warn("manifest lookup failed", "item", j.Label, "err", err)
	}
	if unchanged {
		o.Logger.Debug("unchanged, skipping", "item", j.Label, "path", j.Path)
		res.addSkip()
		rec.Status = model.ItemSkipped
		o.record(rec)
		return
	}

	n, err := j.Save(ctx, j.Path)
	if err != nil {
		o.Logger.Warn("download failed", "item", j.Label, "err", err)
		res.fail(j.Label, err)
		rec.Status = model.ItemFailed
		rec.Error = err.Error()
		o.record(rec)
		return
	}

	o.Logger.Debug("downloaded", "item", j.Label, "path", j.Path, "bytes", n)
	res.addDownload(n)
	rec.Status = model.ItemOK
	if n > 0 {
		rec.Size = n
	}
	o.record(rec)
}

func (o Options) record(rec model.ItemRecord) {
	if err := o.Ledger.Record(rec); err != nil {
		o.Logger.Warn("manifest write failed", "item", rec.RemoteID, "err", err)
	}
}

// attachmentJobs builds one job per attachment under dir. Display names are
// sanitised and made unique before any download starts; reserved names are
// entries of dir that the attachments must not replace.
func attachmentJobs(dir, owner string, atts []model.Attachment, fetch func(ctx context.Context, id int) ([]byte, error), reserved ...string) []job {
	named := make([]fsutil.Named, len(atts))
	for i, a := range atts {
		named[i] = fsutil.Named{ID: a.ID, Name: a.Name}
	}
	names := fsutil.UniqueNames(named, func(n fsutil.Named) string {
		return fmt.Sprintf("attachment_%d", n.ID)
	}, reserved...)

	jobs := make([]job, len(atts))
	for i, a := range atts {
		id := a.ID
		jobs[i] = job{
			RemoteID: fmt.Sprintf("%s/%d", owner, id),
			Label:    fmt.Sprintf("%s attachment %q", owner, a.Name),
			Path:     filepath.Join(dir, names[i]),
			Size:     a.Size,
			Save: fetchTo(func(ctx context.Context) ([]byte, error) {
				return fetch(ctx, id)
			}),
		}
	}
	return jobs
}
