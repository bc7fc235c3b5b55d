package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// IssueAPI is the part of the Backlog client the issues exporter uses.
type IssueAPI interface {
	GetProject(ctx context.Context, keyOrID string) (model.Project, error)
	ListIssues(ctx context.Context, projectID int) ([]model.Issue, error)
	GetIssue(ctx context.Context, issueKey string) (model.Issue, error)
	ListComments(ctx context.Context, issueKey string) ([]model.Comment, error)
	DownloadIssueAttachment(ctx context.Context, issueKey string, attachmentID int) ([]byte, error)
}

// IssuesExporter writes issues/issues.csv, one issues/<KEY>.json record per
// issue and the issue attachments under issues/attachments/<KEY>/.
type IssuesExporter struct {
	api  IssueAPI
	opts Options

	mu  sync.Mutex
	ids map[string]int
}

// NewIssuesExporter returns an exporter reading from api.
func NewIssuesExporter(api IssueAPI, opts Options) *IssuesExporter {
	return &IssuesExporter{api: api, opts: opts.withDefaults(), ids: make(map[string]int)}
}

func (e *IssuesExporter) Domain() model.Domain { return model.DomainIssues }

// issueRecord is the on-disk shape of one issue.
type issueRecord struct {
	Issue    json.RawMessage   `json:"issue"`
	Comments []json.RawMessage `json:"comments"`
}

func (e *IssuesExporter) Export(ctx context.Context, project model.Project, projectDir string) (*Result, error) {
	res := newResult(model.DomainIssues)
	log := e.opts.Logger.With("project", project.ProjectKey, "domain", model.DomainIssues)
	dir := filepath.Join(projectDir, string(model.DomainIssues))
	if err := fsutil.EnsureDir(dir); err != nil {
		return res, err
	}

	projectID, err := e.projectID(ctx, project)
	if err != nil {
		return res, fmt.Errorf("resolving project %s: %w", project.ProjectKey, err)
	}

	issues, err := e.api.ListIssues(ctx, projectID)
	if err != nil {
		return res, fmt.Errorf("listing issues: %w", err)
	}
	log.Info("exporting issues", "count", len(issues))

	if err := writeIssueIndex(filepath.Join(dir, "issues.csv"), issues); err != nil {
		return res, err
	}

	for _, summary := range issues {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.exportIssue(ctx, project.ProjectKey, dir, summary, res)
	}
	return res, nil
}

func (e *IssuesExporter) exportIssue(ctx context.Context, projectKey, dir string, summary model.Issue, res *Result) {
	key := summary.Key()
	log := e.opts.Logger.With("project", projectKey, "issue", key)

	issue, err := e.api.GetIssue(ctx, key)
	if err != nil {
		log.Warn("could not fetch issue", "err", err)
		res.fail(key, err)
		return
	}
	comments, err := e.api.ListComments(ctx, key)
	if err != nil {
		log.Warn("could not fetch comments", "err", err)
		res.fail(key, fmt.Errorf("comments: %w", err))
		return
	}

	rec := issueRecord{Issue: issue.Raw, Comments: make([]json.RawMessage, 0, len(comments))}
	if rec.Issue == nil {
		rec.Issue = summary.Raw
	}
	for _, c := range comments {
		rec.Comments = append(rec.Comments, c.Raw)
	}

	name := fsutil.SanitizeFilenameOr(key, fmt.Sprintf("ISSUE-%d", summary.ID))
	if err := fsutil.WriteJSON(filepath.Join(dir, name+".json"), rec); err != nil {
		log.Warn("could not write issue", "err", err)
		res.fail(key, err)
		return
	}
	res.addItem()

	if len(issue.Attachments) == 0 {
		return
	}
	attDir := filepath.Join(dir, "attachments", name)
	jobs := attachmentJobs(attDir, key, issue.Attachments, func(ctx context.Context, id int) ([]byte, error) {
		return e.api.DownloadIssueAttachment(ctx, key, id)
	})
	e.opts.runJobs(ctx, projectKey, model.DomainIssues, jobs, res)
}

// projectID resolves the numeric project id once per project key.
func (e *IssuesExporter) projectID(ctx context.Context, project model.Project) (int, error) {
	if project.ID != 0 {
		return project.ID, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.ids[project.ProjectKey]; ok {
		return id, nil
	}
	p, err := e.api.GetProject(ctx, project.ProjectKey)
	if err != nil {
		return 0, err
	}
	e.ids[project.ProjectKey] = p.ID
	return p.ID, nil
}

// writeIssueIndex writes the flattened issue list. An empty list still
// produces the header row.
func writeIssueIndex(path string, issues []model.Issue) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(model.SummaryColumns); err != nil {
		return fmt.Errorf("writing issue index header: %w", err)
	}
	for _, is := range issues {
		if err := w.Write(is.SummaryRow()); err != nil {
			return fmt.Errorf("writing issue index row %s: %w", is.Key(), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing issue index: %w", err)
	}
	return fsutil.WriteFile(path, buf.Bytes())
}
