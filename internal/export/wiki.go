package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// WikiAPI is the part of the Backlog client the wiki exporter uses.
type WikiAPI interface {
	ListWikiPages(ctx context.Context, projectKey string) ([]model.WikiPage, error)
	GetWikiPage(ctx context.Context, wikiID int) (model.WikiPage, error)
	ListWikiAttachments(ctx context.Context, wikiID int) ([]model.Attachment, error)
	DownloadWikiAttachment(ctx context.Context, wikiID, attachmentID int) ([]byte, error)
}

// WikiExporter writes wiki/wiki_index.json and, per page, a JSON record and
// a Markdown file. A page named "Guide/Setup" is written as
// wiki/Guide/Setup.json and wiki/Guide/Setup.md.
type WikiExporter struct {
	api  WikiAPI
	opts Options
}

// NewWikiExporter returns an exporter reading from api.
func NewWikiExporter(api WikiAPI, opts Options) *WikiExporter {
	return &WikiExporter{api: api, opts: opts.withDefaults()}
}

func (e *WikiExporter) Domain() model.Domain { return model.DomainWiki }

func (e *WikiExporter) Export(ctx context.Context, project model.Project, projectDir string) (*Result, error) {
	res := newResult(model.DomainWiki)
	log := e.opts.Logger.With("project", project.ProjectKey, "domain", model.DomainWiki)
	dir := filepath.Join(projectDir, string(model.DomainWiki))
	if err := fsutil.EnsureDir(dir); err != nil {
		return res, err
	}

	pages, err := e.api.ListWikiPages(ctx, project.ProjectKey)
	if err != nil {
		return res, fmt.Errorf("listing wiki pages: %w", err)
	}
	log.Info("exporting wiki pages", "count", len(pages))

	index := make([]model.WikiIndexEntry, len(pages))
	for i, p := range pages {
		index[i] = model.WikiIndexEntry{ID: p.ID, Name: p.Name}
	}
	if err := fsutil.WriteJSON(filepath.Join(dir, indexName+".json"), index); err != nil {
		return res, err
	}

	paths := pagePaths(pages)
	children := childDirs(paths)
	for i, summary := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.exportPage(ctx, project.ProjectKey, dir, summary, paths[i], children[strings.ToLower(paths[i])], res)
	}
	return res, nil
}

func (e *WikiExporter) exportPage(ctx context.Context, projectKey, dir string, summary model.WikiPage, rel string, subdirs []string, res *Result) {
	label := summary.Name
	if label == "" {
		label = "wiki " + strconv.Itoa(summary.ID)
	}
	log := e.opts.Logger.With("project", projectKey, "page", label)

	page, err := e.api.GetWikiPage(ctx, summary.ID)
	if err != nil {
		log.Warn("could not fetch wiki page", "err", err)
		res.fail(label, err)
		return
	}

	base := filepath.Join(dir, rel)
	raw := page.Raw
	if raw == nil {
		raw = summary.Raw
	}
	if err := fsutil.WriteJSON(base+".json", raw); err != nil {
		log.Warn("could not write wiki page", "err", err)
		res.fail(label, err)
		return
	}
	if err := fsutil.WriteFile(base+".md", []byte(page.Content)); err != nil {
		log.Warn("could not write wiki content", "err", err)
		res.fail(label, err)
		return
	}
	res.addItem()

	atts, err := e.api.ListWikiAttachments(ctx, summary.ID)
	if err != nil {
		log.Warn("could not list wiki attachments", "err", err)
		res.fail(label+" attachments", err)
		return
	}
	if len(atts) == 0 {
		return
	}
	attDir := filepath.Join(dir, attachmentsDir, rel)
	owner := strconv.Itoa(summary.ID)
	jobs := attachmentJobs(attDir, owner, atts, func(ctx context.Context, id int) ([]byte, error) {
		return e.api.DownloadWikiAttachment(ctx, summary.ID, id)
	}, subdirs...)
	e.opts.runJobs(ctx, projectKey, model.DomainWiki, jobs, res)
}

// indexName is the file, without extension, listing every page.
const indexName = "wiki_index"

// attachmentsDir holds page attachments next to the page records.
const attachmentsDir = "attachments"

// pagePaths maps each page to a sanitised relative path without extension.
// Pages whose paths collide with an earlier page, with the index or with the
// attachments tree get "_<id>" appended to the colliding segment.
func pagePaths(pages []model.WikiPage) []string {
	out := make([]string, len(pages))
	seen := map[string]bool{indexName: true}
	for i, p := range pages {
		segs := p.PathSegments()
		if len(segs) == 0 {
			segs = []string{"page_" + strconv.Itoa(p.ID)}
		}
		rel := fsutil.SanitizePath(segs)
		top, _, _ := strings.Cut(rel, string(filepath.Separator))
		if strings.EqualFold(top, attachmentsDir) {
			rel = top + "_" + strconv.Itoa(p.ID) + strings.TrimPrefix(rel, top)
		}
		base := rel
		for n := 1; seen[strings.ToLower(rel)]; n++ {
			rel = base + "_" + strconv.Itoa(p.ID)
			if n > 1 {
				rel += "_" + strconv.Itoa(n)
			}
		}
		seen[strings.ToLower(rel)] = true
		out[i] = rel
	}
	return out
}

// childDirs returns, per page path, the names of the folders other pages
// create directly below it. A page's attachments share that folder in the
// attachments tree, so these names are unavailable to them.
func childDirs(paths []string) map[string][]string {
	out := make(map[string][]string)
	sep := string(filepath.Separator)
	for _, rel := range paths {
		segs := strings.Split(rel, sep)
		for i := 1; i < len(segs); i++ {
			parent := strings.ToLower(strings.Join(segs[:i], sep))
			out[parent] = append(out[parent], segs[i])
		}
	}
	return out
}
