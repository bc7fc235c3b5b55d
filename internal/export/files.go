package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// FilesExporter mirrors the project's shared file tree under files/. Every
// downloaded file gets a "<name>.meta.json" sidecar with its remote metadata.
type FilesExporter struct {
	src  FileSource
	opts Options
}

// NewFilesExporter returns an exporter reading from src.
func NewFilesExporter(src FileSource, opts Options) *FilesExporter {
	return &FilesExporter{src: src, opts: opts.withDefaults()}
}

func (e *FilesExporter) Domain() model.Domain { return model.DomainFiles }

// metaSuffix names the sidecar written next to every downloaded file.
const metaSuffix = ".meta.json"

type dirFrame struct {
	remote string
	local  string
}

// Export walks the tree depth first with an explicit stack, so deep trees
// cannot exhaust the goroutine stack. A directory that cannot be listed is
// recorded as a failure and its subtree is skipped.
func (e *FilesExporter) Export(ctx context.Context, project model.Project, projectDir string) (*Result, error) {
	res := newResult(model.DomainFiles)
	log := e.opts.Logger.With("project", project.ProjectKey, "domain", model.DomainFiles)
	root := filepath.Join(projectDir, string(model.DomainFiles))
	if err := fsutil.EnsureDir(root); err != nil {
		return res, err
	}

	stack := []dirFrame{{remote: "/", local: root}}
	visited := map[string]bool{}
	listedRoot := false

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[fr.remote] {
			continue
		}
		visited[fr.remote] = true

		entries, err := e.src.List(ctx, project.ProjectKey, fr.remote)
		if err != nil {
			if fr.remote == "/" {
				return res, fmt.Errorf("listing shared files: %w", err)
			}
			log.Warn("could not list directory", "dir", fr.remote, "err", err)
			res.fail(fr.remote, err)
			continue
		}
		listedRoot = true
		if len(entries) == 0 {
			log.Debug("empty directory", "dir", fr.remote)
			continue
		}

		// Sidecars share the directory with the entries, so a file named
		// "a.txt.meta.json" must not land on the sidecar of "a.txt".
		names := fsutil.NewNames()
		var jobs []job
		for _, ent := range entries {
			name := fsutil.SanitizeFilenameOr(ent.Name, "file_"+strconv.Itoa(ent.ID))
			if ent.IsDir() {
				name = names.Claim(name, ent.ID)
			} else {
				name = names.Claim(name, ent.ID, metaSuffix)
			}
			local := filepath.Join(fr.local, name)
			remote := ent.Path()
			if ent.IsDir() {
				if err := fsutil.EnsureDir(local); err != nil {
					res.fail(remote, err)
					continue
				}
				stack = append(stack, dirFrame{remote: remote, local: local})
				continue
			}
			jobs = append(jobs, e.fileJob(project.ProjectKey, ent, local, res))
		}
		e.opts.runJobs(ctx, project.ProjectKey, model.DomainFiles, jobs, res)
	}

	if listedRoot {
		log.Info("exported shared files", "files", res.Items, "downloaded", res.Downloaded, "skipped", res.Skipped)
	}
	return res, nil
}

func (e *FilesExporter) fileJob(projectKey string, f model.SharedFile, local string, res *Result) job {
	remote := f.Path()
	id := remote
	if f.ID != 0 {
		id = strconv.Itoa(f.ID)
	}
	return job{
		RemoteID: id,
		Label:    remote,
		Path:     local,
		Size:     f.Size,
		Save: func(ctx context.Context, path string) (int64, error) {
			n, err := e.src.Download(ctx, projectKey, f, path)
			if err != nil {
				return 0, err
			}
			if err := fsutil.WriteJSON(path+metaSuffix, f); err != nil {
				return n, fmt.Errorf("writing metadata: %w", err)
			}
			res.addItem()
			return n, nil
		},
	}
}
