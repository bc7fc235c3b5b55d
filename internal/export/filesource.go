package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/ALT-F4-LLC/backlog-backup/internal/fsutil"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
	"github.com/ALT-F4-LLC/backlog-backup/internal/vcs"
)

// FileSource enumerates and fetches a project's shared files.
type FileSource interface {
	// List returns the entries directly under the remote directory dir.
	List(ctx context.Context, projectKey, dir string) ([]model.SharedFile, error)
	// Download writes the content of f to localPath and returns its size.
	Download(ctx context.Context, projectKey string, f model.SharedFile, localPath string) (int64, error)
}

// SharedFileAPI is the part of the Backlog client APIFileSource uses.
type SharedFileAPI interface {
	ListSharedFiles(ctx context.Context, projectKey, dir string) ([]model.SharedFile, error)
	DownloadSharedFile(ctx context.Context, projectKey string, fileID int) ([]byte, error)
}

// APIFileSource reads shared files through the REST API.
type APIFileSource struct {
	API SharedFileAPI
}

func (s APIFileSource) List(ctx context.Context, projectKey, dir string) ([]model.SharedFile, error) {
	return s.API.ListSharedFiles(ctx, projectKey, dir)
}

func (s APIFileSource) Download(ctx context.Context, projectKey string, f model.SharedFile, localPath string) (int64, error) {
	data, err := s.API.DownloadSharedFile(ctx, projectKey, f.ID)
	if err != nil {
		return 0, err
	}
	if err := fsutil.WriteFile(localPath, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// DefaultHelperTimeout bounds one call of the file helper.
const DefaultHelperTimeout = 10 * time.Minute

// CommandFileSource delegates to an external, already authenticated helper
// program. It is invoked as
//
//	<helper> list <project> <dir>                  JSON [{name,path,type}] on stdout
//	<helper> download <project> <path> <local>     writes the file to <local>
type CommandFileSource struct {
	Helper  string
	Runner  vcs.Runner
	Timeout time.Duration
}

type helperEntry struct {
	Name string         `json:"name"`
	Path string         `json:"path"`
	Type model.FileType `json:"type"`
	Size int64          `json:"size"`
}

func (s CommandFileSource) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultHelperTimeout
}

func (s CommandFileSource) List(ctx context.Context, projectKey, dir string) ([]model.SharedFile, error) {
	res, err := s.Runner.Run(ctx, vcs.Command{
		Name:    s.Helper,
		Args:    []string{"list", projectKey, dir},
		Timeout: s.timeout(),
	})
	if err != nil {
		return nil, err
	}

	var entries []helperEntry
	if err := json.Unmarshal(res.Stdout, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s list output: %w", s.Helper, err)
	}
	files := make([]model.SharedFile, 0, len(entries))
	for _, e := range entries {
		if e.Type != model.FileTypeFile && e.Type != model.FileTypeDirectory {
			return nil, fmt.Errorf("%s list: entry %q has unknown type %q", s.Helper, e.Name, e.Type)
		}
		files = append(files, model.SharedFile{
			Type:       e.Type,
			Dir:        dir,
			Name:       e.Name,
			RemotePath: e.Path,
			Size:       e.Size,
		})
	}
	return files, nil
}

func (s CommandFileSource) Download(ctx context.Context, projectKey string, f model.SharedFile, localPath string) (int64, error) {
	if err := fsutil.EnsureDir(filepath.Dir(localPath)); err != nil {
		return 0, err
	}
	_, err := s.Runner.Run(ctx, vcs.Command{
		Name:    s.Helper,
		Args:    []string{"download", projectKey, f.Path(), localPath},
		Timeout: s.timeout(),
	})
	if err != nil {
		return 0, err
	}
	n := fsutil.FileSize(localPath)
	if n < 0 {
		return 0, fmt.Errorf("%s download: %s was not created", s.Helper, localPath)
	}
	return n, nil
}

// DefaultMinInterval is the minimum spacing of helper calls.
const DefaultMinInterval = time.Second

// ThrottledFileSource spaces calls to the wrapped source at least Interval
// apart, across all goroutines.
type ThrottledFileSource struct {
	src     FileSource
	limiter *rate.Limiter
}

// NewThrottledFileSource wraps src. A non-positive interval uses
// DefaultMinInterval.
func NewThrottledFileSource(src FileSource, interval time.Duration) *ThrottledFileSource {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	return &ThrottledFileSource{src: src, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (s *ThrottledFileSource) List(ctx context.Context, projectKey, dir string) ([]model.SharedFile, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.src.List(ctx, projectKey, dir)
}

func (s *ThrottledFileSource) Download(ctx context.Context, projectKey string, f model.SharedFile, localPath string) (int64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return s.src.Download(ctx, projectKey, f, localPath)
}
