package backlog

import (
	"context"
	"net/url"
	"strings"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// ListSharedFiles returns the entries directly under dir in the project's
// shared file tree. dir is an absolute remote path; "/" is the root.
func (c *Client) ListSharedFiles(ctx context.Context, projectKey, dir string) ([]model.SharedFile, error) {
	path := "/projects/" + url.PathEscape(projectKey) + "/files/metadata/" + escapeRemotePath(dir)
	raws, err := FetchAll(ctx, c, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[model.SharedFile](path, raws)
}

// escapeRemotePath escapes each segment of a remote path, dropping the
// leading slash the metadata endpoint does not expect.
func escapeRemotePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
