package backlog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// ListRepositories returns the git or svn repositories of a project.
func (c *Client) ListRepositories(ctx context.Context, projectKey string, kind model.RepoKind) ([]model.Repository, error) {
	if kind != model.RepoGit && kind != model.RepoSVN {
		return nil, fmt.Errorf("unknown repository kind %q", kind)
	}
	var repos []model.Repository
	path := "/projects/" + url.PathEscape(projectKey) + "/" + string(kind) + "/repositories"
	if err := c.getJSON(ctx, path, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// RepositoryURL returns the clone URL of repo, falling back to the
// conventional location on the space when the API did not supply one.
func (c *Client) RepositoryURL(projectKey string, kind model.RepoKind, repo model.Repository) string {
	if repo.HTTPURL != "" {
		return repo.HTTPURL
	}
	if kind == model.RepoGit {
		return fmt.Sprintf("https://%s/git/%s/%s.git", c.domain, projectKey, repo.Name)
	}
	return fmt.Sprintf("https://%s/svn/%s", c.domain, projectKey)
}
