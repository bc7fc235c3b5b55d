package backlog

import (
	"context"
	"net/url"
	"strconv"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// ListProjects returns the projects visible to the API key. When all is set
// every project in the space is returned, which requires administrator
// rights. A non-nil archived filters on archive status.
func (c *Client) ListProjects(ctx context.Context, all bool, archived *bool) ([]model.Project, error) {
	q := url.Values{}
	if all {
		q.Set("all", "true")
	}
	if archived != nil {
		q.Set("archived", strconv.FormatBool(*archived))
	}
	var projects []model.Project
	if err := c.getJSON(ctx, "/projects", q, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject returns one project by key or numeric id.
func (c *Client) GetProject(ctx context.Context, keyOrID string) (model.Project, error) {
	var p model.Project
	err := c.getJSON(ctx, "/projects/"+url.PathEscape(keyOrID), nil, &p)
	return p, err
}
