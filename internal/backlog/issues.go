package backlog

import (
	"context"
	"net/url"
	"strconv"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// ListIssues returns every issue of the project, oldest first.
func (c *Client) ListIssues(ctx context.Context, projectID int) ([]model.Issue, error) {
	q := url.Values{}
	q.Set("projectId[]", strconv.Itoa(projectID))
	q.Set("sort", "created")
	q.Set("order", "asc")

	raws, err := FetchAll(ctx, c, "/issues", q)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Issue]("/issues", raws)
}

// GetIssue returns the full detail of one issue.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (model.Issue, error) {
	var issue model.Issue
	err := c.getJSON(ctx, "/issues/"+url.PathEscape(issueKey), nil, &issue)
	return issue, err
}

// ListComments returns every comment of an issue in creation order.
func (c *Client) ListComments(ctx context.Context, issueKey string) ([]model.Comment, error) {
	path := "/issues/" + url.PathEscape(issueKey) + "/comments"
	raws, err := FetchAllByCursor(ctx, c, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Comment](path, raws)
}
