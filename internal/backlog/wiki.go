package backlog

import (
	"context"
	"net/url"
	"strconv"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// ListWikiPages returns the pages of a project's wiki. The listing carries
// names and ids only; use GetWikiPage for content.
func (c *Client) ListWikiPages(ctx context.Context, projectKey string) ([]model.WikiPage, error) {
	q := url.Values{}
	q.Set("projectIdOrKey", projectKey)
	var pages []model.WikiPage
	if err := c.getJSON(ctx, "/wikis", q, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// GetWikiPage returns the full detail of one page.
func (c *Client) GetWikiPage(ctx context.Context, wikiID int) (model.WikiPage, error) {
	var page model.WikiPage
	err := c.getJSON(ctx, "/wikis/"+strconv.Itoa(wikiID), nil, &page)
	return page, err
}

// ListWikiAttachments returns the attachments of one page.
func (c *Client) ListWikiAttachments(ctx context.Context, wikiID int) ([]model.Attachment, error) {
	var atts []model.Attachment
	if err := c.getJSON(ctx, "/wikis/"+strconv.Itoa(wikiID)+"/attachments", nil, &atts); err != nil {
		return nil, err
	}
	return atts, nil
}
