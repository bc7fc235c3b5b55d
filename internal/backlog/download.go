package backlog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// download fetches path and requires a binary payload. A JSON body, which
// the API sometimes returns with a 200 in place of the file, is a
// *DownloadError.
func (c *Client) download(ctx context.Context, path string) ([]byte, error) {
	p, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if p.IsJSON() {
		return nil, &DownloadError{Path: path, Reason: "expected binary content"}
	}
	return p.Binary, nil
}

// DownloadIssueAttachment returns the content of one issue attachment.
func (c *Client) DownloadIssueAttachment(ctx context.Context, issueKey string, attachmentID int) ([]byte, error) {
	return c.download(ctx, fmt.Sprintf("/issues/%s/attachments/%d", url.PathEscape(issueKey), attachmentID))
}

// DownloadWikiAttachment returns the content of one wiki page attachment.
func (c *Client) DownloadWikiAttachment(ctx context.Context, wikiID, attachmentID int) ([]byte, error) {
	return c.download(ctx, fmt.Sprintf("/wikis/%d/attachments/%d", wikiID, attachmentID))
}

// DownloadSharedFile returns the content of a shared file.
func (c *Client) DownloadSharedFile(ctx context.Context, projectKey string, fileID int) ([]byte, error) {
	return c.download(ctx, "/projects/"+url.PathEscape(projectKey)+"/files/"+strconv.Itoa(fileID))
}
