package model

import (
	"encoding/json"
	"strings"
)

// WikiPage is a page of a project's wiki. Name may contain "/" separators,
// which imply a folder hierarchy.
type WikiPage struct {
	ID          int          `json:"id"`
	ProjectID   int          `json:"projectId"`
	Name        string       `json:"name"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	Created     string       `json:"created"`
	Updated     string       `json:"updated"`

	Raw json.RawMessage `json:"-"`
}

type wikiPageAlias WikiPage

// UnmarshalJSON decodes the page and keeps a copy of the raw payload.
func (w *WikiPage) UnmarshalJSON(data []byte) error {
	var a wikiPageAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*w = WikiPage(a)
	w.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// PathSegments splits the page name on "/" and drops empty segments, so
// "Guide//Setup/" yields ["Guide", "Setup"].
func (w WikiPage) PathSegments() []string {
	parts := strings.Split(w.Name, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// WikiIndexEntry is one row of the wiki index.
type WikiIndexEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
