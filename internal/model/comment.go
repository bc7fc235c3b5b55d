package model

import "encoding/json"

// Comment is a comment on an issue. Comments are immutable and are kept in
// creation order.
type Comment struct {
	ID          int       `json:"id"`
	Content     string    `json:"content"`
	CreatedUser *NamedRef `json:"createdUser"`
	Created     string    `json:"created"`

	Raw json.RawMessage `json:"-"`
}

type commentAlias Comment

// UnmarshalJSON decodes the comment and keeps a copy of the raw payload.
func (c *Comment) UnmarshalJSON(data []byte) error {
	var a commentAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Comment(a)
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// AuthorOrAnonymous returns the author name, falling back to "anonymous"
// when the comment has no author.
func (c Comment) AuthorOrAnonymous() string {
	if name := NameOf(c.CreatedUser); name != "" {
		return name
	}
	return "anonymous"
}
