package model

import (
	"encoding/json"
	"strconv"
)

// Attachment is a file attached to an issue or wiki page. Name is the
// display name and is neither unique nor safe to use as a path.
type Attachment struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Issue is a read-only snapshot of a remote issue.
type Issue struct {
	ID             int          `json:"id"`
	ProjectID      int          `json:"projectId"`
	IssueKey       string       `json:"issueKey"`
	Summary        string       `json:"summary"`
	Description    string       `json:"description"`
	IssueType      *NamedRef    `json:"issueType"`
	Status         *NamedRef    `json:"status"`
	Priority       *NamedRef    `json:"priority"`
	Assignee       *NamedRef    `json:"assignee"`
	Category       []NamedRef   `json:"category"`
	Milestone      []NamedRef   `json:"milestone"`
	DueDate        string       `json:"dueDate"`
	EstimatedHours *float64     `json:"estimatedHours"`
	ActualHours    *float64     `json:"actualHours"`
	Created        string       `json:"created"`
	Updated        string       `json:"updated"`
	Attachments    []Attachment `json:"attachments"`

	// Raw holds the payload exactly as received so records can be written
	// without dropping fields this type does not model.
	Raw json.RawMessage `json:"-"`
}

// issueAlias has Issue's fields without its methods, to avoid recursion.
type issueAlias Issue

// UnmarshalJSON decodes the issue and keeps a copy of the raw payload.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var a issueAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*i = Issue(a)
	i.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Key returns the issue key, falling back to "ISSUE-<id>" when the API
// did not supply one.
func (i Issue) Key() string {
	if i.IssueKey != "" {
		return i.IssueKey
	}
	return "ISSUE-" + strconv.Itoa(i.ID)
}

// SummaryColumns is the fixed column order of the issue index.
var SummaryColumns = []string{
	"issueKey", "summary", "description", "status", "priority",
	"assignee", "created", "updated", "dueDate", "estimatedHours",
	"actualHours", "issueType", "category", "milestone",
}

// SummaryRow flattens the issue into one index row, ordered as SummaryColumns.
func (i Issue) SummaryRow() []string {
	return []string{
		i.Key(),
		i.Summary,
		i.Description,
		NameOf(i.Status),
		NameOf(i.Priority),
		NameOf(i.Assignee),
		i.Created,
		i.Updated,
		i.DueDate,
		formatHours(i.EstimatedHours),
		formatHours(i.ActualHours),
		NameOf(i.IssueType),
		JoinNames(i.Category),
		JoinNames(i.Milestone),
	}
}

func formatHours(h *float64) string {
	if h == nil {
		return ""
	}
	return strconv.FormatFloat(*h, 'f', -1, 64)
}
