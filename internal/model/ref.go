package model

import "strings"

// NamedRef is the {id, name} pair the API uses for statuses, priorities,
// users, issue types, categories and milestones.
type NamedRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NameOf returns the name of r, or "" when r is nil.
func NameOf(r *NamedRef) string {
	if r == nil {
		return ""
	}
	return r.Name
}

// JoinNames flattens a list of references into a comma separated string of
// their names, in the order given.
func JoinNames(refs []NamedRef) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
