package model

import "fmt"

// Project is the root of every other entity. It is never modified during a backup.
type Project struct {
	ID         int    `json:"id"`
	ProjectKey string `json:"projectKey"`
	Name       string `json:"name"`
	Archived   bool   `json:"archived"`
}

// ArchiveFilter selects projects by archive status when listing them.
type ArchiveFilter string

const (
	ArchiveAll             ArchiveFilter = "all"
	ArchiveArchivedOnly    ArchiveFilter = "archived-only"
	ArchiveNonArchivedOnly ArchiveFilter = "non-archived-only"
)

var validArchiveFilters = []ArchiveFilter{
	ArchiveAll,
	ArchiveArchivedOnly,
	ArchiveNonArchivedOnly,
}

// ValidateArchiveFilter returns an error if f is not a recognized filter.
func ValidateArchiveFilter(f ArchiveFilter) error {
	for _, v := range validArchiveFilters {
		if f == v {
			return nil
		}
	}
	return fmt.Errorf("invalid archive filter %q: must be one of %v", f, validArchiveFilters)
}

// Archived converts the filter to the API's tri-state "archived" parameter.
// A nil result means no filtering.
func (f ArchiveFilter) Archived() *bool {
	switch f {
	case ArchiveArchivedOnly:
		v := true
		return &v
	case ArchiveNonArchivedOnly:
		v := false
		return &v
	default:
		return nil
	}
}
