package model

import (
	"fmt"
	"time"
)

// RunStatus is the final state of a backup run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// Run is one invocation of the backup command as recorded in the manifest.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	OutputDir  string     `json:"output_dir"`
	Projects   []string   `json:"projects"`
	Domains    []string   `json:"domains"`

	// Item counts, filled when listing runs.
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// ItemStatus is the outcome of a single download.
type ItemStatus string

const (
	ItemOK      ItemStatus = "ok"
	ItemSkipped ItemStatus = "skipped"
	ItemFailed  ItemStatus = "failed"
)

var validItemStatuses = []ItemStatus{ItemOK, ItemSkipped, ItemFailed}

// ValidateItemStatus returns an error if s is not a recognized item status.
func ValidateItemStatus(s ItemStatus) error {
	for _, v := range validItemStatuses {
		if s == v {
			return nil
		}
	}
	return fmt.Errorf("invalid item status %q: must be one of %v", s, validItemStatuses)
}

// ItemRecord is one downloaded attachment or shared file in the manifest.
// RemoteID identifies the item within its project and domain, e.g.
// "PRJ-12/345" for attachment 345 of issue PRJ-12.
type ItemRecord struct {
	RunID      string     `json:"run_id"`
	Project    string     `json:"project"`
	Domain     string     `json:"domain"`
	RemoteID   string     `json:"remote_id"`
	LocalPath  string     `json:"local_path"`
	Size       int64      `json:"size"`
	Status     ItemStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}
