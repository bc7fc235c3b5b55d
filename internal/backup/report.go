package backup

import (
	"time"

	"github.com/ALT-F4-LLC/backlog-backup/internal/export"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// Report is the outcome of one run.
type Report struct {
	RunID      string          `json:"run_id,omitempty"`
	OutputDir  string          `json:"output_dir"`
	Domains    []model.Domain  `json:"domains"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Projects   []ProjectReport `json:"projects"`
}

// ProjectReport is the outcome of one project. Error is set when the project
// could not be backed up at all.
type ProjectReport struct {
	Key     string         `json:"key"`
	Name    string         `json:"name,omitempty"`
	Dir     string         `json:"dir,omitempty"`
	Domains []DomainReport `json:"domains,omitempty"`
	Upload  *UploadReport  `json:"upload,omitempty"`
	Elapsed time.Duration  `json:"elapsed_ns"`
	Error   string         `json:"error,omitempty"`
}

// DomainReport is the outcome of one exporter for one project.
type DomainReport struct {
	Domain     model.Domain     `json:"domain"`
	Items      int              `json:"items"`
	Downloaded int              `json:"downloaded"`
	Skipped    int              `json:"skipped"`
	Bytes      int64            `json:"bytes"`
	Failures   []export.Failure `json:"failures,omitempty"`
	Elapsed    time.Duration    `json:"elapsed_ns"`
	Error      string           `json:"error,omitempty"`
}

// UploadReport is the outcome of uploading a project tree.
type UploadReport struct {
	Objects int    `json:"objects"`
	Bytes   int64  `json:"bytes"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the exporter finished without any failure.
func (d DomainReport) OK() bool {
	return d.Error == "" && len(d.Failures) == 0
}

// Failures counts failed exporters, failed items and a failed upload.
func (p ProjectReport) Failures() int {
	n := 0
	if p.Error != "" {
		n++
	}
	for _, d := range p.Domains {
		n += len(d.Failures)
		if d.Error != "" {
			n++
		}
	}
	if p.Upload != nil && p.Upload.Error != "" {
		n++
	}
	return n
}

// Failures counts every failure of the run.
func (r *Report) Failures() int {
	n := 0
	for _, p := range r.Projects {
		n += p.Failures()
	}
	return n
}

// Elapsed is the wall time of the run.
func (r *Report) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Totals sums the domain counters of every project.
func (r *Report) Totals() DomainReport {
	var t DomainReport
	for _, p := range r.Projects {
		for _, d := range p.Domains {
			t.Items += d.Items
			t.Downloaded += d.Downloaded
			t.Skipped += d.Skipped
			t.Bytes += d.Bytes
			t.Failures = append(t.Failures, d.Failures...)
		}
	}
	return t
}

// Status classifies the run: ok without failures, failed when no project
// could be backed up at all, partial otherwise.
func (r *Report) Status() model.RunStatus {
	if r.Failures() == 0 {
		return model.RunOK
	}
	for _, p := range r.Projects {
		if p.Error == "" {
			return model.RunPartial
		}
	}
	return model.RunFailed
}
