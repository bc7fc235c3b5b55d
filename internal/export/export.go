// Package export materialises one data domain of a project (issues, wiki,
// shared files, git or svn repositories) into the local backup tree.
package export

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// DefaultWorkers bounds parallel downloads and repository syncs.
const DefaultWorkers = 4

// Exporter writes one domain of a project below projectDir.
//
// A returned error means the domain as a whole could not be exported, e.g.
// its listing failed. Failures of single items are collected in the Result
// and never abort the export.
type Exporter interface {
	Domain() model.Domain
	Export(ctx context.Context, project model.Project, projectDir string) (*Result, error)
}

// Ledger remembers downloads across runs so unchanged files are skipped.
type Ledger interface {
	Unchanged(project, domain, remoteID, localPath string, size int64) (bool, error)
	Record(item model.ItemRecord) error
}

// NopLedger never skips and records nothing.
type NopLedger struct{}

func (NopLedger) Unchanged(string, string, string, string, int64) (bool, error) { return false, nil }
func (NopLedger) Record(model.ItemRecord) error { return nil }

// Options are shared by every exporter.
type Options struct {
	Logger  *slog.Logger
	Workers int
	Ledger  Ledger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	if o.Ledger == nil {
		o.Ledger = NopLedger{}
	}
	return o
}

// Failure is one item that could not be exported.
type Failure struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// Result summarises an export. It is safe for concurrent use while the
// export is running.
type Result struct {
	Domain model.Domain `json:"domain"`
	// Items counts the entities written: issues, pages, files or repositories.
	Items      int       `json:"items"`
	Downloaded int       `json:"downloaded"`
	Skipped    int       `json:"skipped"`
	Bytes      int64     `json:"bytes"`
	Failures   []Failure `json:"failures,omitempty"`

	mu sync.Mutex
}

func newResult(d model.Domain) *Result {
	return &Result{Domain: d}
}

func (r *Result) addItem() {
	r.mu.Lock()
	r.Items++
	r.mu.Unlock()
}

func (r *Result) addDownload(size int64) {
	r.mu.Lock()
	r.Downloaded++
	r.Bytes += size
	r.mu.Unlock()
}

func (r *Result) addSkip() {
	r.mu.Lock()
	r.Skipped++
	r.mu.Unlock()
}

func (r *Result) fail(item string, err error) {
	r.mu.Lock()
	r.Failures = append(r.Failures, Failure{Item: item, Error: err.Error()})
	r.mu.Unlock()
}
