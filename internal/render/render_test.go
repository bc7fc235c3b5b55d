package render

import (
	"strings"
	"testing"
	"time"

	"github.com/ALT-F4-LLC/backlog-backup/internal/backup"
	"github.com/ALT-F4-LLC/backlog-backup/internal/export"
	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

func TestRenderProjectsPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderProjects([]model.Project{
		{ID: 7, ProjectKey: "PRJ", Name: "Main project"},
		{ID: 8, ProjectKey: "OLD", Name: "Old project", Archived: true},
	})

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[2], "PRJ") || !strings.Contains(lines[2], "Main project") {
		t.Errorf("unexpected first row %q", lines[2])
	}
	if !strings.HasSuffix(lines[3], "yes") {
		t.Errorf("expected archived marker in %q", lines[3])
	}
}

func TestRenderProjectsEmpty(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderProjects(nil)
	if !strings.HasPrefix(got, "No projects found.") {
		t.Errorf("unexpected empty state %q", got)
	}
}

func TestRenderProjectsColorPathExecutes(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")

	got := RenderProjects([]model.Project{{ID: 1, ProjectKey: "PRJ", Name: "x"}})
	if !strings.Contains(got, "PRJ") {
		t.Errorf("expected PRJ in output, got:\n%s", got)
	}
}

func TestRenderRunsPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	start := time.Now().Add(-2 * time.Hour)
	end := start.Add(90 * time.Second)
	got := RenderRuns([]model.Run{
		{ID: "0123456789abcdef", StartedAt: start, FinishedAt: &end, Status: model.RunPartial, Projects: []string{"PRJ", "OPS"}, Downloaded: 12, Skipped: 3, Failed: 1},
		{ID: "short", StartedAt: start, Status: model.RunRunning},
	})

	for _, want := range []string{"01234567 ", "2 hours ago", "1m30s", "partial", "PRJ, OPS", "running"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
	if strings.Contains(got, "0123456789") {
		t.Errorf("expected run id to be shortened:\n%s", got)
	}
}

func TestRenderRunsEmpty(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := RenderRuns(nil); !strings.HasPrefix(got, "No backup runs recorded.") {
		t.Errorf("unexpected empty state %q", got)
	}
}

func sampleReport() *backup.Report {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &backup.Report{
		RunID:      "run-1",
		OutputDir:  "/backup",
		StartedAt:  start,
		FinishedAt: start.Add(65 * time.Second),
		Projects: []backup.ProjectReport{
			{
				Key:  "PRJ",
				Name: "Main",
				Domains: []backup.DomainReport{
					{Domain: model.DomainIssues, Items: 3, Downloaded: 2, Bytes: 2048},
					{Domain: model.DomainWiki, Items: 1, Failures: []export.Failure{{Item: "Home attachment \"a.png\"", Error: "expected binary content"}}},
					{Domain: model.DomainGit, Error: "listing git repositories: 403 | forbidden"},
				},
				Upload: &backup.UploadReport{Objects: 4, Bytes: 4096},
			},
			{Key: "GONE", Error: "project not found"},
		},
	}
}

func TestReportMarkdown(t *testing.T) {
	got := ReportMarkdown(sampleReport())

	for _, want := range []string{
		"# Backup partial",
		"Run `run-1`, written to `/backup` in 1m5s.",
		"2 projects, 4 items, 2 files downloaded (2.0 KiB), 0 unchanged, 3 failures.",
		"## PRJ (Main)",
		"| issues | 3 | 2 | 0 | 2.0 KiB |",
		"| 1 failed |",
		"**git failed:** listing git repositories: 403 \\| forbidden",
		"- `Home attachment \"a.png\"`: expected binary content",
		"Uploaded 4 objects (4.0 KiB).",
		"## GONE",
		"**Not backed up:** project not found",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in report:\n%s", want, got)
		}
	}
}

func TestReportMarkdownCapsFailures(t *testing.T) {
	fails := make([]export.Failure, maxListedFailures+5)
	for i := range fails {
		fails[i] = export.Failure{Item: "x", Error: "e"}
	}
	rep := &backup.Report{Projects: []backup.ProjectReport{{
		Key:     "PRJ",
		Domains: []backup.DomainReport{{Domain: model.DomainFiles, Failures: fails}},
	}}}

	got := ReportMarkdown(rep)
	if n := strings.Count(got, "- `x`: e"); n != maxListedFailures {
		t.Errorf("listed %d failures, want %d", n, maxListedFailures)
	}
	if !strings.Contains(got, "... and 5 more") {
		t.Errorf("expected overflow line:\n%s", got)
	}
}

func TestRenderReportPlainIsMarkdown(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	rep := sampleReport()
	got, err := RenderReport(rep)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != ReportMarkdown(rep) {
		t.Errorf("expected unrendered markdown when colors are disabled")
	}
}

func TestRenderRunDetailPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Minute)
	got := RenderRunDetail(model.Run{
		ID:         "run-1",
		StartedAt:  start,
		FinishedAt: &end,
		Status:     model.RunPartial,
		Projects:   []string{"PRJ"},
		Domains:    []string{"issues", "wiki"},
		Downloaded: 4,
		Failed:     1,
	}, []model.ItemRecord{{Project: "PRJ", Domain: "wiki", RemoteID: "5/9", Error: "expected binary content"}})

	for _, want := range []string{
		"Run:       run-1",
		"Status:    partial",
		"(took 2m0s)",
		"Domains:   issues, wiki",
		"Items:     4 downloaded, 0 unchanged, 1 failed",
		"  PRJ wiki 5/9: expected binary content",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
}

func TestRenderRunDetailUnfinished(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderRunDetail(model.Run{ID: "r", StartedAt: time.Now(), Status: model.RunRunning}, nil)
	if !strings.Contains(got, "still running or interrupted") {
		t.Errorf("unexpected output:\n%s", got)
	}
	if strings.Contains(got, "Failed items") {
		t.Errorf("unexpected failed section:\n%s", got)
	}
}
