package render

import (
	"fmt"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/glamour"

	"github.com/ALT-F4-LLC/backlog-backup/internal/backup"
)

// maxListedFailures caps the failed items listed per domain.
const maxListedFailures = 20

// reportWidth is the wrap width of the rendered report; failure tables are
// wider than glamour's default of 80 columns.
const reportWidth = 120

// ReportMarkdown describes a finished run as Markdown.
func ReportMarkdown(rep *backup.Report) string {
	var b strings.Builder

	status := rep.Status()
	fmt.Fprintf(&b, "# Backup %s\n\n", status)
	if rep.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`, ", rep.RunID)
	}
	fmt.Fprintf(&b, "written to `%s` in %s.\n\n", rep.OutputDir, rep.Elapsed().Round(time.Second))

	tot := rep.Totals()
	fmt.Fprintf(&b, "%d projects, %d items, %d files downloaded (%s), %d unchanged, %d failures.\n",
		len(rep.Projects), tot.Items, tot.Downloaded, humanize.IBytes(uint64(tot.Bytes)), tot.Skipped, rep.Failures())

	for _, p := range rep.Projects {
		title := p.Key
		if p.Name != "" {
			title = fmt.Sprintf("%s (%s)", p.Key, p.Name)
		}
		fmt.Fprintf(&b, "\n## %s\n\n", title)

		if p.Error != "" {
			fmt.Fprintf(&b, "**Not backed up:** %s\n", p.Error)
			continue
		}

		if len(p.Domains) > 0 {
			b.WriteString("| Domain | Items | Downloaded | Unchanged | Size | Took | Result |\n")
			b.WriteString("|---|---:|---:|---:|---:|---:|---|\n")
			for _, d := range p.Domains {
				fmt.Fprintf(&b, "| %s | %d | %d | %d | %s | %s | %s |\n",
					d.Domain, d.Items, d.Downloaded, d.Skipped,
					humanize.IBytes(uint64(d.Bytes)), d.Elapsed.Round(time.Millisecond), domainResult(d))
			}
		}

		for _, d := range p.Domains {
			if d.Error != "" {
				fmt.Fprintf(&b, "\n**%s failed:** %s\n", d.Domain, escapeCell(d.Error))
			}
			if len(d.Failures) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\nFailed %s items:\n\n", d.Domain)
			for i, f := range d.Failures {
				if i == maxListedFailures {
					fmt.Fprintf(&b, "- ... and %d more\n", len(d.Failures)-i)
					break
				}
				fmt.Fprintf(&b, "- `%s`: %s\n", f.Item, f.Error)
			}
		}

		if u := p.Upload; u != nil {
			if u.Error != "" {
				fmt.Fprintf(&b, "\n**Upload failed** after %d objects: %s\n", u.Objects, u.Error)
			} else {
				fmt.Fprintf(&b, "\nUploaded %d objects (%s).\n", u.Objects, humanize.IBytes(uint64(u.Bytes)))
			}
		}
	}
	return b.String()
}

func domainResult(d backup.DomainReport) string {
	switch {
	case d.Error != "":
		return "failed"
	case len(d.Failures) > 0:
		return fmt.Sprintf("%d failed", len(d.Failures))
	default:
		return "ok"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderReport renders the run report for the terminal.
func RenderReport(rep *backup.Report) (string, error) {
	md := ReportMarkdown(rep)
	if !ColorsEnabled() {
		return md, nil
	}
	r, err := glamour.NewTermRenderer(glamour.WithEnvironmentConfig(), glamour.WithWordWrap(reportWidth))
	if err != nil {
		return md, err
	}
	out, err := r.Render(md)
	if err != nil {
		return md, err
	}
	return strings.TrimSpace(out), nil
}
