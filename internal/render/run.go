package render

import (
	"fmt"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// RenderRunDetail renders one run of the history and its failed items.
func RenderRunDetail(run model.Run, failed []model.ItemRecord) string {
	finished := "still running or interrupted"
	if run.FinishedAt != nil {
		finished = fmt.Sprintf("%s (took %s)", run.FinishedAt.Local().Format(time.DateTime), runDuration(run))
	}
	rows := [][2]string{
		{"Run:", run.ID},
		{"Status:", string(run.Status)},
		{"Started:", fmt.Sprintf("%s (%s)", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt))},
		{"Finished:", finished},
		{"Output:", run.OutputDir},
		{"Projects:", strings.Join(run.Projects, ", ")},
		{"Domains:", strings.Join(run.Domains, ", ")},
		{"Items:", fmt.Sprintf("%d downloaded, %d unchanged, %d failed", run.Downloaded, run.Skipped, run.Failed)},
	}

	var b strings.Builder
	if !ColorsEnabled() {
		for _, r := range rows {
			fmt.Fprintf(&b, "%-10s %s\n", r[0], r[1])
		}
		if len(failed) > 0 {
			b.WriteString("\nFailed items:\n")
			for _, it := range failed {
				fmt.Fprintf(&b, "  %s %s %s: %s\n", it.Project, it.Domain, it.RemoteID, it.Error)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	}

	keyStyle := lipgloss.NewStyle().Foreground(ColorDim)
	valStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	for _, r := range rows {
		val := valStyle.Render(r[1])
		if r[0] == "Status:" {
			val = valStyle.Foreground(StatusColor(run.Status)).Render(r[1])
		}
		fmt.Fprintf(&b, "  %s %s\n", keyStyle.Render(fmt.Sprintf("%-10s", r[0])), val)
	}
	if len(failed) > 0 {
		errStyle := lipgloss.NewStyle().Foreground(ColorFailed)
		b.WriteString("\n" + lipgloss.NewStyle().Bold(true).Render("Failed items") + "\n")
		for _, it := range failed {
			fmt.Fprintf(&b, "  %s %s %s\n    %s\n",
				keyStyle.Render(it.Project+"/"+it.Domain), it.RemoteID, keyStyle.Render(it.LocalPath), errStyle.Render(it.Error))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
