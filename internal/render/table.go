package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

const maxNameWidth = 40

// truncate shortens a string to maxLen runes, appending an ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// EmptyState renders a styled empty-state message with an optional contextual hint.
// When colors are enabled the message is rendered in dim gray and the hint is italic.
// When quiet is true the hint is suppressed.
func EmptyState(message, hint string, quiet bool) string {
	if !ColorsEnabled() {
		if quiet || hint == "" {
			return message
		}
		return message + "\n" + hint
	}

	dimStyle := lipgloss.NewStyle().Foreground(ColorDim)
	hintStyle := lipgloss.NewStyle().Foreground(ColorDim).Italic(true)

	result := dimStyle.Render(message)
	if !quiet && hint != "" {
		result += "\n" + hintStyle.Render(hint)
	}
	return result
}

func styledTable(headers []string, rows [][]string, style func(row, col int, s lipgloss.Style) lipgloss.Style) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(ColorBright)
			}
			if row < 0 || row >= len(rows) {
				return s
			}
			return style(row, col, s)
		})
	return t.Render()
}

// RenderProjects renders the accessible projects as a table.
func RenderProjects(projects []model.Project) string {
	if len(projects) == 0 {
		return EmptyState("No projects found.", "Try --include-all-space-projects or --archived-projects all", false)
	}

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			p.ProjectKey,
			truncate(p.Name, maxNameWidth),
			strconv.Itoa(p.ID),
			archivedLabel(p.Archived),
		})
	}

	if !ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "%-16s %-40s %-10s %s\n", "Key", "Name", "ID", "Archived")
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 78))
		for _, r := range rows {
			fmt.Fprintf(&b, "%-16s %-40s %-10s %s\n", r[0], r[1], r[2], r[3])
		}
		return b.String()
	}

	return styledTable([]string{"Key", "Name", "ID", "Archived"}, rows, func(row, col int, s lipgloss.Style) lipgloss.Style {
		switch col {
		case 0:
			return s.Bold(true).Foreground(ColorBright)
		case 3:
			if projects[row].Archived {
				return s.Foreground(ColorDim)
			}
			return s
		default:
			return s
		}
	})
}

func archivedLabel(archived bool) string {
	if archived {
		return "yes"
	}
	return "no"
}

// RenderRuns renders the run history, newest first as given.
func RenderRuns(runs []model.Run) string {
	if len(runs) == 0 {
		return EmptyState("No backup runs recorded.", "Run one with: backlog-backup backup", false)
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			runDuration(r),
			string(r.Status),
			truncate(strings.Join(r.Projects, ", "), maxNameWidth),
			strconv.Itoa(r.Downloaded),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
		})
	}
	headers := []string{"Run", "Started", "Took", "Status", "Projects", "Downloaded", "Skipped", "Failed"}

	if !ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "%-10s %-16s %-10s %-10s %-30s %10s %8s %7s\n",
			"Run", "Started", "Took", "Status", "Projects", "Downloaded", "Skipped", "Failed")
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 108))
		for _, r := range rows {
			fmt.Fprintf(&b, "%-10s %-16s %-10s %-10s %-30s %10s %8s %7s\n",
				r[0], r[1], r[2], r[3], r[4], r[5], r[6], r[7])
		}
		return b.String()
	}

	return styledTable(headers, rows, func(row, col int, s lipgloss.Style) lipgloss.Style {
		switch col {
		case 0:
			return s.Foreground(ColorDim)
		case 3:
			return s.Bold(true).Foreground(StatusColor(runs[row].Status))
		case 7:
			if runs[row].Failed > 0 {
				return s.Foreground(ColorFailed)
			}
			return s
		default:
			return s
		}
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDuration(r model.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}
