package render

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/backlog-backup/internal/model"
)

// Terminal palette shared by tables, reports and log output.
const (
	ColorDim     = lipgloss.Color("8")
	ColorBright  = lipgloss.Color("15")
	ColorOK      = lipgloss.Color("10")
	ColorWarn    = lipgloss.Color("11")
	ColorFailed  = lipgloss.Color("9")
	ColorRunning = lipgloss.Color("12")
)

// ColorsEnabled reports whether output may carry ANSI styling. NO_COLOR (any
// value) and TERM=dumb turn it off.
func ColorsEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// StyledText applies style to text when colors are enabled.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// StatusColor maps a run status to its palette color.
func StatusColor(s model.RunStatus) lipgloss.Color {
	switch s {
	case model.RunOK:
		return ColorOK
	case model.RunPartial:
		return ColorWarn
	case model.RunFailed:
		return ColorFailed
	default:
		return ColorRunning
	}
}
