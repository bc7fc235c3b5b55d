package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/backlog-backup/internal/render"
)

// Writer prints command results. Results go to Stdout as a JSON envelope or
// as rendered text; notices go to Stderr and are dropped in JSON mode.
type Writer struct {
	JSONMode  bool
	QuietMode bool
	Stdout    io.Writer
	Stderr    io.Writer
}

// New creates a Writer on the process stdout and stderr.
func New(jsonMode, quietMode bool) *Writer {
	return &Writer{
		JSONMode:  jsonMode,
		QuietMode: quietMode,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Success prints a command result. Rendered tables and reports span several
// lines and are printed untouched; a one-line message gets a check mark.
func (w *Writer) Success(data any, message string) {
	if w.JSONMode {
		writeJSONSuccess(w.Stdout, data, message)
		return
	}
	switch {
	case message == "":
	case strings.Contains(message, "\n") || !render.ColorsEnabled():
		fmt.Fprintln(w.Stdout, message)
	default:
		mark := lipgloss.NewStyle().Foreground(render.ColorOK).Render("✔")
		fmt.Fprintf(w.Stdout, "%s %s\n", mark, message)
	}
}

// Error prints err and returns the exit code for code.
func (w *Writer) Error(err error, code ErrorCode) int {
	if w.JSONMode {
		writeJSONError(w.Stdout, err, code)
	} else {
		w.notice(slog.LevelError, err.Error())
	}
	return ExitCodeForError(code)
}

// Info prints a progress notice unless the writer is quiet.
func (w *Writer) Info(format string, args ...any) {
	if w.QuietMode || w.JSONMode {
		return
	}
	w.notice(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Warn prints a warning. Quiet mode keeps warnings.
func (w *Writer) Warn(format string, args ...any) {
	if w.JSONMode {
		return
	}
	w.notice(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (w *Writer) notice(level slog.Level, msg string) {
	color := render.ColorsEnabled()
	if color && level == slog.LevelInfo {
		msg = lipgloss.NewStyle().Foreground(render.ColorDim).Render(msg)
	}
	fmt.Fprintf(w.Stderr, "%s%s\n", levelPrefix(level, color), msg)
}
