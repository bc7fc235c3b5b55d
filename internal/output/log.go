package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/backlog-backup/internal/render"
)

// LogHandler is a slog.Handler printing one line per record in the style of
// Writer notices, followed by the record's attributes as key=value pairs.
type LogHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	color  bool
	prefix string // preformatted attributes from WithAttrs
	group  string
}

// NewLogHandler returns a handler writing records at or above level to w.
func NewLogHandler(w io.Writer, level slog.Leveler) *LogHandler {
	return &LogHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		color: render.ColorsEnabled(),
	}
}

func (h *LogHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(levelPrefix(r.Level, h.color))
	if h.color && r.Level < slog.LevelWarn {
		b.WriteString(lipgloss.NewStyle().Foreground(render.ColorDim).Render(r.Message))
	} else {
		b.WriteString(r.Message)
	}

	attrs := h.prefix
	r.Attrs(func(a slog.Attr) bool {
		attrs += formatAttr(h.group, a)
		return true
	})
	if attrs != "" {
		if h.color {
			attrs = lipgloss.NewStyle().Foreground(render.ColorDim).Render(attrs)
		}
		b.WriteString(attrs)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// levelPrefix is the marker printed before a message of level l: an icon
// with colors, a word without.
func levelPrefix(l slog.Level, color bool) string {
	if !color {
		switch {
		case l >= slog.LevelError:
			return "Error: "
		case l >= slog.LevelWarn:
			return "Warning: "
		case l < slog.LevelInfo:
			return "debug: "
		default:
			return ""
		}
	}
	bold := lipgloss.NewStyle().Bold(true)
	switch {
	case l >= slog.LevelError:
		return bold.Foreground(render.ColorFailed).Render("✘") + " " + bold.Foreground(render.ColorFailed).Render("Error:") + " "
	case l >= slog.LevelWarn:
		return bold.Foreground(render.ColorWarn).Render("⚠") + " " + bold.Foreground(render.ColorWarn).Render("Warning:") + " "
	case l < slog.LevelInfo:
		return lipgloss.NewStyle().Foreground(render.ColorDim).Render("·") + " "
	default:
		return lipgloss.NewStyle().Foreground(render.ColorDim).Render("ℹ") + " "
	}
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	for _, a := range attrs {
		h2.prefix += formatAttr(h.group, a)
	}
	return &h2
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

func formatAttr(group string, a slog.Attr) string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return ""
	}
	if a.Value.Kind() == slog.KindGroup {
		var s string
		for _, ga := range a.Value.Group() {
			s += formatAttr(group+a.Key+".", ga)
		}
		return s
	}
	return " " + group + a.Key + "=" + formatValue(a.Value)
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindDuration:
		s = v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// LogOptions select the logger built by NewLogger.
type LogOptions struct {
	JSON    bool
	Verbose bool
	Quiet   bool
}

// NewLogger returns the process logger writing to w. JSON mode emits one
// JSON object per record; otherwise records go through LogHandler.
func NewLogger(w io.Writer, opts LogOptions) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.Verbose:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(NewLogHandler(w, level))
}
