package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const loggerNameKey = "logger"

const (
	ansiReset     = "\033[0m"
	ansiRed       = "\033[31m"
	ansiGreen     = "\033[32m"
	ansiYellow    = "\033[33m"
	ansiCyan      = "\033[36m"
	ansiGray      = "\033[90m"
	ansiUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var levelColors = map[slog.Level]string{
	slog.LevelDebug: ansiCyan,
	slog.LevelInfo:  ansiGreen,
	slog.LevelWarn:  ansiYellow,
	slog.LevelError: ansiRed,
}

// ConsoleHandler is a human-readable slog.Handler for interactive use.
type ConsoleHandler struct {
	// Output is the destination for log lines
	Output io.Writer
	// Level is the minimum level for records to be written
	Level slog.Leveler
	// PkgLevels maps dotted logger name prefixes to minimum levels
	PkgLevels map[string]slog.Level
	// Colorize enables ANSI escape sequences
	Colorize bool

	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	attrs = append(attrs, h.attrs...)

	if !h.pkgEnabled(attrs, r.Level) {
		return nil
	}

	var line strings.Builder

	line.WriteString(h.paint(ansiGray, r.Time.Format("15:04:05.000000")))
	line.WriteString(" " + h.paint(levelColors[r.Level], "["+r.Level.String()+"]"))
	line.WriteString(" " + r.Message)

	var prefix string
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	if len(attrs) > 0 {
		line.WriteString(" " + h.paint(ansiGray, "|"))
		line.WriteString(h.renderAttrs(prefix, attrs))
	}

	frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
	fn := strings.Split(frame.Function, string(os.PathSeparator))

	line.WriteString("\n-> " + h.paint(ansiGray, fn[len(fn)-1]+"()"))
	line.WriteString(" in " + h.paint(ansiUnderline, frame.File+":"+strconv.Itoa(frame.Line)))

	if _, err := fmt.Fprintln(h.Output, line.String()); err != nil {
		return fmt.Errorf("write log line: %w", err)
	}

	return nil
}

// pkgEnabled applies the most specific PkgLevels entry matching the logger name.
func (h *ConsoleHandler) pkgEnabled(attrs []slog.Attr, level slog.Level) bool {
	if len(h.PkgLevels) == 0 {
		return true
	}

	var name string

	for _, attr := range attrs {
		if attr.Key == loggerNameKey {
			name = attr.Value.String()

			break
		}
	}

	parts := strings.Split(name, ".")

	for i := len(parts); i >= 0; i-- {
		threshold, ok := h.PkgLevels[strings.Join(parts[:i], ".")]
		if ok {
			return level >= threshold
		}
	}

	return true
}

func (h *ConsoleHandler) paint(code, s string) string {
	if !h.Colorize || code == "" {
		return s
	}

	return code + s + ansiReset
}

func (h *ConsoleHandler) renderAttrs(prefix string, attrs []slog.Attr) string {
	var out strings.Builder

	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			out.WriteString(h.renderAttrs(prefix+attr.Key+".", attr.Value.Group()))

			continue
		}

		out.WriteString(" " + prefix + attr.Key + "=" + h.paint(ansiGray, attr.Value.String()))
	}

	return out.String()
}

// WithAttrs implements slog.Handler.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &clone
}

// WithGroup implements slog.Handler.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)

	return &clone
}

// Enabled implements slog.Handler.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.Level.Level() <= level
}
