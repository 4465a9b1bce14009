package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// ColorTextHandler writes one human-readable line per record, optionally
// colored:
//
//	[2006-01-02 15:04:05] [INFO] stage finished stage=database duration_ms=4.211
//
// Attributes added through WithAttrs are rendered once, when they are added.
type ColorTextHandler struct {
	level    slog.Leveler
	w        io.Writer
	mu       *sync.Mutex
	preset   []byte // rendered WithAttrs attributes
	group    string // dotted prefix for record attributes
	useColor bool
}

// NewColorTextHandler creates a handler writing to w. A nil opts logs at
// info and above.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	var lv slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		lv = opts.Level
	}
	return &ColorTextHandler{level: lv, w: w, mu: &sync.Mutex{}, useColor: useColor}
}

func (h *ColorTextHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	line := make([]byte, 0, 256)
	line = fmt.Appendf(line, "[%s] [%s] %s", r.Time.Format(time.DateTime), h.levelLabel(r.Level), r.Message)
	line = append(line, h.preset...)
	r.Attrs(func(a slog.Attr) bool {
		line = h.appendAttr(line, h.group, a)
		return true
	})
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line)
	return err
}

func (h *ColorTextHandler) levelLabel(l slog.Level) string {
	label, c := "ERROR", ansiRed
	switch {
	case l < slog.LevelInfo:
		label, c = "DEBUG", ansiGray
	case l < slog.LevelWarn:
		label, c = "INFO", ansiGreen
	case l < slog.LevelError:
		label, c = "WARN", ansiYellow
	}
	if !h.useColor {
		return label
	}
	return c + label + ansiReset
}

func (h *ColorTextHandler) appendAttr(line []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return line
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			line = h.appendAttr(line, prefix, member)
		}
		return line
	}

	line = append(line, ' ')
	if h.useColor {
		line = append(line, ansiCyan...)
	}
	line = append(line, prefix...)
	line = append(line, a.Key...)
	if h.useColor {
		line = append(line, ansiReset...)
	}
	line = append(line, '=')
	return appendValue(line, a.Value)
}

func appendValue(line []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.AppendQuote(line, s)
		}
		return append(line, s...)
	case slog.KindInt64:
		return strconv.AppendInt(line, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(line, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(line, v.Float64(), 'f', 3, 64)
	case slog.KindBool:
		return strconv.AppendBool(line, v.Bool())
	case slog.KindDuration:
		return append(line, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(line, time.RFC3339)
	default:
		return fmt.Append(line, v.Any())
	}
}

func (h *ColorTextHandler) clone() *ColorTextHandler {
	c := *h
	c.preset = append([]byte(nil), h.preset...)
	return &c
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		c.preset = c.appendAttr(c.preset, c.group, a)
	}
	return c
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.group += name + "."
	return c
}
