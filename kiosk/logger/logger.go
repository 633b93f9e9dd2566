package logger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeHTTP   LogType = "HTTP"
	TypeDB     LogType = "DB"
	TypeDevice LogType = "DEV"
	TypeSystem LogType = "SYS"
	TypeError  LogType = "ERR"
)

// CustomHandler renders slog records as colored single-line console output
// for the kiosk's attached terminal.
type CustomHandler struct {
	opts      *slog.HandlerOptions
	prefix    string
	startTime time.Time
	attrs     []slog.Attr
	groups    []string
}

func NewHandler(prefix string, level slog.Level) *CustomHandler {
	return &CustomHandler{
		opts:      &slog.HandlerOptions{Level: level},
		prefix:    prefix,
		startTime: time.Now(),
		attrs:     make([]slog.Attr, 0),
		groups:    make([]string, 0),
	}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CustomHandler{
		opts:      h.opts,
		prefix:    h.prefix,
		startTime: h.startTime,
		attrs:     append(h.attrs, attrs...),
		groups:    h.groups,
	}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	return &CustomHandler{
		opts:      h.opts,
		prefix:    h.prefix,
		startTime: h.startTime,
		attrs:     h.attrs,
		groups:    append(h.groups, name),
	}
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	timestamp := time.Now().Format("15:04:05")

	var levelColor, levelText string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = colorPurple
		levelText = "DEBUG"
	case slog.LevelInfo:
		levelColor = colorGreen
		levelText = "INFO"
	case slog.LevelWarn:
		levelColor = colorYellow
		levelText = "WARN"
	case slog.LevelError:
		levelColor = colorRed
		levelText = "ERROR"
	}

	logType := getLogType(&r)

	var attrsStr string
	appendAttr := func(a slog.Attr) bool {
		if a.Key != "type" {
			attrsStr += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		}
		return true
	}
	for _, attr := range h.attrs {
		appendAttr(attr)
	}
	r.Attrs(appendAttr)

	fmt.Printf("%s[%s] [%s] [%s%s%s] [%s] %s%s%s\n",
		colorWhite,
		h.prefix,
		timestamp,
		levelColor,
		levelText,
		colorWhite,
		logType,
		r.Message,
		attrsStr,
		colorReset,
	)

	return nil
}

func getLogType(r *slog.Record) LogType {
	logType := TypeSystem
	if r.Level == slog.LevelError {
		logType = TypeError
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "type" {
			switch a.Value.String() {
			case "http":
				logType = TypeHTTP
			case "db":
				logType = TypeDB
			case "device":
				logType = TypeDevice
			}
			return false
		}
		return true
	})
	return logType
}
