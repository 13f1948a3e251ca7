package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger: структурированный логгер, аргументы передаются парами ключ/значение:
//
//	log.Info("Deal room created", "room_id", room.ID, "status", room.Status)
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
}

type slogLogger struct {
	l    *slog.Logger
	exit func(int)
}

// New создает JSON-логгер в stdout с указанным уровнем (debug, info, warn, error).
func New(level string) Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &slogLogger{l: slog.New(h), exit: os.Exit}
}

// Nop отбрасывает все записи. Удобно в тестах.
func Nop() Logger {
	return NewWithWriter(io.Discard, "error")
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *slogLogger) Debug(msg string, keysAndValues ...any) {
	s.l.Debug(msg, keysAndValues...)
}

func (s *slogLogger) Info(msg string, keysAndValues ...any) {
	s.l.Info(msg, keysAndValues...)
}

func (s *slogLogger) Warn(msg string, keysAndValues ...any) {
	s.l.Warn(msg, keysAndValues...)
}

func (s *slogLogger) Error(msg string, keysAndValues ...any) {
	s.l.Error(msg, keysAndValues...)
}

func (s *slogLogger) Fatal(msg string, keysAndValues ...any) {
	s.l.Error(msg, keysAndValues...)
	s.exit(1)
}

func (s *slogLogger) With(keysAndValues ...any) Logger {
	return &slogLogger{l: s.l.With(keysAndValues...), exit: s.exit}
}
