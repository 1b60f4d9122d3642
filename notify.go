package authflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// NotificationKind distinguishes success from error toasts
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Style describes how a notification is painted
type Style struct {
	Background string `json:"background"`
	Color      string `json:"color"`
}

// Default notification styles
var (
	SuccessStyle = Style{Background: "#4BB543", Color: "#fff"}
	ErrorStyle   = Style{Background: "#ff4d4f", Color: "#fff"}
)

// StyleFor returns the fixed style for a notification kind
func StyleFor(kind NotificationKind) Style {
	if kind == NotifySuccess {
		return SuccessStyle
	}
	return ErrorStyle
}

// Notification is a transient message for the user
type Notification struct {
	Kind      NotificationKind
	Message   string
	Duration  time.Duration
	Placement string
	Style     Style
}

// Notifier displays transient messages. Notify must not block on the user;
// the controller never waits for an acknowledgement.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier is a development implementation that logs notifications
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Kind == NotifyError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "notification", "kind", n.Kind, "message", n.Message, "duration", n.Duration, "placement", n.Placement)
}

// WriterNotifier prints notifications as plain lines, for terminals
type WriterNotifier struct {
	W io.Writer
}

func (w *WriterNotifier) Notify(n Notification) {
	prefix := "✓"
	if n.Kind == NotifyError {
		prefix = "✗"
	}
	fmt.Fprintf(w.W, "%s %s\n", prefix, n.Message)
}
