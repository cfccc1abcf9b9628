package savedstore

import (
	"context"
	"log/slog"
)

// NotificationKind tells a UI how to style a toast.
type NotificationKind int

const (
	Success NotificationKind = iota
	Failure
)

func (k NotificationKind) String() string {
	if k == Success {
		return "success"
	}
	return "failure"
}

// Notification is a short user-facing message about a mutation's outcome.
type Notification struct {
	Kind    NotificationKind
	Message string
}

// Notifier receives notifications. Notify is called synchronously after the
// store's lock is released and must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// SlogNotifier writes notifications to a logger. Handy for CLIs and servers
// where there is no toast surface.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (n SlogNotifier) Notify(note Notification) {
	level := slog.LevelInfo
	if note.Kind == Failure {
		level = slog.LevelWarn
	}
	n.Logger.Log(context.Background(), level, note.Message, slog.String("kind", note.Kind.String()))
}

// ChanNotifier forwards notifications to a channel. When the channel is full
// the notification is dropped rather than stalling the store.
type ChanNotifier chan Notification

func (c ChanNotifier) Notify(n Notification) {
	select {
	case c <- n:
	default:
	}
}
