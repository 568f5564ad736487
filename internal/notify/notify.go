// Package notify defines the user-facing outcome channel for store
// operations. The UI layer plugs in its own implementation; the default
// writes to the structured log.
package notify

import "log/slog"

// Notifier receives user-visible outcome messages.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// Logger adapts a slog.Logger into a Notifier.
type Logger struct {
	L *slog.Logger
}

func (n Logger) Success(message string) {
	if n.L != nil {
		n.L.Info(message, "outcome", "success")
	}
}

func (n Logger) Error(message string) {
	if n.L != nil {
		n.L.Error(message, "outcome", "error")
	}
}

func (n Logger) Info(message string) {
	if n.L != nil {
		n.L.Info(message, "outcome", "info")
	}
}

// Discard drops every message.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
func (Discard) Info(string)    {}
