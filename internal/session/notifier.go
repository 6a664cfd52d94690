package session

import "time"

// Toast kinds understood by the UI layer.
const (
	NoteSuccess = "success"
	NoteError   = "error"
	NoteWarning = "warning"
	NoteInfo    = "info"
)

// Operation names used for progress events.
const (
	OpExtract   = "extract"
	OpReference = "reference"
	OpAnalyze   = "analyze"
)

// Notifier receives short-lived, user-facing notifications. The gateway
// broadcasts them over the websocket; the CLI logs them.
type Notifier interface {
	Notify(kind, message string)
}

// EventSink receives synthetic progress updates for in-flight operations.
type EventSink interface {
	Progress(op string, value float64, remaining time.Duration)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string) {}

type noopSink struct{}

func (noopSink) Progress(string, float64, time.Duration) {}
