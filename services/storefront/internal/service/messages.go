package service

import "context"

// Success messages, one per completed mutation.
const (
	MsgCreated = "Thank you! Your review has been submitted."
	MsgUpdated = "Your review has been updated."
	MsgDeleted = "Your review has been deleted."
)

// MessageSink receives user-facing notifications.
type MessageSink interface {
	Success(msg string)
	Error(msg string)
}

// Messages collects notifications for one request so they can be returned
// to the browser alongside the refreshed model.
type Messages struct {
	Successes []string `json:"success,omitempty"`
	Errors    []string `json:"error,omitempty"`
}

// Success implements MessageSink.
func (m *Messages) Success(msg string) { m.Successes = append(m.Successes, msg) }

// Error implements MessageSink.
func (m *Messages) Error(msg string) { m.Errors = append(m.Errors, msg) }

type discardSink struct{}

func (discardSink) Success(string) {}
func (discardSink) Error(string)   {}

func sinkOrDiscard(sink MessageSink) MessageSink {
	if sink == nil {
		return discardSink{}
	}
	return sink
}

// Confirmer asks the viewer to confirm a destructive action.
type Confirmer func(ctx context.Context, prompt string) bool

// Confirmed returns a Confirmer with a fixed answer, for callers that
// collected the viewer's answer up front.
func Confirmed(answer bool) Confirmer {
	return func(context.Context, string) bool { return answer }
}
