package goSession

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// EventType names a session lifecycle event.
type EventType string

const (
	// EventLogin fires once per committed login, including the login chained
	// after Register.
	EventLogin EventType = "login"
	// EventLogout fires on every Logout call.
	EventLogout EventType = "logout"
	// EventRegister fires when the server created an account.
	EventRegister EventType = "register"
	// EventTokenExpired fires when the server rejected the stored token or an
	// offline rule refused it.
	EventTokenExpired EventType = "token_expired"
	// EventProfileUpdated fires after a profile update was merged.
	EventProfileUpdated EventType = "profile_updated"
	// EventAvatarUpdated fires after a new image URL was merged.
	EventAvatarUpdated EventType = "avatar_updated"
)

// Event is delivered to the EventSink. Profile is a copy; sinks may keep it.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	UserID    int64             `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	Profile   *Profile          `json:"user_info,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EventSink receives events from the dispatcher goroutine. Collaborators that react
// to the session (API key propagation, dependent data refresh) implement it.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink buffers events for a consumer goroutine.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
