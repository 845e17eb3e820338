// Package events provides a non-blocking pub/sub bus used to surface session
// and run activity to front ends without coupling them to the core packages.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopclip/shopclip-cli/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// EventSessionChange - sign-in, sign-out, restore, profile refresh
	EventSessionChange EventType = "session_change"
	// EventRunStateChange - orchestrator state machine transitions
	EventRunStateChange EventType = "run_state_change"
	// EventRunProgress - upload bytes / processing percentage updates
	EventRunProgress EventType = "run_progress"
	// EventLog - log lines surfaced to subscribers
	EventLog EventType = "log"
	// EventError - error conditions outside a run transition
	EventError EventType = "error"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// SessionChangeEvent announces a change to the authenticated session.
type SessionChangeEvent struct {
	BaseEvent
	Authenticated bool
	UserEmail     string
	Reason        string // "sign_in", "sign_out", "restore", "refresh", "rejected"
}

// RunStateChangeEvent announces an orchestrator transition.
type RunStateChangeEvent struct {
	BaseEvent
	RunID    string
	JobID    string
	OldState string
	NewState string
	Message  string
}

// RunProgressEvent carries progress for the active run.
type RunProgressEvent struct {
	BaseEvent
	RunID        string
	Stage        string  // "upload" or "processing"
	Fraction     float64 // 0.0 to 1.0
	BytesCurrent int64
	BytesTotal   int64
	Message      string
}

// LogEvent carries a log line for subscribers that render activity feeds.
type LogEvent struct {
	BaseEvent
	Level   string
	Message string
	Err     error
}

// ErrorEvent reports an error outside the run state machine.
type ErrorEvent struct {
	BaseEvent
	Scope string // "auth", "upload", "poll"
	Err   error
}

// EventBus manages event subscriptions and publishing. Publishing never
// blocks; events to a full subscriber buffer are dropped and counted.
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with the specified buffer size.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Unsubscribe removes a subscription channel from a specific event type.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// Close shuts down the event bus and closes all subscriber channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// DroppedEventCount returns the total number of events dropped due to full
// subscriber buffers.
func (eb *EventBus) DroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// PublishSessionChange is a convenience publisher for session transitions.
func (eb *EventBus) PublishSessionChange(authenticated bool, email, reason string) {
	eb.Publish(&SessionChangeEvent{
		BaseEvent:     BaseEvent{EventType: EventSessionChange, Time: time.Now()},
		Authenticated: authenticated,
		UserEmail:     email,
		Reason:        reason,
	})
}

// PublishRunStateChange is a convenience publisher for orchestrator transitions.
func (eb *EventBus) PublishRunStateChange(runID, jobID, oldState, newState, message string) {
	eb.Publish(&RunStateChangeEvent{
		BaseEvent: BaseEvent{EventType: EventRunStateChange, Time: time.Now()},
		RunID:     runID,
		JobID:     jobID,
		OldState:  oldState,
		NewState:  newState,
		Message:   message,
	})
}

// PublishRunProgress is a convenience publisher for run progress updates.
func (eb *EventBus) PublishRunProgress(runID, stage string, fraction float64, current, total int64, message string) {
	eb.Publish(&RunProgressEvent{
		BaseEvent:    BaseEvent{EventType: EventRunProgress, Time: time.Now()},
		RunID:        runID,
		Stage:        stage,
		Fraction:     fraction,
		BytesCurrent: current,
		BytesTotal:   total,
		Message:      message,
	})
}
