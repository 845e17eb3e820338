package events

import (
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	// Subscribe to run progress events
	ch := bus.Subscribe(EventRunProgress)

	// Publish a progress event
	testEvent := &RunProgressEvent{
		BaseEvent: BaseEvent{
			EventType: EventRunProgress,
			Time:      time.Now(),
		},
		RunID:    "run-1",
		Stage:    "upload",
		Fraction: 0.5,
		Message:  "Test message",
	}

	bus.Publish(testEvent)

	// Receive the event
	select {
	case received := <-ch:
		progress, ok := received.(*RunProgressEvent)
		if !ok {
			t.Fatal("Expected RunProgressEvent")
		}
		if progress.RunID != "run-1" {
			t.Errorf("Expected run ID 'run-1', got '%s'", progress.RunID)
		}
		if progress.Fraction != 0.5 {
			t.Errorf("Expected fraction 0.5, got %f", progress.Fraction)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	// Create multiple subscribers
	ch1 := bus.Subscribe(EventSessionChange)
	ch2 := bus.Subscribe(EventSessionChange)

	// Publish a session event
	testEvent := &SessionChangeEvent{
		BaseEvent: BaseEvent{
			EventType: EventSessionChange,
			Time:      time.Now(),
		},
		Authenticated: true,
		UserEmail:     "maker@example.com",
		Reason:        "sign_in",
	}

	bus.Publish(testEvent)

	// Both subscribers should receive it
	received1 := false
	received2 := false

	select {
	case <-ch1:
		received1 = true
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case <-ch2:
		received2 = true
	case <-time.After(100 * time.Millisecond):
	}

	if !received1 || !received2 {
		t.Error("Not all subscribers received the event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	// Subscribe to different event types
	progressCh := bus.Subscribe(EventRunProgress)
	sessionCh := bus.Subscribe(EventSessionChange)

	// Publish progress event
	bus.Publish(&RunProgressEvent{
		BaseEvent: BaseEvent{EventType: EventRunProgress, Time: time.Now()},
		RunID:     "run-1",
	})

	// Only progress subscriber should receive it
	select {
	case <-progressCh:
		// Expected
	case <-time.After(100 * time.Millisecond):
		t.Error("Progress subscriber didn't receive event")
	}

	// Session subscriber should not receive it
	select {
	case <-sessionCh:
		t.Error("Session subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
		// Expected - timeout means no event
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	// Subscribe to all events
	allCh := bus.SubscribeAll()

	// Publish different event types
	bus.Publish(&RunProgressEvent{
		BaseEvent: BaseEvent{EventType: EventRunProgress, Time: time.Now()},
	})

	bus.Publish(&SessionChangeEvent{
		BaseEvent: BaseEvent{EventType: EventSessionChange, Time: time.Now()},
	})

	// Should receive both
	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
			break
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2) // Small buffer
	defer bus.Close()

	ch := bus.Subscribe(EventRunProgress)

	// Fill the buffer
	for i := 0; i < 10; i++ {
		bus.Publish(&RunProgressEvent{
			BaseEvent: BaseEvent{EventType: EventRunProgress, Time: time.Now()},
			RunID:     "run-1",
		})
	}

	// Should not block - excess events are dropped
	// Test passes if we get here without deadlock

	if bus.DroppedEventCount() == 0 {
		t.Error("Expected dropped events with a full buffer")
	}

	// Drain some events
	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			if count == 0 {
				t.Error("Should have received at least some events")
			}
			return
		}
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventRunProgress)

	bus.Close()

	// Channel should be closed
	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.Publish(&RunProgressEvent{
		BaseEvent: BaseEvent{EventType: EventRunProgress, Time: time.Now()},
	})
}

func TestConvenienceMethods(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	sessionCh := bus.Subscribe(EventSessionChange)
	progressCh := bus.Subscribe(EventRunProgress)
	stateCh := bus.Subscribe(EventRunStateChange)

	// Test PublishSessionChange
	bus.PublishSessionChange(true, "maker@example.com", "restore")

	select {
	case event := <-sessionCh:
		session, ok := event.(*SessionChangeEvent)
		if !ok {
			t.Fatal("Expected SessionChangeEvent")
		}
		if session.UserEmail != "maker@example.com" {
			t.Errorf("Expected 'maker@example.com', got '%s'", session.UserEmail)
		}
		if !session.Authenticated {
			t.Error("Expected authenticated session event")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for session event")
	}

	// Test PublishRunProgress
	bus.PublishRunProgress("run-1", "upload", 0.75, 750, 1000, "uploading")

	select {
	case event := <-progressCh:
		progress, ok := event.(*RunProgressEvent)
		if !ok {
			t.Fatal("Expected RunProgressEvent")
		}
		if progress.Fraction != 0.75 {
			t.Errorf("Expected fraction 0.75, got %f", progress.Fraction)
		}
		if progress.BytesTotal != 1000 {
			t.Errorf("Expected total 1000, got %d", progress.BytesTotal)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for progress event")
	}

	// Test PublishRunStateChange
	bus.PublishRunStateChange("run-1", "job-123", "uploading", "processing", "")

	select {
	case event := <-stateCh:
		state, ok := event.(*RunStateChangeEvent)
		if !ok {
			t.Fatal("Expected RunStateChangeEvent")
		}
		if state.NewState != "processing" {
			t.Errorf("Expected new state 'processing', got '%s'", state.NewState)
		}
		if state.JobID != "job-123" {
			t.Errorf("Expected job ID 'job-123', got '%s'", state.JobID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for state change event")
	}
}
