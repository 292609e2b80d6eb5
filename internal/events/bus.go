// Package events provides an in-process publish/subscribe bus used to fan
// engine activity out to the API layer and websocket clients.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated  EventType = "SIGNAL_GENERATED"
	EventSignalAccepted   EventType = "SIGNAL_ACCEPTED"
	EventSignalRejected   EventType = "SIGNAL_REJECTED"
	EventBacktestStarted  EventType = "BACKTEST_STARTED"
	EventBacktestProgress EventType = "BACKTEST_PROGRESS"
	EventBacktestFinished EventType = "BACKTEST_FINISHED"
	EventBacktestFailed   EventType = "BACKTEST_FAILED"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Each subscriber runs in its own
// goroutine so a slow consumer never blocks the publisher.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignalGenerated publishes a freshly composed signal
func (eb *EventBus) PublishSignalGenerated(pair, signalType string, confidence float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"pair":       pair,
			"type":       signalType,
			"confidence": confidence,
		},
	})
}

// PublishSignalAccepted publishes a signal that cleared validation
func (eb *EventBus) PublishSignalAccepted(pair, signalType string, confidence float64) {
	eb.Publish(Event{
		Type: EventSignalAccepted,
		Data: map[string]interface{}{
			"pair":       pair,
			"type":       signalType,
			"confidence": confidence,
		},
	})
}

// PublishSignalRejected publishes a signal that failed validation
func (eb *EventBus) PublishSignalRejected(pair, signalType, reason string) {
	eb.Publish(Event{
		Type: EventSignalRejected,
		Data: map[string]interface{}{
			"pair":   pair,
			"type":   signalType,
			"reason": reason,
		},
	})
}

// PublishBacktestProgress publishes bar-level progress for a running backtest
func (eb *EventBus) PublishBacktestProgress(id, pair string, done, total int) {
	eb.Publish(Event{
		Type: EventBacktestProgress,
		Data: map[string]interface{}{
			"backtest_id": id,
			"pair":        pair,
			"done":        done,
			"total":       total,
		},
	})
}

// PublishBacktestFinished publishes the headline numbers of a finished run
func (eb *EventBus) PublishBacktestFinished(id, pair string, trades int, finalBalance float64) {
	eb.Publish(Event{
		Type: EventBacktestFinished,
		Data: map[string]interface{}{
			"backtest_id":   id,
			"pair":          pair,
			"trades":        trades,
			"final_balance": finalBalance,
		},
	})
}

// PublishBacktestFailed publishes a run that ended in error
func (eb *EventBus) PublishBacktestFailed(id, pair, errMsg string) {
	eb.Publish(Event{
		Type: EventBacktestFailed,
		Data: map[string]interface{}{
			"backtest_id": id,
			"pair":        pair,
			"error":       errMsg,
		},
	})
}

// PublishError publishes a component-level error
func (eb *EventBus) PublishError(component, message string) {
	eb.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"component": component,
			"message":   message,
		},
	})
}
