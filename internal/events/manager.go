package events

import (
	"context"
	"log/slog"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Subscriber is a registered listener on the bus.
type Subscriber struct {
	ID   string
	ch   chan Event
	done chan struct{}
}

// Events returns the channel this subscriber receives broadcast events on.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Manager fans out broadcast events to every subscriber. Emission is
// best-effort and non-blocking: a slow subscriber has events dropped for
// it rather than stalling the emitter.
type Manager struct {
	logger      *slog.Logger
	events      chan Event
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	wg          sync.WaitGroup

	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewManager creates a new event bus Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:      logger,
		events:      make(chan Event, 1000),
		subscribers: make(map[string]*Subscriber),
	}
}

// Start begins the broadcast loop. It blocks until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("event manager starting")

	for {
		select {
		case event := <-m.events:
			m.broadcast(event)
		case <-ctx.Done():
			m.logger.Info("event manager stopping")
			m.closeAllSubscribers()
			return
		}
	}
}

// Shutdown drains any in-flight events and closes every subscriber.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownMu.Lock()
	if m.shutdown {
		m.shutdownMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range m.events {
			m.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("event drain timeout, some events may be lost")
	}

	m.wg.Wait()
	return nil
}

// broadcast sends event to every subscriber without blocking.
func (m *Manager) broadcast(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	delivered, dropped := 0, 0
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("dropped event for slow subscriber",
				"subscriber_id", sub.ID, "event_type", string(event.Type))
		}
	}

	m.logger.Debug("event broadcast",
		"event_type", string(event.Type), "delivered", delivered, "dropped", dropped)
}

// Emit enqueues an event for broadcast. Safe to call concurrently; it does
// not block on slow consumers.
func (m *Manager) Emit(event Event) {
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()
	if m.shutdown {
		return
	}

	select {
	case m.events <- event:
	default:
		m.logger.Warn("event queue full, dropping event", "event_type", string(event.Type))
	}
}

// Subscribe registers a new listener and returns it. Callers range over
// Events(); Unsubscribe removes and closes the subscriber, and any that
// are still registered are closed when the context given to Start ends.
func (m *Manager) Subscribe() (*Subscriber, error) {
	subID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		ID:   subID,
		ch:   make(chan Event, 100),
		done: make(chan struct{}),
	}

	m.mu.Lock()
	m.subscribers[sub.ID] = sub
	m.mu.Unlock()

	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscribers[id]
	if !ok {
		return
	}
	delete(m.subscribers, id)
	close(sub.done)
	close(sub.ch)
}

func (m *Manager) closeAllSubscribers() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sub := range m.subscribers {
		close(sub.done)
		close(sub.ch)
		delete(m.subscribers, id)
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}
