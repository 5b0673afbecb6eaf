package queue

import (
	"time"

	"github.com/poiesic/chunkflow/core"
)

// EventType identifies a job lifecycle event.
type EventType string

const (
	EventJobQueued    EventType = "job-queued"
	EventJobStarted   EventType = "job-started"
	EventJobProgress  EventType = "job-progress"
	EventJobCompleted EventType = "job-completed"
	EventJobFailed    EventType = "job-failed"
	EventJobCancelled EventType = "job-cancelled"
)

// Event is a typed progress notification pushed to subscribers.
type Event struct {
	Type       EventType
	JobId      string
	DocumentId string

	// Progress is set on job-progress events.
	Progress *core.ProcessingProgress

	// Error is set on job-failed events.
	Error string

	Timestamp time.Time
}

// Subscribe registers a callback for job events and returns an unsubscribe
// function. Callbacks run synchronously on the emitting goroutine and must
// not block.
func (p *Processor) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSubId
	p.nextSubId++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// emit delivers an event to all current subscribers.
func (p *Processor) emit(event Event) {
	event.Timestamp = time.Now().UTC()

	p.mu.Lock()
	subs := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}
