package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// eventEnvelope is the wire shape pushed to stream subscribers.
type eventEnvelope struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`
}

// EventBroker is an EventPublisher that fans events out to connected SSE
// subscribers (achievement/gamification consumers) and mirrors them to the
// log. A slow subscriber loses events rather than blocking the publisher —
// delivery was at-least-once with duplicates allowed to begin with, so
// consumers resync from persisted state anyway.
type EventBroker struct {
	mu   sync.Mutex
	subs map[string]chan eventEnvelope
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[string]chan eventEnvelope)}
}

func (b *EventBroker) Publish(_ context.Context, name string, payload interface{}) error {
	log.Printf("📣 [EVENT] %s %+v", name, payload)

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- eventEnvelope{Name: name, Payload: payload}:
		default:
			log.Printf("⚠️  [EVENT] subscriber %s is not draining, dropping %s", id, name)
		}
	}
	return nil
}

func (b *EventBroker) subscribe() (string, chan eventEnvelope) {
	id := uuid.NewString()
	ch := make(chan eventEnvelope, 16)
	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *EventBroker) unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// StreamLifecycleEventsSSE streams lifecycle events to a consumer over SSE.
func (b *EventBroker) StreamLifecycleEventsSSE(c *fiber.Ctx) error {
	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	subID, events := b.subscribe()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer b.unsubscribe(subID)

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case env := <-events:
				data, err := json.Marshal(env.Payload)
				if err != nil {
					log.Printf("SSE marshal error for %s: %v", env.Name, err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Name, data)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
