// Package progress fans search progress events out to subscribers, in
// process or over Redis pub/sub.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the search.
const (
	TypeImproved   = "ils.improved"
	TypeSplitRound = "split.round"
	TypeFinished   = "run.finished"
)

// AllTopics subscribes to the events of every run.
const AllTopics = "*"

// Event is one progress notification. Topic is the run id.
type Event struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(typ string, data map[string]any) Event {
	return Event{ID: uuid.NewString(), Type: typ, At: time.Now().UTC(), Data: data}
}

// Publisher is what the search needs. Publishing never blocks the search
// and never fails it.
type Publisher interface {
	Publish(topic string, evt Event)
}

// EventBroker adds subscriptions on top of Publisher.
type EventBroker interface {
	Publisher
	Subscribe(topic string) chan Event
	Unsubscribe(topic string, ch chan Event)
}

// Broker is the in-memory EventBroker. Slow subscribers drop events.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[topic]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, topic)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(topic string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fanOut(topic, evt)
	if topic != AllTopics {
		b.fanOut(AllTopics, evt)
	}
}

func (b *Broker) fanOut(topic string, evt Event) {
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}
