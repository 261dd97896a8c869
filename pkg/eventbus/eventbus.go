// Package eventbus is a minimal in-memory pub/sub bus connecting the
// monitoring loop to its subscribers without coupling them to the loop.
package eventbus

import (
	"context"
	"sync"
)

// Topics published by the orchestrator.
const (
	TopicMonitorUpdate = "monitor.update"
	TopicAnalysisDone  = "analysis.done"
)

// Event is a single bus message.
type Event struct {
	Type    string
	Source  string
	Payload any
}

// Publisher publishes events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Subscriber receives events of the topics it declares.
type Subscriber interface {
	Handle(ctx context.Context, evt Event)
	Topics() []string
}

// Bus dispatches events to subscribers from one goroutine, so a cycle's
// events arrive in publish order.
type Bus struct {
	mu    sync.RWMutex
	subs  map[string][]Subscriber
	queue chan Event
	stop  chan struct{}
	once  sync.Once
}

// NewBus constructs a bus with the given queue depth and starts its
// dispatch loop.
func NewBus(buffer int) *Bus {
	b := &Bus{
		subs:  make(map[string][]Subscriber),
		queue: make(chan Event, buffer),
		stop:  make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Bus) loop() {
	for {
		select {
		case evt := <-b.queue:
			b.dispatch(evt)
		case <-b.stop:
			return
		}
	}
}

// Close stops the dispatch loop. Pending queued events are dropped.
func (b *Bus) Close() { b.once.Do(func() { close(b.stop) }) }

// Register adds a subscriber for its declared topics.
func (b *Bus) Register(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range sub.Topics() {
		b.subs[t] = append(b.subs[t], sub)
	}
}

// Unregister removes a subscriber from all topics it was registered on.
func (b *Bus) Unregister(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, list := range b.subs {
		kept := list[:0]
		for _, s := range list {
			if s != sub {
				kept = append(kept, s)
			}
		}
		b.subs[t] = kept
	}
}

// Publish enqueues an event, blocking until queued or the context ends.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	select {
	case b.queue <- evt:
		return nil
	case <-b.stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch runs handlers inline on the loop goroutine; a slow subscriber
// delays later events rather than reordering them.
func (b *Bus) dispatch(evt Event) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[evt.Type]...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.Handle(context.Background(), evt)
	}
}
