// Package eventbus fans out core Events to external observers: a
// bounded, multi-subscriber, single-consumer-per-subscriber channel hub.
// A subscriber that falls behind loses its oldest buffered event rather
// than blocking the publisher.
package eventbus

import "github.com/ioustamora/datamesh-sub004/internal/model"

// DefaultBufferSize matches the specification's default per-subscriber
// buffer (1024 events).
const DefaultBufferSize = 1024

// Subscription is a handle returned by Subscribe. Events arrive on
// Events(); call Close to stop receiving them.
type Subscription struct {
	ch  chan model.Event
	bus *Bus
}

// Events returns the channel this subscription receives events on. It
// is closed when the Bus is closed or Close is called.
func (s *Subscription) Events() <-chan model.Event { return s.ch }

// Close unregisters the subscription from its Bus.
func (s *Subscription) Close() { s.bus.unsubscribe(s.ch) }

// Bus is a multi-producer, single-consumer-per-subscriber event hub.
// The zero value is not usable; construct with New.
type Bus struct {
	bufferSize int
	subscribe  chan chan model.Event
	unsubPipe  chan chan model.Event
	publish    chan model.Event
	done       chan struct{}
}

// New starts a Bus with the given per-subscriber buffer size (use
// DefaultBufferSize, or pass 0, for the specification default). Call
// Close to stop its internal loop once no more events will be published.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	b := &Bus{
		bufferSize: bufferSize,
		subscribe:  make(chan chan model.Event),
		unsubPipe:  make(chan chan model.Event),
		publish:    make(chan model.Event),
		done:       make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan model.Event, b.bufferSize)
	select {
	case b.subscribe <- ch:
	case <-b.done:
		close(ch)
	}
	return &Subscription{ch: ch, bus: b}
}

func (b *Bus) unsubscribe(ch chan model.Event) {
	select {
	case b.unsubPipe <- ch:
	case <-b.done:
	}
}

// Publish emits ev to every current subscriber. A subscriber whose
// buffer is full drops its oldest event to make room, never blocking
// the publisher.
func (b *Bus) Publish(ev model.Event) {
	select {
	case b.publish <- ev:
	case <-b.done:
	}
}

// Close stops the Bus's internal loop and closes every live
// subscription channel. Subsequent Publish/Subscribe calls are no-ops.
func (b *Bus) Close() {
	close(b.done)
}

func (b *Bus) run() {
	subs := make(map[chan model.Event]struct{})
	for {
		select {
		case ch := <-b.subscribe:
			subs[ch] = struct{}{}
		case ch := <-b.unsubPipe:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		case ev := <-b.publish:
			for ch := range subs {
				deliver(ch, ev)
			}
		case <-b.done:
			for ch := range subs {
				close(ch)
			}
			return
		}
	}
}

// deliver sends ev on ch, dropping the oldest buffered event and
// retrying once if ch is full.
func deliver(ch chan model.Event, ev model.Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
