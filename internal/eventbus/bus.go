package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/replink/schema"
)

// Bus fans console events out to subscribers. Publishing never blocks; a
// subscriber that cannot keep up drops events, with drop accounting in the
// logs. The bus satisfies core.TerminalSink so it can sit directly behind the
// driver.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan schema.ConsoleEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan schema.ConsoleEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan schema.ConsoleEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.ConsoleEvent, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		if _, live := b.subs[ch]; live {
			delete(b.subs, ch)
			// Close under the mutex so an in-flight publish cannot send
			// on the closed channel.
			close(ch)
		}
		b.mu.Unlock()
		if b.log != nil {
			b.log.Debug("eventbus unsubscribe")
		}
	}
}

// OnOutputForDisplay publishes device output bytes.
func (b *Bus) OnOutputForDisplay(data []byte) {
	if len(data) == 0 {
		return
	}
	payload := append([]byte(nil), data...)
	b.publish(schema.ConsoleEvent{Type: schema.ConsoleOutput, Data: payload})
}

// OnTitleChanged publishes a title update.
func (b *Bus) OnTitleChanged(text string, append bool) {
	b.publish(schema.ConsoleEvent{Type: schema.ConsoleTitle, Title: text, Append: append})
}

func (b *Bus) publish(event schema.ConsoleEvent) {
	if b == nil {
		return
	}
	// Sends are non-blocking, so holding the mutex across them is cheap
	// and keeps unsubscribe from closing a channel mid-send.
	dropped := 0
	b.mu.Lock()
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "count", dropped)
	}
}
