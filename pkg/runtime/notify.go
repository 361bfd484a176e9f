package runtime

import (
	"sync"

	"github.com/quillforge/fable/pkg/journal"
)

// Notifier fans committed events out to observers (TUI refresh, the
// debugger's watch view). Publication happens after the journal commit
// and never blocks a transition: a subscriber that falls behind loses
// events rather than stalling play.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan journal.Event
	next int
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan journal.Event)}
}

// Subscribe registers an observer channel with the given buffer. The
// cancel func unregisters and closes the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan journal.Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan journal.Event, buffer)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if c, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(c)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

func (n *Notifier) publish(ev journal.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
