// Package postoffice implements the single-producer/single-consumer
// mailbox network that decouples senders from receivers (spec.md §4.3): an
// Outbox is a FIFO of opaque transport messages with a non-blocking
// deposit and a blocking retrieve, and a PostOffice is a registry of
// Outboxes keyed by receiver reference, created lazily on first deposit.
//
// The locking discipline follows DESIGN NOTES §9: the PostOffice's map is
// guarded by a mutex for structural changes only (lookup/insert of an
// Outbox), while each Outbox is internally synchronized and needs no
// external lock for Deposit/Retrieve, in the spirit of
// peer/hostport.Peer's own mutation of its subscriber map.
package postoffice

import (
	"context"
	"sync"

	"github.com/muscle3/muscle3-go/api/transport"
)

// Outbox is a FIFO queue of transport messages bound for one receiver
// endpoint. Deposit never blocks; Retrieve blocks until a message is
// available or its context is cancelled.
type Outbox struct {
	mu     sync.Mutex
	items  []*transport.Message
	notify chan struct{}
}

// NewOutbox returns an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

// Deposit appends msg to the tail of the queue. Non-blocking.
func (o *Outbox) Deposit(msg *transport.Message) {
	o.mu.Lock()
	o.items = append(o.items, msg)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Retrieve blocks until a message is available, removing and returning the
// head of the queue (FIFO), or returns ctx.Err() if ctx is cancelled
// first.
func (o *Outbox) Retrieve(ctx context.Context) (*transport.Message, error) {
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			msg := o.items[0]
			o.items = o.items[1:]
			o.mu.Unlock()
			return msg, nil
		}
		o.mu.Unlock()

		select {
		case <-o.notify:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of messages currently queued. Intended for
// inspection by the snapshot subsystem (out of core scope per spec.md §1),
// and for tests.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
