package postoffice

import (
	"context"
	"sync"

	"github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/ref"
)

// PostOffice maps receiver-instance references to their Outbox, creating
// an Outbox atomically on first deposit to an unknown receiver (spec.md
// §4.3). It implements api/transport.PostOffice, letting any Server query
// it without a cyclic import back to the communicator.
type PostOffice struct {
	mu       sync.Mutex
	outboxes map[string]*Outbox
}

// New returns an empty PostOffice.
func New() *PostOffice {
	return &PostOffice{outboxes: make(map[string]*Outbox)}
}

func (p *PostOffice) outboxFor(receiver ref.Reference) *Outbox {
	key := receiver.String()

	p.mu.Lock()
	defer p.mu.Unlock()

	ob, ok := p.outboxes[key]
	if !ok {
		ob = NewOutbox()
		p.outboxes[key] = ob
	}
	return ob
}

// Deposit places msg in the Outbox for receiver, creating it if necessary.
func (p *PostOffice) Deposit(receiver ref.Reference, msg *transport.Message) {
	p.outboxFor(receiver).Deposit(msg)
}

// GetMessage retrieves the next message for receiver, blocking until one
// is deposited or ctx is cancelled. This is the server-side drain path
// consulted by transport servers on behalf of remote peers (spec.md §4.3).
func (p *PostOffice) GetMessage(ctx context.Context, receiver ref.Reference) (*transport.Message, error) {
	return p.outboxFor(receiver).Retrieve(ctx)
}

// OutboxCount returns the number of distinct receivers with an Outbox.
// Intended for tests and introspection.
func (p *PostOffice) OutboxCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outboxes)
}
