// Package transport declares the pluggable transport contract used by the
// communicator (spec.md §4.4): a Server that exposes a location string and
// drains a PostOffice on behalf of remote peers, a Client that can
// round-trip a receive against one such Server, and the wire-neutral
// TransportMessage envelope that travels between them.
//
// Concrete transports (transport/inprocess, transport/tcp) implement this
// package's interfaces and register a Registration so the communicator can
// discover them by location-string prefix, in the spirit of DESIGN NOTES
// §9's "registration table of {scheme, make_client, make_server}".
package transport

import (
	"context"

	"github.com/muscle3/muscle3-go/ref"
)

// Message is the abstract, transport-neutral envelope described in
// spec.md §6: sender/receiver refs, a timestamp pair, and the already
// encoded settings overlay and payload. PayloadIsConfiguration marks a
// Payload that carries a gob-encoded settings.Map rather than an
// arbitrary user byte string — the wire form of msgpack's
// ExtTypeId.CONFIGURATION wrapper, used for muscle_parameters_in and
// other parameter-carrying ports (spec.md §4.6, §9).
type Message struct {
	Sender                 ref.Reference
	Receiver               ref.Reference
	Timestamp              float64
	NextTimestamp          *float64
	Overlay                []byte
	Payload                []byte
	PayloadIsConfiguration bool
}

// PostOffice is the subset of postoffice.PostOffice a Server needs: the
// ability to pull the next queued message for a receiver, blocking until
// one is deposited or the context is cancelled. Declaring it here (rather
// than importing package postoffice) avoids a cyclic dependency between
// the communicator, the post office, and the transport servers that query
// it — the resolution DESIGN NOTES §9 calls for.
type PostOffice interface {
	GetMessage(ctx context.Context, receiver ref.Reference) (*Message, error)
}

// Server is the receiving half of a transport: it owns a listening
// location and, on request, drains the next message bound for a given
// receiver reference out of its PostOffice.
type Server interface {
	// Location returns this server's location string, "<scheme>:<opaque>".
	Location() string

	// Start begins accepting requests. It must block until ready.
	Start() error

	// Stop stops accepting requests and drains in-flight handlers. It
	// must block until fully stopped.
	Stop() error
}

// Client is the sending half of a transport, bound to one peer instance's
// location for its lifetime.
type Client interface {
	// CanConnectTo reports whether this transport can reach the given
	// peer-advertised location, typically by scheme prefix.
	CanConnectTo(location string) bool

	// Receive performs the round trip to fetch the next message destined
	// for receiver from the peer this Client is bound to.
	Receive(ctx context.Context, receiver ref.Reference) (*Message, error)

	// Close releases any resources (connections, goroutines) held by the
	// client.
	Close() error
}

// NewServerFunc constructs a Server bound to the given PostOffice.
type NewServerFunc func(po PostOffice) (Server, error)

// NewClientFunc constructs a Client bound to a specific peer location
// string, as returned by that peer's Server.Location().
type NewClientFunc func(location string) (Client, error)

// Registration is one entry in the transport registry populated at
// communicator construction time (DESIGN NOTES §9).
type Registration struct {
	Scheme    string
	NewServer NewServerFunc
	NewClient NewClientFunc
}
