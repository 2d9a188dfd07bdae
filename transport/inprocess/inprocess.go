// Package inprocess implements an in-memory Server/Client pair, used for
// instances that share a process (the common case in tests and in
// MUSCLE3's "duplication mapper" single-process coupled runs, spec.md
// §4.4). Its Server does no listening at all: Location() returns an
// opaque handle into a process-wide registry, and its Client looks that
// handle straight back up and drains the target's PostOffice directly.
package inprocess

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	apitransport "github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/ref"
)

// Scheme is the location-string prefix this transport claims.
const Scheme = "inprocess"

var (
	registryMu sync.RWMutex
	registry   = map[string]apitransport.PostOffice{}
	nextID     int64
)

func register(po apitransport.PostOffice) string {
	id := atomic.AddInt64(&nextID, 1)
	location := fmt.Sprintf("%s:%d", Scheme, id)

	registryMu.Lock()
	registry[location] = po
	registryMu.Unlock()

	return location
}

func lookup(location string) (apitransport.PostOffice, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	po, ok := registry[location]
	return po, ok
}

func unregister(location string) {
	registryMu.Lock()
	delete(registry, location)
	registryMu.Unlock()
}

// Server publishes a PostOffice into the process-wide registry under a
// freshly minted location string.
type Server struct {
	location string
}

// NewServer implements apitransport.NewServerFunc.
func NewServer(po apitransport.PostOffice) (apitransport.Server, error) {
	return &Server{location: register(po)}, nil
}

// Location returns this server's registry key.
func (s *Server) Location() string { return s.location }

// Start is a no-op: registration already happened in NewServer.
func (s *Server) Start() error { return nil }

// Stop removes this server's PostOffice from the registry.
func (s *Server) Stop() error {
	unregister(s.location)
	return nil
}

// Client resolves a location string straight back to the registered
// PostOffice and drains it directly, with no real I/O.
type Client struct {
	location string
}

// NewClient implements apitransport.NewClientFunc.
func NewClient(location string) (apitransport.Client, error) {
	if !CanConnectTo(location) {
		return nil, fmt.Errorf("inprocess: location %q is not an inprocess location", location)
	}
	return &Client{location: location}, nil
}

// CanConnectTo reports whether location carries this transport's scheme
// prefix.
func CanConnectTo(location string) bool {
	return len(location) > len(Scheme) && location[:len(Scheme)+1] == Scheme+":"
}

// CanConnectTo implements apitransport.Client.
func (c *Client) CanConnectTo(location string) bool { return CanConnectTo(location) }

// Receive looks up the target PostOffice and drains its next message for
// receiver.
func (c *Client) Receive(ctx context.Context, receiver ref.Reference) (*apitransport.Message, error) {
	po, ok := lookup(c.location)
	if !ok {
		return nil, fmt.Errorf("inprocess: no post office registered at %q", c.location)
	}
	return po.GetMessage(ctx, receiver)
}

// Close is a no-op: Client holds no resources of its own.
func (c *Client) Close() error { return nil }

// Registration is the entry communicator.New expects for this transport.
var Registration = apitransport.Registration{
	Scheme:    Scheme,
	NewServer: NewServer,
	NewClient: NewClient,
}
