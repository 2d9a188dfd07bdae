package communicator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	apitransport "github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/codec"
	"github.com/muscle3/muscle3-go/muscle3errors"
	"github.com/muscle3/muscle3-go/port"
	"github.com/muscle3/muscle3-go/postoffice"
	"github.com/muscle3/muscle3-go/ref"
	"github.com/muscle3/muscle3-go/settings"
)

// Message is the user-facing value exchanged over a port: a timestamp, an
// optional next-timestamp, a settings overlay, and a payload. The payload is
// either arbitrary bytes in Data, or — for muscle_parameters_in and other
// parameter-carrying ports (spec.md §4.6, §9) — a Configuration settings
// map, mirroring communicator.py's handling of a Configuration instance
// as message.data via msgpack's ExtTypeId.CONFIGURATION wrapper. Exactly
// one of Data or Configuration is set.
type Message struct {
	Timestamp     float64
	NextTimestamp *float64
	Settings      settings.Map
	Data          []byte
	Configuration settings.Map
}

// Communicator is the instance-side engine tying together the reference
// algebra, the settings store, the local post office and the pluggable
// transport layer (spec.md §4, mirroring communicator.py's
// Communicator(PostOffice) class).
type Communicator struct {
	log *zap.Logger

	kernel ref.Reference
	index  []int

	ports map[string]*port.Port

	peers *PeerTable

	reuse reuseState

	postOffice *postoffice.PostOffice

	mu            sync.Mutex
	clients       map[string]apitransport.Client
	clientFactory []apitransport.Registration

	servers []apitransport.Server
}

// New builds a Communicator for one instance, identified by its kernel and
// ensemble index, with the given declared ports and the set of transport
// registrations available to it (spec.md §4.4, DESIGN NOTES §9's
// registration table).
func New(log *zap.Logger, kernel ref.Reference, index []int, ports []*port.Port, registrations []apitransport.Registration) *Communicator {
	if log == nil {
		log = zap.NewNop()
	}
	portMap := make(map[string]*port.Port, len(ports))
	for _, p := range ports {
		portMap[p.Name] = p
	}
	return &Communicator{
		log:           log.With(zap.String("kernel", kernel.String())),
		kernel:        kernel,
		index:         index,
		ports:         portMap,
		postOffice:    postoffice.New(),
		clients:       make(map[string]apitransport.Client),
		clientFactory: registrations,
	}
}

// Instance returns this communicator's full instance reference, e.g.
// "macro[3]".
func (c *Communicator) Instance() ref.Reference {
	return c.kernel.WithIndex(c.index)
}

// GetLocations returns the location strings this communicator's servers
// are reachable at, in registration order, for handing to the manager at
// register_instance time (spec.md §4.9).
func (c *Communicator) GetLocations(registrations []apitransport.Registration) ([]string, error) {
	var locations []string
	for _, reg := range registrations {
		server, err := reg.NewServer(c.postOffice)
		if err != nil {
			return nil, fmt.Errorf("communicator: starting %s server: %w", reg.Scheme, err)
		}
		if err := server.Start(); err != nil {
			return nil, fmt.Errorf("communicator: starting %s server: %w", reg.Scheme, err)
		}
		c.servers = append(c.servers, server)
		locations = append(locations, server.Location())
	}
	return locations, nil
}

// Connect installs the peer table resolved by the manager and marks every
// declared port Connected or Disconnected accordingly (spec.md §4.10).
// Ports with no corresponding peer-table entry become Disconnected; every
// other declared port becomes Connected. This mirrors communicator.py's
// connect(), minus the wire round trip to the manager itself, which lives
// in package mmpclient.
func (c *Communicator) Connect(peers *PeerTable) {
	c.peers = peers
	for name, p := range c.ports {
		if _, ok := peers.Lookup(name); ok {
			p.MarkConnected()
		} else {
			p.MarkDisconnected()
		}
	}
}

// clientFor returns the cached Client able to reach location, creating one
// from the first matching registration if needed.
func (c *Communicator) clientFor(location string) (apitransport.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[location]; ok {
		return cl, nil
	}
	for _, reg := range c.clientFactory {
		cl, err := reg.NewClient(location)
		if err != nil || !cl.CanConnectTo(location) {
			if cl != nil {
				_ = cl.Close()
			}
			continue
		}
		c.clients[location] = cl
		return cl, nil
	}
	return nil, muscle3errors.NoMatchingTransportErrorf("no registered transport can reach location %q", location)
}

// SendMessage encodes msg's settings overlay and delivers it to the local
// post office addressed to localPort's resolved peer endpoint (spec.md
// §4.6). The parallel-universe invariant (spec.md §4.7-§4.8) is enforced
// on the receiving side only, in ReceiveMessage.
func (c *Communicator) SendMessage(ctx context.Context, localPort string, slot []int, msg Message) error {
	p, ok := c.ports[localPort]
	if !ok {
		return muscle3errors.InvalidPortNameErrorf("unknown port %q", localPort)
	}
	if port.DirectionOf(p.Operator) != port.Out {
		return muscle3errors.InvalidPortNameErrorf("port %q is not an output port", localPort)
	}
	if p.State() != port.Connected {
		if p.WarnOnce() {
			c.log.Warn("sending on disconnected port, message dropped", zap.String("port", localPort))
		}
		return nil
	}

	endpoint, _, err := c.peers.ResolvePeerEndpoint(localPort, c.index, slot)
	if err != nil {
		return fmt.Errorf("communicator: resolving peer for %q: %w", localPort, err)
	}

	overlay, err := codec.EncodeSettings(msg.Settings)
	if err != nil {
		return fmt.Errorf("communicator: encoding settings overlay: %w", err)
	}

	payload := msg.Data
	payloadIsConfiguration := false
	if msg.Configuration != nil {
		payload, err = codec.EncodeSettings(msg.Configuration)
		if err != nil {
			return fmt.Errorf("communicator: encoding configuration payload: %w", err)
		}
		payloadIsConfiguration = true
	}

	wire := &apitransport.Message{
		Sender:                 c.Instance().Concat(ref.MustParse(localPort)).WithIndex(slot),
		Receiver:               endpoint.Ref(),
		Timestamp:              msg.Timestamp,
		NextTimestamp:          msg.NextTimestamp,
		Overlay:                overlay,
		Payload:                payload,
		PayloadIsConfiguration: payloadIsConfiguration,
	}

	// A send always deposits into this instance's own post office, keyed
	// by the peer's full reference: delivery is pull-based, the peer's
	// Communicator (or its transport Server, on its behalf) later drains
	// this same outbox through GetMessage/Receive.
	c.postOffice.Deposit(endpoint.Ref(), wire)
	return nil
}

// ReceiveMessage blocks until a message addressed to localPort (and slot,
// for a slotted port) arrives, decodes its settings overlay, and returns
// it as a Message (spec.md §4.6-§4.7, mirroring communicator.py's
// receive_message).
//
// If the port is disconnected, def is returned unchanged — no wire round
// trip, no settings decode, no parallel-universe check — exactly as
// spec.md §4.7 and §8's "Disconnected default" scenario require. If def
// is nil and the port is disconnected, PortNotConnected is returned.
func (c *Communicator) ReceiveMessage(ctx context.Context, localPort string, slot []int, def *Message) (Message, error) {
	if p, ok := c.ports[localPort]; ok && p.State() != port.Connected && def != nil {
		return *def, nil
	}

	wire, err := c.GetMessage(ctx, localPort, slot, def)
	if err != nil {
		return Message{}, err
	}

	overlay, err := codec.DecodeSettings(wire.Overlay)
	if err != nil {
		return Message{}, fmt.Errorf("communicator: decoding settings overlay: %w", err)
	}

	var cfg settings.Map
	if wire.PayloadIsConfiguration {
		cfg, err = codec.DecodeSettings(wire.Payload)
		if err != nil {
			return Message{}, fmt.Errorf("communicator: decoding configuration payload: %w", err)
		}
	}

	if err := c.reuse.check(overlay); err != nil {
		return Message{}, err
	}

	if wire.PayloadIsConfiguration {
		return Message{
			Timestamp:     wire.Timestamp,
			NextTimestamp: wire.NextTimestamp,
			Settings:      overlay,
			Configuration: cfg,
		}, nil
	}

	return Message{
		Timestamp:     wire.Timestamp,
		NextTimestamp: wire.NextTimestamp,
		Settings:      overlay,
		Data:          wire.Payload,
	}, nil
}

// GetMessage is the lower-level primitive beneath ReceiveMessage: it
// resolves localPort's peer to find out where that peer's own outbox
// lives, then drains it of the message keyed by this instance's own full
// reference, mirroring communicator.py's __get_client plus get_message.
// A peer advertising no location at all (never wired to a transport) is
// drained directly out of this instance's own post office instead, which
// holds only the messages this instance itself sent.
//
// If the port is disconnected, def (when non-nil) is encoded into a
// synthetic wire message standing in for the default, so direct callers
// of GetMessage get the same default-value behavior ReceiveMessage gives
// its callers (spec.md §4.7). A nil def on a disconnected port returns
// PortNotConnected.
func (c *Communicator) GetMessage(ctx context.Context, localPort string, slot []int, def *Message) (*apitransport.Message, error) {
	p, ok := c.ports[localPort]
	if !ok {
		return nil, muscle3errors.InvalidPortNameErrorf("unknown port %q", localPort)
	}
	if port.DirectionOf(p.Operator) != port.In {
		return nil, muscle3errors.InvalidPortNameErrorf("port %q is not an input port", localPort)
	}
	if p.State() != port.Connected {
		if def == nil {
			return nil, muscle3errors.PortNotConnectedErrorf("port %q has no peer", localPort)
		}
		return encodeDefaultMessage(*def)
	}

	receiver := c.Instance().Concat(ref.MustParse(localPort)).WithIndex(slot)

	_, location, err := c.peers.ResolvePeerEndpoint(localPort, c.index, slot)
	if err != nil {
		return nil, fmt.Errorf("communicator: resolving peer for %q: %w", localPort, err)
	}

	if location == "" {
		return c.postOffice.GetMessage(ctx, receiver)
	}

	client, err := c.clientFor(location)
	if err != nil {
		return nil, err
	}
	return client.Receive(ctx, receiver)
}

// encodeDefaultMessage builds the wire-shaped equivalent of a caller-
// supplied default Message, for GetMessage callers that want the
// disconnected-port default as an apitransport.Message rather than the
// higher-level Message ReceiveMessage returns.
func encodeDefaultMessage(def Message) (*apitransport.Message, error) {
	if def.Configuration != nil {
		payload, err := codec.EncodeSettings(def.Configuration)
		if err != nil {
			return nil, fmt.Errorf("communicator: encoding default configuration payload: %w", err)
		}
		return &apitransport.Message{
			Timestamp:              def.Timestamp,
			NextTimestamp:          def.NextTimestamp,
			Payload:                payload,
			PayloadIsConfiguration: true,
		}, nil
	}

	overlay, err := codec.EncodeSettings(def.Settings)
	if err != nil {
		return nil, fmt.Errorf("communicator: encoding default settings overlay: %w", err)
	}
	return &apitransport.Message{
		Timestamp:     def.Timestamp,
		NextTimestamp: def.NextTimestamp,
		Overlay:       overlay,
		Payload:       def.Data,
	}, nil
}

// Shutdown stops every server this communicator started and closes every
// cached client, releasing their resources.
func (c *Communicator) Shutdown() error {
	c.mu.Lock()
	clients := make([]apitransport.Client, 0, len(c.clients))
	for _, cl := range c.clients {
		clients = append(clients, cl)
	}
	c.clients = make(map[string]apitransport.Client)
	c.mu.Unlock()

	var firstErr error
	for _, cl := range clients {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, s := range c.servers {
		if err := s.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
