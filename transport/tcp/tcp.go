// Package tcp implements a production Server/Client pair over plain TCP,
// framing each message as a 4-byte big-endian length prefix followed by a
// gob-encoded envelope (package codec), in the spirit of transport/http's
// Inbound/Outbound split: a Server owns a net.Listener and one handler
// goroutine per accepted connection, a Client dials once and serialises
// requests over that single connection.
package tcp

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apitransport "github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/codec"
	"github.com/muscle3/muscle3-go/lifecycle"
	"github.com/muscle3/muscle3-go/muscle3errors"
	"github.com/muscle3/muscle3-go/ref"
)

var noDeadline time.Time

func encodeRequest(req request) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRequest(data []byte, req *request) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(req)
}

// Scheme is the location-string prefix this transport claims, e.g.
// "tcp:127.0.0.1:43210".
const Scheme = "tcp"

const maxFrameBytes = 64 << 20

func writeFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("tcp: frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// request is what a Client sends: the receiver reference it wants the
// next message for.
type request struct {
	Receiver string
}

// shutdownDrainTimeout bounds how long Stop waits for in-flight handlers
// to finish (spec.md §5: handler drains respect "a bounded timeout"). A
// handler still running past this point is abandoned, not killed: Stop
// returns anyway so shutdown as a whole cannot hang on one stuck GetMessage.
const shutdownDrainTimeout = 5 * time.Second

// Server listens on a TCP port and, for each request on each connection,
// reads a receiver reference and writes back the next message the local
// PostOffice has for it.
type Server struct {
	log      *zap.Logger
	po       apitransport.PostOffice
	listener net.Listener
	location string

	ctx    context.Context
	cancel context.CancelFunc

	once *lifecycle.Once
	wg   sync.WaitGroup
}

// NewServer binds an ephemeral TCP port and returns a Server backed by
// po. It implements apitransport.NewServerFunc.
func NewServer(po apitransport.PostOffice) (apitransport.Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("tcp: listening: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		log:      zap.NewNop(),
		po:       po,
		listener: ln,
		location: Scheme + ":" + ln.Addr().String(),
		ctx:      ctx,
		cancel:   cancel,
		once:     lifecycle.NewOnce(),
	}, nil
}

// Location returns "tcp:<host>:<port>".
func (s *Server) Location() string { return s.location }

// Start begins accepting connections in a background goroutine.
func (s *Server) Start() error {
	return s.once.Start(func() error {
		s.wg.Add(1)
		go s.acceptLoop()
		return nil
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Closing the connection on Stop unblocks a handler waiting in
	// readFrame for the client's next request.
	handlerDone := make(chan struct{})
	defer close(handlerDone)
	go func() {
		select {
		case <-s.ctx.Done():
			_ = conn.Close()
		case <-handlerDone:
		}
	}()

	for {
		frame, err := readFrame(conn)
		if err != nil {
			return
		}
		var req request
		if err := decodeRequest(frame, &req); err != nil {
			s.log.Warn("tcp server: malformed request", zap.Error(err))
			return
		}
		receiver, err := ref.Parse(req.Receiver)
		if err != nil {
			s.log.Warn("tcp server: malformed receiver reference", zap.Error(err))
			return
		}

		msg, err := s.po.GetMessage(s.ctx, receiver)
		if err != nil {
			return
		}

		encoded, err := codec.EncodeMessage(msg)
		if err != nil {
			s.log.Warn("tcp server: encoding message", zap.Error(err))
			return
		}
		if err := writeFrame(conn, encoded); err != nil {
			return
		}
	}
}

// Stop closes the listener, cancels every in-flight handler's context so a
// handler blocked in GetMessage unblocks, and waits for handlers to finish
// up to shutdownDrainTimeout before giving up on the drain.
func (s *Server) Stop() error {
	return s.once.Stop(func() error {
		err := s.listener.Close()
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(shutdownDrainTimeout):
			s.log.Warn("tcp server: handlers still running after drain timeout", zap.Duration("timeout", shutdownDrainTimeout))
		}
		return err
	})
}

// Client dials a Server's location once and serialises receive round
// trips over that single connection.
type Client struct {
	location string

	mu   sync.Mutex
	conn net.Conn
}

// NewClient dials location, which must be "tcp:<host>:<port>".
func NewClient(location string) (apitransport.Client, error) {
	if !CanConnectTo(location) {
		return nil, fmt.Errorf("tcp: location %q is not a tcp location", location)
	}
	addr := strings.TrimPrefix(location, Scheme+":")
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, muscle3errors.TransportErrorf("dialing %s: %v", location, err)
	}
	return &Client{location: location, conn: conn}, nil
}

// CanConnectTo reports whether location carries this transport's scheme
// prefix.
func CanConnectTo(location string) bool {
	return strings.HasPrefix(location, Scheme+":")
}

// CanConnectTo implements apitransport.Client.
func (c *Client) CanConnectTo(location string) bool { return location == c.location }

// Receive sends receiver's reference over the wire and waits for the
// response frame, respecting ctx's deadline if it carries one.
func (c *Client) Receive(ctx context.Context, receiver ref.Reference) (*apitransport.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(noDeadline)
	}

	payload, err := encodeRequest(request{Receiver: receiver.String()})
	if err != nil {
		return nil, err
	}
	if err := writeFrame(c.conn, payload); err != nil {
		return nil, muscle3errors.TransportErrorf("writing request to %s: %v", c.location, err)
	}

	frame, err := readFrame(c.conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, muscle3errors.TransportTimeoutErrorf("waiting for %s: %v", c.location, ctx.Err())
		}
		return nil, muscle3errors.TransportErrorf("reading response from %s: %v", c.location, err)
	}
	return codec.DecodeMessage(frame)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Registration is the entry communicator.New expects for this transport.
var Registration = apitransport.Registration{
	Scheme:    Scheme,
	NewServer: NewServer,
	NewClient: NewClient,
}
