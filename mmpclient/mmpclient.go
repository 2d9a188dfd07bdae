package mmpclient

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/muscle3/muscle3-go/communicator"
	"github.com/muscle3/muscle3-go/internal/backoff"
	"github.com/muscle3/muscle3-go/muscle3errors"
	"github.com/muscle3/muscle3-go/ref"
)

// connectionTimeout mirrors mmp_client.py's CONNECTION_TIMEOUT of 300
// seconds: how long register_instance/request_peers are willing to wait
// for the manager overall, across every retry.
const connectionTimeout = 300 * time.Second

const (
	methodRegisterInstance   = "/muscle_manager.MuscleManager/RegisterInstance"
	methodRequestPeers       = "/muscle_manager.MuscleManager/RequestPeers"
	methodDeregisterInstance = "/muscle_manager.MuscleManager/DeregisterInstance"
	methodSubmitLogMessage   = "/muscle_manager.MuscleManager/SubmitLogMessage"
)

// registerInstanceRequest is this instance's registration payload,
// mirroring mmp_client.py's register_instance call.
type registerInstanceRequest struct {
	Instance  string
	Locations []string
	Ports     []string
}

// requestPeersResponse carries the manager's resolved conduit peers for
// one instance, keyed by local port name.
type requestPeersResponse struct {
	Peers map[string]peerInfoWire
}

type peerInfoWire struct {
	PeerKernel string
	PeerPort   string
	Dims       []int
	Locations  []string
}

func (p peerInfoWire) toPeerInfo() (communicator.PeerInfo, error) {
	kernel, err := ref.Parse(p.PeerKernel)
	if err != nil {
		return communicator.PeerInfo{}, fmt.Errorf("mmpclient: malformed peer kernel %q: %w", p.PeerKernel, err)
	}
	return communicator.PeerInfo{
		PeerKernel: kernel,
		PeerPort:   p.PeerPort,
		Dims:       p.Dims,
		Locations:  p.Locations,
	}, nil
}

type logMessageRequest struct {
	Instance string
	Level    string
	Text     string
}

// Client is the instance-side handle to the MUSCLE3 manager: it
// registers this instance's locations, resolves conduit peers, and
// deregisters on shutdown (spec.md §4.9).
type Client struct {
	log      *zap.Logger
	conn     *grpc.ClientConn
	instance ref.Reference

	newBackoff func() func(uint) time.Duration
}

// Dial connects to the manager at target ("host:port") for the named
// instance. log may be nil.
func Dial(target string, instance ref.Reference, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := grpc.Dial(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, muscle3errors.ManagerUnreachableErrorf("dialing manager at %s: %v", target, err)
	}
	return &Client{
		log:        log.With(zap.String("instance", instance.String())),
		conn:       conn,
		instance:   instance,
		newBackoff: backoff.DefaultExponential,
	}, nil
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method string, req interface{}) ([]byte, error) {
	var reqBytes bytes.Buffer
	if err := gob.NewEncoder(&reqBytes).Encode(req); err != nil {
		return nil, fmt.Errorf("mmpclient: encoding request: %w", err)
	}
	reqRaw := reqBytes.Bytes()

	var respRaw []byte
	if err := conn.Invoke(ctx, method, &reqRaw, &respRaw); err != nil {
		return nil, muscle3errors.ManagerUnreachableErrorf("calling %s: %v", method, err)
	}
	return respRaw, nil
}

// RegisterInstance reports this instance's locations and declared port
// names to the manager, mirroring mmp_client.py's register_instance.
func (c *Client) RegisterInstance(ctx context.Context, locations []string, ports []string) error {
	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	_, err := invoke(ctx, c.conn, methodRegisterInstance, registerInstanceRequest{
		Instance:  c.instance.String(),
		Locations: locations,
		Ports:     ports,
	})
	return err
}

// RequestPeers asks the manager to resolve this instance's conduit
// peers, retrying with jittered exponential backoff while the manager
// reports peers as not yet available (spec.md §4.9's bootstrap ordering:
// other instances may not have registered yet).
func (c *Client) RequestPeers(ctx context.Context) (*communicator.PeerTable, error) {
	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	nextDelay := c.newBackoff()
	var attempt uint

	for {
		respRaw, err := invoke(ctx, c.conn, methodRequestPeers, struct{ Instance string }{c.instance.String()})
		if err == nil {
			var resp requestPeersResponse
			if err := gob.NewDecoder(bytes.NewReader(respRaw)).Decode(&resp); err != nil {
				return nil, fmt.Errorf("mmpclient: decoding request_peers response: %w", err)
			}
			peers := make(map[string]communicator.PeerInfo, len(resp.Peers))
			for port, wire := range resp.Peers {
				info, err := wire.toPeerInfo()
				if err != nil {
					return nil, err
				}
				peers[port] = info
			}
			return communicator.NewPeerTable(peers), nil
		}

		delay := nextDelay(attempt)
		attempt++
		c.log.Warn("request_peers failed, retrying", zap.Error(err), zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, muscle3errors.ManagerUnreachableErrorf("request_peers: %v", ctx.Err())
		}
	}
}

// DeregisterInstance tells the manager this instance has finished,
// mirroring mmp_client.py's deregister_instance at shutdown.
func (c *Client) DeregisterInstance(ctx context.Context) error {
	_, err := invoke(ctx, c.conn, methodDeregisterInstance, struct{ Instance string }{c.instance.String()})
	return err
}

// SubmitLogMessage forwards a log line to the manager's aggregated log,
// mirroring mmp_client.py's submit_log_message.
func (c *Client) SubmitLogMessage(ctx context.Context, level string, text string) error {
	_, err := invoke(ctx, c.conn, methodSubmitLogMessage, logMessageRequest{
		Instance: c.instance.String(),
		Level:    level,
		Text:     text,
	})
	return err
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
