package communicator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitransport "github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/muscle3errors"
	"github.com/muscle3/muscle3-go/port"
	"github.com/muscle3/muscle3-go/ref"
	"github.com/muscle3/muscle3-go/settings"
	"github.com/muscle3/muscle3-go/transport/inprocess"
)

func buildPair(t *testing.T) (sender *Communicator, receiver *Communicator) {
	t.Helper()

	registrations := []apitransport.Registration{inprocess.Registration}

	sender = New(nil, ref.MustParse("micro"), nil,
		[]*port.Port{port.New("o_f", port.OF)}, registrations)
	receiver = New(nil, ref.MustParse("macro"), nil,
		[]*port.Port{port.New("s", port.S)}, registrations)

	senderLocations, err := sender.GetLocations(registrations)
	require.NoError(t, err)
	receiverLocations, err := receiver.GetLocations(registrations)
	require.NoError(t, err)
	require.Len(t, senderLocations, 1)
	require.Len(t, receiverLocations, 1)

	sender.Connect(NewPeerTable(map[string]PeerInfo{
		"o_f": {PeerKernel: ref.MustParse("macro"), PeerPort: "s", Locations: receiverLocations},
	}))
	receiver.Connect(NewPeerTable(map[string]PeerInfo{
		"s": {PeerKernel: ref.MustParse("micro"), PeerPort: "o_f", Locations: senderLocations},
	}))

	return sender, receiver
}

func TestSendReceiveRoundTrip(t *testing.T) {
	sender, receiver := buildPair(t)

	next := 1.0
	err := sender.SendMessage(context.Background(), "o_f", nil, Message{
		Timestamp:     0.0,
		NextTimestamp: &next,
		Data:          []byte("payload"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := receiver.ReceiveMessage(ctx, "s", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(msg.Data))
	require.NotNil(t, msg.NextTimestamp)
	assert.Equal(t, 1.0, *msg.NextTimestamp)
}

func TestSendMessageUnknownPort(t *testing.T) {
	sender, _ := buildPair(t)
	err := sender.SendMessage(context.Background(), "nonexistent", nil, Message{})
	assert.Error(t, err)
}

func TestSendOnDisconnectedPortIsDroppedNotErrored(t *testing.T) {
	registrations := []apitransport.Registration{inprocess.Registration}
	sender := New(nil, ref.MustParse("micro"), nil,
		[]*port.Port{port.New("o_f", port.OF)}, registrations)
	sender.Connect(NewPeerTable(nil))

	err := sender.SendMessage(context.Background(), "o_f", nil, Message{Data: []byte("x")})
	assert.NoError(t, err)
}

func TestReceiveOnDisconnectedPortErrors(t *testing.T) {
	registrations := []apitransport.Registration{inprocess.Registration}
	receiver := New(nil, ref.MustParse("macro"), nil,
		[]*port.Port{port.New("s", port.S)}, registrations)
	receiver.Connect(NewPeerTable(nil))

	_, err := receiver.GetMessage(context.Background(), "s", nil, nil)
	assert.Error(t, err)
}

// TestReceiveMessageDisconnectedPortReturnsDefault reproduces spec.md §8's
// literal "Disconnected default" scenario: receiving on an unwired optional
// input port with a default supplied returns that default unchanged, with
// no wire round trip; with no default, it returns PortNotConnected.
func TestReceiveMessageDisconnectedPortReturnsDefault(t *testing.T) {
	registrations := []apitransport.Registration{inprocess.Registration}
	receiver := New(nil, ref.MustParse("micro"), nil,
		[]*port.Port{port.New("optional_in", port.S)}, registrations)
	receiver.Connect(NewPeerTable(nil))

	next := 0.0
	def := Message{Timestamp: 0.0, NextTimestamp: &next}

	msg, err := receiver.ReceiveMessage(context.Background(), "optional_in", nil, &def)
	require.NoError(t, err)
	assert.Equal(t, def, msg)

	_, err = receiver.ReceiveMessage(context.Background(), "optional_in", nil, nil)
	require.Error(t, err)
	assert.True(t, muscle3errors.IsPortNotConnected(err))
}

func TestParallelUniverseInvariantRejectsMismatchedOverlay(t *testing.T) {
	sender, receiver := buildPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, sender.SendMessage(ctx, "o_f", nil, Message{
		Settings: settings.Map{"n_steps": settings.Int(10)},
		Data:     []byte("first"),
	}))
	_, err := receiver.ReceiveMessage(ctx, "s", nil, nil)
	require.NoError(t, err)

	require.NoError(t, sender.SendMessage(ctx, "o_f", nil, Message{
		Settings: settings.Map{"n_steps": settings.Int(99)},
		Data:     []byte("second"),
	}))
	_, err = receiver.ReceiveMessage(ctx, "s", nil, nil)
	assert.Error(t, err)
}

func TestParallelUniverseInvariantAllowsRepeatedIdenticalOverlay(t *testing.T) {
	sender, receiver := buildPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	overlay := settings.Map{"n_steps": settings.Int(10)}
	require.NoError(t, sender.SendMessage(ctx, "o_f", nil, Message{Settings: overlay, Data: []byte("a")}))
	require.NoError(t, sender.SendMessage(ctx, "o_f", nil, Message{Settings: overlay, Data: []byte("b")}))

	_, err := receiver.ReceiveMessage(ctx, "s", nil, nil)
	require.NoError(t, err)
	_, err = receiver.ReceiveMessage(ctx, "s", nil, nil)
	require.NoError(t, err)
}

func TestDuplicationMapperScenario(t *testing.T) {
	registrations := []apitransport.Registration{inprocess.Registration}

	dm := New(nil, ref.MustParse("dm"), nil,
		[]*port.Port{port.New("out1", port.OF), port.New("out2", port.OF)}, registrations)
	first := New(nil, ref.MustParse("first"), nil,
		[]*port.Port{port.New("in", port.S)}, registrations)
	second := New(nil, ref.MustParse("second"), nil,
		[]*port.Port{port.New("in", port.S)}, registrations)

	dmLocations, err := dm.GetLocations(registrations)
	require.NoError(t, err)
	firstLocations, err := first.GetLocations(registrations)
	require.NoError(t, err)
	secondLocations, err := second.GetLocations(registrations)
	require.NoError(t, err)

	dm.Connect(NewPeerTable(map[string]PeerInfo{
		"out1": {PeerKernel: ref.MustParse("first"), PeerPort: "in", Locations: firstLocations},
		"out2": {PeerKernel: ref.MustParse("second"), PeerPort: "in", Locations: secondLocations},
	}))
	first.Connect(NewPeerTable(map[string]PeerInfo{
		"in": {PeerKernel: ref.MustParse("dm"), PeerPort: "out1", Locations: dmLocations},
	}))
	second.Connect(NewPeerTable(map[string]PeerInfo{
		"in": {PeerKernel: ref.MustParse("dm"), PeerPort: "out2", Locations: dmLocations},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, dm.SendMessage(ctx, "out1", nil, Message{Data: []byte("testing")}))
	require.NoError(t, dm.SendMessage(ctx, "out2", nil, Message{Data: []byte("testing")}))

	msgFirst, err := first.GetMessage(ctx, "in", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "testing", string(msgFirst.Payload))

	msgSecond, err := second.GetMessage(ctx, "in", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "testing", string(msgSecond.Payload))
}

func TestSlottedPortKeepsSlotsIndependent(t *testing.T) {
	sender, receiver := buildPair(t)

	require.NoError(t, sender.SendMessage(context.Background(), "o_f", []int{0}, Message{Data: []byte("slot-0")}))
	require.NoError(t, sender.SendMessage(context.Background(), "o_f", []int{1}, Message{Data: []byte("slot-1")}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg1, err := receiver.GetMessage(ctx, "s", []int{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "slot-1", string(msg1.Payload))

	msg0, err := receiver.GetMessage(ctx, "s", []int{0}, nil)
	require.NoError(t, err)
	assert.Equal(t, "slot-0", string(msg0.Payload))
}
