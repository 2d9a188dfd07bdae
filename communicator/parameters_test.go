package communicator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitransport "github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/port"
	"github.com/muscle3/muscle3-go/ref"
	"github.com/muscle3/muscle3-go/settings"
	"github.com/muscle3/muscle3-go/transport/inprocess"
)

func buildParametersPair(t *testing.T) (manager *Communicator, instance *Communicator) {
	t.Helper()

	registrations := []apitransport.Registration{inprocess.Registration}

	manager = New(nil, ref.MustParse("manager"), nil,
		[]*port.Port{port.New("parameters_out", port.OF)}, registrations)
	instance = New(nil, ref.MustParse("micro"), nil,
		[]*port.Port{port.New(port.ParametersIn, port.S)}, registrations)

	managerLocations, err := manager.GetLocations(registrations)
	require.NoError(t, err)
	instanceLocations, err := instance.GetLocations(registrations)
	require.NoError(t, err)

	manager.Connect(NewPeerTable(map[string]PeerInfo{
		"parameters_out": {PeerKernel: ref.MustParse("micro"), PeerPort: port.ParametersIn, Locations: instanceLocations},
	}))
	instance.Connect(NewPeerTable(map[string]PeerInfo{
		port.ParametersIn: {PeerKernel: ref.MustParse("manager"), PeerPort: "parameters_out", Locations: managerLocations},
	}))

	return manager, instance
}

func TestReceiveParametersMergesIntoOverlay(t *testing.T) {
	manager, instance := buildParametersPair(t)

	require.NoError(t, manager.SendMessage(context.Background(), "parameters_out", nil, Message{
		Configuration: settings.Map{"n_steps": settings.Int(5)},
	}))

	store := settings.NewStore(nil)
	store.SetOverlay(settings.Map{"existing": settings.String("kept")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, instance.ReceiveParameters(ctx, store))

	overlay := store.Overlay()
	assert.Equal(t, settings.Int(5), overlay["n_steps"])
	assert.Equal(t, settings.String("kept"), overlay["existing"])
}

func TestReceiveParametersDisconnectedPortIsNotAnError(t *testing.T) {
	registrations := []apitransport.Registration{inprocess.Registration}
	instance := New(nil, ref.MustParse("micro"), nil,
		[]*port.Port{port.New(port.ParametersIn, port.S)}, registrations)
	instance.Connect(NewPeerTable(nil))

	store := settings.NewStore(nil)
	require.NoError(t, instance.ReceiveParameters(context.Background(), store))
	assert.Empty(t, store.Overlay())
}

func TestReceiveParametersRejectsNonConfigurationPayload(t *testing.T) {
	manager, instance := buildParametersPair(t)

	require.NoError(t, manager.SendMessage(context.Background(), "parameters_out", nil, Message{
		Data: []byte("not a configuration"),
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := instance.ReceiveParameters(ctx, settings.NewStore(nil))
	assert.Error(t, err)
}
