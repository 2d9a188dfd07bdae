package communicator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitransport "github.com/muscle3/muscle3-go/api/transport"
	"github.com/muscle3/muscle3-go/codec"
	"github.com/muscle3/muscle3-go/port"
	"github.com/muscle3/muscle3-go/ref"
	"github.com/muscle3/muscle3-go/settings"
	"github.com/muscle3/muscle3-go/transport/inprocess"
)

func buildReusePair(t *testing.T) (manager *Communicator, worker *Communicator) {
	t.Helper()
	registrations := []apitransport.Registration{inprocess.Registration}

	manager = New(nil, ref.MustParse("manager"), nil,
		[]*port.Port{port.New(port.SettingsIn, port.OF)}, registrations)
	worker = New(nil, ref.MustParse("worker"), nil,
		[]*port.Port{port.New(port.SettingsIn, port.FInit), port.New("s", port.S)}, registrations)

	managerLocations, err := manager.GetLocations(registrations)
	require.NoError(t, err)
	workerLocations, err := worker.GetLocations(registrations)
	require.NoError(t, err)

	manager.Connect(NewPeerTable(map[string]PeerInfo{
		port.SettingsIn: {PeerKernel: ref.MustParse("worker"), PeerPort: port.SettingsIn, Locations: workerLocations},
	}))
	worker.Connect(NewPeerTable(map[string]PeerInfo{
		port.SettingsIn: {PeerKernel: ref.MustParse("manager"), PeerPort: port.SettingsIn, Locations: managerLocations},
		"s":              {PeerKernel: ref.MustParse("manager"), PeerPort: "s", Locations: managerLocations},
	}))

	return manager, worker
}

func TestReuseInstanceDeliversOverlayAndContinues(t *testing.T) {
	manager, worker := buildReusePair(t)
	store := settings.NewStore(nil)

	// Simulate the manager sending the next iteration's overlay: it
	// deposits into its own post office, keyed by the worker's full
	// reference, exactly as SendMessage would.
	overlay := settings.Map{"n_steps": settings.Int(5)}
	encoded, err := codec.EncodeSettings(overlay)
	require.NoError(t, err)
	manager.postOffice.Deposit(ref.MustParse("worker").Concat(ref.MustParse(port.SettingsIn)), &apitransport.Message{
		Overlay: encoded,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cont, err := worker.ReuseInstance(ctx, store)
	require.NoError(t, err)
	assert.True(t, cont)

	got, err := store.Get(ref.MustParse("worker"), ref.MustParse("n_steps"))
	require.NoError(t, err)
	assert.Equal(t, settings.Int(5), got)
}

func TestReuseInstanceTerminatesOnDisconnectedPseudoPort(t *testing.T) {
	registrations := []apitransport.Registration{inprocess.Registration}
	worker := New(nil, ref.MustParse("worker"), nil,
		[]*port.Port{port.New(port.SettingsIn, port.FInit)}, registrations)
	worker.Connect(NewPeerTable(nil))

	store := settings.NewStore(nil)
	cont, err := worker.ReuseInstance(context.Background(), store)
	require.NoError(t, err)
	assert.False(t, cont)
}

func TestReuseStateResetsAcrossIterations(t *testing.T) {
	var s reuseState

	require.NoError(t, s.check(settings.Map{"a": settings.Int(1)}))
	assert.Error(t, s.check(settings.Map{"a": settings.Int(2)}))

	s.reset()
	require.NoError(t, s.check(settings.Map{"a": settings.Int(2)}))
}
