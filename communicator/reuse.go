package communicator

import (
	"context"
	"sync"

	"github.com/muscle3/muscle3-go/muscle3errors"
	"github.com/muscle3/muscle3-go/port"
	"github.com/muscle3/muscle3-go/settings"
)

// reuseState tracks the parallel-universe invariant for the reuse
// iteration currently in progress (spec.md §4.7-§4.8): the first settings
// overlay received on any connected input port during an iteration
// becomes that iteration's universe, and every later receive during the
// same iteration must carry a structurally equal overlay.
type reuseState struct {
	mu       sync.Mutex
	captured bool
	universe settings.Map
}

func (s *reuseState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captured = false
	s.universe = nil
}

func (s *reuseState) check(overlay settings.Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.captured {
		s.captured = true
		s.universe = overlay.Clone()
		return nil
	}
	if !settings.MapEqual(s.universe, overlay) {
		return muscle3errors.CrossUniverseErrorf("received settings overlay does not match this reuse iteration's universe")
	}
	return nil
}

// StartReuseIteration resets parallel-universe tracking for a new reuse
// iteration. ReuseInstance calls this itself; exported so a submodel
// driving its own F_INIT receive loop (rather than going through
// ReuseInstance) can mark iteration boundaries explicitly.
func (c *Communicator) StartReuseIteration() {
	c.reuse.reset()
}

// ReuseInstance implements the reuse-instance loop contract (spec.md
// §4.8): it starts a new iteration, then receives on the
// muscle_settings_in pseudo-port to learn whether the run continues. The
// manager signals termination by leaving that pseudo-port disconnected
// (or never connecting it in the first place); any overlay it does
// deliver becomes this iteration's overlay in store, and the loop
// continues.
func (c *Communicator) ReuseInstance(ctx context.Context, store *settings.Store) (bool, error) {
	c.StartReuseIteration()

	p, ok := c.ports[port.SettingsIn]
	if !ok || p.State() != port.Connected {
		return false, nil
	}

	msg, err := c.ReceiveMessage(ctx, port.SettingsIn, nil, nil)
	if err != nil {
		if muscle3errors.IsPortNotConnected(err) {
			return false, nil
		}
		return false, err
	}

	store.SetOverlay(msg.Settings)
	return true, nil
}
