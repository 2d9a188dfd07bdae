package communicator

import (
	"context"

	"github.com/muscle3/muscle3-go/muscle3errors"
	"github.com/muscle3/muscle3-go/port"
	"github.com/muscle3/muscle3-go/settings"
)

// ReceiveParameters receives this instance's parameter overlay from the
// muscle_parameters_in pseudo-port and merges it into store's overlay
// layer, mirroring compute_element.py's init_instance: the incoming
// message must carry a Configuration payload (spec.md §4.6, §9), and
// every key it sets is written into the overlay on top of whatever is
// already there. Called once, before the reuse loop begins. A
// disconnected muscle_parameters_in port is not an error: it simply
// means no parameter overlay was configured for this instance.
func (c *Communicator) ReceiveParameters(ctx context.Context, store *settings.Store) error {
	p, ok := c.ports[port.ParametersIn]
	if !ok || p.State() != port.Connected {
		return nil
	}

	msg, err := c.ReceiveMessage(ctx, port.ParametersIn, nil, nil)
	if err != nil {
		if muscle3errors.IsPortNotConnected(err) {
			return nil
		}
		return err
	}
	if msg.Configuration == nil {
		return muscle3errors.ProtocolMismatchErrorf(
			"%q received a message that is not a Configuration; the sending instance may be miswired", port.ParametersIn)
	}

	overlay := store.Overlay()
	for key, value := range msg.Configuration {
		overlay[key] = value
	}
	store.SetOverlay(overlay)
	return nil
}
