// Package lifecycle provides a small state machine for objects that must
// advance monotonically through Idle -> Starting -> Running -> Stopping ->
// Stopped (or Errored), with at-most-once Start/Stop bodies. In
// muscle3-go, transport/tcp.Server guards its Start/Stop with one of
// these; the communicator and the in-process transport do not use it.
package lifecycle

import (
	"context"
	"errors"
	syncatomic "sync/atomic"

	"go.uber.org/atomic"
)

// State is one of the lifecycle stages a component passes through.
type State int

const (
	// Idle indicates the lifecycle hasn't been operated on yet.
	Idle State = iota
	// Starting indicates Start has begun but not finished.
	Starting
	// Running indicates Start finished successfully.
	Running
	// Stopping indicates Stop has begun but not finished.
	Stopping
	// Stopped indicates Stop finished successfully.
	Stopped
	// Errored indicates Start or Stop returned an error; the component's
	// state beyond this point is not well defined.
	Errored
)

var stateNames = map[State]string{
	Idle:     "idle",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
	Stopped:  "stopped",
	Errored:  "errored",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Once advances an object monotonically through its lifecycle states,
// running at-most-once Start/Stop bodies in a thread-safe manner.
//
//  0. The observable state only ever moves forward.
//  1. Start blocks until the state is >= Running.
//  2. Stop blocks until the state is >= Stopped.
//  3. Stop pre-empts Start if it arrives first.
//  4. The Start/Stop bodies run at most once each.
type Once struct {
	startCh    chan struct{}
	stoppingCh chan struct{}
	stopCh     chan struct{}
	err        syncatomic.Value
	state      atomic.Int32
}

// NewOnce returns a fresh lifecycle controller in the Idle state.
func NewOnce() *Once {
	return &Once{
		startCh:    make(chan struct{}),
		stoppingCh: make(chan struct{}),
		stopCh:     make(chan struct{}),
	}
}

// Start runs f (if the lifecycle is still Idle) and advances to Running or
// Errored. Concurrent and repeat callers block until the first call
// resolves and then observe the same result.
func (o *Once) Start(f func() error) error {
	if o.state.CAS(int32(Idle), int32(Starting)) {
		var err error
		if f != nil {
			err = f()
		}
		if err != nil {
			o.setError(err)
			o.state.Store(int32(Errored))
			close(o.stoppingCh)
			close(o.stopCh)
		} else {
			o.state.Store(int32(Running))
		}
		close(o.startCh)
		return err
	}

	<-o.startCh
	return o.loadError()
}

// WaitUntilRunning blocks until the state reaches Running, the context is
// done, or the state has already moved past Running (an error).
func (o *Once) WaitUntilRunning(ctx context.Context) error {
	if state := State(o.state.Load()); state == Running {
		return nil
	} else if state > Running {
		return errors.New("lifecycle: past running, current state is " + state.String())
	}

	select {
	case <-o.startCh:
		if state := State(o.state.Load()); state == Running {
			return nil
		} else {
			return errors.New("lifecycle: did not reach running, current state is " + state.String())
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop runs f (if the lifecycle ever reached Running) and advances to
// Stopped or Errored. Calling Stop before Start pre-empts it: Start will
// return immediately once the pre-empting goroutine has set Stopped.
func (o *Once) Stop(f func() error) error {
	if o.state.CAS(int32(Idle), int32(Stopped)) {
		close(o.startCh)
		close(o.stoppingCh)
		close(o.stopCh)
		return nil
	}

	<-o.startCh

	if o.state.CAS(int32(Running), int32(Stopping)) {
		close(o.stoppingCh)
		var err error
		if f != nil {
			err = f()
		}
		if err != nil {
			o.setError(err)
			o.state.Store(int32(Errored))
		} else {
			o.state.Store(int32(Stopped))
		}
		close(o.stopCh)
		return err
	}

	<-o.stopCh
	return o.loadError()
}

// Started returns a channel that closes once the lifecycle starts.
func (o *Once) Started() <-chan struct{} { return o.startCh }

// Stopping returns a channel that closes once the lifecycle starts
// stopping.
func (o *Once) Stopping() <-chan struct{} { return o.stoppingCh }

// Stopped returns a channel that closes once the lifecycle stops.
func (o *Once) Stopped() <-chan struct{} { return o.stopCh }

// State returns a lower bound on the current lifecycle state: it has at
// least passed through the returned state, possibly further by the time
// the caller observes it.
func (o *Once) State() State { return State(o.state.Load()) }

// IsRunning reports whether the current state is exactly Running.
func (o *Once) IsRunning() bool { return o.State() == Running }

func (o *Once) setError(err error) { o.err.Store(err) }

func (o *Once) loadError() error {
	v := o.err.Load()
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return errors.New("lifecycle: stored error was not of type error")
}
