// Package backoff implements jittered exponential backoff for retrying
// manager RPCs (spec.md §4.9, §5 "Cancellation and timeouts"), adapted
// from go.uber.org/yarpc/internal/backoff.
package backoff

import (
	"errors"
	"math/rand"
	"time"

	"go.uber.org/multierr"
)

// ExponentialOption configures an exponential backoff strategy.
type ExponentialOption func(*exponentialOptions)

type exponentialOptions struct {
	base, min, max time.Duration
	newRand        func() *rand.Rand
}

func (e exponentialOptions) validate() (err error) {
	if e.base <= 0 {
		err = multierr.Append(err, errors.New("invalid base for exponential backoff, need greater than zero"))
	}
	if e.min < 0 {
		err = multierr.Append(err, errors.New("invalid min for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < 0 {
		err = multierr.Append(err, errors.New("invalid max for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < e.min {
		err = multierr.Append(err, errors.New("exponential max value must be greater than min value"))
	}
	return err
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

var defaultExponentialOpts = exponentialOptions{
	base:    100 * time.Millisecond,
	min:     100 * time.Millisecond,
	max:     time.Minute,
	newRand: newRand,
}

// DefaultExponential is a 100ms/100ms/1min jittered exponential backoff,
// used by the manager client's request_peers retry loop (spec.md §4.9).
var DefaultExponential = (&exponentialStrategy{opts: defaultExponentialOpts}).NewBackoff

// BaseJump sets the base "jump" of the backoff curve.
func BaseJump(t time.Duration) ExponentialOption {
	return func(o *exponentialOptions) { o.base = t }
}

// MaxBackoff sets the absolute max delay ever returned.
func MaxBackoff(t time.Duration) ExponentialOption {
	return func(o *exponentialOptions) { o.max = t }
}

// MinBackoff sets the absolute min delay ever returned.
func MinBackoff(t time.Duration) ExponentialOption {
	return func(o *exponentialOptions) { o.min = t }
}

type exponentialStrategy struct {
	opts exponentialOptions
}

// NewExponential builds a new exponential backoff strategy; call the
// returned function to get an independent, stateful backoff generator.
func NewExponential(opts ...ExponentialOption) (func() func(uint) time.Duration, error) {
	options := defaultExponentialOpts
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	return (&exponentialStrategy{opts: options}).NewBackoff, nil
}

func (e *exponentialStrategy) NewBackoff() func(uint) time.Duration {
	return (&exponentialBackoff{
		base:       e.opts.base,
		min:        e.opts.min,
		max:        e.opts.max,
		minMaxDiff: e.opts.max.Nanoseconds() - e.opts.min.Nanoseconds(),
		rand:       e.opts.newRand(),
	}).Duration
}

type exponentialBackoff struct {
	base, min, max time.Duration
	minMaxDiff     int64
	rand           *rand.Rand
}

// Duration returns how long to wait before retry number `attempts`.
func (e *exponentialBackoff) Duration(attempts uint) time.Duration {
	minlessBackoff := (1 << attempts) * e.base.Nanoseconds()

	if minlessBackoff > e.minMaxDiff || minlessBackoff <= 0 {
		minlessBackoff = e.minMaxDiff
	}

	return e.min + time.Duration(e.rand.Int63n(minlessBackoff+1))
}
