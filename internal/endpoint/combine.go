package endpoint

import (
	"fmt"

	"github.com/thibaultbee/streampack-go/internal/config"
	"github.com/thibaultbee/streampack-go/internal/errs"
	"github.com/thibaultbee/streampack-go/internal/media"
)

// FailureFunc receives one constituent's isolated failure; the combine
// endpoint itself only ever returns an aggregated error when every
// constituent fails, so FailureFunc is how a caller learns about, and logs,
// any individual failure (spec.md §4.6 "isolated and logged").
type FailureFunc func(index int, op string, err error)

// CombineEndpoint fans every call out to all constituent endpoints,
// isolating and logging per-constituent failures; only if every constituent
// fails does it report an aggregated error (spec.md §4.6 "Combine
// endpoint").
type CombineEndpoint struct {
	constituents []*Endpoint
	onFailure    FailureFunc
}

// NewCombine returns a CombineEndpoint fanning out to constituents.
func NewCombine(onFailure FailureFunc, constituents ...*Endpoint) *CombineEndpoint {
	return &CombineEndpoint{constituents: constituents, onFailure: onFailure}
}

// Open opens every constituent against its matching descriptor; len(descs)
// must equal the constituent count (spec.md §6 "the number of inner
// descriptors must equal the number of constituents").
func (c *CombineEndpoint) Open(descs []config.SinkDescriptor) error {
	if len(descs) != len(c.constituents) {
		return errs.New(errs.BadParameter, "endpoint.CombineEndpoint.Open",
			fmt.Errorf("descriptor count %d does not match constituent count %d", len(descs), len(c.constituents)))
	}
	okCount := 0
	var lastErr error
	for i, e := range c.constituents {
		if err := e.Open(descs[i]); err != nil {
			c.fail(i, "open", err)
			lastErr = err
			continue
		}
		okCount++
	}
	if okCount == 0 {
		return errs.New(errs.Closed, "endpoint.CombineEndpoint.Open", fmt.Errorf("every constituent failed to open: %w", lastErr))
	}
	return nil
}

// StartStream starts every open constituent.
func (c *CombineEndpoint) StartStream() error {
	okCount := 0
	var lastErr error
	for i, e := range c.constituents {
		if !e.IsOpen() {
			continue
		}
		if err := e.StartStream(); err != nil {
			c.fail(i, "start_stream", err)
			lastErr = err
			continue
		}
		okCount++
	}
	if okCount == 0 {
		return errs.New(errs.Closed, "endpoint.CombineEndpoint.StartStream", fmt.Errorf("every constituent failed to start: %w", lastErr))
	}
	return nil
}

// Write duplicates f's buffer view (not its bytes) to every constituent
// that is currently open (spec.md §4.6 "duplicates the frame's buffer view
// (not the bytes)").
func (c *CombineEndpoint) Write(f *media.Frame) error {
	okCount := 0
	var lastErr error
	for i, e := range c.constituents {
		if !e.IsOpen() {
			continue
		}
		if err := e.Write(f); err != nil {
			c.fail(i, "write", err)
			lastErr = err
			continue
		}
		okCount++
	}
	if okCount == 0 {
		return errs.New(errs.Closed, "endpoint.CombineEndpoint.Write", fmt.Errorf("every constituent failed to write: %w", lastErr))
	}
	return nil
}

// StopStream stops every open constituent, best-effort (spec.md §7).
func (c *CombineEndpoint) StopStream() error {
	okCount := 0
	var lastErr error
	for i, e := range c.constituents {
		if !e.IsOpen() {
			continue
		}
		if err := e.StopStream(); err != nil {
			c.fail(i, "stop_stream", err)
			lastErr = err
			continue
		}
		okCount++
	}
	if okCount == 0 && len(c.constituents) > 0 {
		return errs.New(errs.Closed, "endpoint.CombineEndpoint.StopStream", fmt.Errorf("every constituent failed to stop: %w", lastErr))
	}
	return nil
}

// Close closes every constituent, best-effort.
func (c *CombineEndpoint) Close() error {
	var lastErr error
	for i, e := range c.constituents {
		if err := e.Close(); err != nil {
			c.fail(i, "close", err)
			lastErr = err
		}
	}
	return lastErr
}

func (c *CombineEndpoint) fail(index int, op string, err error) {
	if c.onFailure != nil {
		c.onFailure(index, op, err)
	}
}
