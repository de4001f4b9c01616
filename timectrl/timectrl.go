// Package timectrl drives the model clock through a run and notifies
// registered listeners at every step.
package timectrl

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInvalidClock is returned for a non-positive step or an empty interval.
var ErrInvalidClock = errors.New("invalid model clock")

// Listener is invoked once per step with the step index and model time.
// Returning an error stops the run.
type Listener func(step int, now time.Time) error

// Controller steps model time from Start (inclusive) to End (exclusive).
type Controller struct {
	mu    sync.RWMutex
	Start time.Time
	End   time.Time
	Step  time.Duration

	currentTime time.Time
	listeners   []Listener
}

// New constructs a controller positioned at start.
func New(start, end time.Time, step time.Duration) (*Controller, error) {
	if step <= 0 || !end.After(start) {
		return nil, ErrInvalidClock
	}
	return &Controller{Start: start, End: end, Step: step, currentTime: start}, nil
}

// Now returns the current model time. Safe for concurrent readers.
func (c *Controller) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTime
}

// Steps is the number of steps Run will take.
func (c *Controller) Steps() int {
	span := c.End.Sub(c.Start)
	n := int(span / c.Step)
	if span%c.Step != 0 {
		n++
	}
	return n
}

// AddListener registers a callback invoked on every step, after the step
// function passed to Run.
func (c *Controller) AddListener(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Run calls fn and then every listener for each step in order. It stops
// at the first error or when ctx is cancelled.
func (c *Controller) Run(ctx context.Context, fn Listener) error {
	c.mu.RLock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()

	n := c.Steps()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := c.Start.Add(time.Duration(i) * c.Step)

		c.mu.Lock()
		c.currentTime = now
		c.mu.Unlock()

		if fn != nil {
			if err := fn(i, now); err != nil {
				return err
			}
		}
		for _, l := range listeners {
			if err := l(i, now); err != nil {
				return err
			}
		}
	}
	return nil
}
