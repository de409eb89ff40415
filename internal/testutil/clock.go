package testutil

import (
	"context"
	"time"
)

// FakeClock is a manually advanced clock. Sleep returns immediately after
// moving the clock forward.
type FakeClock struct {
	now    time.Time
	Sleeps []time.Duration
}

// NewFakeClock returns a clock starting at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	return c.now
}

// Sleep advances the clock by d.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.Sleeps = append(c.Sleeps, d)
	c.now = c.now.Add(d)

	return nil
}

// Advance moves the clock forward without recording a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// Slept returns the total time spent in Sleep.
func (c *FakeClock) Slept() time.Duration {
	var total time.Duration
	for _, d := range c.Sleeps {
		total += d
	}

	return total
}
