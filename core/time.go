// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	events := cfg.EventsPerSecond
	if events <= 0 {
		events = 60
	}
	return &Time{
		fps:         cfg.FramesPerSecond,
		start:       time.Now(),
		fpsTicker:   time.NewTicker(interval(cfg.FramesPerSecond)),
		eventTicker: time.NewTicker(interval(events)),
	}
}

func interval(perSecond int) time.Duration {
	if perSecond <= 0 {
		return time.Nanosecond
	}
	return time.Second / time.Duration(perSecond)
}

// Time contains all the time services and tickers
type Time struct {
	fps   int
	start time.Time

	fpsTicker   *time.Ticker
	eventTicker *time.Ticker
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// Elapsed is the time since the service was created.
func (t *Time) Elapsed() time.Duration {
	return time.Since(t.start)
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// EventTicker gets the initialized event ticker for the event loop
func (t *Time) EventTicker() *time.Ticker {
	return t.eventTicker
}

// Stop stops both tickers.
func (t *Time) Stop() {
	t.fpsTicker.Stop()
	t.eventTicker.Stop()
}
