package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TickFunc receives each 1 Hz countdown tick for a room, including the final
// zero. Invoked outside the engine lock.
type TickFunc func(roomID string, remaining int)

// Engine drives one independent countdown per room. A countdown is Idle
// until started, Running while its ticker loop is live, and Paused after a
// stop that preserved elapsed time; starting again resumes from where it
// paused. Natural expiry resets the countdown to Idle.
//
// All timing goes through a clockwork.Clock so tests can drive a fake clock.
type Engine struct {
	clock  clockwork.Clock
	onTick TickFunc

	mu     sync.Mutex
	timers map[string]*countdown
}

type countdown struct {
	seconds       int
	running       bool
	anchor        time.Time
	pausedElapsed time.Duration
	cancel        chan struct{}
	ticker        clockwork.Ticker
}

// NewEngine creates a countdown engine emitting ticks through onTick.
func NewEngine(clock clockwork.Clock, onTick TickFunc) *Engine {
	return &Engine{
		clock:  clock,
		onTick: onTick,
		timers: make(map[string]*countdown),
	}
}

// Start begins or resumes the room's countdown from the given duration.
// A second start while the countdown is running is absorbed silently; the
// guard is what prevents two tick loops racing for the same room.
func (e *Engine) Start(roomID string, seconds int) {
	if seconds <= 0 {
		return
	}

	e.mu.Lock()
	c, ok := e.timers[roomID]
	if !ok {
		c = &countdown{}
		e.timers[roomID] = c
	}
	if c.running {
		e.mu.Unlock()
		log.Debug().Str("room_id", roomID).Msg("countdown already running, start ignored")
		return
	}

	c.seconds = seconds
	// Anchor in the past by however long the countdown already ran before a
	// pause, so a restart resumes instead of starting over.
	c.anchor = e.clock.Now().Add(-c.pausedElapsed)
	c.running = true
	c.cancel = make(chan struct{})
	// The ticker is owned by the countdown state, not the loop goroutine, so
	// Stop/Reset tear it down synchronously with the state transition.
	c.ticker = e.clock.NewTicker(time.Second)
	cancel := c.cancel
	ticker := c.ticker
	e.mu.Unlock()

	log.Info().Str("room_id", roomID).Int("seconds", seconds).Msg("countdown started")
	go e.run(roomID, ticker, cancel)
}

// Stop pauses a running countdown, freezing its elapsed time. Stopping a
// countdown that is not running is a no-op.
func (e *Engine) Stop(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.timers[roomID]
	if !ok || !c.running {
		return
	}

	close(c.cancel)
	c.cancel = nil
	c.ticker.Stop()
	c.ticker = nil
	c.running = false
	c.pausedElapsed = e.clock.Since(c.anchor)
	log.Info().
		Str("room_id", roomID).
		Dur("elapsed", c.pausedElapsed).
		Msg("countdown stopped")
}

// Remaining computes the room's remaining seconds analytically from the
// anchor, so late subscribers get an up-to-date value between ticks.
func (e *Engine) Remaining(roomID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.timers[roomID]
	if !ok || c.seconds == 0 {
		return 0
	}

	elapsed := c.pausedElapsed
	if c.running {
		elapsed = e.clock.Since(c.anchor)
	}
	remaining := c.seconds - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset cancels any running tick loop and discards the room's countdown
// state entirely. Used when a member disconnects or the room is torn down.
func (e *Engine) Reset(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.timers[roomID]
	if !ok {
		return
	}
	if c.cancel != nil {
		close(c.cancel)
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	delete(e.timers, roomID)
	log.Debug().Str("room_id", roomID).Msg("countdown reset")
}

// run is the per-countdown tick loop. It exits when cancelled, when it loses
// ownership of the room's countdown (a reset-then-start swapped the cancel
// channel), or when the countdown expires naturally.
func (e *Engine) run(roomID string, ticker clockwork.Ticker, cancel chan struct{}) {
	for {
		select {
		case <-cancel:
			return
		case <-ticker.Chan():
			remaining, ok := e.tick(roomID, cancel)
			if !ok {
				return
			}
			e.onTick(roomID, remaining)
			if remaining == 0 {
				return
			}
		}
	}
}

// tick computes one tick's remaining value and applies the Idle transition
// on expiry. ok is false when this loop no longer owns the countdown.
func (e *Engine) tick(roomID string, cancel chan struct{}) (remaining int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, exists := e.timers[roomID]
	if !exists || !c.running || c.cancel != cancel {
		return 0, false
	}

	elapsed := e.clock.Since(c.anchor)
	remaining = c.seconds - int(elapsed/time.Second)
	if remaining <= 0 {
		c.running = false
		c.cancel = nil
		if c.ticker != nil {
			c.ticker.Stop()
			c.ticker = nil
		}
		c.seconds = 0
		c.pausedElapsed = 0
		return 0, true
	}
	return remaining, true
}
