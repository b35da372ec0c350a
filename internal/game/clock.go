package game

import (
	"sync"
	"time"
)

// turnClock schedules the timeout of one turn and the countdown ticks that go with it. Every
// arming is stamped with the turn generation it was armed for; callbacks receive that stamp so
// the engine can discard stale firings.
type turnClock struct {
	mu         sync.Mutex
	timer      *time.Timer
	stop       chan struct{}
	generation uint64
	armed      bool
}

func newTurnClock() *turnClock {
	return &turnClock{}
}

// arm cancels any previous schedule and starts a new one. onExpire runs once after wait.
// onTick runs every tick until the clock is cancelled or re-armed; a non-positive tick
// disables ticking.
func (c *turnClock) arm(generation uint64, wait, tick time.Duration, onExpire, onTick func(uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if wait < 0 {
		wait = 0
	}
	c.generation = generation
	c.armed = true
	c.stop = make(chan struct{})
	c.timer = time.AfterFunc(wait, func() { onExpire(generation) })

	if tick > 0 && onTick != nil {
		go runTicker(tick, c.stop, func() { onTick(generation) })
	}
}

func runTicker(every time.Duration, stop <-chan struct{}, fn func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// cancel stops the timer and the ticker. It never waits for a callback in flight.
func (c *turnClock) cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *turnClock) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.armed = false
}

// armedFor returns the generation of the current schedule.
func (c *turnClock) armedFor() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, c.armed
}
