package tutor

import (
	"sync"
	"time"
)

// Watchdog flags prolonged user silence. It is a restartable one-shot: at
// most one trigger is outstanding at any time, and every Reset replaces the
// previous one. Firing sets the silent flag and notifies the observer; a
// later Reset clears the flag again.
//
// Safe for concurrent use.
type Watchdog struct {
	delay  time.Duration
	notify func(silent bool)

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	silent bool
}

// NewWatchdog creates a watchdog that fires after delay of uninterrupted
// silence. notify, if non-nil, is called with the new silent value whenever
// it changes, without the watchdog's lock held. The watchdog starts disarmed.
func NewWatchdog(delay time.Duration, notify func(silent bool)) *Watchdog {
	return &Watchdog{delay: delay, notify: notify}
}

// Reset cancels any pending trigger, clears the silent flag, and schedules a
// fresh trigger. Called on every voiced capture block and when a session
// starts.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	cleared := w.silent
	w.silent = false
	w.timer = time.AfterFunc(w.delay, func() { w.fire(gen) })
	w.mu.Unlock()

	if cleared && w.notify != nil {
		w.notify(false)
	}
}

// Cancel cancels any pending trigger without scheduling a new one and clears
// the silent flag. Called when the session stops.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	cleared := w.silent
	w.silent = false
	w.mu.Unlock()

	if cleared && w.notify != nil {
		w.notify(false)
	}
}

// Silent reports whether the watchdog has fired since the last Reset.
func (w *Watchdog) Silent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.silent
}

// fire runs on the timer goroutine. The generation check discards triggers
// that lost a race with Reset or Cancel: time.Timer.Stop cannot stop a
// function that is already running.
func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.silent = true
	w.mu.Unlock()

	if w.notify != nil {
		w.notify(true)
	}
}
