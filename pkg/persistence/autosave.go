package persistence

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultAutoSaveInterval is the period between auto-saves.
const DefaultAutoSaveInterval = 5 * time.Minute

// AutoSaveName is the name given to periodic saves.
const AutoSaveName = "Autosave"

// AutoSaver periodically saves the session while it is active and not over.
// At most one ticker goroutine runs at a time.
type AutoSaver struct {
	manager *Manager

	mu       sync.Mutex
	enabled  bool
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// OnSave, when set, is called after every tick that attempted a save.
	// It runs on the ticker goroutine and must not call Stop or Start.
	OnSave func(err error)
}

// NewAutoSaver creates a stopped, enabled auto-saver.
func NewAutoSaver(m *Manager, interval time.Duration) *AutoSaver {
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	return &AutoSaver{manager: m, enabled: true, interval: interval}
}

// Start (re)starts the ticker. Any running ticker is cancelled first.
// Start does nothing while disabled.
func (a *AutoSaver) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	if !a.enabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done
	go a.run(ctx, a.interval, done)
	log.Printf("autosave: started (every %s)", a.interval)
}

// Stop cancels the ticker and waits for it to exit.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *AutoSaver) stopLocked() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil
	log.Printf("autosave: stopped")
}

// Running reports whether a ticker is active.
func (a *AutoSaver) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// Enabled reports whether auto-save is switched on.
func (a *AutoSaver) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Interval returns the save period.
func (a *AutoSaver) Interval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interval
}

// SetEnabled switches auto-save on or off. Disabling stops a running ticker;
// enabling does not start one until the next Start.
func (a *AutoSaver) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
	if !enabled {
		a.stopLocked()
	}
}

// SetInterval changes the period, restarting a running ticker.
func (a *AutoSaver) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	a.mu.Lock()
	running := a.cancel != nil
	a.interval = d
	a.mu.Unlock()
	if running {
		a.Start()
	}
}

func (a *AutoSaver) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *AutoSaver) tick(ctx context.Context) {
	s := a.manager.session
	if !s.IsActive() || s.IsOver() {
		return
	}
	_, err := a.manager.Save(context.WithoutCancel(ctx), AutoSaveName)
	if err != nil {
		log.Printf("autosave: %v", err)
		s.SetError("auto-save failed")
	}
	if a.OnSave != nil {
		a.OnSave(err)
	}
}
