package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Run refreshes in the background until ctx is cancelled.
//
// It will:
// 1. Refresh every RefreshInterval
// 2. Treat Focus calls and writes to WatchPath as focus signals
// 3. Refresh once focus signals have settled for DebounceInterval
//
// Refreshes are no-ops outside cloud mode, so Run may be started before Login.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.config.Logger.Println("Starting refresh loop")

	var watcher *StoreWatcher
	if o.config.WatchPath != "" {
		w, err := NewStoreWatcher(o.config.WatchPath)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			_ = w.Stop()
			return fmt.Errorf("failed to watch store: %w", err)
		}
		watcher = w
		o.config.Logger.Printf("Watching: %s", w.Path())
	}

	q := &focusQueue{}
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		o.refreshOnInterval(ctx)
	}()
	go func() {
		defer wg.Done()
		o.processFocus(ctx, q)
	}()

	if watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.watchStore(ctx, watcher, q)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			o.config.Logger.Println("Shutdown signal received")
			if watcher != nil {
				if err := watcher.Stop(); err != nil {
					o.config.Logger.Printf("Error closing watcher: %v", err)
				}
			}
			wg.Wait()
			o.config.Logger.Println("Refresh loop stopped")
			return nil

		case <-o.focusCh:
			q.mark(time.Now())
		}
	}
}

// focusQueue remembers the latest unhandled focus signal.
type focusQueue struct {
	mu      sync.Mutex
	pending time.Time
}

func (q *focusQueue) mark(at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = at
}

// take clears and reports the pending signal if it is at least settle old.
func (q *focusQueue) take(now time.Time, settle time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending.IsZero() || now.Sub(q.pending) < settle {
		return false
	}
	q.pending = time.Time{}
	return true
}

func (o *Orchestrator) refreshOnInterval(ctx context.Context) {
	ticker := time.NewTicker(o.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.Refresh(ctx, TriggerInterval); err != nil {
				o.config.Logger.Printf("Error refreshing: %v", err)
			}
		}
	}
}

func (o *Orchestrator) processFocus(ctx context.Context, q *focusQueue) {
	ticker := time.NewTicker(o.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !q.take(now, o.config.DebounceInterval) {
				continue
			}
			if err := o.Refresh(ctx, TriggerFocus); err != nil {
				o.config.Logger.Printf("Error refreshing: %v", err)
			}
		}
	}
}

// watchStore turns writes to the store file by other processes into focus signals.
func (o *Orchestrator) watchStore(ctx context.Context, w *StoreWatcher, q *focusQueue) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			o.config.Logger.Printf("File event: %s %s", ev.Op, ev.Path)
			q.mark(time.Now())

		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			o.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}
