package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Poller schedules periodic refreshes for open session views. Each watched
// view gets one cron entry; overlap within a session is prevented by the
// view's own in-flight guard, so a slow refresh simply makes the next tick a
// no-op.
type Poller struct {
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewPoller creates a poller. timeout bounds each scheduled refresh call.
func NewPoller(timeout time.Duration) *Poller {
	return &Poller{
		cron:    cron.New(),
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins ticking.
func (p *Poller) Start() {
	p.cron.Start()
	zap.S().Info("session poller started")
}

// Stop halts all polling and waits for running refreshes to finish.
func (p *Poller) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	zap.S().Info("session poller stopped")
}

// Watch schedules periodic refreshes for the view. Watching a session that
// is already watched replaces its schedule. Refresh failures are logged and
// swallowed; the previous snapshot stays displayed and the next tick retries.
func (p *Poller) Watch(view *SessionView, interval time.Duration) error {
	sessionID := view.ID()

	entryID, err := p.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := view.Refresh(ctx); err != nil {
			zap.S().Warnw("session refresh failed",
				"sessionId", sessionID,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule session refresh: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.entries[sessionID]; ok {
		p.cron.Remove(old)
	}
	p.entries[sessionID] = entryID
	return nil
}

// Unwatch stops polling the session and decommissions the view, so a refresh
// still in flight discards its result.
func (p *Poller) Unwatch(view *SessionView) {
	sessionID := view.ID()

	p.mu.Lock()
	if entryID, ok := p.entries[sessionID]; ok {
		p.cron.Remove(entryID)
		delete(p.entries, sessionID)
	}
	p.mu.Unlock()

	view.Stop()
}

// Watched reports whether the session currently has a schedule.
func (p *Poller) Watched(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[sessionID]
	return ok
}
