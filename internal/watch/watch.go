// Package watch polls a comment thread and reports comments that appear
// after the watch starts.
package watch

import (
	"context"
	"time"

	"github.com/hellausefulsoftware/vssue/api"
	"github.com/hellausefulsoftware/vssue/internal/logging"
	"github.com/hellausefulsoftware/vssue/store"
)

// DefaultInterval is used when no poll interval is configured.
const DefaultInterval = 30 * time.Second

// Watcher periodically refreshes a store's comment page and invokes
// OnNew for each comment not seen before.
type Watcher struct {
	store    *store.Store
	interval time.Duration
	onNew    func(*api.Comment)
	seen     map[string]bool
}

// New creates a watcher over s. onNew may be nil.
func New(s *store.Store, interval time.Duration, onNew func(*api.Comment)) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Watcher{
		store:    s,
		interval: interval,
		onNew:    onNew,
		seen:     make(map[string]bool),
	}
	// comments loaded before the watch begins are not news
	if comments := s.Comments(); comments != nil {
		for _, c := range comments.Data {
			w.seen[c.ID] = true
		}
	}
	return w
}

// Run polls until ctx is canceled. Fetch failures are logged and the
// watch continues; the next tick may succeed.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				logging.Warn("comment poll failed", "error", err)
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	comments, err := w.store.GetComments(ctx)
	if err != nil {
		return err
	}
	if comments == nil {
		return nil
	}
	for _, c := range comments.Data {
		if w.seen[c.ID] {
			continue
		}
		w.seen[c.ID] = true
		if w.onNew != nil {
			w.onNew(c)
		}
	}
	return nil
}
