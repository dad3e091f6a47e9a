package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prewarmer fills the seed cache in the background while the user reviews
// the candidates.
type Prewarmer struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartPrewarm starts seeding notes after delay. Errors are logged at debug
// level and otherwise ignored; the only effect is a warmer cache.
func StartPrewarm(ctx context.Context, h *HashCalculator, notes []*SourceNote, delay time.Duration, log *zap.Logger) *Prewarmer {
	ctx, cancel := context.WithCancel(ctx)
	p := &Prewarmer{cancel: cancel, done: make(chan struct{})}
	if log == nil {
		log = zap.NewNop()
	}

	go func() {
		defer close(p.done)

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}

		warmed := 0
		for _, note := range notes {
			if ctx.Err() != nil {
				break
			}
			if _, err := h.Seed(ctx, note); err != nil {
				log.Debug("Prewarm seed failed", zap.String("note", note.Key()), zap.Error(err))
				continue
			}
			warmed++
		}
		log.Debug("Prewarm finished", zap.Int("warmed", warmed), zap.Int("notes", len(notes)))
	}()

	return p
}

// Cancel stops the prewarm and waits for it to finish. It is safe to call
// more than once.
func (p *Prewarmer) Cancel() {
	p.once.Do(p.cancel)
	<-p.done
}

// Done is closed when the prewarm has finished.
func (p *Prewarmer) Done() <-chan struct{} {
	return p.done
}
