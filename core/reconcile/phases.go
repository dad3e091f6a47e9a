package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentBatches bounds how many managers execute at once.
const maxConcurrentBatches = 4

func (e *Engine) createNotes(ctx context.Context, plan *SyncPlan, router *Router, log *zap.Logger) error {
	byKey := make(map[string]*SourceNote, len(plan.Create))
	for _, note := range plan.Create {
		if err := ctx.Err(); err != nil {
			return err
		}
		byKey[note.Key()] = note
		if err := e.queueWrite(ctx, note, router, 0); err != nil {
			log.Warn("Failed to prepare note", zap.String("note", note.Key()), zap.Error(err))
			plan.CreateFailures[note.Key()] = err
		}
		e.deps.Progress.Increment(1)
	}

	for _, out := range e.executeAll(ctx, router, OpAdd) {
		if out.Err != nil {
			log.Warn("Failed to create note", zap.String("note", out.Op.Key), zap.Error(out.Err))
			plan.CreateFailures[out.Op.Key] = out.Err
			continue
		}
		if note, ok := byKey[out.Op.Key]; ok {
			note.RemoteID = out.ID
		}
	}
	return nil
}

func (e *Engine) updateNotes(ctx context.Context, plan *SyncPlan, router *Router, log *zap.Logger) error {
	for _, note := range plan.Update {
		if err := ctx.Err(); err != nil {
			return err
		}
		skipped, err := e.updateNote(ctx, note, router, log)
		if err != nil {
			log.Warn("Failed to prepare note", zap.String("note", note.Key()), zap.Error(err))
			plan.UpdateFailures[note.Key()] = err
		} else if skipped {
			plan.Unchanged++
		}
		e.deps.Progress.Increment(1)
	}

	for _, out := range e.executeAll(ctx, router, OpUpdate) {
		if out.Err != nil {
			log.Warn("Failed to update note", zap.String("note", out.Op.Key), zap.Error(out.Err))
			plan.UpdateFailures[out.Op.Key] = out.Err
		}
	}
	return nil
}

// updateNote gates on the stored dependency hash and queues either a full
// rewrite or a refresh of the assets the store is missing. It reports
// whether the rewrite was skipped.
func (e *Engine) updateNote(ctx context.Context, note *SourceNote, router *Router, log *zap.Logger) (bool, error) {
	m := router.ManagerFor(note)
	if m == nil || note.RemoteID == 0 {
		log.Info("No remote record for note, skipping update", zap.String("note", note.Key()))
		return false, nil
	}
	record, ok := m.Record(note.RemoteID)
	if !ok {
		log.Info("Remote record vanished, skipping update", zap.String("note", note.Key()), zap.Int64("id", note.RemoteID))
		return false, nil
	}

	stored := DecodeDependencyConfig(record.Fields[FieldConfig])
	if e.cfg.SkipOnDependencyHashMatch && stored.DependencyHash != "" {
		current, err := e.deps.Hasher.Hash(ctx, note, storedPayload(record, stored))
		if err != nil {
			return false, fmt.Errorf("failed to hash stored payload: %w", err)
		}
		if current == stored.DependencyHash {
			for _, asset := range stored.Assets {
				if !m.HasMedia(assetName(asset)) {
					m.QueueAsset(asset)
				}
			}
			return true, nil
		}
	}

	return false, e.queueWrite(ctx, note, router, note.RemoteID)
}

// storedPayload rebuilds the payload a record was written with.
func storedPayload(r *RemoteNote, cfg DependencyConfig) Payload {
	html := r.Fields[FieldText]
	if html == "" {
		html = r.Fields["front"]
	}
	return Payload{
		HTML:       html,
		Assets:     cfg.Assets,
		Deck:       r.Deck,
		Breadcrumb: r.Fields[FieldBreadcrumb],
		Tags:       r.Tags,
		Extra:      r.Fields[FieldExtra],
	}
}

// queueWrite parses note and enqueues an add (remoteID zero) or an update
// on the owning manager, together with the note's assets.
func (e *Engine) queueWrite(ctx context.Context, note *SourceNote, router *Router, remoteID int64) error {
	parsed, err := e.deps.Parser.Parse(ctx, note)
	if err != nil {
		return fmt.Errorf("failed to parse note: %w", err)
	}

	model := parsed.Model
	if model == "" {
		model = router.DefaultModel()
	}
	var m *Manager
	if remoteID != 0 {
		m = router.ManagerFor(note)
	} else {
		m = router.Manager(model)
	}
	if m == nil {
		return fmt.Errorf("%w %s: %v", ErrNoManager, model, router.Err(model))
	}

	hash, err := e.deps.Hasher.Hash(ctx, note, Payload{
		HTML:       parsed.HTML,
		Assets:     parsed.Assets,
		Deck:       parsed.Deck,
		Breadcrumb: parsed.Breadcrumb,
		Tags:       parsed.Tags,
		Extra:      parsed.Extra,
	})
	if err != nil {
		return fmt.Errorf("failed to hash note: %w", err)
	}

	for _, asset := range parsed.Assets {
		m.QueueAsset(asset)
	}

	fieldSet := parsed.Fields
	if fieldSet == nil {
		fieldSet = LegacyFields{}
	}
	op := Operation{
		Key:    note.Key(),
		NoteID: remoteID,
		Model:  m.Model(),
		Deck:   parsed.Deck,
		Tags:   parsed.Tags,
		Fields: BuildFields(fieldSet, BaseFields{
			UUIDType:   note.Key(),
			UUID:       note.UUID,
			Text:       parsed.HTML,
			Extra:      parsed.Extra,
			Breadcrumb: parsed.Breadcrumb,
			Config:     DependencyConfig{DependencyHash: hash, Assets: parsed.Assets}.Encode(),
		}),
	}
	if remoteID != 0 {
		m.Enqueue(OpUpdate, op)
	} else {
		m.Enqueue(OpAdd, op)
	}
	return nil
}

func (e *Engine) deleteNotes(ctx context.Context, plan *SyncPlan, router *Router, log *zap.Logger) error {
	for _, id := range plan.Delete {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m := router.Owner(id); m != nil {
			m.Enqueue(OpDelete, Operation{NoteID: id})
		} else {
			log.Debug("No manager owns record, skipping delete", zap.Int64("id", id))
		}
		e.deps.Progress.Increment(1)
	}

	for _, out := range e.executeAll(ctx, router, OpDelete) {
		if out.Err != nil {
			log.Warn("Failed to delete note", zap.Int64("id", out.Op.NoteID), zap.Error(out.Err))
			plan.DeleteFailures[out.Op.NoteID] = out.Err
		}
	}
	return nil
}

// storeAssets uploads queued media, then lets the store reload. Failures
// are logged only.
func (e *Engine) storeAssets(ctx context.Context, router *Router, log *zap.Logger) {
	for _, out := range e.executeAll(ctx, router, OpStoreAssets) {
		if out.Err != nil {
			log.Warn("Failed to store asset", zap.String("asset", out.Op.Key), zap.Error(out.Err))
		}
	}
	if r, ok := e.deps.Connector.(Reloader); ok {
		if err := r.Reload(ctx); err != nil {
			log.Warn("Failed to reload collection", zap.Error(err))
		}
	}
}

// executeAll runs the pending batch of kind on every manager concurrently
// and returns the outcomes in manager order.
func (e *Engine) executeAll(ctx context.Context, router *Router, kind OpKind) []Outcome {
	managers := router.Managers()
	results := make([][]Outcome, len(managers))

	var g errgroup.Group
	g.SetLimit(maxConcurrentBatches)
	for i, m := range managers {
		if m.Pending(kind) == 0 {
			continue
		}
		g.Go(func() error {
			results[i] = m.Execute(ctx, kind)
			return nil
		})
	}
	_ = g.Wait()

	var out []Outcome
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}
