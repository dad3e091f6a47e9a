package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"anki-sync/core/reconcile"
	"anki-sync/core/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned for operations on notes that do not exist.
var ErrNotFound = errors.New("collection: note not found")

// Store is a reconcile.Connector backed by gorm.
type Store struct {
	db     *gorm.DB
	assets storage.AssetSource
	log    *zap.Logger
}

// New creates a store. assets is read for store-assets batches.
func New(db *gorm.DB, assets storage.AssetSource, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, assets: assets, log: log}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Model{}, &Note{}, &Media{}); err != nil {
		return fmt.Errorf("failed to migrate collection: %w", err)
	}
	return nil
}

// CreateModel inserts the model unless a model with that name exists.
func (s *Store) CreateModel(ctx context.Context, name string, fields []string) error {
	model := Model{Name: name, Fields: slices.Clone(fields)}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		return fmt.Errorf("failed to create model %s: %w", name, res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("Created model", zap.String("model", name))
	}
	return nil
}

func (s *Store) hasModel(tx *gorm.DB, name string) (bool, error) {
	var count int64
	if err := tx.Model(&Model{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// LoadModel returns the notes of model ordered by id.
func (s *Store) LoadModel(ctx context.Context, model string) ([]reconcile.RemoteNote, error) {
	db := s.db.WithContext(ctx)
	ok, err := s.hasModel(db, model)
	if err != nil {
		return nil, fmt.Errorf("failed to look up model %s: %w", model, err)
	}
	if !ok {
		return nil, fmt.Errorf("model %s does not exist", model)
	}

	var rows []Note
	if err := db.Where("model = ?", model).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load notes of %s: %w", model, err)
	}
	notes := make([]reconcile.RemoteNote, len(rows))
	for i, row := range rows {
		notes[i] = reconcile.RemoteNote{
			ID:     row.ID,
			Model:  row.Model,
			Deck:   row.Deck,
			Fields: row.Fields,
			Tags:   row.Tags,
		}
	}
	return notes, nil
}

// ListMedia returns the stored media names.
func (s *Store) ListMedia(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&Media{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return names, nil
}

// Execute applies every operation in its own transaction so one failing
// item leaves the others intact.
func (s *Store) Execute(ctx context.Context, kind reconcile.OpKind, ops []reconcile.Operation) ([]reconcile.OpResult, error) {
	var apply func(tx *gorm.DB, op reconcile.Operation) (int64, error)
	switch kind {
	case reconcile.OpAdd:
		apply = s.add
	case reconcile.OpUpdate:
		apply = s.update
	case reconcile.OpDelete:
		apply = s.delete
	case reconcile.OpStoreAssets:
		apply = func(tx *gorm.DB, op reconcile.Operation) (int64, error) {
			return 0, s.storeAsset(ctx, tx, op)
		}
	default:
		return nil, fmt.Errorf("unsupported operation %q", kind)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]reconcile.OpResult, len(ops))
	for i, op := range ops {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			id, err := apply(tx, op)
			results[i].ID = id
			return err
		})
		if err != nil {
			results[i] = reconcile.OpResult{Err: err}
		}
	}
	return results, nil
}

func (s *Store) add(tx *gorm.DB, op reconcile.Operation) (int64, error) {
	ok, err := s.hasModel(tx, op.Model)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("model %s does not exist", op.Model)
	}
	note := Note{Model: op.Model, Key: op.Key, Deck: op.Deck, Fields: op.Fields, Tags: op.Tags}
	if err := tx.Create(&note).Error; err != nil {
		return 0, fmt.Errorf("failed to add note %s: %w", op.Key, err)
	}
	return note.ID, nil
}

func (s *Store) update(tx *gorm.DB, op reconcile.Operation) (int64, error) {
	var note Note
	if err := tx.First(&note, op.NoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("note %d: %w", op.NoteID, ErrNotFound)
		}
		return 0, err
	}
	note.Deck = op.Deck
	note.Fields = op.Fields
	note.Tags = op.Tags
	if op.Key != "" {
		note.Key = op.Key
	}
	if err := tx.Save(&note).Error; err != nil {
		return 0, fmt.Errorf("failed to update note %d: %w", op.NoteID, err)
	}
	return note.ID, nil
}

func (s *Store) delete(tx *gorm.DB, op reconcile.Operation) (int64, error) {
	res := tx.Delete(&Note{}, op.NoteID)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete note %d: %w", op.NoteID, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("note %d: %w", op.NoteID, ErrNotFound)
	}
	return op.NoteID, nil
}

func (s *Store) storeAsset(ctx context.Context, tx *gorm.DB, op reconcile.Operation) error {
	if op.Asset == nil {
		return fmt.Errorf("operation %s has no asset", op.Key)
	}
	if s.assets == nil {
		return fmt.Errorf("no asset source configured")
	}
	rc, err := s.assets.Open(ctx, op.Asset.Path)
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", op.Asset.Path, err)
	}

	media := Media{Name: op.Asset.Name, Data: data, Size: int64(len(data))}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&media).Error
}
