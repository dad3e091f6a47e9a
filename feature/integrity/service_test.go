package integrity

import (
	"context"
	"errors"
	"testing"

	"anki-sync/core/collection"
	"anki-sync/core/database"
	"anki-sync/core/graph"
	"anki-sync/core/reconcile"
	"anki-sync/core/storage"
	"anki-sync/core/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCollection(t *testing.T, migrate bool) (*collection.Store, *gorm.DB) {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	store := collection.New(db, storage.NewFSSource(t.TempDir()), nil)
	if migrate {
		require.NoError(t, store.Migrate(context.Background()))
	}
	return store, db
}

func byName(r *Report) map[string]CheckResult {
	out := make(map[string]CheckResult, len(r.Checks))
	for _, c := range r.Checks {
		out[c.Name] = c
	}
	return out
}

func TestService_Healthy(t *testing.T) {
	ctx := context.Background()
	store, db := setupCollection(t, true)
	require.NoError(t, store.CreateModel(ctx, "Study_GraphModel", reconcile.ModelFieldNames))

	client := new(mocks.Client)
	client.On("BucketExists", mock.Anything, "assets").Return(true, nil)
	assets := storage.NewBucketSource(client, "assets", "")

	snap := graph.NewSnapshot(graph.Info{Name: "Study Graph"}, nil, nil)
	report := NewService(snap, store, assets, db, "", nil).Run(ctx)

	assert.True(t, report.Healthy)
	checks := byName(report)
	assert.Equal(t, StatusOK, checks["graph"].Status)
	assert.Equal(t, "Study Graph", checks["graph"].Detail)
	assert.Equal(t, "0 media files", checks["store"].Detail)
	assert.Equal(t, "Study_GraphModel has 0 notes", checks["model"].Detail)
	assert.Equal(t, StatusOK, checks["assets"].Status)
	assert.Equal(t, "3 tables", checks["schema"].Detail)
	client.AssertExpectations(t)
}

func TestService_Failures(t *testing.T) {
	ctx := context.Background()
	store, db := setupCollection(t, true)

	client := new(mocks.Client)
	client.On("BucketExists", mock.Anything, "assets").Return(false, errors.New("connection refused"))
	assets := storage.NewBucketSource(client, "assets", "")

	snap := graph.NewSnapshot(graph.Info{Name: "Study"}, nil, nil)
	report := NewService(snap, store, assets, db, "Custom", nil).Run(ctx)

	assert.False(t, report.Healthy)
	checks := byName(report)
	assert.Equal(t, StatusError, checks["model"].Status)
	assert.Contains(t, checks["model"].Detail, "Custom")
	assert.Equal(t, StatusError, checks["assets"].Status)
	assert.Contains(t, checks["assets"].Detail, "connection refused")
}

func TestService_SkipsWhatIsNotConfigured(t *testing.T) {
	ctx := context.Background()
	store, _ := setupCollection(t, true)

	snap := graph.NewSnapshot(graph.Info{}, nil, nil)
	report := NewService(snap, store, storage.NewFSSource(t.TempDir()), nil, "", nil).Run(ctx)

	checks := byName(report)
	assert.Equal(t, StatusError, checks["graph"].Status)
	assert.Equal(t, StatusSkipped, checks["model"].Status)
	assert.Equal(t, StatusSkipped, checks["assets"].Status)
	assert.Equal(t, StatusSkipped, checks["schema"].Status)
}

func TestInspectSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingTables", func(t *testing.T) {
		_, db := setupCollection(t, false)
		reports, err := InspectSchema(ctx, db)
		require.NoError(t, err)
		require.Len(t, reports, 3)
		for _, r := range reports {
			assert.True(t, r.Missing, r.Table)
		}
	})

	t.Run("MissingColumn", func(t *testing.T) {
		_, db := setupCollection(t, true)
		require.NoError(t, db.Migrator().DropColumn(&collection.Note{}, "Deck"))

		reports, err := InspectSchema(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, []string{"deck"}, reports[1].MissingColumns)
		assert.Equal(t, "notes", reports[1].Table)

		result := NewService(nil, nil, nil, db, "", nil).CheckSchema(ctx)
		assert.Equal(t, StatusError, result.Status)
		assert.Equal(t, "notes lacks deck", result.Detail)
	})
}
