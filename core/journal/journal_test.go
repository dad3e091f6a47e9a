package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"anki-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, keep int) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "journal.db"), Keep: keep})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndList(t *testing.T) {
	s := openTemp(t, 10)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Report(context.Background(), &reconcile.Summary{
			RunID:          fmt.Sprintf("run-%d", i),
			Created:        i,
			DeleteFailures: map[int64]string{int64(i): "gone"},
		}))
	}

	list, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-3", list[0].RunID)
	assert.Equal(t, "run-2", list[1].RunID)
	assert.Equal(t, "gone", list[0].DeleteFailures[3])

	all, err := s.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_Prunes(t *testing.T) {
	s := openTemp(t, 2)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Save(&reconcile.Summary{RunID: fmt.Sprintf("run-%d", i)}))
	}

	list, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-5", list[0].RunID)
	assert.Equal(t, "run-4", list[1].RunID)
}
