package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/resonate/internal/storage"
	"github.com/scrypster/resonate/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "resonate_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testProfile(userID string, version int64) *types.TasteProfile {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.TasteProfile{
		UserID:      userID,
		TasteVector: []float32{0.1, -0.2, 0.3},
		SeedSongs: []types.SongRef{
			{Title: "Creep", Artists: []string{"Radiohead"}, Genre: []string{"rock"}},
		},
		SongCount: 1,
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved := testProfile("u1", 1)
	require.NoError(t, store.SaveProfile(ctx, saved))

	loaded, err := store.LoadProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saved.UserID, loaded.UserID)
	assert.Equal(t, saved.TasteVector, loaded.TasteVector)
	assert.Equal(t, saved.SeedSongs, loaded.SeedSongs)
	assert.Equal(t, saved.SongCount, loaded.SongCount)
	assert.Equal(t, saved.Version, loaded.Version)
}

func TestLoadProfileNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveProfileDuplicateInsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProfile(ctx, testProfile("u1", 1)))

	err := store.SaveProfile(ctx, testProfile("u1", 1))
	assert.ErrorIs(t, err, storage.ErrVersionConflict,
		"a second version-1 insert lost the creation race")
}

func TestSaveProfileVersionedUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProfile(ctx, testProfile("u1", 1)))

	updated := testProfile("u1", 2)
	updated.SongCount = 1
	require.NoError(t, store.SaveProfile(ctx, updated))

	loaded, err := store.LoadProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
}

func TestSaveProfileStaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProfile(ctx, testProfile("u1", 1)))
	require.NoError(t, store.SaveProfile(ctx, testProfile("u1", 2)))

	// A writer still holding version 1 tries to save version 2 again.
	err := store.SaveProfile(ctx, testProfile("u1", 2))
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
}

func TestSaveProfileUpdateMissingRow(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveProfile(context.Background(), testProfile("ghost", 2))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveProfileRejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	bad := testProfile("u1", 1)
	bad.SongCount = 7 // disagrees with the seed list
	err := store.SaveProfile(context.Background(), bad)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestDeleteProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProfile(ctx, testProfile("u1", 1)))
	require.NoError(t, store.DeleteProfile(ctx, "u1"))

	_, err := store.LoadProfile(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.DeleteProfile(ctx, "u1"), storage.ErrNotFound)
}

func TestRecordPlayAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	events := []types.PlayEvent{
		{Title: "Creep", Artists: []string{"Radiohead"}, DurationSeconds: 237, Completed: true, PlayedAt: now.Add(-2 * time.Hour)},
		{Title: "Creep", Artists: []string{"Radiohead"}, DurationSeconds: 237, Completed: true, PlayedAt: now.Add(-time.Hour)},
		{Title: "Paranoid", Artists: []string{"Black Sabbath"}, DurationSeconds: 5, PlayedAt: now},
	}
	for _, e := range events {
		require.NoError(t, store.RecordPlay(ctx, "u1", e))
	}

	history, err := store.UserHistory(ctx, "u1", 10, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, "Paranoid", history[0].Title, "newest first")
	assert.Equal(t, 1, history[0].PlayCount)
	assert.Equal(t, "Creep", history[1].Title)
	assert.Equal(t, 2, history[1].PlayCount, "play count accumulates per song")
	assert.Equal(t, []string{"Radiohead"}, history[1].Artists)
	assert.True(t, history[1].Completed)
}

func TestUserHistoryWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.RecordPlay(ctx, "u1", types.PlayEvent{
		Title: "Old", Artists: []string{"X"}, PlayedAt: now.Add(-40 * 24 * time.Hour),
	}))
	require.NoError(t, store.RecordPlay(ctx, "u1", types.PlayEvent{
		Title: "Recent", Artists: []string{"Y"}, PlayedAt: now.Add(-time.Hour),
	}))

	history, err := store.UserHistory(ctx, "u1", 10, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Recent", history[0].Title)
}

func TestUserHistoryLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordPlay(ctx, "u1", types.PlayEvent{
			Title: "Song", Artists: []string{"X"}, PlayedAt: now.Add(-time.Duration(i) * time.Minute),
		}))
	}

	history, err := store.UserHistory(ctx, "u1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUserHistoryIsolatedPerUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordPlay(ctx, "u1", types.PlayEvent{
		Title: "Mine", Artists: []string{"X"}, PlayedAt: time.Now().UTC(),
	}))

	history, err := store.UserHistory(ctx, "u2", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordPlayValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RecordPlay(ctx, "", types.PlayEvent{Title: "x", Artists: []string{"y"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.RecordPlay(ctx, "u1", types.PlayEvent{Artists: []string{"y"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestIsUniqueViolationMatchesUniqueFailuresOnly(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))

	unique := errors.New("constraint failed: UNIQUE constraint failed: taste_profiles.user_id (1555)")
	assert.True(t, isUniqueViolation(unique))

	notNull := errors.New("constraint failed: NOT NULL constraint failed: taste_profiles.version (1299)")
	assert.False(t, isUniqueViolation(notNull), "a NOT NULL failure is not a version conflict")

	check := errors.New("constraint failed: CHECK constraint failed: version (275)")
	assert.False(t, isUniqueViolation(check))
}
