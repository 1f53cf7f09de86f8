package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-portal/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestProfileRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	_, err := database.GetProfile(ctx, "user-1")
	require.ErrorIs(t, err, ErrNotFound)

	p := models.UserProfile{
		ID:                "user-1",
		Name:              "Margaret",
		AvatarImageURL:    "https://img/m.png",
		PersonalityTraits: "warm",
	}
	require.NoError(t, database.SaveProfile(ctx, &p))

	got, err := database.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Margaret", got.Name)
	assert.Equal(t, "https://img/m.png", got.AvatarImageURL)

	// Saving the same id again updates in place.
	p.Name = "Maggie"
	require.NoError(t, database.SaveProfile(ctx, &p))

	got, err = database.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Maggie", got.Name)

	all, err := database.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoriesOrderedByCreation(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, content := range []string{"first", "second", "third"} {
		m := models.MemoryItem{
			ID:        content,
			UserID:    "user-1",
			Type:      models.MemoryText,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, database.SaveMemory(ctx, &m))
	}
	other := models.MemoryItem{ID: "other", UserID: "user-2", Type: models.MemoryText, Content: "x"}
	require.NoError(t, database.SaveMemory(ctx, &other))

	items, err := database.ListMemories(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "first", items[0].Content)
	assert.Equal(t, "second", items[1].Content)
	assert.Equal(t, "third", items[2].Content)
}

func TestTurnHistoryOrderAndLimit(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	texts := []string{"one", "two", "three", "four"}
	for i, text := range texts {
		turn := models.ConversationTurn{
			ID:        text,
			UserID:    "user-1",
			IsUser:    i%2 == 0,
			Text:      text,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, database.SaveTurn(ctx, &turn))
	}

	all, err := database.TurnHistory(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "one", all[0].Text)
	assert.Equal(t, "four", all[3].Text)

	// Limited history keeps the most recent turns, oldest first.
	recent, err := database.TurnHistory(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Text)
	assert.Equal(t, "four", recent[1].Text)
}

func TestVideoJobRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	_, err := database.GetVideoJob(ctx, "talk-1")
	require.ErrorIs(t, err, ErrNotFound)

	job := models.VideoJob{
		ID:           "row-1",
		JobID:        "talk-1",
		UserID:       "user-1",
		SourceTurnID: "turn-1",
		Status:       models.JobCreated,
	}
	require.NoError(t, database.SaveVideoJob(ctx, &job))

	got, err := database.GetVideoJob(ctx, "talk-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobCreated, got.Status)
	assert.Empty(t, got.ResultURL)

	require.NoError(t, database.MarkVideoJob(ctx, "talk-1", models.JobDone, "https://x/y.mp4", 12))

	got, err = database.GetVideoJob(ctx, "talk-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, got.Status)
	assert.Equal(t, "https://x/y.mp4", got.ResultURL)
	assert.Equal(t, 12, got.Attempts)
}
