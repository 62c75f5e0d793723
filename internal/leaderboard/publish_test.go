package leaderboard

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/internal/store/fsstore"
)

func TestWrite_IndentedArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "leaderboard.json")
	entries := []domain.LeaderboardEntry{{ModelID: "m1", Provider: "openai", Rank: 1, RaterBreakdown: []domain.RaterScore{}}}

	require.NoError(t, Write(path, entries))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"model_id\": \"m1\""))

	var got []domain.LeaderboardEntry
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, entries, got)

	// Replacing leaves no temp files behind.
	require.NoError(t, Write(path, nil))
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestBuilder_BuildFromStore(t *testing.T) {
	ctx := context.Background()
	backend, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	ratings := store.New[domain.RatingResult](backend)

	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	for _, r := range []domain.RatingResult{
		rating("overall", "m1", "p1", 7),
		rating("overall", "m2", "p1", 9),
		{RaterID: "overall", ModelID: "m2", PromptID: "p2", Status: domain.StatusUnparsable, RawResponse: "meh"},
	} {
		r.CreatedAt = now
		require.NoError(t, ratings.Save(ctx, r.Key(), r))
	}

	b, err := NewBuilder(Options{Ratings: ratings})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "leaderboard.json")
	entries, err := b.Build(ctx, []domain.RaterConfig{{ID: "overall", Weight: 1}}, models("m1", "m2"), path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "m2", entries[0].ModelID)
	assert.Equal(t, 1, entries[0].RatedPromptCount)

	var onDisk []domain.LeaderboardEntry
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, entries, onDisk)
}

func TestBuilder_NoRatings(t *testing.T) {
	backend, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	b, err := NewBuilder(Options{Ratings: store.New[domain.RatingResult](backend)})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), nil, models("m1"), filepath.Join(t.TempDir(), "lb.json"))
	require.ErrorIs(t, err, domain.ErrNoInputs)
}
