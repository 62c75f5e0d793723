package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/pkg/events"
)

// ErrNoRatings is returned when the store holds no rating artifacts.
var ErrNoRatings = fmt.Errorf("%w: no ratings", domain.ErrNoInputs)

// Write encodes entries as an indented JSON array and replaces path
// atomically: the file is written beside path and renamed over it.
func Write(path string, entries []domain.LeaderboardEntry) error {
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, ".leaderboard-"+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write leaderboard: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish leaderboard: %w", err)
	}
	return nil
}

// Options wires a Builder.
type Options struct {
	Ratings *store.Store[domain.RatingResult]
	Events  *events.Emitter
	Logger  *slog.Logger
}

// Builder recomputes the leaderboard from every persisted rating.
type Builder struct {
	ratings *store.Store[domain.RatingResult]
	events  *events.Emitter
	logger  *slog.Logger
}

// NewBuilder returns a Builder.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Ratings == nil {
		return nil, errors.New("leaderboard: ratings store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{ratings: opts.Ratings, events: opts.Events, logger: logger.With("stage", "leaderboard")}, nil
}

// Build loads all ratings, aggregates them and writes the result to path.
func (b *Builder) Build(ctx context.Context, raters []domain.RaterConfig, models []domain.ModelConfig, path string) ([]domain.LeaderboardEntry, error) {
	ratings, err := b.ratings.LoadAll(ctx, domain.KindRating)
	if err != nil {
		return nil, err
	}
	if len(ratings) == 0 {
		return nil, ErrNoRatings
	}

	entries, stats := AggregateWithStats(ratings, raters, models)
	if stats.UnknownRater > 0 || stats.UnknownModel > 0 {
		b.logger.WarnContext(ctx, "ignoring ratings for unconfigured raters or models",
			"unknown_rater", stats.UnknownRater, "unknown_model", stats.UnknownModel)
	}

	if err := Write(path, entries); err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "leaderboard written",
		"path", path,
		"models", len(entries),
		"ratings_used", stats.Used,
		"ratings_not_usable", stats.NotUsable)
	if len(entries) > 0 && entries[0].RatedPromptCount > 0 {
		b.logger.InfoContext(ctx, "leaderboard leader",
			"model", entries[0].ModelID, "average_score", entries[0].AverageScore)
	}
	b.events.Emit(ctx, events.TypeLeaderboard, "", struct {
		Path  string `json:"path"`
		Stats Stats  `json:"stats"`
	}{Path: path, Stats: stats})
	return entries, nil
}
