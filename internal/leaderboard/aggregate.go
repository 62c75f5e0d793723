// Package leaderboard turns persisted ratings into a ranked leaderboard.
//
// For each model, a prompt's weighted score is the sum of score × weight
// over its usable ratings. The model's total is the sum over prompts and its
// average divides by the number of prompts with at least one usable rating.
// Weights are applied as given and never normalized.
package leaderboard

import (
	"cmp"
	"slices"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

// Stats records how many ratings were left out of aggregation, by reason.
type Stats struct {
	Used         int `json:"used"`
	NotUsable    int `json:"not_usable"`
	UnknownRater int `json:"unknown_rater"`
	UnknownModel int `json:"unknown_model"`
}

type modelAcc struct {
	promptScores map[string]float64
	raterScores  map[string][]float64
}

// Aggregate builds one entry per configured model, ranked 1..N.
func Aggregate(ratings []domain.RatingResult, raters []domain.RaterConfig, models []domain.ModelConfig) []domain.LeaderboardEntry {
	entries, _ := AggregateWithStats(ratings, raters, models)
	return entries
}

// AggregateWithStats is Aggregate plus a count of ignored ratings.
func AggregateWithStats(ratings []domain.RatingResult, raters []domain.RaterConfig, models []domain.ModelConfig) ([]domain.LeaderboardEntry, Stats) {
	weights := make(map[string]float64, len(raters))
	for _, r := range raters {
		weights[r.ID] = r.Weight
	}
	accs := make(map[string]*modelAcc, len(models))
	for _, m := range models {
		accs[m.ID] = &modelAcc{promptScores: map[string]float64{}, raterScores: map[string][]float64{}}
	}

	// Summation order is fixed so results do not depend on listing order.
	sorted := slices.Clone(ratings)
	slices.SortFunc(sorted, func(a, b domain.RatingResult) int {
		return cmp.Or(
			cmp.Compare(a.ModelID, b.ModelID),
			cmp.Compare(a.PromptID, b.PromptID),
			cmp.Compare(a.RaterID, b.RaterID),
		)
	})

	var stats Stats
	for _, r := range sorted {
		if !r.Usable() {
			stats.NotUsable++
			continue
		}
		weight, ok := weights[r.RaterID]
		if !ok {
			stats.UnknownRater++
			continue
		}
		acc, ok := accs[r.ModelID]
		if !ok {
			stats.UnknownModel++
			continue
		}
		stats.Used++
		acc.promptScores[r.PromptID] += *r.Score * weight
		acc.raterScores[r.RaterID] = append(acc.raterScores[r.RaterID], *r.Score)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(models))
	for _, m := range models {
		acc := accs[m.ID]
		e := domain.LeaderboardEntry{
			ModelID:          m.ID,
			Provider:         m.Provider,
			RatedPromptCount: len(acc.promptScores),
			RaterBreakdown:   []domain.RaterScore{},
		}
		for _, prompt := range sortedKeys(acc.promptScores) {
			e.TotalScore += acc.promptScores[prompt]
		}
		if e.RatedPromptCount > 0 {
			e.AverageScore = e.TotalScore / float64(e.RatedPromptCount)
		}
		for _, raterID := range sortedKeys(acc.raterScores) {
			scores := acc.raterScores[raterID]
			var sum float64
			for _, s := range scores {
				sum += s
			}
			e.RaterBreakdown = append(e.RaterBreakdown, domain.RaterScore{
				RaterID:      raterID,
				AverageScore: sum / float64(len(scores)),
				RatingCount:  len(scores),
			})
		}
		e.RatersUsedCount = len(e.RaterBreakdown)
		entries = append(entries, e)
	}

	Rank(entries)
	return entries, stats
}

// Rank sorts entries and assigns ranks 1..N. Models with usable ratings come
// first, then higher average, higher total and finally model id ascending.
func Rank(entries []domain.LeaderboardEntry) {
	slices.SortFunc(entries, func(a, b domain.LeaderboardEntry) int {
		hasA, hasB := a.RatedPromptCount > 0, b.RatedPromptCount > 0
		if hasA != hasB {
			if hasA {
				return -1
			}
			return 1
		}
		return cmp.Or(
			cmp.Compare(b.AverageScore, a.AverageScore),
			cmp.Compare(b.TotalScore, a.TotalScore),
			cmp.Compare(a.ModelID, b.ModelID),
		)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
