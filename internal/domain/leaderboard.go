package domain

// LeaderboardEntry is one model's row in the ranking. Entries are derived
// data, rebuilt in full on every aggregation run.
type LeaderboardEntry struct {
	ModelID          string  `json:"model_id"`
	Provider         string  `json:"provider"`
	Rank             int     `json:"rank"`
	TotalScore       float64 `json:"total_score"`
	AverageScore     float64 `json:"average_score"`
	RatedPromptCount int     `json:"rated_prompt_count"`

	// RatersUsedCount is the number of distinct raters with at least one
	// usable rating for this model.
	RatersUsedCount int `json:"raters_used_count"`

	// RaterBreakdown holds unweighted per-rater averages, sorted by rater id.
	RaterBreakdown []RaterScore `json:"rater_breakdown"`
}

// RaterScore summarizes one rater's usable scores for one model.
type RaterScore struct {
	RaterID      string  `json:"rater_id"`
	AverageScore float64 `json:"average_score"`
	RatingCount  int     `json:"rating_count"`
}
