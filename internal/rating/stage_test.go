package rating

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/llm"
	llmerrors "github.com/ahrav/go-scriptbench/internal/llm/errors"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/internal/store/fsstore"
)

// scriptedQuerier answers by model id; a missing entry is a failure.
type scriptedQuerier struct {
	mu      sync.Mutex
	answers map[string]string
	prompts []string
}

func (q *scriptedQuerier) Query(_ context.Context, model domain.ModelConfig, prompt string, _ ...llm.QueryOption) llm.Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prompts = append(q.prompts, prompt)
	answer, ok := q.answers[model.ID]
	if !ok {
		return llm.Outcome{
			Failure:  &llm.Failure{Kind: llmerrors.ErrorTypeRateLimit, Message: "quota window exhausted"},
			Attempts: 3,
		}
	}
	return llm.Outcome{Text: answer, Attempts: 1}
}

func (q *scriptedQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.prompts)
}

var fixedNow = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *store.Store[domain.RatingResult] {
	t.Helper()
	backend, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	return store.New[domain.RatingResult](backend)
}

var judges = []domain.ModelConfig{
	{ID: "judge-a", Provider: domain.ProviderOpenAI, ModelName: "gpt-4o"},
	{ID: "judge-b", Provider: domain.ProviderAnthropic, ModelName: "claude"},
	{ID: "judge-down", Provider: domain.ProviderOllama, ModelName: "llama3"},
}

func newStage(t *testing.T, q Querier, s *store.Store[domain.RatingResult]) *Stage {
	t.Helper()
	stage, err := NewStage(Options{
		Querier:     q,
		Store:       s,
		Models:      judges,
		Concurrency: 2,
		Now:         func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return stage
}

func script(model, prompt string, status domain.Status) domain.GenerationResult {
	return domain.GenerationResult{
		ModelID:  model,
		PromptID: prompt,
		Content:  "ACT I. " + model + " on " + prompt,
		Status:   status,
	}
}

func TestRender(t *testing.T) {
	got := Render("Rate this:\n{{script_text}}\nAgain: {{script_text}}", "HAMLET")
	assert.Equal(t, "Rate this:\nHAMLET\nAgain: HAMLET", got)
	assert.Equal(t, "no placeholder", Render("no placeholder", "HAMLET"))
}

func TestRun_RatesAndPersists(t *testing.T) {
	q := &scriptedQuerier{answers: map[string]string{
		"judge-a": "```json\n{\"score\": 8, \"reasoning\": \"Strong voice\"}\n```",
		"judge-b": "I'd say 6.5/10",
	}}
	s := newStore(t)
	raters := []domain.RaterConfig{
		{ID: "voice", PromptTemplate: "Judge voice: {{script_text}}", ModelRef: "judge-a", Weight: 0.5},
		{ID: "plot", PromptTemplate: "Judge plot: {{script_text}}", ModelRef: "judge-b", Weight: 0.3},
	}

	report, err := newStage(t, q, s).Run(context.Background(),
		[]domain.GenerationResult{script("m1", "p1", domain.StatusOK)}, raters)
	require.NoError(t, err)
	assert.Equal(t, Report{Rated: 2, Total: 2}, report)

	voice, err := s.Load(context.Background(), domain.RatingKey("voice", "m1", "p1"))
	require.NoError(t, err)
	require.NotNil(t, voice.Score)
	assert.InDelta(t, 8.0, *voice.Score, 1e-9)
	assert.Equal(t, "json", voice.ScoreMethod)
	assert.Equal(t, domain.StatusOK, voice.Status)
	assert.Equal(t, fixedNow, voice.CreatedAt)
	assert.Contains(t, voice.RawResponse, "Strong voice")

	plot, err := s.Load(context.Background(), domain.RatingKey("plot", "m1", "p1"))
	require.NoError(t, err)
	require.NotNil(t, plot.Score)
	assert.InDelta(t, 6.5, *plot.Score, 1e-9)

	for _, p := range q.prompts {
		assert.Contains(t, p, "ACT I. m1 on p1")
		assert.NotContains(t, p, ScriptPlaceholder)
	}
}

func TestRun_UnparsableAndFailedAreRecorded(t *testing.T) {
	q := &scriptedQuerier{answers: map[string]string{"judge-a": "A triumph of the form."}}
	s := newStore(t)
	raters := []domain.RaterConfig{
		{ID: "vibes", PromptTemplate: "{{script_text}}", ModelRef: "judge-a", Weight: 1},
		{ID: "offline", PromptTemplate: "{{script_text}}", ModelRef: "judge-down", Weight: 1},
	}

	report, err := newStage(t, q, s).Run(context.Background(),
		[]domain.GenerationResult{script("m1", "p1", domain.StatusOK)}, raters)
	require.NoError(t, err)
	assert.Equal(t, Report{Unparsable: 1, Failed: 1, Total: 2}, report)

	vibes, err := s.Load(context.Background(), domain.RatingKey("vibes", "m1", "p1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnparsable, vibes.Status)
	assert.Nil(t, vibes.Score)
	assert.Equal(t, "A triumph of the form.", vibes.RawResponse)

	offline, err := s.Load(context.Background(), domain.RatingKey("offline", "m1", "p1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, offline.Status)
	assert.Equal(t, "rate_limit", offline.ErrorKind)
	assert.Nil(t, offline.Score)

	// Unparsable and failed ratings are terminal; nothing is retried.
	report, err = newStage(t, q, s).Run(context.Background(),
		[]domain.GenerationResult{script("m1", "p1", domain.StatusOK)}, raters)
	require.NoError(t, err)
	assert.Equal(t, Report{Skipped: 2, Total: 2}, report)
	assert.Equal(t, 2, q.Calls())
}

func TestRun_ExcludesFailedScripts(t *testing.T) {
	q := &scriptedQuerier{answers: map[string]string{"judge-a": "7"}}
	raters := []domain.RaterConfig{
		{ID: "r1", PromptTemplate: "{{script_text}}", ModelRef: "judge-a", Weight: 1},
		{ID: "r2", PromptTemplate: "{{script_text}}", ModelRef: "judge-a", Weight: 1},
	}
	scripts := []domain.GenerationResult{
		script("m1", "p1", domain.StatusOK),
		script("m2", "p1", domain.StatusFailed),
	}

	report, err := newStage(t, q, newStore(t)).Run(context.Background(), scripts, raters)
	require.NoError(t, err)
	assert.Equal(t, Report{Rated: 2, Excluded: 2, Total: 4}, report)
	for _, p := range q.prompts {
		assert.False(t, strings.Contains(p, "m2"), "failed scripts must not be rated")
	}
}

func TestRun_UnknownModelRefAbortsBeforeWork(t *testing.T) {
	q := &scriptedQuerier{}
	raters := []domain.RaterConfig{{ID: "r1", PromptTemplate: "x", ModelRef: "ghost", Weight: 1}}

	_, err := newStage(t, q, newStore(t)).Run(context.Background(),
		[]domain.GenerationResult{script("m1", "p1", domain.StatusOK)}, raters)
	require.ErrorIs(t, err, domain.ErrConfig)
	assert.Zero(t, q.Calls())
}

func TestRun_MissingInputs(t *testing.T) {
	stage := newStage(t, &scriptedQuerier{}, newStore(t))
	raters := []domain.RaterConfig{{ID: "r1", PromptTemplate: "x", ModelRef: "judge-a", Weight: 1}}

	_, err := stage.Run(context.Background(), nil, raters)
	require.ErrorIs(t, err, ErrNoScripts)
	require.ErrorIs(t, err, domain.ErrNoInputs)

	_, err = stage.Run(context.Background(), []domain.GenerationResult{script("m1", "p1", domain.StatusOK)}, nil)
	require.ErrorIs(t, err, ErrNoRaters)
}

func TestReport_String(t *testing.T) {
	r := Report{Rated: 1, Skipped: 2, Unparsable: 3, Failed: 4, Errored: 5, Excluded: 6, Total: 21}
	assert.Equal(t, "rated=1 skipped=2 unparsable=3 failed=4 errored=5 excluded=6 not_started=0 total=21", r.String())
}

// A non-finite score is recorded as unparsable, so the unit is persisted
// and a rerun makes no further model call.
func TestRun_NonFiniteScoreIsUnparsable(t *testing.T) {
	q := &scriptedQuerier{answers: map[string]string{"judge-a": `{"score": "NaN"}`}}
	s := newStore(t)
	raters := []domain.RaterConfig{{ID: "voice", PromptTemplate: "{{script_text}}", ModelRef: "judge-a", Weight: 1}}
	scripts := []domain.GenerationResult{script("m1", "p1", domain.StatusOK)}

	report, err := newStage(t, q, s).Run(context.Background(), scripts, raters)
	require.NoError(t, err)
	assert.Equal(t, Report{Unparsable: 1, Total: 1}, report)

	got, err := s.Load(context.Background(), domain.RatingKey("voice", "m1", "p1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnparsable, got.Status)
	assert.Nil(t, got.Score)

	report, err = newStage(t, q, s).Run(context.Background(), scripts, raters)
	require.NoError(t, err)
	assert.Equal(t, Report{Skipped: 1, Total: 1}, report)
	assert.Equal(t, 1, q.Calls())
}
