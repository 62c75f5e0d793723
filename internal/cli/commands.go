package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-scriptbench/internal/config"
	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/generation"
	"github.com/ahrav/go-scriptbench/internal/leaderboard"
	"github.com/ahrav/go-scriptbench/internal/llm"
	"github.com/ahrav/go-scriptbench/internal/rating"
)

// NewScriptGenCommand generates one script per (model, prompt) pair.
func NewScriptGenCommand() *cobra.Command {
	return newStageCommand("scriptgen", "Generate scripts for every model and prompt", runScriptGen)
}

// NewAutorateCommand scores every generated script with every rater.
func NewAutorateCommand() *cobra.Command {
	return newStageCommand("autorate", "Score generated scripts with the configured auto-raters", runAutorate)
}

// NewLeaderboardCommand rebuilds the leaderboard from all ratings.
func NewLeaderboardCommand() *cobra.Command {
	return newStageCommand("leaderboard", "Aggregate ratings into a ranked leaderboard", runLeaderboard)
}

func runScriptGen(ctx context.Context, env *Env) error {
	paths := env.Pipeline.Paths
	models, err := config.LoadModels(paths.Models)
	if err != nil {
		return err
	}
	prompts, err := config.LoadPrompts(paths.Prompts, env.Logger)
	if err != nil {
		return err
	}

	querier, err := env.Querier(ctx)
	if err != nil {
		return err
	}
	stage, err := generation.NewStage(generation.Options{
		Querier:     querier,
		Store:       env.Generations(),
		Concurrency: env.Pipeline.Concurrency,
		Events:      env.Events,
		Logger:      env.Logger,
	})
	if err != nil {
		return err
	}

	report, err := stage.Run(ctx, prompts, models)
	if err != nil {
		return err
	}
	logQuerierStats(env, querier)
	env.Logger.Info("scriptgen finished", "report", report.String())
	return nil
}

func runAutorate(ctx context.Context, env *Env) error {
	paths := env.Pipeline.Paths
	models, err := config.LoadModels(paths.Models)
	if err != nil {
		return err
	}
	raters, err := config.LoadRaters(paths.Raters, paths.RaterPrompts, models)
	if err != nil {
		return err
	}

	scripts, err := env.Generations().LoadAll(ctx, domain.KindGeneration)
	if err != nil {
		return err
	}

	querier, err := env.Querier(ctx)
	if err != nil {
		return err
	}
	stage, err := rating.NewStage(rating.Options{
		Querier:     querier,
		Store:       env.Ratings(),
		Models:      models,
		Concurrency: env.Pipeline.Concurrency,
		Events:      env.Events,
		Logger:      env.Logger,
	})
	if err != nil {
		return err
	}

	report, err := stage.Run(ctx, scripts, raters)
	if err != nil {
		return err
	}
	logQuerierStats(env, querier)
	env.Logger.Info("autorate finished", "report", report.String())
	return nil
}

func runLeaderboard(ctx context.Context, env *Env) error {
	paths := env.Pipeline.Paths
	models, err := config.LoadModels(paths.Models)
	if err != nil {
		return err
	}
	raters, err := config.LoadRaters(paths.Raters, paths.RaterPrompts, models)
	if err != nil {
		return err
	}

	builder, err := leaderboard.NewBuilder(leaderboard.Options{
		Ratings: env.Ratings(),
		Events:  env.Events,
		Logger:  env.Logger,
	})
	if err != nil {
		return err
	}
	_, err = builder.Build(ctx, raters, models, paths.Leaderboard)
	return err
}

func logQuerierStats(env *Env, q *llm.Querier) {
	st := q.Stats()
	env.Logger.Info("model call summary",
		"attempts", st.Retry.TotalAttempts,
		"successful_retries", st.Retry.SuccessfulRetries,
		"failed_retries", st.Retry.FailedRetries,
		"non_retryable", st.Retry.NonRetryable,
		"paced_requests", st.RateLimit.PacedRequests,
		"pacing_wait", st.RateLimit.TotalWait,
		"breaker_rejected", st.BreakerRejected)
}
