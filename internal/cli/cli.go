// Package cli holds the cobra commands behind the scriptgen, autorate and
// leaderboard binaries. Every command shares one set of flags and one
// setup path: load the pipeline, preload credentials, install the logger,
// open the store, then run a single stage.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1 // Runtime failure such as an unreachable store.
	ExitUsage = 2 // Configuration problem or missing inputs.
)

var version = "dev"

// Flags are the options shared by every stage command. Zero values leave
// the pipeline file setting in place.
type Flags struct {
	ConfigPath  string
	EnvFile     string
	EventsFile  string
	Concurrency int
	MaxAttempts int
	LogLevel    string
	LogFormat   string
}

func (f *Flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.ConfigPath, "config", "", "Pipeline YAML file (default: pipeline.yaml when present)")
	pf.StringVar(&f.EnvFile, "env-file", "", "Env file preloaded into the environment (default: .env)")
	pf.StringVar(&f.EventsFile, "events-file", "", "Append a JSON-lines event journal to this file")
	pf.IntVar(&f.Concurrency, "concurrency", 0, "Maximum in-flight work units")
	pf.IntVar(&f.MaxAttempts, "max-attempts", 0, "Attempts per model call, including the first")
	pf.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.LogFormat, "log-format", "", "Log format: text or json")
}

// StageFunc runs one stage with a fully prepared Env.
type StageFunc func(ctx context.Context, env *Env) error

func newStageCommand(use, short string, run StageFunc) *cobra.Command {
	flags := &Flags{}
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := Setup(cmd.Context(), *flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()
			return run(cmd.Context(), env)
		},
	}
	flags.register(cmd)
	return cmd
}

// Execute runs cmd with a context cancelled on SIGINT or SIGTERM and maps
// the result to an exit code.
func Execute(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ExitCode(cmd.ExecuteContext(ctx), cmd.ErrOrStderr())
}

// ExitCode reports err to w and returns the matching exit code.
// Per-unit failures never reach here; they are counted in stage reports.
func ExitCode(err error, w io.Writer) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(w, "error:", err)
	if errors.Is(err, domain.ErrConfig) || errors.Is(err, domain.ErrNoInputs) {
		return ExitUsage
	}
	return ExitError
}
