package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/driftboard/internal/loadgen"
	"github.com/okian/driftboard/pkg/logger"
)

const (
	defaultWorkersPerCPU = 2
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)
	root := &cobra.Command{
		Use:           "loadgen",
		Short:         "Drive a driftboard service with generated sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := logger.Init(logger.WithFormat(logFormat)); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text|json)")
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cfg := loadgen.Config{}
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Post sessions, read the leaderboards back and verify them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			_, err := loadgen.Run(ctx, cfg)
			if err != nil {
				lvl := "run failed"
				if errors.Is(err, loadgen.ErrMismatch) {
					lvl = "leaderboards disagree with the submitted sessions"
				}
				logger.Get().Error(ctx, lvl, logger.Error(err))
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", loadgen.DefaultBaseURL, "base URL of the service")
	f.IntVar(&cfg.Players, "players", loadgen.DefaultPlayers, "number of generated players")
	f.IntVar(&cfg.Sessions, "sessions", loadgen.DefaultSessions, "sessions per player")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkersPerCPU, "concurrent submitters")
	f.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "generator seed; equal seeds report equal sessions")
	f.IntVar(&cfg.TopN, "top", loadgen.DefaultTopN, "limit used when reading leaderboards back")
	f.Float64Var(&cfg.DuplicateRate, "duplicates", 0.1, "share of sessions reported twice")
	f.Float64Var(&cfg.WinRate, "win-rate", 0.3, "probability that a session is a win")
	f.DurationVar(&cfg.Timeout, "timeout", loadgen.DefaultTimeout, "per-request timeout")
	f.DurationVar(&cfg.Settle, "settle", 0, "wait between submitting and reading back")
	f.DurationVar(&timeout, "deadline", defaultRunTimeout, "overall run deadline")
	f.StringVar(&cfg.APIKey, "api-key", os.Getenv("DRIFT_API_KEY"), "shared API key")
	f.StringVar(&cfg.PlayerHeader, "player-header", loadgen.DefaultPlayerHeader, "identity header carrying the player id")
	f.StringVar(&cfg.OutputFile, "out", "", "write the JSON report to this file")
	f.BoolVar(&cfg.Verbose, "verbose", false, "log every failed submission")
	return cmd
}
