package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0640
)

// Run executes one load run against cfg.BaseURL. The returned report is
// complete even when the error wraps ErrMismatch.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadgen")
	report := &Report{Config: cfg, Stats: Stats{StartTime: time.Now()}}
	stats := &report.Stats

	log.Info(ctx, "starting load run",
		logger.String("url", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
		logger.Int("top", cfg.TopN))

	client := NewClient(cfg.BaseURL, cfg.Timeout, cfg.APIKey, cfg.PlayerHeader)

	// Step 1: service readiness
	if err := client.Ready(ctx); err != nil {
		return nil, fmt.Errorf("readiness check: %w", err)
	}

	// Step 2: generate
	sessions, err := Generate(cfg)
	if err != nil {
		return nil, fmt.Errorf("generate sessions: %w", err)
	}
	stats.Generated = len(sessions)

	// Step 3: submit, with a share of repeats
	acked := submitSessions(ctx, client, cfg, withResends(sessions, cfg.DuplicateRate, cfg.Seed), stats, log)

	// Step 4: settle
	if cfg.Settle > 0 {
		log.Info(ctx, "waiting before read back", logger.Duration("settle", cfg.Settle))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Settle):
		}
	}

	// Step 5: read back and compare
	wantBest, wantWins := Expected(acked)

	global, err := client.Global(ctx, cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("global leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(global)
	report.Mismatches = append(report.Mismatches, verifyGlobal(wantBest, global, cfg.TopN)...)

	winners, err := client.TopWinners(ctx, cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("top winners: %w", err)
	}
	stats.WinnerEntries = len(winners)
	report.Mismatches = append(report.Mismatches, verifyWinners(wantWins, winners, cfg.TopN)...)

	exclusive := len(global) < cfg.TopN && len(global) == len(wantBest)
	report.Mismatches = append(report.Mismatches, checkRanks(ctx, client, cfg, wantBest, exclusive, stats, log)...)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	report.OK = len(report.Mismatches) == 0

	if cfg.OutputFile != "" {
		if err := saveReport(cfg.OutputFile, report); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		} else {
			log.Info(ctx, "report saved", logger.String("file", cfg.OutputFile))
		}
	}

	displayFinalStats(ctx, log, report)

	if !report.OK {
		return report, fmt.Errorf("%w: %d disagreements", ErrMismatch, len(report.Mismatches))
	}
	return report, nil
}

func checkRanks(ctx context.Context, c *Client, cfg Config, want []model.NamedRecord, exclusive bool, stats *Stats, log logger.Logger) []Mismatch {
	var (
		mu  sync.Mutex
		out []Mismatch
	)
	fanOut(ctx, cfg.Workers, want, func(best model.NamedRecord) {
		res, err := c.Rank(ctx, best.PlayerID)
		var found []Mismatch
		if err != nil {
			log.Warn(ctx, "rank lookup failed", logger.String("player_id", best.PlayerID), logger.Error(err))
			found = []Mismatch{{Check: "rank.lookup", PlayerID: best.PlayerID, Want: "ok", Got: err.Error()}}
		} else {
			found = verifyRank(want, best, res, exclusive)
		}
		mu.Lock()
		stats.RankChecks++
		out = append(out, found...)
		mu.Unlock()
	})
	return out
}

func saveReport(path string, report *Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, r *Report) {
	s := r.Stats
	var ackRate, perSecond float64
	if s.Submitted > 0 {
		ackRate = float64(s.Created+s.Duplicate) / float64(s.Submitted) * percentage
	}
	if s.Duration > 0 {
		perSecond = float64(s.Submitted) / s.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", s.Generated),
		logger.Int("submitted", s.Submitted),
		logger.Int("created", s.Created),
		logger.Int("duplicate", s.Duplicate),
		logger.Int("failed", s.Failed),
		logger.Int("rankChecks", s.RankChecks),
		logger.Int("leaderboardEntries", s.LeaderboardEntries),
		logger.Int("winnerEntries", s.WinnerEntries),
		logger.Float64("ackRatePct", ackRate),
		logger.Float64("sessionsPerSecond", perSecond),
		logger.Duration("duration", s.Duration))
	for i, m := range r.Mismatches {
		if i == maxLoggedMismatches {
			log.Warn(ctx, "more mismatches omitted", logger.Int("total", len(r.Mismatches)))
			break
		}
		log.Warn(ctx, "mismatch", logger.String("detail", m.String()))
	}
}
