package loadgen

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/driftboard/pkg/logger"
)

// fanOut runs fn over items with the given number of workers and stops
// feeding new items once ctx is done.
func fanOut[T any](ctx context.Context, workers int, items []T, fn func(T)) {
	ch := make(chan T, workers*workerChannelDepth)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range ch {
				fn(it)
			}
		}()
	}
	go func() {
		defer close(ch)
		for _, it := range items {
			select {
			case <-ctx.Done():
				return
			case ch <- it:
			}
		}
	}()
	wg.Wait()
}

// submitSessions posts every session and returns the unique sessions the
// service acknowledged, either as created or as a repeat.
func submitSessions(ctx context.Context, c *Client, cfg Config, sessions []Session, stats *Stats, log logger.Logger) []Session {
	log.Info(ctx, "submitting sessions",
		logger.Int("sessions", len(sessions)),
		logger.Int("workers", cfg.Workers))

	var (
		submitted atomic.Int64
		created   atomic.Int64
		duplicate atomic.Int64
		failed    atomic.Int64

		mu    sync.Mutex
		acked = make(map[string]Session, len(sessions))
	)

	progressCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		t := time.NewTicker(progressInterval)
		defer t.Stop()
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-t.C:
				log.Info(ctx, "progress",
					logger.Int64("submitted", submitted.Load()),
					logger.Int("total", len(sessions)),
					logger.Int64("created", created.Load()),
					logger.Int64("duplicate", duplicate.Load()),
					logger.Int64("failed", failed.Load()))
			}
		}
	}()

	fanOut(ctx, cfg.Workers, sessions, func(s Session) {
		outcome, err := c.Submit(ctx, s)
		submitted.Add(1)
		switch outcome {
		case OutcomeCreated:
			created.Add(1)
		case OutcomeDuplicate:
			duplicate.Add(1)
		default:
			failed.Add(1)
			if cfg.Verbose {
				log.Warn(ctx, "submission failed",
					logger.String("session_id", s.SessionID),
					logger.String("player_id", s.PlayerID),
					logger.Error(err))
			}
			return
		}
		mu.Lock()
		acked[s.SessionID] = s
		mu.Unlock()
	})
	stop()

	stats.Submitted = int(submitted.Load())
	stats.Created = int(created.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "submission completed",
		logger.Int("created", stats.Created),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed))

	out := make([]Session, 0, len(acked))
	for _, s := range sessions {
		if _, ok := acked[s.SessionID]; ok {
			out = append(out, s)
			delete(acked, s.SessionID)
		}
	}
	return out
}
