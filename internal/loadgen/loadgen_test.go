package loadgen_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/driftboard/internal/adapters/http/api"
	"github.com/okian/driftboard/internal/adapters/repository"
	service "github.com/okian/driftboard/internal/app"
	"github.com/okian/driftboard/internal/loadgen"
	"github.com/okian/driftboard/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := service.New(repository.NewMemStore(ctx))
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() { svc.Stop() })

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := loadgen.Config{Players: 4, Sessions: 3, Seed: 42, WinRate: 0.5}

	a, err := loadgen.Generate(cfg)
	require.NoError(t, err)
	b, err := loadgen.Generate(cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 12)

	players := map[string]int{}
	ids := map[string]struct{}{}
	for _, s := range a {
		players[s.PlayerID]++
		ids[s.SessionID] = struct{}{}
		assert.GreaterOrEqual(t, s.FinalScore, int64(0))
	}
	assert.Len(t, players, 4)
	assert.Len(t, ids, 12)
	assert.Equal(t, 3, players[loadgen.PlayerID(42, 0)])

	cfg.Seed = 43
	c, err := loadgen.Generate(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a[0].SessionID, c[0].SessionID)
}

func TestSessionBodyLeavesPlayerToTheHeader(t *testing.T) {
	b, err := json.Marshal(loadgen.Session{SessionID: "s1", PlayerID: "p1", FinalScore: 5, MostClickedColor: "red"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "p1")
	assert.Contains(t, string(b), `"most_clicked_color":"red"`)
}

func TestRunAgainstService(t *testing.T) {
	srv := newServer(t)
	out := filepath.Join(t.TempDir(), "reports", "run.json")
	cfg := loadgen.Config{
		BaseURL:       srv.URL,
		Players:       12,
		Sessions:      5,
		Workers:       4,
		Seed:          7,
		TopN:          1000,
		DuplicateRate: 0.3,
		WinRate:       0.4,
		Timeout:       5 * time.Second,
		OutputFile:    out,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := loadgen.Run(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Empty(t, report.Mismatches)
	assert.Equal(t, 60, report.Stats.Generated)
	assert.Equal(t, 60, report.Stats.Created)
	assert.Equal(t, report.Stats.Submitted-60, report.Stats.Duplicate)
	assert.Zero(t, report.Stats.Failed)
	assert.Equal(t, 12, report.Stats.LeaderboardEntries)
	assert.Equal(t, 12, report.Stats.RankChecks)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var saved loadgen.Report
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.True(t, saved.OK)
	assert.Equal(t, 60, saved.Stats.Created)

	t.Run("a repeat run only finds duplicates", func(t *testing.T) {
		cfg.OutputFile = ""
		again, err := loadgen.Run(ctx, cfg)
		require.NoError(t, err)
		assert.Zero(t, again.Stats.Created)
		assert.Equal(t, again.Stats.Submitted, again.Stats.Duplicate)
	})

	t.Run("another seed shares the board", func(t *testing.T) {
		cfg.Seed = 8
		other, err := loadgen.Run(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, 60, other.Stats.Created)
		assert.Equal(t, 24, other.Stats.LeaderboardEntries)
	})
}

func TestRunRejectsUnreadyService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := loadgen.Run(context.Background(), loadgen.Config{BaseURL: srv.URL, Players: 1, Sessions: 1})
	assert.ErrorIs(t, err, loadgen.ErrUnhealthy)
}

func TestRunRejectsBadConfig(t *testing.T) {
	cases := []loadgen.Config{
		{Players: -1},
		{TopN: 1001},
		{DuplicateRate: 1.5},
		{WinRate: -0.1},
	}
	for _, c := range cases {
		_, err := loadgen.Run(context.Background(), c)
		assert.ErrorIs(t, err, loadgen.ErrInvalidConfig)
	}
}
