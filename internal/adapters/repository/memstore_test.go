package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/driftboard/internal/domain/model"
)

func newTestStore(t *testing.T, now time.Time) *MemStore {
	t.Helper()
	seq := 0
	s := NewMemStore(context.Background(),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("row-%d", seq) }),
	)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func session(id, player string, score int64, won bool) model.SessionRecord {
	return model.SessionRecord{SessionID: id, PlayerID: player, FinalScore: score, Won: won}
}

func TestMemStore_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestStore(t, now)

	rec := session("s1", "p1", 40, false)
	rec.Metrics = model.Metrics{"total_clicks": json.RawMessage(`12`)}

	first, created, err := s.CreateSession(ctx, rec)
	if err != nil || !created {
		t.Fatalf("expected created record, got created=%v err=%v", created, err)
	}
	if first.ID != "row-1" || !first.PlayedAt.Equal(now) {
		t.Errorf("unexpected stamped record: %+v", first)
	}

	again := session("s1", "p1", 999, true)
	second, created, err := s.CreateSession(ctx, again)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected duplicate session to return existing record")
	}
	if second.FinalScore != 40 || second.ID != first.ID {
		t.Errorf("expected original record unchanged, got %+v", second)
	}
	if n, _ := s.CountByPlayer(ctx, "p1"); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
	if string(second.Metrics["total_clicks"]) != "12" {
		t.Errorf("metrics payload not carried through: %v", second.Metrics)
	}
}

func TestMemStore_CreateValidates(t *testing.T) {
	s := newTestStore(t, time.Now())
	_, _, err := s.CreateSession(context.Background(), session("", "p1", 1, false))
	if !errors.Is(err, model.ErrMissingSessionID) {
		t.Errorf("expected ErrMissingSessionID, got %v", err)
	}
	_, _, err = s.CreateSession(context.Background(), session("x", "p1", -5, false))
	if !errors.Is(err, model.ErrNegativeScore) {
		t.Errorf("expected ErrNegativeScore, got %v", err)
	}
}

func TestMemStore_ReadPaths(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, base)

	seed := []model.SessionRecord{
		session("a", "p1", 50, false),
		session("b", "p1", 90, true),
		session("c", "p2", 80, true),
		session("d", "p3", 90, false),
		session("e", "p2", 20, true),
	}
	for i, r := range seed {
		r.PlayedAt = base.Add(time.Duration(i) * time.Hour)
		if _, _, err := s.CreateSession(ctx, r); err != nil {
			t.Fatalf("seed %s: %v", r.SessionID, err)
		}
	}
	if _, err := s.UpsertProfile(ctx, model.Profile{ID: "p2", Username: "trinity"}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	best, err := s.FetchBestPerPlayer(ctx, 10)
	if err != nil {
		t.Fatalf("FetchBestPerPlayer: %v", err)
	}
	got := make([]string, len(best))
	for i, r := range best {
		got[i] = fmt.Sprintf("%s:%d", r.PlayerID, r.FinalScore)
	}
	if fmt.Sprint(got) != "[p1:90 p3:90 p2:80]" {
		t.Errorf("unexpected best per player: %v", got)
	}
	if best[2].DisplayName != "trinity" || best[0].DisplayName != "" {
		t.Errorf("unexpected display names: %q %q", best[0].DisplayName, best[2].DisplayName)
	}

	if n, _ := s.CountPlayersAbove(ctx, 80); n != 2 {
		t.Errorf("expected 2 players above 80, got %d", n)
	}

	wins, _ := s.FetchWinCounts(ctx, 10)
	if fmt.Sprint(wins) != fmt.Sprint([]model.WinCount{{PlayerID: "p2", DisplayName: "trinity", Wins: 2}, {PlayerID: "p1", Wins: 1}}) {
		t.Errorf("unexpected win counts: %+v", wins)
	}

	since := base.Add(2 * time.Hour)
	recent, _ := s.FetchAll(ctx, &since)
	if len(recent) != 3 {
		t.Errorf("expected 3 records since %v, got %d", since, len(recent))
	}

	history, _ := s.History(ctx, "p1", 50)
	if len(history) != 2 || history[0].SessionID != "b" {
		t.Errorf("expected newest first, got %+v", history)
	}
	if h, _ := s.History(ctx, "p1", 1); len(h) != 1 {
		t.Errorf("expected history limit to apply, got %d", len(h))
	}

	top, _ := s.TopScores(ctx, 2)
	if len(top) != 2 || top[0].FinalScore != 90 || top[1].FinalScore != 90 {
		t.Errorf("unexpected top scores: %+v", top)
	}

	if _, err := s.FindBySession(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_DeleteByPlayer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, time.Now())
	for _, r := range []model.SessionRecord{session("a", "p1", 10, true), session("b", "p1", 70, true), session("c", "p2", 30, false)} {
		if _, _, err := s.CreateSession(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.DeleteByPlayer(ctx, "p1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deleted, got %d err=%v", n, err)
	}
	if n, _ := s.DeleteByPlayer(ctx, "p1"); n != 0 {
		t.Errorf("expected second delete to be a no-op, got %d", n)
	}

	best, _ := s.FetchBestPerPlayer(ctx, 10)
	if len(best) != 1 || best[0].PlayerID != "p2" {
		t.Errorf("expected only p2 left, got %+v", best)
	}
	all, _ := s.FetchAll(ctx, nil)
	if len(all) != 1 {
		t.Errorf("expected 1 record left, got %d", len(all))
	}
	if wins, _ := s.FetchWinCounts(ctx, 10); len(wins) != 0 {
		t.Errorf("expected no winners left, got %+v", wins)
	}
	if n, _ := s.CountPlayersAbove(ctx, 0); n != 1 {
		t.Errorf("expected 1 ranked player, got %d", n)
	}

	// the session id is free again after erasure
	if _, created, _ := s.CreateSession(ctx, session("a", "p1", 5, false)); !created {
		t.Error("expected erased session id to be reusable")
	}
}

func TestMemStore_Profiles(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	p, err := s.UpsertProfile(ctx, model.Profile{ID: "abcdef123456", Email: "neo@zion.io"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Username != "neo" || !p.CreatedAt.Equal(now) {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if name, ok, _ := s.ResolveDisplayName(ctx, "abcdef123456"); !ok || name != "neo" {
		t.Errorf("expected resolved name neo, got %q %v", name, ok)
	}
	if _, ok, _ := s.ResolveDisplayName(ctx, "nobody"); ok {
		t.Error("expected unknown player to be unresolved")
	}

	bio := "the one"
	p, err = s.UpdateProfile(ctx, "abcdef123456", model.ProfilePatch{Bio: &bio})
	if err != nil || p.Bio != "the one" || p.Username != "neo" {
		t.Errorf("unexpected update result: %+v err=%v", p, err)
	}
	if _, err := s.UpdateProfile(ctx, "nobody", model.ProfilePatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if ok, _ := s.ProfileExists(ctx, "abcdef123456"); !ok {
		t.Error("expected profile to exist")
	}
	if err := s.DeleteProfile(ctx, "abcdef123456"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteProfile(ctx, "abcdef123456"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindProfile(ctx, "abcdef123456"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_ClosedAndCancelled(t *testing.T) {
	s := newTestStore(t, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.FetchAll(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.FetchByPlayer(context.Background(), "p1"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
