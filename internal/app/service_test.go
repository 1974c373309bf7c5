package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/driftboard/internal/adapters/repository"
	service "github.com/okian/driftboard/internal/app"
	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/leaderboard"
	"github.com/okian/driftboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var errInsert = errors.New("insert failed")

// failingCreate rejects the first n inserts.
type failingCreate struct {
	*repository.MemStore
	failures int
	calls    int
}

func (f *failingCreate) CreateSession(ctx context.Context, rec model.SessionRecord) (model.SessionRecord, bool, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return model.SessionRecord{}, false, errInsert
	}
	return f.MemStore.CreateSession(ctx, rec)
}

func newStore(ctx context.Context) *repository.MemStore {
	at := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	return repository.NewMemStore(ctx, repository.WithClock(func() time.Time { return at }))
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc := service.New(newStore(ctx), service.WithLogger(logger.Nop()))

		Convey("Then it should have sensible defaults", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["accelerated"], ShouldEqual, true)
			So(stats["historyLimit"], ShouldEqual, 50)
			So(stats["recentLimit"], ShouldEqual, 10)
			So(stats["defaultLeaderboardLimit"], ShouldEqual, 100)
			So(stats["defaultWinnersLimit"], ShouldEqual, 20)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc := service.New(newStore(ctx),
			service.WithLogger(logger.Nop()),
			service.WithDedupeSize(25_000),
			service.WithHistoryLimit(5),
			service.WithRecentLimit(2),
			service.WithEngineOptions(
				leaderboard.WithAccelerated(false),
				leaderboard.WithDefaultLimits(3, 2),
			),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats["dedupeSize"], ShouldEqual, 25_000)
			So(stats["historyLimit"], ShouldEqual, 5)
			So(stats["accelerated"], ShouldEqual, false)
			So(stats["defaultLeaderboardLimit"], ShouldEqual, 3)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(newStore(ctx), service.WithLogger(logger.Nop()))

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it is marked as started and answers pings", func() {
				So(svc.GetStats()["started"], ShouldEqual, true)
				So(svc.Ping(ctx), ShouldBeNil)
			})

			Convey("And stopping twice is safe", func() {
				svc.Stop()
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(leaderboard.IsStoreUnavailable(svc.Ping(ctx)), ShouldBeTrue)
			})
		})
	})
}

func TestService_RecordSession(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc := service.New(newStore(ctx), service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		rec := model.SessionRecord{SessionID: "s-1", PlayerID: "alice", FinalScore: 120, Won: true}

		Convey("A new session is created", func() {
			stored, created, err := svc.RecordSession(ctx, rec)
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
			So(stored.ID, ShouldNotBeEmpty)
			So(stored.PlayedAt.IsZero(), ShouldBeFalse)
			So(svc.Size(), ShouldEqual, 1)

			Convey("And a repeat returns the original unchanged", func() {
				again := rec
				again.FinalScore = 999
				got, created, err := svc.RecordSession(ctx, again)
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(got.ID, ShouldEqual, stored.ID)
				So(got.FinalScore, ShouldEqual, 120)

				n, err := svc.Count(ctx, "alice")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("Surrounding whitespace in the session id is ignored", func() {
			_, _, err := svc.RecordSession(ctx, rec)
			So(err, ShouldBeNil)
			padded := rec
			padded.SessionID = "  s-1 "
			_, created, err := svc.RecordSession(ctx, padded)
			So(err, ShouldBeNil)
			So(created, ShouldBeFalse)
		})

		Convey("Invalid sessions are rejected as validation errors", func() {
			cases := []model.SessionRecord{
				{PlayerID: "alice"},
				{SessionID: "s-2"},
				{SessionID: "s-3", PlayerID: "alice", FinalScore: -1},
				{SessionID: "s-4", PlayerID: "alice", PhaseReached: -1},
			}
			for _, c := range cases {
				_, _, err := svc.RecordSession(ctx, c)
				So(leaderboard.IsValidation(err), ShouldBeTrue)
			}
			So(svc.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a store whose first insert fails", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := &failingCreate{MemStore: newStore(ctx), failures: 1}
		svc := service.New(store, service.WithLogger(logger.Nop()))

		rec := model.SessionRecord{SessionID: "retry", PlayerID: "bob", FinalScore: 5}

		Convey("The failure surfaces as a store error and the id is forgotten", func() {
			_, _, err := svc.RecordSession(ctx, rec)
			So(leaderboard.IsStoreUnavailable(err), ShouldBeTrue)
			So(errors.Is(err, errInsert), ShouldBeTrue)
			So(svc.Size(), ShouldEqual, 0)

			Convey("So the retry is inserted", func() {
				_, created, err := svc.RecordSession(ctx, rec)
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(store.calls, ShouldEqual, 2)
			})
		})
	})
}

func TestService_PlayerReads(t *testing.T) {
	Convey("Given a player with several sessions", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := repository.NewMemStore(ctx)
		svc := service.New(store,
			service.WithLogger(logger.Nop()),
			service.WithHistoryLimit(3),
			service.WithRecentLimit(2),
		)

		base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		for i, score := range []int64{10, 40, 20, 30} {
			_, _, err := store.CreateSession(ctx, model.SessionRecord{
				SessionID:    "s" + string(rune('a'+i)),
				PlayerID:     "carol",
				FinalScore:   score,
				FinalEntropy: 0.5,
				Won:          score >= 30,
				PlayedAt:     base.Add(time.Duration(i) * time.Hour),
			})
			So(err, ShouldBeNil)
		}

		Convey("History and Recent return the newest first, bounded", func() {
			history, err := svc.History(ctx, "carol")
			So(err, ShouldBeNil)
			So(len(history), ShouldEqual, 3)
			So(history[0].SessionID, ShouldEqual, "sd")

			recent, err := svc.Recent(ctx, "carol")
			So(err, ShouldBeNil)
			So(len(recent), ShouldEqual, 2)
			So(recent[1].SessionID, ShouldEqual, "sc")
		})

		Convey("Aggregate summarizes every session", func() {
			stats, err := svc.Aggregate(ctx, "carol")
			So(err, ShouldBeNil)
			So(stats.TotalGames, ShouldEqual, 4)
			So(stats.GamesWon, ShouldEqual, 2)
			So(stats.GamesLost, ShouldEqual, 2)
			So(stats.AverageScore, ShouldEqual, 25)
			So(stats.HighestScore, ShouldEqual, 40)
		})

		Convey("TopScores honors the limit and rejects bad ones", func() {
			top, err := svc.TopScores(ctx, leaderboard.LimitOf(2))
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 2)
			So(top[0].FinalScore, ShouldEqual, 40)
			So(top[1].FinalScore, ShouldEqual, 30)

			_, err = svc.TopScores(ctx, leaderboard.LimitOf(0))
			So(leaderboard.IsValidation(err), ShouldBeTrue)
			_, err = svc.TopScores(ctx, leaderboard.LimitOf(1001))
			So(leaderboard.IsValidation(err), ShouldBeTrue)
		})

		Convey("Erase removes the sessions and the leaderboard forgets the player", func() {
			n, err := svc.Erase(ctx, "carol")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 4)

			count, err := svc.Count(ctx, "carol")
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 0)

			rank, err := svc.Rank(ctx, "carol")
			So(err, ShouldBeNil)
			So(rank.Ranked, ShouldBeFalse)
		})

		Convey("An empty player id is rejected", func() {
			_, err := svc.History(ctx, " ")
			So(leaderboard.IsValidation(err), ShouldBeTrue)
			_, err = svc.Count(ctx, "")
			So(leaderboard.IsValidation(err), ShouldBeTrue)
			_, err = svc.Erase(ctx, "")
			So(leaderboard.IsValidation(err), ShouldBeTrue)
		})
	})
}

func TestService_Profiles(t *testing.T) {
	Convey("Given a service without profiles", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc := service.New(newStore(ctx), service.WithLogger(logger.Nop()))

		Convey("Reading a missing profile is not found", func() {
			_, err := svc.Profile(ctx, "dave")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Updating a missing profile is not found", func() {
			name := "x"
			_, err := svc.UpdateProfile(ctx, "dave", model.ProfilePatch{Username: &name})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("A saved profile gets defaults and names the player on the leaderboard", func() {
			p, err := svc.SaveProfile(ctx, model.Profile{ID: "dave", Email: "dave@example.com"})
			So(err, ShouldBeNil)
			So(p.Username, ShouldEqual, "dave")

			_, _, err = svc.RecordSession(ctx, model.SessionRecord{SessionID: "d1", PlayerID: "dave", FinalScore: 7})
			So(err, ShouldBeNil)

			board, err := svc.GlobalLeaderboard(ctx, leaderboard.DefaultLimit)
			So(err, ShouldBeNil)
			So(len(board), ShouldEqual, 1)
			So(board[0].DisplayName, ShouldEqual, "dave")

			Convey("An update changes the name", func() {
				name := "dave2"
				p, err := svc.UpdateProfile(ctx, "dave", model.ProfilePatch{Username: &name})
				So(err, ShouldBeNil)
				So(p.Username, ShouldEqual, "dave2")

				rank, err := svc.Rank(ctx, "dave")
				So(err, ShouldBeNil)
				So(rank.DisplayName, ShouldEqual, "dave2")
				So(rank.Position, ShouldEqual, 1)
			})

			Convey("Deleting the profile erases the sessions too", func() {
				n, err := svc.DeleteProfile(ctx, "dave")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)

				_, err = svc.Profile(ctx, "dave")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				board, err := svc.GlobalLeaderboard(ctx, leaderboard.DefaultLimit)
				So(err, ShouldBeNil)
				So(board, ShouldBeEmpty)
			})
		})

		Convey("A profile without an id is rejected", func() {
			_, err := svc.SaveProfile(ctx, model.Profile{})
			So(leaderboard.IsValidation(err), ShouldBeTrue)
		})
	})
}
