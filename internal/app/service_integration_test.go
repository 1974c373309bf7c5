package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/driftboard/internal/adapters/repository"
	service "github.com/okian/driftboard/internal/app"
	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/internal/leaderboard"
	"github.com/okian/driftboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service fed concurrently with repeated reports", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store := repository.NewMemStore(ctx)
		svc := service.New(store, service.WithDedupeSize(64))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		const players, perPlayer, workers = 12, 15, 6
		base := time.Now().Add(-2 * time.Hour)

		var wg sync.WaitGroup
		var mu sync.Mutex
		created, failures := 0, 0
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// Every worker reports every session, so each id is seen workers times.
				for p := 0; p < players; p++ {
					for i := 0; i < perPlayer; i++ {
						rec := model.SessionRecord{
							SessionID:  fmt.Sprintf("p%02d-s%02d", p, i),
							PlayerID:   fmt.Sprintf("player-%02d", p),
							FinalScore: int64((p*37 + i*11) % 500),
							Won:        (p+i)%3 == 0,
							PlayedAt:   base.Add(time.Duration(i) * time.Minute),
						}
						_, ok, err := svc.RecordSession(ctx, rec)
						mu.Lock()
						if err != nil {
							failures++
						} else if ok {
							created++
						}
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then every session is stored exactly once", func() {
			So(failures, ShouldEqual, 0)
			So(created, ShouldEqual, players*perPlayer)
			for p := 0; p < players; p++ {
				n, err := svc.Count(ctx, fmt.Sprintf("player-%02d", p))
				So(err, ShouldBeNil)
				So(n, ShouldEqual, perPlayer)
			}
			So(svc.Size(), ShouldBeLessThanOrEqualTo, 64)
		})

		Convey("Then the accelerated and scan services agree", func() {
			scan := service.New(store,
				service.WithEngineOptions(leaderboard.WithAccelerated(false)))
			So(scan.GetStats()["accelerated"], ShouldBeFalse)

			fast, err := svc.GlobalLeaderboard(ctx, leaderboard.DefaultLimit)
			So(err, ShouldBeNil)
			slow, err := scan.GlobalLeaderboard(ctx, leaderboard.DefaultLimit)
			So(err, ShouldBeNil)
			So(fast, ShouldResemble, slow)
			So(len(fast), ShouldEqual, players)

			fastWins, err := svc.TopWinners(ctx, leaderboard.DefaultLimit)
			So(err, ShouldBeNil)
			slowWins, err := scan.TopWinners(ctx, leaderboard.DefaultLimit)
			So(err, ShouldBeNil)
			So(fastWins, ShouldResemble, slowWins)

			for i, entry := range fast {
				rank, err := svc.Rank(ctx, entry.PlayerID)
				So(err, ShouldBeNil)
				So(rank.BestScore, ShouldEqual, entry.Score)
				if i > 0 && fast[i-1].Score > entry.Score {
					So(rank.Position, ShouldEqual, i+1)
				}
			}
		})

		Convey("Then the day window holds every player and the month window equals it", func() {
			day, err := svc.WindowedLeaderboard(ctx, "day", leaderboard.DefaultLimit)
			So(err, ShouldBeNil)
			So(len(day), ShouldEqual, players)

			month, err := svc.WindowedLeaderboard(ctx, "month", leaderboard.DefaultLimit)
			So(err, ShouldBeNil)
			So(month, ShouldResemble, day)
		})
	})
}
