package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/driftboard/internal/adapters/http/api"
	"github.com/okian/driftboard/internal/adapters/repository"
	service "github.com/okian/driftboard/internal/app"
	"github.com/okian/driftboard/internal/config"
	"github.com/okian/driftboard/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			_ = os.Setenv("DRIFT_ADDR", ":8080")
			_ = os.Setenv("DRIFT_DEDUPE_SIZE", "1000")
			_ = os.Setenv("DRIFT_MAX_LEADERBOARD_LIMIT", "500")
			defer func() {
				_ = os.Unsetenv("DRIFT_ADDR")
				_ = os.Unsetenv("DRIFT_DEDUPE_SIZE")
				_ = os.Unsetenv("DRIFT_MAX_LEADERBOARD_LIMIT")
			}()

			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 1000)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 500)
		})

		convey.Convey("When the store driver is unknown", func() {
			_ = os.Setenv("DRIFT_STORE_DRIVER", "sqlite")
			defer func() { _ = os.Unsetenv("DRIFT_STORE_DRIVER") }()

			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given a default configuration", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cfg := config.New(ctx)

		convey.Convey("The memory driver builds an in-memory store", func() {
			store, err := openStore(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			_, ok := store.(*repository.MemStore)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(store.Close(), convey.ShouldBeNil)
		})

		convey.Convey("An unknown driver is an invalid config", func() {
			cfg.StoreDriver = "sqlite"
			_, err := openStore(ctx, cfg, logger.Nop())
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("An unreachable postgres fails to connect", func() {
			cfg.StoreDriver = config.DriverPostgres
			cfg.DatabaseURL = "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"
			_, err := openStore(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given an address that is already taken", t, func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = ln.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cfg := config.New(ctx)
		cfg.Addr = ln.Addr().String()

		convey.Convey("run reports a serve failure", func() {
			err := run(ctx, cfg, logger.Nop())
			convey.So(errors.Is(err, api.ErrServe), convey.ShouldBeTrue)
			convey.So(ctx.Err(), convey.ShouldBeNil)
		})
	})
}

func TestMux(t *testing.T) {
	convey.Convey("Given the assembled mux over an in-memory store", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cfg := config.New(ctx)
		cfg.APIKey = "k"

		svc := service.New(repository.NewMemStore(ctx))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		mux := newMux(ctx, cfg, svc, logger.Nop())

		get := func(path string, headers ...string) int {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			for i := 0; i+1 < len(headers); i += 2 {
				req.Header.Set(headers[i], headers[i+1])
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w.Code
		}

		convey.So(get("/"), convey.ShouldEqual, http.StatusOK)
		convey.So(get("/readyz"), convey.ShouldEqual, http.StatusOK)
		convey.So(get("/api-docs"), convey.ShouldEqual, http.StatusOK)
		convey.So(get("/openapi.yaml"), convey.ShouldEqual, http.StatusOK)
		convey.So(get("/api/leaderboard/global"), convey.ShouldEqual, http.StatusUnauthorized)
		convey.So(get("/api/leaderboard/global", "X-API-Key", "k"), convey.ShouldEqual, http.StatusOK)
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("The system metrics updater returns when its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startSystemMetricsUpdater(ctx)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("System metrics update without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
