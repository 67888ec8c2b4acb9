package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/matchup/internal/config"
	"github.com/iliyamo/matchup/internal/database"
	"github.com/iliyamo/matchup/internal/handler"
	"github.com/iliyamo/matchup/internal/middleware"
	"github.com/iliyamo/matchup/internal/notify"
	"github.com/iliyamo/matchup/internal/queue"
	"github.com/iliyamo/matchup/internal/realtime"
	"github.com/iliyamo/matchup/internal/repository"
	"github.com/iliyamo/matchup/internal/router"
	"github.com/iliyamo/matchup/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	config.SetupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Pinger{}
	var workers sync.WaitGroup
	run := func(name string, fn func()) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			fn()
			logrus.WithField("worker", name).Info("worker stopped")
		}()
	}

	// Record store
	var (
		store         repository.RecordStore
		notifications repository.NotificationStore
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		mem := repository.NewMemoryStore()
		store, notifications = mem, mem
		logrus.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := database.Open(cfg.DB)
		if err != nil {
			logrus.WithError(err).Fatal("mysql connection failed")
		}
		defer db.Close()
		if cfg.DBMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				logrus.WithError(err).Fatal("schema migration failed")
			}
		}
		mysqlStore := repository.NewMySQLStore(db)
		store, notifications = mysqlStore, repository.NewNotificationRepo(db)
		checks["mysql"] = mysqlStore
	}

	// Redis is optional unless it carries realtime fan-out.
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = config.NewRedisClient(cfg.Redis)
		if err != nil {
			if cfg.RealtimeBroker == config.BrokerRedis {
				logrus.WithError(err).Fatal("redis unavailable")
			}
			logrus.WithError(err).Warn("redis unavailable; rate limiting disabled")
		} else {
			defer rdb.Close()
			checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		}
	}

	// Realtime fan-out
	hub := realtime.NewHub()
	var publisher service.Publisher = hub
	switch cfg.RealtimeBroker {
	case config.BrokerRedis:
		b := realtime.NewRedisBroker(rdb, hub)
		publisher = b
		run("redis-fanout", func() {
			if err := b.Run(ctx); err != nil {
				logrus.WithError(err).Error("redis fan-out stopped")
			}
		})
	case config.BrokerNATS:
		nc, err := realtime.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logrus.WithError(err).Fatal("nats connection failed")
		}
		defer nc.Drain()
		b := realtime.NewNATSBroker(nc, hub)
		publisher = b
		checks["nats"] = handler.PingFunc(func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return errors.New(nc.Status().String())
			}
			return nil
		})
		run("nats-fanout", func() {
			if err := b.Run(ctx); err != nil {
				logrus.WithError(err).Error("nats fan-out stopped")
			}
		})
	}

	// Notification dispatch
	deliverer := queue.NewDeliverer(notifications, store, queue.LogPusher{})
	var dispatcher notify.Dispatcher
	if cfg.RabbitMQ.Enabled {
		d := queue.NewAMQPDispatcher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.NotifyBuffer)
		dispatcher = d
		run("amqp-publisher", func() { d.Run(ctx) })
		run("amqp-consumer", func() {
			queue.StartNotificationConsumer(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, deliverer)
		})
	} else {
		d := queue.NewLocalDispatcher(deliverer, cfg.NotifyBuffer)
		dispatcher = d
		run("local-notifier", func() { d.Run(ctx) })
	}

	rsvps := service.NewRSVPService(store, publisher, dispatcher, cfg.TxTimeout)
	games := service.NewGameService(store, publisher, dispatcher, cfg.TxTimeout)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())

	router.RegisterRoutes(e, &handler.HealthHandler{Checks: checks})
	router.RegisterGames(e, handler.NewGameHandler(games), handler.NewRSVPHandler(rsvps),
		cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb))
	router.RegisterNotifications(e, handler.NewNotificationHandler(notifications), cfg.JWTSecret)
	router.RegisterRealtime(e, handler.NewRealtimeHandler(hub, cfg.JWTSecret))

	addr := ":" + cfg.Port
	go func() {
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("http shutdown failed")
	}
	workers.Wait()
	logrus.Info("server exited")
}
