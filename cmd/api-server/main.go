package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/vetclinic-scheduling/internal/api"
	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
	"github.com/hackgods/vetclinic-scheduling/internal/config"
	"github.com/hackgods/vetclinic-scheduling/internal/db"
	"github.com/hackgods/vetclinic-scheduling/internal/logging"
	"github.com/hackgods/vetclinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/vetclinic-scheduling/internal/redis"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.WithFields(logrus.Fields{"env": cfg.Env, "http_port": cfg.HTTPPort}).Info("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.WithError(err).Fatal("postgres connection error")
	}
	defer pgPool.Close()

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.WithError(err).Fatal("migration error")
	}
	log.Info("connected to Postgres")

	// Redis is optional; without it the unique index is the only double-booking guard.
	var locker redisclient.Locker = redisclient.NoopLocker{}
	var redisCheck api.Check
	rdb, err := redisclient.Connect(rootCtx, cfg)
	switch {
	case errors.Is(err, redisclient.ErrDisabled):
		log.Info("redis not configured, staff schedule lock disabled")
	case err != nil:
		log.WithError(err).Warn("redis unavailable, staff schedule lock disabled")
	default:
		defer func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Warn("error closing redis")
			}
		}()
		locker = redisclient.NewRedisStaffLocker(rdb, cfg.LockTTL, cfg.LockWait)
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info("connected to Redis")
	}

	notifier, closeNotifier := buildNotifier(cfg, log)
	defer closeNotifier()

	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, locker, notifier, cfg, log)

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Postgres: repo.Ping,
		Redis:    redisCheck,
		Log:      log,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown error")
	}

	// let in-flight emergency notifications finish
	svc.Wait()
}

func buildNotifier(cfg config.Config, log logrus.FieldLogger) (appointment.Notifier, func()) {
	fan := notify.Fanout{notify.LogNotifier{Log: logging.Component(log, "notify")}}
	closeFn := func() {}

	if cfg.SMTPHost != "" {
		sender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
		fan = append(fan, notify.NewEmailNotifier(sender, cfg.SecretaryEmails))
		log.WithField("smtp_host", cfg.SMTPHost).Info("email notifications enabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := notify.NewEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		fan = append(fan, pub)
		closeFn = func() {
			if err := pub.Close(); err != nil {
				log.WithError(err).Warn("error closing kafka writer")
			}
		}
		log.WithField("topic", cfg.KafkaTopic).Info("notification events enabled")
	}

	return fan, closeFn
}
