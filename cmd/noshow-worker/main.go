package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/vetclinic-scheduling/internal/appointment"
	"github.com/hackgods/vetclinic-scheduling/internal/config"
	"github.com/hackgods/vetclinic-scheduling/internal/db"
	"github.com/hackgods/vetclinic-scheduling/internal/logging"
	"github.com/hackgods/vetclinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/vetclinic-scheduling/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.WithFields(logrus.Fields{"env": cfg.Env, "interval": cfg.WorkerInterval}).Info("noshow-worker starting up")

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
	log.Info("connected to Postgres")

	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, redisclient.NoopLocker{}, notify.LogNotifier{Log: log}, cfg, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping noshow worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, log logrus.FieldLogger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.MarkNoShows(runCtx)
	if err != nil {
		log.WithError(err).Error("noshow run error")
		return
	}
	log.WithFields(logrus.Fields{"marked": n, "took": time.Since(start).String()}).Info("noshow run complete")
}
