package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"storybook/internal/bootstrap"
	"storybook/internal/infra"
	"storybook/internal/pipeline"
)

const sweepTimeout = 2 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer rt.Close()

	sweeper := pipeline.NewSweeper(rt.Tasks, cfg.TaskRetention, logger)
	cronLog := cronLogger{logger: logger}
	scheduler := cron.New(cron.WithLogger(cronLog), cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()
		n, err := sweeper.Sweep(runCtx)
		if err != nil {
			logger.Error().Err(err).Msg("worker: sweep failed")
			return
		}
		logger.Info().Int64("deleted", n).Msg("worker: sweep finished")
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("worker: invalid sweep schedule")
	}

	scheduler.Start()
	logger.Info().Str("schedule", cfg.SweepSchedule).Dur("retention", cfg.TaskRetention).Msg("worker: started")

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logger.Info().Msg("worker: stopped")
}

// cronLogger routes cron's own logging into zerolog.
type cronLogger struct {
	logger infra.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
