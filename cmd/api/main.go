package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"storybook/internal/bootstrap"
	"storybook/internal/http/handlers"
	"storybook/internal/http/httpapi"
	"storybook/internal/infra"
	"storybook/internal/infra/geoip"
	"storybook/internal/storage"
)

var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer rt.Close()

	if cfg.UsesSQLite() {
		if err := rt.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate sqlite database")
		}
	}

	ctrl, blobs, err := rt.Pipeline(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure pipeline")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	app := handlers.NewApp(ctrl, rt.DB, logger)
	app.Version = version

	opts := httpapi.Options{
		Logger:         logger,
		JWTSecret:      cfg.JWTSecret,
		DefaultLocale:  cfg.DefaultLocale,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      cfg.RateLimitPerMin,
		CountryLookup:  geoip.LookupFunc(resolver),
	}
	if fs, ok := blobs.(*storage.FileStore); ok {
		opts.Static = fs.Handler()
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, opts))
	logger.Info().Str("addr", server.Addr()).Str("version", version).Msg("API listening")
	if err := server.Run(ctx, cfg.HTTPIdleTimeout); err != nil {
		logger.Error().Err(err).Msg("http server stopped with error")
	}

	ctrl.Sweeper().Wait()
	logger.Info().Msg("server stopped")
}
