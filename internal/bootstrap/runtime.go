package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"storybook/internal/adapter/repo"
	"storybook/internal/adapter/sqlite"
	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/infra/credentials"
	"storybook/internal/pipeline"
	"storybook/internal/providers/openai"
	"storybook/internal/providers/qwen"
	"storybook/internal/sqlinline"
	"storybook/internal/storage"
)

const (
	fetchTimeout  = 30 * time.Second
	maxImageBytes = 20 << 20
)

// Pinger reports database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Runtime holds the storage side of the service for whichever engine
// DATABASE_URL selects.
type Runtime struct {
	Config      *infra.Config
	Logger      infra.Logger
	Tasks       domain.TaskRepository
	Boards      domain.StoryboardRepository
	DB          Pinger
	Credentials *credentials.Store

	runner  *infra.SQLRunner
	sqlite  *sql.DB
	closers []func()
}

// Open connects to the configured database and builds the repositories.
func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}
	if cfg.UsesSQLite() {
		db, err := infra.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.sqlite = db
		rt.Tasks = sqlite.NewTaskRepository(db)
		rt.Boards = sqlite.NewStoryboardRepository(db)
		rt.DB = sqlPinger{db: db}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		logger.Info().Str("engine", "sqlite").Msg("database opened")
		return rt, nil
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.runner = infra.NewSQLRunner(pool, logger)
	rt.Tasks = repo.NewTaskRepository(rt.runner)
	rt.Boards = repo.NewStoryboardRepository(rt.runner)
	rt.DB = pool
	rt.Credentials = credentials.NewStore(rt.runner)
	rt.closers = append(rt.closers, pool.Close)
	logger.Info().Str("engine", "postgres").Msg("database opened")
	return rt, nil
}

// Migrate applies the schema. Statements are idempotent.
func (rt *Runtime) Migrate(ctx context.Context) error {
	if rt.sqlite != nil {
		return sqlite.Migrate(ctx, rt.sqlite)
	}
	if _, err := rt.runner.Exec(ctx, sqlinline.QSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases database handles in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// Pipeline wires providers and blob storage into a task controller.
func (rt *Runtime) Pipeline(ctx context.Context) (*pipeline.Controller, storage.BlobStore, error) {
	cfg := rt.Config
	blobs, err := storage.FromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("configure storage: %w", err)
	}

	images := qwen.NewClient(qwen.Options{
		KeySource:  rt.keySource(credentials.ProviderQwen, cfg.QwenAPIKey),
		BaseURL:    cfg.QwenBaseURL,
		Model:      cfg.QwenModel,
		HTTPClient: &http.Client{Timeout: cfg.ImageTimeout + 10*time.Second},
		Logger:     &rt.Logger,
	})
	text := openai.NewClient(openai.Options{
		KeySource: rt.keySource(credentials.ProviderOpenAI, cfg.OpenAIAPIKey),
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.OpenAIModel,
	})
	if cfg.QwenAPIKey == "" && rt.Credentials == nil {
		rt.Logger.Warn().Msg("no qwen api key configured, image generation will fail")
	}

	ctrl := pipeline.NewController(pipeline.Deps{
		Tasks:   rt.Tasks,
		Boards:  rt.Boards,
		Images:  images,
		Text:    text,
		Fetcher: storage.NewHTTPFetcher(fetchTimeout, maxImageBytes),
		Blobs:   blobs,
		Logger:  rt.Logger,
	}, pipeline.Options{
		ImageTimeout:       cfg.ImageTimeout,
		TaskRetention:      cfg.TaskRetention,
		EagerStepFailsTask: cfg.EagerStepFailsTask,
	})
	return ctrl, blobs, nil
}

// keySource resolves a provider key per call: the configured key when set,
// otherwise the one stored in integration_tokens.
func (rt *Runtime) keySource(provider, configured string) func(ctx context.Context) (string, error) {
	store := rt.Credentials
	return func(ctx context.Context) (string, error) {
		return store.Resolve(ctx, provider, configured)
	}
}

type sqlPinger struct {
	db *sql.DB
}

func (p sqlPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
