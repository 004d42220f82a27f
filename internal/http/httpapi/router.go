package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"storybook/internal/http/handlers"
	"storybook/internal/infra"
	"storybook/internal/middleware"
)

// Options carries the cross-cutting settings of the router.
type Options struct {
	Logger         infra.Logger
	JWTSecret      string
	DefaultLocale  string
	AllowedOrigins []string
	RateLimit      int
	CountryLookup  middleware.CountryLookup

	// Static serves locally stored illustrations under /static when set.
	Static http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	if opts.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", opts.Static))
	}

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.RateLimit(opts.RateLimit, time.Minute),
			middleware.AuthJWT(opts.JWTSecret),
		)

		r.Post("/v1/storyboards/{storyboard_id}/illustrations", app.StartIllustrations)
		r.Post("/v1/storyboards/{storyboard_id}/pages/{page_number}/image-prompt", app.WritePagePrompt)

		r.Route("/v1/tasks/{task_id}", func(r chi.Router) {
			r.Get("/", app.TaskStatus)
			r.Post("/advance", app.TaskAdvance)
			r.Get("/archive", app.TaskArchive)
		})
	})

	return r
}
