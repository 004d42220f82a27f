package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/middleware"
	"storybook/internal/pipeline"
)

// TaskService is the illustration pipeline as seen by the HTTP layer.
type TaskService interface {
	Start(ctx context.Context, callerID string, req pipeline.StartRequest) (*pipeline.StartResult, error)
	Status(ctx context.Context, callerID, taskID string) (*pipeline.TaskView, error)
	Advance(ctx context.Context, callerID, taskID string) (*pipeline.StepResult, error)
	Archive(ctx context.Context, callerID, taskID string) (*pipeline.Archive, error)
	WritePagePrompt(ctx context.Context, callerID, storyboardID string, pageNumber int, overwrite bool) (*domain.StoryboardPage, error)
}

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Tasks   TaskService
	DB      Pinger
	Logger  infra.Logger
	Version string
}

func NewApp(tasks TaskService, db Pinger, logger infra.Logger) *App {
	return &App{Tasks: tasks, DB: db, Logger: logger}
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	PageNumber int    `json:"page_number,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code string) {
	a.json(w, status, map[string]any{"error": errorBody{
		Code:    code,
		Message: localize(code, middleware.LocaleFromContext(r.Context())),
	}})
}

// fail maps a service error onto an HTTP response.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, retryable := classify(err)
	body := errorBody{
		Code:      code,
		Message:   localize(code, middleware.LocaleFromContext(r.Context())),
		Retryable: retryable,
	}
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		body.PageNumber = stepErr.PageNumber
	}
	log := hlog.FromRequest(r)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	a.json(w, status, map[string]any{"error": body})
}

func classify(err error) (status int, code string, retryable bool) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", false
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden", false
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", false
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request", false
	case errors.Is(err, domain.ErrMissingPrompt):
		return http.StatusUnprocessableEntity, "missing_prompt", false
	case errors.Is(err, domain.ErrTaskNotCompleted):
		return http.StatusConflict, "task_not_completed", false
	case errors.Is(err, domain.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, "generation_timeout", true
	case errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway, "generation_failed", true
	default:
		return http.StatusInternalServerError, "internal", true
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
