package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storybook/internal/domain"
	"storybook/internal/pipeline"
)

const maxBodyBytes = 64 << 10

type startIllustrationsRequest struct {
	Style           string `json:"style"`
	ForceRegenerate *bool  `json:"force_regenerate"`
}

// decodeOptional decodes a JSON body into v, accepting an empty body.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func (a *App) StartIllustrations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req startIllustrationsRequest
	if err := decodeOptional(r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	res, err := a.Tasks.Start(r.Context(), userID, pipeline.StartRequest{
		StoryboardID:    chi.URLParam(r, "storyboard_id"),
		Style:           req.Style,
		ForceRegenerate: req.ForceRegenerate,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/tasks/"+res.TaskID)
	a.json(w, http.StatusAccepted, res)
}

func (a *App) TaskStatus(w http.ResponseWriter, r *http.Request) {
	view, err := a.Tasks.Status(r.Context(), a.currentUserID(r), chi.URLParam(r, "task_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) TaskAdvance(w http.ResponseWriter, r *http.Request) {
	res, err := a.Tasks.Advance(r.Context(), a.currentUserID(r), chi.URLParam(r, "task_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) TaskArchive(w http.ResponseWriter, r *http.Request) {
	archive, err := a.Tasks.Archive(r.Context(), a.currentUserID(r), chi.URLParam(r, "task_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive.Data)
}
