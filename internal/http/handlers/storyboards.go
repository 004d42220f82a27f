package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type pagePromptRequest struct {
	Overwrite bool `json:"overwrite"`
}

type pageResponse struct {
	ID           string `json:"id"`
	StoryboardID string `json:"storyboard_id"`
	PageNumber   int    `json:"page_number"`
	Text         string `json:"text"`
	ImagePrompt  string `json:"image_prompt"`
	ImageURL     string `json:"image_url,omitempty"`
}

func (a *App) WritePagePrompt(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	pageNumber, err := strconv.Atoi(chi.URLParam(r, "page_number"))
	if err != nil || pageNumber < 1 {
		a.error(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	var req pagePromptRequest
	if err := decodeOptional(r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	page, err := a.Tasks.WritePagePrompt(r.Context(), userID, chi.URLParam(r, "storyboard_id"), pageNumber, req.Overwrite)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, pageResponse{
		ID:           page.ID,
		StoryboardID: page.StoryboardID,
		PageNumber:   page.PageNumber,
		Text:         page.Text,
		ImagePrompt:  page.ImagePrompt,
		ImageURL:     page.ImageURL,
	})
}
