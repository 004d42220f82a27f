package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("permission denied")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingPrompt     = errors.New("page image prompt is empty")
	ErrGeneration        = errors.New("image generation failed")
	ErrGenerationTimeout = errors.New("image generation timed out")
	ErrNoWorkLeft        = errors.New("no work left")
	ErrTaskNotCompleted  = errors.New("task not completed")
)
