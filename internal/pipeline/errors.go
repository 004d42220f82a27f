package pipeline

import (
	"errors"
	"fmt"

	"storybook/internal/domain"
)

// StepError is a retryable failure of one page. The reservation has been
// released, so the next advance targets the same page.
type StepError struct {
	TaskID     string
	PageNumber int
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("task %s page %d: %v", e.TaskID, e.PageNumber, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// timedOut reports whether the image provider ran out of time.
func (e *StepError) timedOut() bool {
	return errors.Is(e.Err, domain.ErrGenerationTimeout)
}

// FailureMessage is the user-facing text stored on a failed task.
func FailureMessage(err error) string {
	var stepErr *StepError
	page := 0
	if errors.As(err, &stepErr) {
		page = stepErr.PageNumber
	}
	switch {
	case stepErr != nil && stepErr.timedOut(), errors.Is(err, domain.ErrGenerationTimeout):
		return "image generation timed out, please retry"
	case errors.Is(err, domain.ErrMissingPrompt):
		if page > 0 {
			return fmt.Sprintf("page %d has no image prompt", page)
		}
		return "page has no image prompt"
	case errors.Is(err, domain.ErrGeneration):
		return "image generation failed, please retry"
	default:
		return "internal error while generating illustrations"
	}
}
