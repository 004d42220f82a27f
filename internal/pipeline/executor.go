package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/storage"
)

// DefaultImageTimeout bounds a single provider call.
const DefaultImageTimeout = 50 * time.Second

// StepResult reports the outcome of one advance together with the task's
// accumulated pages so a client can reconcile without another read.
type StepResult struct {
	TaskID         string             `json:"task_id"`
	Status         domain.TaskStatus  `json:"status"`
	PageNumber     int                `json:"page_number,omitempty"`
	ImageURL       string             `json:"image_url,omitempty"`
	Skipped        bool               `json:"skipped"`
	Progress       int                `json:"progress"`
	CompletedItems int                `json:"completed_items"`
	TotalItems     int                `json:"total_items"`
	Pages          []domain.PageImage `json:"pages"`
	GeneratedPages []domain.PageImage `json:"generated_pages"`
	Error          string             `json:"error,omitempty"`
}

func resultFromTask(task *domain.Task) *StepResult {
	task.Result.Normalize()
	return &StepResult{
		TaskID:         task.ID,
		Status:         task.Status,
		Progress:       task.Progress(),
		CompletedItems: task.CompletedItems,
		TotalItems:     task.TotalItems,
		Pages:          task.Result.Pages,
		GeneratedPages: task.Result.GeneratedPages,
		Error:          task.Error,
	}
}

// Executor performs at most one page of work per call. Concurrent calls
// coordinate only through the repository's conditional reservation.
type Executor struct {
	tasks        domain.TaskRepository
	boards       domain.StoryboardRepository
	images       ImageGenerator
	fetcher      ImageFetcher
	blobs        storage.BlobStore
	imageTimeout time.Duration
	logger       infra.Logger
	now          func() time.Time
}

func NewExecutor(deps Deps, imageTimeout time.Duration) *Executor {
	if imageTimeout <= 0 {
		imageTimeout = DefaultImageTimeout
	}
	return &Executor{
		tasks:        deps.Tasks,
		boards:       deps.Boards,
		images:       deps.Images,
		fetcher:      deps.Fetcher,
		blobs:        deps.Blobs,
		imageTimeout: imageTimeout,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

// Advance runs one step of the caller's task.
func (e *Executor) Advance(ctx context.Context, callerID, taskID string) (*StepResult, error) {
	task, err := loadOwnedTask(ctx, e.tasks, callerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		return resultFromTask(task), nil
	}
	return e.step(ctx, task)
}

func (e *Executor) step(ctx context.Context, task *domain.Task) (*StepResult, error) {
	page, total, err := e.tasks.ReserveStep(ctx, task.ID)
	if errors.Is(err, domain.ErrNoWorkLeft) {
		return e.finish(ctx, task)
	}
	if err != nil {
		return nil, err
	}
	log := e.logger.With().Str("task_id", task.ID).Int("page", page).Int("total", total).Logger()

	if page > total {
		log.Warn().Msg("reserved page beyond total")
		return e.finish(ctx, task)
	}

	storyboardID := task.Result.StoryboardID
	pg, err := e.boards.GetPage(ctx, storyboardID, page)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Str("storyboard_id", storyboardID).Msg("page missing, closing task")
		return e.finish(ctx, task)
	}
	if err != nil {
		e.release(ctx, task.ID, log)
		return nil, &StepError{TaskID: task.ID, PageNumber: page, Err: err}
	}

	if pg.HasImage() && !task.Result.ForceRegenerate {
		entry := domain.PageImage{PageNumber: page, ImageURL: pg.ImageURL}
		if err := e.tasks.AppendPage(ctx, task.ID, entry, false); err != nil {
			e.release(ctx, task.ID, log)
			return nil, &StepError{TaskID: task.ID, PageNumber: page, Err: err}
		}
		log.Debug().Msg("page already illustrated, skipped")
		return e.settle(ctx, task, page, total, entry, true, log)
	}

	finalURL, err := e.generate(ctx, task, pg, log)
	if err != nil {
		e.release(ctx, task.ID, log)
		log.Warn().Err(err).Msg("step failed, reservation released")
		return nil, &StepError{TaskID: task.ID, PageNumber: page, Err: err}
	}
	entry := domain.PageImage{PageNumber: page, ImageURL: finalURL}
	if err := e.tasks.AppendPage(ctx, task.ID, entry, true); err != nil {
		e.release(ctx, task.ID, log)
		return nil, &StepError{TaskID: task.ID, PageNumber: page, Err: err}
	}
	log.Info().Str("image_url", finalURL).Msg("page illustrated")
	return e.settle(ctx, task, page, total, entry, false, log)
}

// generate produces, re-hosts and records a new illustration for pg.
func (e *Executor) generate(ctx context.Context, task *domain.Task, pg *domain.StoryboardPage, log zerolog.Logger) (string, error) {
	if strings.TrimSpace(pg.ImagePrompt) == "" {
		return "", domain.ErrMissingPrompt
	}
	sb, err := e.boards.GetStoryboard(ctx, pg.StoryboardID)
	if err != nil {
		return "", fmt.Errorf("load storyboard: %w", err)
	}
	prompt := BuildIllustrationPrompt(task.Result.Style, pg.ImagePrompt)

	sourceURL, err := e.callProvider(ctx, prompt)
	if err != nil {
		return "", err
	}
	data, contentType, err := e.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	key := fmt.Sprintf("works/%s/page-%d-%d%s", sb.WorkID, pg.PageNumber, e.now().UnixMilli(), extensionFor(contentType))
	finalURL, err := e.blobs.Upload(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload illustration: %w", err)
	}
	if err := e.boards.SetPageImage(ctx, pg.ID, finalURL); err != nil {
		if delErr := e.blobs.Delete(ctx, finalURL); delErr != nil {
			log.Warn().Err(delErr).Str("url", finalURL).Msg("orphaned upload not removed")
		}
		return "", fmt.Errorf("update page image: %w", err)
	}

	if old := pg.ImageURL; old != "" && old != finalURL && e.blobs.Owns(old) {
		if err := e.blobs.Delete(ctx, old); err != nil {
			log.Warn().Err(err).Str("url", old).Msg("previous illustration not deleted")
		}
	}
	return finalURL, nil
}

func (e *Executor) callProvider(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.imageTimeout)
	defer cancel()
	sourceURL, err := e.images.GenerateImage(genCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %v", domain.ErrGenerationTimeout, e.imageTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if strings.TrimSpace(sourceURL) == "" {
		return "", fmt.Errorf("%w: provider returned no image url", domain.ErrGeneration)
	}
	return strings.TrimSpace(sourceURL), nil
}

// settle completes the task when the reserved page was the last one and
// builds the step result.
func (e *Executor) settle(ctx context.Context, task *domain.Task, page, total int, entry domain.PageImage, skipped bool, log zerolog.Logger) (*StepResult, error) {
	if page >= total {
		if err := e.complete(ctx, task, log); err != nil {
			return nil, err
		}
	}
	res := e.snapshot(ctx, task, log, func(local *domain.Task) {
		local.CompletedItems = page
		local.Result.Pages = append(local.Result.Pages, entry)
		if !skipped {
			local.Result.GeneratedPages = append(local.Result.GeneratedPages, entry)
		}
		if page >= total {
			local.Status = domain.TaskStatusCompleted
		}
	})
	res.PageNumber = entry.PageNumber
	res.ImageURL = entry.ImageURL
	res.Skipped = skipped
	return res, nil
}

// finish closes a task that has no page left to process.
func (e *Executor) finish(ctx context.Context, task *domain.Task) (*StepResult, error) {
	log := e.logger.With().Str("task_id", task.ID).Logger()
	if err := e.tasks.MarkCompleted(ctx, task.ID); err != nil {
		return nil, err
	}
	res := e.snapshot(ctx, task, log, func(local *domain.Task) {
		local.Status = domain.TaskStatusCompleted
	})
	if res.Status == domain.TaskStatusCompleted {
		e.markPreview(ctx, task, log)
	}
	return res, nil
}

func (e *Executor) complete(ctx context.Context, task *domain.Task, log zerolog.Logger) error {
	if err := e.tasks.MarkCompleted(ctx, task.ID); err != nil {
		return err
	}
	e.markPreview(ctx, task, log)
	return nil
}

// markPreview lets the parent work move on to the preview step. Failures are
// only logged.
func (e *Executor) markPreview(ctx context.Context, task *domain.Task, log zerolog.Logger) {
	sb, err := e.boards.GetStoryboard(ctx, task.Result.StoryboardID)
	if err == nil {
		err = e.boards.SetWorkCurrentStep(ctx, sb.WorkID, domain.WorkStepPreview)
	}
	if err != nil {
		log.Warn().Err(err).Msg("work step not advanced to preview")
	}
}

// snapshot re-reads the task. When that fails it falls back to the caller's
// copy patched with what this step is known to have written.
func (e *Executor) snapshot(ctx context.Context, task *domain.Task, log zerolog.Logger, patch func(*domain.Task)) *StepResult {
	fresh, err := e.tasks.GetByID(ctx, task.ID)
	if err == nil {
		return resultFromTask(fresh)
	}
	log.Warn().Err(err).Msg("task re-read failed, reporting local state")
	local := *task
	local.Result.Pages = append([]domain.PageImage(nil), task.Result.Pages...)
	local.Result.GeneratedPages = append([]domain.PageImage(nil), task.Result.GeneratedPages...)
	patch(&local)
	return resultFromTask(&local)
}

func (e *Executor) release(ctx context.Context, taskID string, log zerolog.Logger) {
	if err := e.tasks.ReleaseStep(ctx, taskID); err != nil {
		log.Error().Err(err).Msg("reservation not released, page may be skipped")
	}
}

func loadOwnedTask(ctx context.Context, tasks domain.TaskRepository, callerID, taskID string) (*domain.Task, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("%w: task id is required", domain.ErrInvalidInput)
	}
	task, err := tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != callerID {
		return nil, domain.ErrForbidden
	}
	return task, nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
