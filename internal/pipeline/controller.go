package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/storage"
)

// Deps are the collaborators of the illustration pipeline.
type Deps struct {
	Tasks   domain.TaskRepository
	Boards  domain.StoryboardRepository
	Images  ImageGenerator
	Text    TextGenerator
	Fetcher ImageFetcher
	Blobs   storage.BlobStore
	Logger  infra.Logger
}

// Options tune the pipeline. Zero values fall back to defaults.
type Options struct {
	ImageTimeout  time.Duration
	TaskRetention time.Duration

	// EagerStepFailsTask marks the task failed when the synchronous first
	// step errors. Otherwise the step is rolled back and the task stays
	// processing for the poll loop to retry.
	EagerStepFailsTask bool
}

// StartRequest asks for illustrations of every page of a storyboard.
// A nil ForceRegenerate means "redo pages that already have images".
type StartRequest struct {
	StoryboardID    string
	Style           string
	ForceRegenerate *bool
}

// StartResult is returned once the task exists, even if its first step failed.
type StartResult struct {
	TaskID     string            `json:"task_id"`
	TotalPages int               `json:"total_pages"`
	Status     domain.TaskStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
}

// TaskView is the status read model of a task.
type TaskView struct {
	TaskID         string            `json:"task_id"`
	Kind           domain.TaskKind   `json:"kind"`
	Status         domain.TaskStatus `json:"status"`
	Progress       int               `json:"progress"`
	CompletedItems int               `json:"completed_items"`
	TotalItems     int               `json:"total_items"`
	Result         domain.TaskResult `json:"result"`
	Error          string            `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Controller is the entry point for starting, reading and advancing tasks.
type Controller struct {
	tasks      domain.TaskRepository
	boards     domain.StoryboardRepository
	executor   *Executor
	sweeper    *Sweeper
	prompts    *PagePromptWriter
	archiver   *Archiver
	eagerFails bool
	logger     infra.Logger
	newID      func() string
}

func NewController(deps Deps, opts Options) *Controller {
	return &Controller{
		tasks:      deps.Tasks,
		boards:     deps.Boards,
		executor:   NewExecutor(deps, opts.ImageTimeout),
		sweeper:    NewSweeper(deps.Tasks, opts.TaskRetention, deps.Logger),
		prompts:    NewPagePromptWriter(deps.Boards, deps.Text, deps.Logger),
		archiver:   NewArchiver(deps.Tasks, deps.Blobs, deps.Fetcher, deps.Logger),
		eagerFails: opts.EagerStepFailsTask,
		logger:     deps.Logger,
		newID:      uuid.NewString,
	}
}

// Sweeper exposes the retention sweeper so binaries can schedule it.
func (c *Controller) Sweeper() *Sweeper {
	return c.sweeper
}

// Start creates a task for the storyboard and eagerly runs its first step.
func (c *Controller) Start(ctx context.Context, callerID string, req StartRequest) (*StartResult, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, domain.ErrUnauthorized
	}
	storyboardID := strings.TrimSpace(req.StoryboardID)
	if storyboardID == "" {
		return nil, fmt.Errorf("%w: storyboard_id is required", domain.ErrInvalidInput)
	}
	style := NormalizeStyle(req.Style)
	if style == "" {
		return nil, fmt.Errorf("%w: style is required", domain.ErrInvalidInput)
	}

	sb, err := c.boards.GetStoryboard(ctx, storyboardID)
	if err != nil {
		return nil, err
	}
	if sb.OwnerID != callerID {
		return nil, domain.ErrForbidden
	}
	pages, err := c.boards.ListPages(ctx, storyboardID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: storyboard has no pages", domain.ErrInvalidInput)
	}

	force := hasExistingImages(pages)
	if req.ForceRegenerate != nil {
		force = *req.ForceRegenerate
	}
	if err := c.boards.SetWorkStyle(ctx, sb.WorkID, style); err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:         c.newID(),
		OwnerID:    callerID,
		Kind:       domain.TaskKindGenerateImages,
		Status:     domain.TaskStatusProcessing,
		TotalItems: len(pages),
		Result: domain.TaskResult{
			StoryboardID:    storyboardID,
			Style:           style,
			ForceRegenerate: force,
		},
	}
	task.Result.Normalize()
	if err := c.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	log := c.logger.With().Str("task_id", task.ID).Str("storyboard_id", storyboardID).Logger()
	log.Info().Int("pages", len(pages)).Bool("force_regenerate", force).Str("style", style).Msg("illustration task created")

	c.sweeper.Trigger()

	res := &StartResult{TaskID: task.ID, TotalPages: task.TotalItems, Status: domain.TaskStatusProcessing}
	step, err := c.executor.step(ctx, task)
	if err != nil {
		log.Warn().Err(err).Msg("eager first step failed")
		if c.eagerFails {
			msg := FailureMessage(err)
			if markErr := c.tasks.MarkFailed(ctx, task.ID, msg); markErr != nil {
				log.Error().Err(markErr).Msg("task not marked failed")
				return res, nil
			}
			res.Status = domain.TaskStatusFailed
			res.Error = msg
		}
		return res, nil
	}
	res.Status = step.Status
	return res, nil
}

// Status returns the caller's task as stored.
func (c *Controller) Status(ctx context.Context, callerID, taskID string) (*TaskView, error) {
	task, err := loadOwnedTask(ctx, c.tasks, callerID, taskID)
	if err != nil {
		return nil, err
	}
	task.Result.Normalize()
	return &TaskView{
		TaskID:         task.ID,
		Kind:           task.Kind,
		Status:         task.Status,
		Progress:       task.Progress(),
		CompletedItems: task.CompletedItems,
		TotalItems:     task.TotalItems,
		Result:         task.Result,
		Error:          task.Error,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}, nil
}

// Advance runs one step of the caller's task.
func (c *Controller) Advance(ctx context.Context, callerID, taskID string) (*StepResult, error) {
	return c.executor.Advance(ctx, callerID, taskID)
}

func (c *Controller) Archive(ctx context.Context, callerID, taskID string) (*Archive, error) {
	return c.archiver.Archive(ctx, callerID, taskID)
}

func (c *Controller) WritePagePrompt(ctx context.Context, callerID, storyboardID string, pageNumber int, overwrite bool) (*domain.StoryboardPage, error) {
	return c.prompts.WritePagePrompt(ctx, callerID, storyboardID, pageNumber, overwrite)
}

func hasExistingImages(pages []domain.StoryboardPage) bool {
	for i := range pages {
		if pages[i].HasImage() {
			return true
		}
	}
	return false
}
