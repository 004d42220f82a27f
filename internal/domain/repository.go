package domain

import (
	"context"
	"time"
)

// TaskRepository persists task records. ReserveStep, ReleaseStep and
// AppendPage must be single atomic statements at the storage layer; they are
// the only coordination between concurrent advance calls.
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, taskID string) (*Task, error)
	// ReserveStep increments completed_items iff the task is processing and
	// completed_items < total_items. It returns the new counter and the total,
	// or ErrNoWorkLeft when nothing was updated.
	ReserveStep(ctx context.Context, taskID string) (completed int, total int, err error)
	// ReleaseStep undoes a reservation while the task is still processing.
	ReleaseStep(ctx context.Context, taskID string) error
	// AppendPage appends to result.pages and, when generated, to result.generatedPages.
	AppendPage(ctx context.Context, taskID string, page PageImage, generated bool) error
	// MarkCompleted and MarkFailed only move a task out of processing.
	MarkCompleted(ctx context.Context, taskID string) error
	MarkFailed(ctx context.Context, taskID string, message string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoryboardRepository reads storyboards and writes the fields this service owns.
type StoryboardRepository interface {
	GetStoryboard(ctx context.Context, storyboardID string) (*Storyboard, error)
	ListPages(ctx context.Context, storyboardID string) ([]StoryboardPage, error)
	GetPage(ctx context.Context, storyboardID string, pageNumber int) (*StoryboardPage, error)
	SetPageImage(ctx context.Context, pageID, imageURL string) error
	SetPageImagePrompt(ctx context.Context, pageID, prompt string) error
	SetWorkStyle(ctx context.Context, workID, style string) error
	SetWorkCurrentStep(ctx context.Context, workID, step string) error
}
