package domain

import (
	"math"
	"time"
)

// TaskKind tags the kind of asynchronous job a task tracks.
type TaskKind string

const (
	TaskKindGenerateImages TaskKind = "generate_images"
)

// TaskStatus enumerates task lifecycle states. Transitions only go forward
// from processing to one of the terminal states.
type TaskStatus string

const (
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// PageImage pairs a page number with the illustration URL recorded for it.
type PageImage struct {
	PageNumber int    `json:"pageNumber"`
	ImageURL   string `json:"imageUrl"`
}

// TaskResult accumulates the pages touched by a task. Pages holds every step
// (skips included); GeneratedPages only the steps that produced a new image.
type TaskResult struct {
	StoryboardID    string      `json:"storyboardId"`
	Style           string      `json:"style"`
	ForceRegenerate bool        `json:"forceRegenerate"`
	Pages           []PageImage `json:"pages"`
	GeneratedPages  []PageImage `json:"generatedPages"`
}

// Normalize replaces nil slices so the payload always serializes arrays.
func (r *TaskResult) Normalize() {
	if r.Pages == nil {
		r.Pages = []PageImage{}
	}
	if r.GeneratedPages == nil {
		r.GeneratedPages = []PageImage{}
	}
}

// Task tracks one "illustrate the whole storyboard" job.
type Task struct {
	ID             string
	OwnerID        string
	Kind           TaskKind
	Status         TaskStatus
	TotalItems     int
	CompletedItems int
	Result         TaskResult
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Progress is derived from the counters on every read.
func (t *Task) Progress() int {
	return ProgressPercent(t.CompletedItems, t.TotalItems)
}

// ProgressPercent returns round(done/total*100), clamped to [0, 100].
func ProgressPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
