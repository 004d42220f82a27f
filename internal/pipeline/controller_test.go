package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"storybook/internal/domain"
)

func TestStartValidation(t *testing.T) {
	cases := []struct {
		name    string
		caller  string
		req     StartRequest
		prompts []string
		want    error
	}{
		{"anonymous", "", StartRequest{StoryboardID: "sb-1", Style: "crayon"}, []string{"a"}, domain.ErrUnauthorized},
		{"missing storyboard id", "user-1", StartRequest{Style: "crayon"}, []string{"a"}, domain.ErrInvalidInput},
		{"missing style", "user-1", StartRequest{StoryboardID: "sb-1", Style: "  "}, []string{"a"}, domain.ErrInvalidInput},
		{"unknown storyboard", "user-1", StartRequest{StoryboardID: "sb-9", Style: "crayon"}, []string{"a"}, domain.ErrNotFound},
		{"not owner", "user-2", StartRequest{StoryboardID: "sb-1", Style: "crayon"}, []string{"a"}, domain.ErrForbidden},
		{"no pages", "user-1", StartRequest{StoryboardID: "sb-1", Style: "crayon"}, nil, domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(tc.prompts...)
			h.boards.boards["sb-1"] = &domain.Storyboard{ID: "sb-1", WorkID: "work-1", OwnerID: "user-1"}
			c := h.controller(Options{})
			_, err := c.Start(context.Background(), tc.caller, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if _, getErr := h.tasks.GetByID(context.Background(), "task-1"); getErr == nil {
				t.Fatalf("task created despite validation error")
			}
		})
	}
}

func TestStartEagerFailureKeepsTaskProcessing(t *testing.T) {
	h := newHarness("a", "b")
	h.images.failures = []error{errors.New("provider down")}
	c := h.controller(Options{})

	res, err := c.Start(context.Background(), "user-1", StartRequest{StoryboardID: "sb-1", Style: "pastel"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Sweeper().Wait()
	if res.Status != domain.TaskStatusProcessing || res.Error != "" {
		t.Fatalf("unexpected start result %+v", res)
	}
	if got := h.tasks.get("task-1").CompletedItems; got != 0 {
		t.Fatalf("counter %d after failed eager step", got)
	}
	step, err := c.Advance(context.Background(), "user-1", "task-1")
	if err != nil || step.PageNumber != 1 {
		t.Fatalf("retry should target page 1, got %+v, %v", step, err)
	}
}

func TestStartEagerFailureCanFailTask(t *testing.T) {
	h := newHarness("a", "b")
	h.images.failures = []error{errors.New("provider down")}
	c := h.controller(Options{EagerStepFailsTask: true})

	res, err := c.Start(context.Background(), "user-1", StartRequest{StoryboardID: "sb-1", Style: "pastel"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Sweeper().Wait()
	if res.Status != domain.TaskStatusFailed || res.Error != "image generation failed, please retry" {
		t.Fatalf("unexpected start result %+v", res)
	}
	task := h.tasks.get("task-1")
	if task.Status != domain.TaskStatusFailed || task.Error != res.Error {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestStartNormalizesStyle(t *testing.T) {
	h := newHarness("a", "b")
	c := h.controller(Options{})
	if _, err := c.Start(context.Background(), "user-1", StartRequest{StoryboardID: " sb-1 ", Style: " Crayon "}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Sweeper().Wait()
	task := h.tasks.get("task-1")
	if task.Result.Style != "crayon" || task.Result.StoryboardID != "sb-1" {
		t.Fatalf("unexpected result %+v", task.Result)
	}
	if task.Result.ForceRegenerate {
		t.Fatalf("force regenerate should default to false without images")
	}
}

func TestStatus(t *testing.T) {
	h := newHarness("a", "b", "c", "d")
	c := h.controller(Options{})
	if _, err := c.Start(context.Background(), "user-1", StartRequest{StoryboardID: "sb-1", Style: "cartoon"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Sweeper().Wait()

	view, err := c.Status(context.Background(), "user-1", "task-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if view.Progress != 25 || view.CompletedItems != 1 || view.TotalItems != 4 || view.Kind != domain.TaskKindGenerateImages {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Result.Pages == nil || view.Result.GeneratedPages == nil {
		t.Fatalf("result slices should never be nil")
	}
	if _, err := c.Status(context.Background(), "user-2", "task-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestStartTriggersSweep(t *testing.T) {
	h := newHarness("a", "b")
	_ = h.tasks.Create(context.Background(), &domain.Task{
		ID: "stale", OwnerID: "user-1", Status: domain.TaskStatusCompleted,
		CreatedAt: time.Now().Add(-30 * 24 * time.Hour),
	})
	c := h.controller(Options{TaskRetention: 24 * time.Hour})
	if _, err := c.Start(context.Background(), "user-1", StartRequest{StoryboardID: "sb-1", Style: "3d"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Sweeper().Wait()
	if _, err := h.tasks.GetByID(context.Background(), "stale"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stale task survived: %v", err)
	}
	if _, err := h.tasks.GetByID(context.Background(), "task-1"); err != nil {
		t.Fatalf("new task swept: %v", err)
	}
}
