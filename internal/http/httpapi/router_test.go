package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
	"storybook/internal/http/handlers"
	"storybook/internal/middleware"
	"storybook/internal/pipeline"
)

type fakeTasks struct {
	caller string
	taskID string
}

func (f *fakeTasks) Start(context.Context, string, pipeline.StartRequest) (*pipeline.StartResult, error) {
	return &pipeline.StartResult{TaskID: "task-1", TotalPages: 2, Status: domain.TaskStatusProcessing}, nil
}

func (f *fakeTasks) Status(_ context.Context, callerID, taskID string) (*pipeline.TaskView, error) {
	f.caller, f.taskID = callerID, taskID
	return &pipeline.TaskView{TaskID: taskID, Status: domain.TaskStatusProcessing}, nil
}

func (f *fakeTasks) Advance(_ context.Context, callerID, taskID string) (*pipeline.StepResult, error) {
	f.caller, f.taskID = callerID, taskID
	return &pipeline.StepResult{TaskID: taskID, Status: domain.TaskStatusProcessing, PageNumber: 2}, nil
}

func (f *fakeTasks) Archive(context.Context, string, string) (*pipeline.Archive, error) {
	return nil, domain.ErrTaskNotCompleted
}

func (f *fakeTasks) WritePagePrompt(context.Context, string, string, int, bool) (*domain.StoryboardPage, error) {
	return &domain.StoryboardPage{ID: "p1"}, nil
}

const secret = "router-secret"

func newTestRouter(tasks *fakeTasks, static http.Handler) http.Handler {
	app := handlers.NewApp(tasks, nil, zerolog.New(io.Discard))
	return NewRouter(app, Options{
		Logger:        zerolog.New(io.Discard),
		JWTSecret:     secret,
		DefaultLocale: "en",
		RateLimit:     100,
		Static:        static,
	})
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := middleware.SignJWT(secret, userID, "id", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return "Bearer " + token
}

func TestHealthIsPublic(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(&fakeTasks{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestTaskRoutesRequireToken(t *testing.T) {
	router := newTestRouter(&fakeTasks{}, nil)
	for _, target := range []string{"/v1/tasks/task-1", "/v1/tasks/task-1/archive"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: got %d, want 401", target, rr.Code)
		}
	}
}

func TestTaskRoutes(t *testing.T) {
	tasks := &fakeTasks{}
	router := newTestRouter(tasks, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/task-7/advance", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("advance: got %d %s", rr.Code, rr.Body.String())
	}
	if tasks.caller != "user-1" || tasks.taskID != "task-7" {
		t.Fatalf("advance routed with caller=%q task=%q", tasks.caller, tasks.taskID)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/storyboards/sb-1/illustrations", strings.NewReader(`{"style":"crayon"}`))
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start: got %d %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/tasks/task-7/archive", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("archive of running task: got %d", rr.Code)
	}
	if rr.Header().Get("Content-Language") != "id" {
		t.Fatalf("token locale not applied: %q", rr.Header().Get("Content-Language"))
	}
}

func TestStaticMount(t *testing.T) {
	static := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.URL.Path)
	})
	rr := httptest.NewRecorder()
	newTestRouter(&fakeTasks{}, static).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/works/w1/page-1.png", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "/works/w1/page-1.png" {
		t.Fatalf("static: got %d %q", rr.Code, rr.Body.String())
	}
}
