package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
	"storybook/internal/providers/openai"
)

type memTasks struct {
	mu       sync.Mutex
	tasks    map[string]*domain.Task
	getErr   error
	releases int
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: map[string]*domain.Task{}}
}

func (m *memTasks) Create(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.tasks[task.ID] = &cp
	return nil
}

func (m *memTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	cp.Result.Pages = append([]domain.PageImage(nil), t.Result.Pages...)
	cp.Result.GeneratedPages = append([]domain.PageImage(nil), t.Result.GeneratedPages...)
	return &cp, nil
}

func (m *memTasks) ReserveStep(_ context.Context, id string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != domain.TaskStatusProcessing || t.CompletedItems >= t.TotalItems {
		return 0, 0, domain.ErrNoWorkLeft
	}
	t.CompletedItems++
	return t.CompletedItems, t.TotalItems, nil
}

func (m *memTasks) ReleaseStep(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	if t, ok := m.tasks[id]; ok && t.Status == domain.TaskStatusProcessing && t.CompletedItems > 0 {
		t.CompletedItems--
	}
	return nil
}

func (m *memTasks) AppendPage(_ context.Context, id string, page domain.PageImage, generated bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Result.Pages = append(t.Result.Pages, page)
	if generated {
		t.Result.GeneratedPages = append(t.Result.GeneratedPages, page)
	}
	return nil
}

func (m *memTasks) MarkCompleted(_ context.Context, id string) error {
	return m.transition(id, domain.TaskStatusCompleted, "")
}

func (m *memTasks) MarkFailed(_ context.Context, id, message string) error {
	return m.transition(id, domain.TaskStatusFailed, message)
}

func (m *memTasks) transition(id string, status domain.TaskStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok && t.Status == domain.TaskStatusProcessing {
		t.Status = status
		t.Error = message
	}
	return nil
}

func (m *memTasks) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tasks {
		if t.CreatedAt.Before(cutoff) {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}

func (m *memTasks) get(id string) domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tasks[id]
}

type memBoards struct {
	mu          sync.Mutex
	boards      map[string]*domain.Storyboard
	pages       map[string][]*domain.StoryboardPage
	workStyle   map[string]string
	workStep    map[string]string
	setImageErr error
}

func newMemBoards() *memBoards {
	return &memBoards{
		boards:    map[string]*domain.Storyboard{},
		pages:     map[string][]*domain.StoryboardPage{},
		workStyle: map[string]string{},
		workStep:  map[string]string{},
	}
}

// seed creates storyboard sb-1 of work-1 owned by user-1 with the given prompts.
// An empty prompt leaves the page without one.
func (m *memBoards) seed(prompts ...string) {
	m.boards["sb-1"] = &domain.Storyboard{ID: "sb-1", WorkID: "work-1", OwnerID: "user-1"}
	for i, p := range prompts {
		n := i + 1
		m.pages["sb-1"] = append(m.pages["sb-1"], &domain.StoryboardPage{
			ID:           fmt.Sprintf("page-%d", n),
			StoryboardID: "sb-1",
			PageNumber:   n,
			Text:         fmt.Sprintf("text of page %d", n),
			ImagePrompt:  p,
		})
	}
}

func (m *memBoards) page(n int) domain.StoryboardPage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.pages["sb-1"][n-1]
}

func (m *memBoards) setImage(n int, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages["sb-1"][n-1].ImageURL = url
}

func (m *memBoards) GetStoryboard(_ context.Context, id string) (*domain.Storyboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.boards[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sb
	return &cp, nil
}

func (m *memBoards) ListPages(_ context.Context, id string) ([]domain.StoryboardPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoryboardPage, 0, len(m.pages[id]))
	for _, p := range m.pages[id] {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memBoards) GetPage(_ context.Context, id string, n int) (*domain.StoryboardPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pages[id] {
		if p.PageNumber == n {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memBoards) SetPageImage(_ context.Context, pageID, url string) error {
	return m.update(pageID, func(p *domain.StoryboardPage) { p.ImageURL = url }, m.setImageErr)
}

func (m *memBoards) SetPageImagePrompt(_ context.Context, pageID, prompt string) error {
	return m.update(pageID, func(p *domain.StoryboardPage) { p.ImagePrompt = prompt }, nil)
}

func (m *memBoards) update(pageID string, apply func(*domain.StoryboardPage), fail error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fail != nil {
		return fail
	}
	for _, pages := range m.pages {
		for _, p := range pages {
			if p.ID == pageID {
				apply(p)
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (m *memBoards) SetWorkStyle(_ context.Context, workID, style string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workStyle[workID] = style
	return nil
}

func (m *memBoards) SetWorkCurrentStep(_ context.Context, workID, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workStep[workID] = step
	return nil
}

func (m *memBoards) step(workID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workStep[workID]
}

// fakeImages consumes one failures entry per call; nil entries succeed.
type fakeImages struct {
	mu       sync.Mutex
	calls    int
	prompts  []string
	failures []error
	block    bool
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.prompts = append(f.prompts, prompt)
	var err error
	if len(f.failures) > 0 {
		err = f.failures[0]
		f.failures = f.failures[1:]
	}
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://provider.test/img-%d.png", n), nil
}

func (f *fakeImages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("bytes:" + url), "image/png", nil
}

const blobBase = "https://cdn.test"

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url := blobBase + "/" + key
	m.objects[url] = data
	return url, nil
}

func (m *memBlobs) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	m.deleted = append(m.deleted, url)
	return nil
}

func (m *memBlobs) Owns(url string) bool {
	return strings.HasPrefix(url, blobBase+"/")
}

func (m *memBlobs) Read(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[url]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

type fakeText struct {
	content string
	err     error
	calls   int
	last    openai.TextRequest
}

func (f *fakeText) GenerateText(_ context.Context, req openai.TextRequest) (*openai.TextResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &openai.TextResult{Content: f.content, Model: "test-model"}, nil
}

type harness struct {
	tasks   *memTasks
	boards  *memBoards
	images  *fakeImages
	fetcher *fakeFetcher
	blobs   *memBlobs
	text    *fakeText
}

func newHarness(prompts ...string) *harness {
	h := &harness{
		tasks:   newMemTasks(),
		boards:  newMemBoards(),
		images:  &fakeImages{},
		fetcher: &fakeFetcher{},
		blobs:   newMemBlobs(),
		text:    &fakeText{content: "A fox reading under a tree"},
	}
	h.boards.seed(prompts...)
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Tasks:   h.tasks,
		Boards:  h.boards,
		Images:  h.images,
		Text:    h.text,
		Fetcher: h.fetcher,
		Blobs:   h.blobs,
		Logger:  zerolog.New(io.Discard),
	}
}

func (h *harness) controller(opts Options) *Controller {
	c := NewController(h.deps(), opts)
	c.newID = func() string { return "task-1" }
	return c
}

func boolPtr(b bool) *bool { return &b }
