package storyclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultInterval             = 2 * time.Second
	DefaultMaxConsecutiveErrors = 5
)

// Advancer is the part of Client the poll loop needs.
type Advancer interface {
	Advance(ctx context.Context, taskID string) (*StepResult, error)
}

// Progress is the poll loop's view of a task after each response.
type Progress struct {
	TaskID    string
	Status    string
	Generated int
	Total     int

	// Percent follows generated pages rather than the step counter, so
	// skipped pages do not make the bar jump ahead.
	Percent int
	Pages   map[int]string
	Last    *StepResult
}

// SortedPages returns the known page images ordered by page number.
func (p Progress) SortedPages() []PageImage {
	out := make([]PageImage, 0, len(p.Pages))
	for n, u := range p.Pages {
		out = append(out, PageImage{PageNumber: n, ImageURL: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out
}

// ErrTooManyErrors wraps the last error once the consecutive error budget is spent.
var ErrTooManyErrors = errors.New("storyclient: too many consecutive errors")

// Poller advances a task on a fixed interval until it is terminal.
type Poller struct {
	Client               Advancer
	Interval             time.Duration
	MaxConsecutiveErrors int

	// OnUpdate is called after every successful advance.
	OnUpdate func(Progress)

	// OnError is called for every tolerated error with the running count.
	OnError func(err error, consecutive int)
}

// Run polls until the task is completed or failed. The initial pages, for
// example those already illustrated before the task started, seed the map.
func (p *Poller) Run(ctx context.Context, taskID string, total int, initial []PageImage) (Progress, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxErrors := p.MaxConsecutiveErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxConsecutiveErrors
	}

	state := Progress{TaskID: taskID, Status: "processing", Total: total, Pages: map[int]string{}}
	merge(state.Pages, initial)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutive := 0
	for {
		res, err := p.Client.Advance(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			if !isTransient(err) {
				return state, err
			}
			consecutive++
			if p.OnError != nil {
				p.OnError(err, consecutive)
			}
			if consecutive >= maxErrors {
				return state, fmt.Errorf("%w: %w", ErrTooManyErrors, err)
			}
		} else {
			consecutive = 0
			state.apply(res)
			if p.OnUpdate != nil {
				p.OnUpdate(state)
			}
			if res.Terminal() {
				if res.Status == "failed" {
					return state, fmt.Errorf("storyclient: task %s failed: %s", taskID, res.Error)
				}
				return state, nil
			}
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Progress) apply(res *StepResult) {
	s.Status = res.Status
	s.Last = res
	if res.TotalItems > 0 {
		s.Total = res.TotalItems
	}
	merge(s.Pages, res.Pages)
	merge(s.Pages, res.GeneratedPages)
	if res.ImageURL != "" && res.PageNumber > 0 {
		s.Pages[res.PageNumber] = res.ImageURL
	}
	s.Generated = len(res.GeneratedPages)
	s.Percent = 0
	if s.Total > 0 {
		s.Percent = s.Generated * 100 / s.Total
		if s.Percent > 100 {
			s.Percent = 100
		}
	}
	if res.Status == "completed" {
		s.Percent = 100
	}
}

func merge(dst map[int]string, pages []PageImage) {
	for _, pg := range pages {
		if pg.ImageURL != "" {
			dst[pg.PageNumber] = pg.ImageURL
		}
	}
}
