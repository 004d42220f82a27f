package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storybook/internal/domain"
	"storybook/internal/infra"
)

const (
	qStoryboardSelect = `select s.id, s.work_id, w.owner_id
from storyboards s join works w on w.id = s.work_id
where s.id = ?`

	qPagesList = `select id, storyboard_id, page_number, text, image_prompt, coalesce(image_url, '')
from storyboard_pages where storyboard_id = ? order by page_number asc`

	qPageSelect = `select id, storyboard_id, page_number, text, image_prompt, coalesce(image_url, '')
from storyboard_pages where storyboard_id = ? and page_number = ?`

	qPageSetImage  = `update storyboard_pages set image_url = ?, updated_at = ? where id = ?`
	qPageSetPrompt = `update storyboard_pages set image_prompt = ?, updated_at = ? where id = ?`
	qWorkSetStyle  = `update works set style = ?, updated_at = ? where id = ?`
	qWorkSetStep   = `update works set current_step = ?, updated_at = ? where id = ?`
)

// StoryboardRepository implements domain.StoryboardRepository on the embedded engine.
type StoryboardRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewStoryboardRepository(db *sql.DB) *StoryboardRepository {
	return &StoryboardRepository{db: db, now: time.Now}
}

func (r *StoryboardRepository) GetStoryboard(ctx context.Context, storyboardID string) (*domain.Storyboard, error) {
	var sb domain.Storyboard
	err := r.db.QueryRowContext(ctx, qStoryboardSelect, storyboardID).Scan(&sb.ID, &sb.WorkID, &sb.OwnerID)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select storyboard: %w", err)
	}
	return &sb, nil
}

func (r *StoryboardRepository) ListPages(ctx context.Context, storyboardID string) ([]domain.StoryboardPage, error) {
	rows, err := r.db.QueryContext(ctx, qPagesList, storyboardID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.StoryboardPage
	for rows.Next() {
		var p domain.StoryboardPage
		if err := rows.Scan(&p.ID, &p.StoryboardID, &p.PageNumber, &p.Text, &p.ImagePrompt, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

func (r *StoryboardRepository) GetPage(ctx context.Context, storyboardID string, pageNumber int) (*domain.StoryboardPage, error) {
	var p domain.StoryboardPage
	err := r.db.QueryRowContext(ctx, qPageSelect, storyboardID, pageNumber).
		Scan(&p.ID, &p.StoryboardID, &p.PageNumber, &p.Text, &p.ImagePrompt, &p.ImageURL)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select page: %w", err)
	}
	return &p, nil
}

func (r *StoryboardRepository) SetPageImage(ctx context.Context, pageID, imageURL string) error {
	return r.update(ctx, "set page image", qPageSetImage, imageURL, pageID)
}

func (r *StoryboardRepository) SetPageImagePrompt(ctx context.Context, pageID, prompt string) error {
	return r.update(ctx, "set page prompt", qPageSetPrompt, prompt, pageID)
}

func (r *StoryboardRepository) SetWorkStyle(ctx context.Context, workID, style string) error {
	return r.update(ctx, "set work style", qWorkSetStyle, style, workID)
}

func (r *StoryboardRepository) SetWorkCurrentStep(ctx context.Context, workID, step string) error {
	return r.update(ctx, "set work step", qWorkSetStep, step, workID)
}

func (r *StoryboardRepository) update(ctx context.Context, op, query, value, id string) error {
	res, err := r.db.ExecContext(ctx, query, value, r.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

var _ domain.StoryboardRepository = (*StoryboardRepository)(nil)
