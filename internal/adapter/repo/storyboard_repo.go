package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/sqlinline"
)

// StoryboardRepositoryPG implements domain.StoryboardRepository on PostgreSQL.
type StoryboardRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewStoryboardRepository(sql infra.SQLExecutor) *StoryboardRepositoryPG {
	return &StoryboardRepositoryPG{sql: sql}
}

// GetStoryboard loads a storyboard with the owner of its parent work.
func (r *StoryboardRepositoryPG) GetStoryboard(ctx context.Context, storyboardID string) (*domain.Storyboard, error) {
	var sb domain.Storyboard
	err := r.sql.QueryRow(ctx, sqlinline.QStoryboardSelect, storyboardID).Scan(&sb.ID, &sb.WorkID, &sb.OwnerID)
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select storyboard: %w", err)
	}
	return &sb, nil
}

// ListPages returns the pages of a storyboard ordered by page number.
func (r *StoryboardRepositoryPG) ListPages(ctx context.Context, storyboardID string) ([]domain.StoryboardPage, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QStoryboardPagesList, storyboardID)
	if err != nil {
		if isMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.StoryboardPage
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, *page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

func (r *StoryboardRepositoryPG) GetPage(ctx context.Context, storyboardID string, pageNumber int) (*domain.StoryboardPage, error) {
	page, err := scanPage(r.sql.QueryRow(ctx, sqlinline.QStoryboardPageSelect, storyboardID, pageNumber))
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select page: %w", err)
	}
	return page, nil
}

func (r *StoryboardRepositoryPG) SetPageImage(ctx context.Context, pageID, imageURL string) error {
	return r.exec(ctx, "set page image", sqlinline.QStoryboardPageSetImage, pageID, imageURL)
}

func (r *StoryboardRepositoryPG) SetPageImagePrompt(ctx context.Context, pageID, prompt string) error {
	return r.exec(ctx, "set page prompt", sqlinline.QStoryboardPageSetPrompt, pageID, prompt)
}

func (r *StoryboardRepositoryPG) SetWorkStyle(ctx context.Context, workID, style string) error {
	return r.exec(ctx, "set work style", sqlinline.QWorkSetStyle, workID, style)
}

func (r *StoryboardRepositoryPG) SetWorkCurrentStep(ctx context.Context, workID, step string) error {
	return r.exec(ctx, "set work step", sqlinline.QWorkSetCurrentStep, workID, step)
}

// exec runs a single-row update and maps a missing row to ErrNotFound.
func (r *StoryboardRepositoryPG) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.sql.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func scanPage(row pgx.Row) (*domain.StoryboardPage, error) {
	var p domain.StoryboardPage
	if err := row.Scan(&p.ID, &p.StoryboardID, &p.PageNumber, &p.Text, &p.ImagePrompt, &p.ImageURL); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ domain.StoryboardRepository = (*StoryboardRepositoryPG)(nil)
