package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are unix milliseconds; ids are text so the same values the
// PostgreSQL engine accepts work here too.
const schema = `
create table if not exists works (
    id text primary key,
    owner_id text not null,
    title text not null default '',
    style text,
    current_step text,
    created_at integer not null,
    updated_at integer not null
);

create table if not exists storyboards (
    id text primary key,
    work_id text not null references works (id) on delete cascade,
    created_at integer not null
);

create table if not exists storyboard_pages (
    id text primary key,
    storyboard_id text not null references storyboards (id) on delete cascade,
    page_number integer not null check (page_number > 0),
    text text not null default '',
    image_prompt text not null default '',
    image_url text,
    created_at integer not null,
    updated_at integer not null,
    unique (storyboard_id, page_number)
);

create table if not exists story_tasks (
    id text primary key,
    owner_id text not null,
    kind text not null,
    status text not null check (status in ('processing', 'completed', 'failed')),
    total_items integer not null check (total_items >= 0),
    completed_items integer not null default 0,
    result text not null default '{}',
    error text,
    created_at integer not null,
    updated_at integer not null,
    check (completed_items >= 0 and completed_items <= total_items)
);

create index if not exists story_tasks_created_at_idx on story_tasks (created_at);
`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}
