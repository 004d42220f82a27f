package sqlinline

// QSchema creates every table this service reads or writes. Statements are
// idempotent so migrate can run on each deploy.
const QSchema = `--sql 91978047-d6c9-44f2-875d-fea6e466a54c
create extension if not exists pgcrypto;

create table if not exists works (
    id uuid primary key default gen_random_uuid(),
    owner_id text not null,
    title text not null default '',
    style text,
    current_step text,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create index if not exists works_owner_id_idx on works (owner_id);

create table if not exists storyboards (
    id uuid primary key default gen_random_uuid(),
    work_id uuid not null references works (id) on delete cascade,
    created_at timestamptz not null default now()
);

create table if not exists storyboard_pages (
    id uuid primary key default gen_random_uuid(),
    storyboard_id uuid not null references storyboards (id) on delete cascade,
    page_number int not null check (page_number > 0),
    text text not null default '',
    image_prompt text not null default '',
    image_url text,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    unique (storyboard_id, page_number)
);

create table if not exists story_tasks (
    id uuid primary key,
    owner_id text not null,
    kind text not null,
    status text not null check (status in ('processing', 'completed', 'failed')),
    total_items int not null check (total_items >= 0),
    completed_items int not null default 0,
    result jsonb not null default '{}'::jsonb,
    error text,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    check (completed_items >= 0 and completed_items <= total_items)
);

create index if not exists story_tasks_created_at_idx on story_tasks (created_at);

create table if not exists integration_tokens (
    id uuid primary key default gen_random_uuid(),
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
