package sqlinline

const QTaskInsert = `--sql 559a5abc-0db0-4c1e-9b61-2fbb85843063
insert into story_tasks (id, owner_id, kind, status, total_items, completed_items, result, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::int, $6::int, $7::jsonb, now(), now())
returning created_at, updated_at;
`

const QTaskSelectByID = `--sql 2c0aae39-5ced-408f-bab2-005797ed4592
select id::text, owner_id, kind, status, total_items, completed_items, result, coalesce(error, ''), created_at, updated_at
from story_tasks
where id = $1::uuid;
`

// QTaskReserveStep is the only coordination point between concurrent
// advance calls: the returned counter is the page the caller now owns.
const QTaskReserveStep = `--sql 9c23941c-24ee-4e4a-a369-84857f3c72d9
update story_tasks
set completed_items = completed_items + 1,
    updated_at = now()
where id = $1::uuid
  and status = 'processing'
  and completed_items < total_items
returning completed_items, total_items;
`

const QTaskReleaseStep = `--sql 512dbbac-8477-456c-8a31-cc662856999f
update story_tasks
set completed_items = completed_items - 1,
    updated_at = now()
where id = $1::uuid
  and status = 'processing'
  and completed_items > 0;
`

// QTaskAppendPage appends $2 (a one element JSON array) to result.pages and,
// when $3 is true, to result.generatedPages in a single statement.
const QTaskAppendPage = `--sql 105a024f-2551-46e7-b353-ce952acc60cd
update story_tasks
set result = jsonb_set(
        jsonb_set(result, '{pages}', coalesce(result->'pages', '[]'::jsonb) || $2::jsonb),
        '{generatedPages}',
        case when $3::boolean
            then coalesce(result->'generatedPages', '[]'::jsonb) || $2::jsonb
            else coalesce(result->'generatedPages', '[]'::jsonb)
        end),
    updated_at = now()
where id = $1::uuid;
`

const QTaskMarkCompleted = `--sql 0f031691-1b57-43c4-b6f2-acb5840f7d2d
update story_tasks
set status = 'completed',
    error = null,
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QTaskMarkFailed = `--sql c4799c49-2d25-44d8-989c-b5c229c8ce14
update story_tasks
set status = 'failed',
    error = $2::text,
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QTaskDeleteOlderThan = `--sql 9fee30a6-0947-4404-beb0-1f3e8a14360b
delete from story_tasks
where created_at < $1::timestamptz;
`
