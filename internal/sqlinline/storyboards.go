package sqlinline

const QStoryboardSelect = `--sql 597e9cce-3624-47c0-a859-52f52dc3655c
select s.id::text, s.work_id::text, w.owner_id
from storyboards s
join works w on w.id = s.work_id
where s.id = $1::uuid;
`

const QStoryboardPagesList = `--sql 0aaaf9fd-6ecb-48ff-a75a-c8c116cd1d65
select id::text, storyboard_id::text, page_number, text, image_prompt, coalesce(image_url, '')
from storyboard_pages
where storyboard_id = $1::uuid
order by page_number asc;
`

const QStoryboardPageSelect = `--sql 37094520-aa20-44b9-8f3b-179d87b554cb
select id::text, storyboard_id::text, page_number, text, image_prompt, coalesce(image_url, '')
from storyboard_pages
where storyboard_id = $1::uuid
  and page_number = $2::int;
`

const QStoryboardPageSetImage = `--sql 5ede712e-9ea4-40b0-98b3-ec3c13eb6b00
update storyboard_pages
set image_url = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QStoryboardPageSetPrompt = `--sql dd29384f-1ef3-4e5e-9443-5ebfef3bcfc1
update storyboard_pages
set image_prompt = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QWorkSetStyle = `--sql d4c00a66-9d49-43c5-a54e-7366a0ee80e4
update works
set style = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QWorkSetCurrentStep = `--sql 3f0b1eab-9bde-43d4-8b55-af36a998df82
update works
set current_step = $2::text,
    updated_at = now()
where id = $1::uuid;
`
