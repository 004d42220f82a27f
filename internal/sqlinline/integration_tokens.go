package sqlinline

// QSelectIntegrationToken reads the stored API key of one provider.
const QSelectIntegrationToken = `--sql 3f1c2b7e-52a4-4d0e-9a61-0c8e4d2b9f15
select t.token
from integration_tokens t
where t.provider = $1::text
order by t.updated_at desc
limit 1;
`

// QUpsertIntegrationToken stores a provider key; properties records who wrote it.
const QUpsertIntegrationToken = `--sql a7d90e34-1b6f-4c58-8e2a-5f3b7c9d0e21
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update
set token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
