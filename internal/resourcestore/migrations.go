package resourcestore

const schema = `
CREATE TABLE IF NOT EXISTS resources (
    identifier TEXT PRIMARY KEY,
    content TEXT NOT NULL DEFAULT '',
    content_type TEXT NOT NULL,
    fetch_status TEXT NOT NULL,
    links_found TEXT,
    fetched_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resources_expires_at ON resources(expires_at);
`
