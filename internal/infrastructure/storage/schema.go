package storage

// Schema is applied on every Open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS processed_papers (
    arxiv_id TEXT PRIMARY KEY,
    processed_date TEXT NOT NULL,
    relevance_score INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL DEFAULT '',
    authors TEXT NOT NULL DEFAULT '',
    abstract TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    key_findings TEXT NOT NULL DEFAULT '',
    business_applications TEXT NOT NULL DEFAULT '',
    arxiv_url TEXT NOT NULL DEFAULT '',
    pdf_path TEXT NOT NULL DEFAULT '',
    token_usage INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_processed_papers_date
    ON processed_papers (processed_date);

CREATE TABLE IF NOT EXISTS feed_health (
    feed_url TEXT PRIMARY KEY,
    last_successful_fetch TEXT NOT NULL,
    last_entry_count INTEGER NOT NULL DEFAULT 0,
    consecutive_empty_fetches INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS feed_paper_mapping (
    arxiv_id TEXT NOT NULL,
    feed_url TEXT NOT NULL,
    PRIMARY KEY (arxiv_id, feed_url)
);

CREATE TABLE IF NOT EXISTS distribution_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    arxiv_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    distribution_date TEXT NOT NULL,
    success INTEGER NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (arxiv_id) REFERENCES processed_papers (arxiv_id)
);
`
