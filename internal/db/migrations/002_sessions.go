package migrations

const sessionsSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    visitor_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    started_at TEXT NOT NULL,
    last_activity TEXT NOT NULL,
    referrer TEXT NULL,
    utm_source TEXT NULL,
    utm_medium TEXT NULL,
    utm_campaign TEXT NULL,
    utm_term TEXT NULL,
    utm_content TEXT NULL,
    traffic_source TEXT NULL,
    language TEXT NULL,
    country TEXT NULL,
    country_code TEXT NULL,
    region TEXT NULL,
    city TEXT NULL,
    latitude REAL NULL,
    longitude REAL NULL,
    timezone TEXT NULL,
    user_agent TEXT NULL,
    screen_resolution TEXT NULL,
    browser TEXT NULL,
    os TEXT NULL,
    device_type TEXT NULL,
    page_views INTEGER NOT NULL DEFAULT 1,
    duration INTEGER NOT NULL DEFAULT 0,
    is_bounce INTEGER NOT NULL DEFAULT 1,
    UNIQUE(site_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_site_started ON sessions(site_id, started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_site_visitor ON sessions(site_id, visitor_id);
CREATE INDEX IF NOT EXISTS idx_sessions_site_last_activity ON sessions(site_id, last_activity);
`
