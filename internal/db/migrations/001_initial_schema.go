package migrations

const initialSchemaSQL = `
CREATE TABLE IF NOT EXISTS sites (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    domain TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    page_url TEXT NOT NULL,
    referrer TEXT NULL,
    user_agent TEXT NULL,
    ip_hash TEXT NULL,
    screen_resolution TEXT NULL,
    language TEXT NULL,
    timestamp TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    country TEXT NULL,
    country_code TEXT NULL,
    region TEXT NULL,
    city TEXT NULL,
    latitude REAL NULL,
    longitude REAL NULL,
    timezone TEXT NULL,
    asn INTEGER NULL,
    asn_org TEXT NULL,
    visitor_id TEXT NULL,
    session_id TEXT NULL,
    event_type TEXT NOT NULL DEFAULT 'pageview',
    event_data TEXT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_site_timestamp ON events(site_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_site_country ON events(site_id, country_code);
CREATE INDEX IF NOT EXISTS idx_events_site_city ON events(site_id, city);
CREATE INDEX IF NOT EXISTS idx_events_site_visitor ON events(site_id, visitor_id);
CREATE INDEX IF NOT EXISTS idx_events_site_session ON events(site_id, session_id);
`
