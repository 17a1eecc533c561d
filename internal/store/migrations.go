package store

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    org_type        TEXT NOT NULL DEFAULT '',
    mission         TEXT NOT NULL DEFAULT '',
    focus_areas     TEXT NOT NULL DEFAULT '[]',
    key_issues      TEXT NOT NULL DEFAULT '[]',
    domains         TEXT NOT NULL DEFAULT '[]',
    geographies     TEXT NOT NULL DEFAULT '[]',
    geo_sensitivity TEXT NOT NULL DEFAULT '',
    updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS watchlist (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    org_id      TEXT NOT NULL REFERENCES organizations(id),
    name        TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT '',
    active      BOOLEAN NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_watchlist_org ON watchlist(org_id);

CREATE TABLE IF NOT EXISTS affinities (
    org_id          TEXT NOT NULL REFERENCES organizations(id),
    topic           TEXT NOT NULL,
    score           REAL NOT NULL DEFAULT 0,
    times_used      INTEGER NOT NULL DEFAULT 0,
    avg_performance REAL NOT NULL DEFAULT 0,
    source          TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (org_id, topic)
);

CREATE TABLE IF NOT EXISTS signals (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    payload      TEXT NOT NULL DEFAULT '{}',
    mentions     INTEGER NOT NULL DEFAULT 0,
    detected_at  DATETIME NOT NULL,
    collected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_collected_at ON signals(collected_at);

CREATE TABLE IF NOT EXISTS signal_snapshots (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    signal_id  TEXT NOT NULL REFERENCES signals(id),
    mentions   INTEGER NOT NULL,
    checked_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_signal ON signal_snapshots(signal_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_checked ON signal_snapshots(checked_at);

CREATE TABLE IF NOT EXISTS recommendations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    org_id      TEXT NOT NULL,
    trend_id    TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    score       INTEGER NOT NULL DEFAULT 0,
    priority    TEXT NOT NULL DEFAULT '',
    flags       TEXT NOT NULL DEFAULT '',
    selected_by TEXT NOT NULL DEFAULT '',
    reasons     TEXT NOT NULL DEFAULT '[]',
    tier        TEXT NOT NULL DEFAULT '',
    composite   INTEGER NOT NULL DEFAULT 0,
    decision    TEXT NOT NULL DEFAULT '',
    alerted     BOOLEAN NOT NULL DEFAULT 0,
    created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendations_org ON recommendations(org_id, created_at);
CREATE INDEX IF NOT EXISTS idx_recommendations_run ON recommendations(run_id);

CREATE TABLE IF NOT EXISTS diversity_reports (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL,
    org_id          TEXT NOT NULL,
    diversity_score INTEGER NOT NULL DEFAULT 0,
    metrics         TEXT NOT NULL DEFAULT '{}',
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_org ON diversity_reports(org_id, created_at);
`
