package store

import (
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/geoimport/internal/geocache"
)

// cacheColumns is the column order used by every insert and select.
const cacheColumns = `geocode, name, owner, cache_type, size, difficulty, terrain,
	latitude, longitude, hint, short_description, description, hidden,
	archived, disabled, found, list_id, waypoints`

const historyColumns = `job_id, source, kind, list_id, format, stored, status,
	error_code, message, started_at, finished_at`

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS caches (
		geocode           TEXT PRIMARY KEY,
		name              TEXT NOT NULL DEFAULT '',
		owner             TEXT NOT NULL DEFAULT '',
		cache_type        TEXT NOT NULL,
		size              TEXT NOT NULL,
		difficulty        DOUBLE PRECISION NOT NULL DEFAULT 0,
		terrain           DOUBLE PRECISION NOT NULL DEFAULT 0,
		latitude          DOUBLE PRECISION NOT NULL,
		longitude         DOUBLE PRECISION NOT NULL,
		hint              TEXT NOT NULL DEFAULT '',
		short_description TEXT NOT NULL DEFAULT '',
		description       TEXT NOT NULL DEFAULT '',
		hidden            TIMESTAMPTZ,
		archived          BOOLEAN NOT NULL DEFAULT FALSE,
		disabled          BOOLEAN NOT NULL DEFAULT FALSE,
		found             BOOLEAN NOT NULL DEFAULT FALSE,
		list_id           INTEGER NOT NULL,
		waypoints         JSONB NOT NULL DEFAULT '[]',
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS caches_list_id_idx ON caches (list_id)`,
	`CREATE TABLE IF NOT EXISTS import_history (
		job_id      TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		kind        TEXT NOT NULL,
		list_id     INTEGER NOT NULL,
		format      TEXT NOT NULL DEFAULT '',
		stored      INTEGER NOT NULL DEFAULT 0,
		status      TEXT NOT NULL,
		error_code  TEXT NOT NULL DEFAULT '',
		message     TEXT NOT NULL DEFAULT '',
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS import_history_finished_idx ON import_history (finished_at DESC)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS caches (
		geocode           TEXT PRIMARY KEY,
		name              TEXT NOT NULL DEFAULT '',
		owner             TEXT NOT NULL DEFAULT '',
		cache_type        TEXT NOT NULL,
		size              TEXT NOT NULL,
		difficulty        REAL NOT NULL DEFAULT 0,
		terrain           REAL NOT NULL DEFAULT 0,
		latitude          REAL NOT NULL,
		longitude         REAL NOT NULL,
		hint              TEXT NOT NULL DEFAULT '',
		short_description TEXT NOT NULL DEFAULT '',
		description       TEXT NOT NULL DEFAULT '',
		hidden            TEXT,
		archived          INTEGER NOT NULL DEFAULT 0,
		disabled          INTEGER NOT NULL DEFAULT 0,
		found             INTEGER NOT NULL DEFAULT 0,
		list_id           INTEGER NOT NULL,
		waypoints         TEXT NOT NULL DEFAULT '[]',
		updated_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS caches_list_id_idx ON caches (list_id)`,
	`CREATE TABLE IF NOT EXISTS import_history (
		job_id      TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		kind        TEXT NOT NULL,
		list_id     INTEGER NOT NULL,
		format      TEXT NOT NULL DEFAULT '',
		stored      INTEGER NOT NULL DEFAULT 0,
		status      TEXT NOT NULL,
		error_code  TEXT NOT NULL DEFAULT '',
		message     TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS import_history_finished_idx ON import_history (finished_at DESC)`,
}

func encodeWaypoints(wps []geocache.Waypoint) (string, error) {
	if len(wps) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(wps)
	if err != nil {
		return "", fmt.Errorf("encode waypoints: %w", err)
	}
	return string(b), nil
}

func decodeWaypoints(raw []byte) ([]geocache.Waypoint, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wps []geocache.Waypoint
	if err := json.Unmarshal(raw, &wps); err != nil {
		return nil, fmt.Errorf("decode waypoints: %w", err)
	}
	if len(wps) == 0 {
		return nil, nil
	}
	return wps, nil
}
