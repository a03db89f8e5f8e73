// Package store persists imported geocaches and the import history.
//
// Three backends share the Store interface: PostgreSQL through pgxpool,
// SQLite through database/sql with the pure-Go modernc driver, and an
// in-process map used by tests and one-off CLI runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/geocache"
)

var (
	// ErrNotFound is returned when a geocode is not stored.
	ErrNotFound = errors.New("cache not found")

	// ErrExists is returned by SaveCache when the geocode is already stored.
	// Callers replace a cache by removing it first.
	ErrExists = errors.New("cache already stored")
)

// DefaultHistoryLimit is the number of history rows returned when the
// caller passes no limit.
const DefaultHistoryLimit = 50

// ListLimit caps ListCaches results.
const ListLimit = 1000

// Import outcomes recorded in ImportRecord.Status.
const (
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// ImportRecord is one row of the import history.
type ImportRecord struct {
	JobID      string    `json:"jobId"`
	Source     string    `json:"source"`
	Kind       string    `json:"kind"`
	ListID     int       `json:"listId"`
	Format     string    `json:"format,omitempty"`
	Stored     int       `json:"stored"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store is the persistence surface used by the importer and the API.
type Store interface {
	// RemoveCache deletes a cache and its waypoints. Removing an unknown
	// geocode is not an error.
	RemoveCache(ctx context.Context, geocode string) error

	// SaveCache stores a cache with its waypoints.
	SaveCache(ctx context.Context, c geocache.Cache) error

	// GetCache returns the cache stored under geocode or ErrNotFound.
	GetCache(ctx context.Context, geocode string) (geocache.Cache, error)

	// ListCaches returns caches ordered by geocode. listID <= 0 lists all.
	ListCaches(ctx context.Context, listID, limit int) ([]geocache.Cache, error)

	// CountCaches counts caches. listID <= 0 counts all.
	CountCaches(ctx context.Context, listID int) (int, error)

	RecordImport(ctx context.Context, rec ImportRecord) error

	// RecentImports returns history rows, newest first.
	RecentImports(ctx context.Context, limit int) ([]ImportRecord, error)

	// PruneImports deletes history rows finished before the cutoff and
	// returns how many were removed.
	PruneImports(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

// Open connects the backend selected by cfg.Driver and makes sure its
// schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverPostgres, "":
		pg, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.DriverSQLite:
		lite, err := OpenSQLite(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return lite, nil
	case config.DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
