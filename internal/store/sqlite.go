package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/geoimport/internal/geocache"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout has a fixed width so stored timestamps sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite stores caches in a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) RemoveCache(ctx context.Context, geocode string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM caches WHERE geocode = ?`, geocode)
	return err
}

func (s *SQLite) SaveCache(ctx context.Context, c geocache.Cache) error {
	wps, err := encodeWaypoints(c.Waypoints)
	if err != nil {
		return err
	}
	var hidden sql.NullString
	if !c.Hidden.IsZero() {
		hidden = sql.NullString{String: c.Hidden.UTC().Format(sqliteTimeLayout), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO caches (`+cacheColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Geocode, c.Name, c.Owner, string(c.Type), string(c.Size), c.Difficulty, c.Terrain,
		c.Coords.Lat, c.Coords.Lon, c.Hint, c.ShortDescription, c.Description, hidden,
		c.Archived, c.Disabled, c.Found, c.ListID, wps,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrExists
	}
	return err
}

func (s *SQLite) GetCache(ctx context.Context, geocode string) (geocache.Cache, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cacheColumns+` FROM caches WHERE geocode = ?`, geocode)
	c, err := scanSQLiteCache(row)
	if errors.Is(err, sql.ErrNoRows) {
		return geocache.Cache{}, ErrNotFound
	}
	return c, err
}

func (s *SQLite) ListCaches(ctx context.Context, listID, limit int) ([]geocache.Cache, error) {
	limit = clampLimit(limit, ListLimit, ListLimit)

	var (
		rows *sql.Rows
		err  error
	)
	if listID > 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+cacheColumns+` FROM caches WHERE list_id = ? ORDER BY geocode LIMIT ?`,
			listID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+cacheColumns+` FROM caches ORDER BY geocode LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []geocache.Cache
	for rows.Next() {
		c, err := scanSQLiteCache(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) CountCaches(ctx context.Context, listID int) (int, error) {
	var n int
	var err error
	if listID > 0 {
		err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM caches WHERE list_id = ?`, listID).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM caches`).Scan(&n)
	}
	return n, err
}

func (s *SQLite) RecordImport(ctx context.Context, rec ImportRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO import_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.Source, rec.Kind, rec.ListID, rec.Format, rec.Stored, rec.Status,
		rec.ErrorCode, rec.Message,
		rec.StartedAt.UTC().Format(sqliteTimeLayout),
		rec.FinishedAt.UTC().Format(sqliteTimeLayout),
	)
	return err
}

func (s *SQLite) RecentImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	limit = clampLimit(limit, DefaultHistoryLimit, ListLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM import_history ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImportRecord
	for rows.Next() {
		var (
			rec               ImportRecord
			started, finished string
		)
		if err := rows.Scan(&rec.JobID, &rec.Source, &rec.Kind, &rec.ListID, &rec.Format,
			&rec.Stored, &rec.Status, &rec.ErrorCode, &rec.Message,
			&started, &finished); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(sqliteTimeLayout, started)
		rec.FinishedAt, _ = time.Parse(sqliteTimeLayout, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) PruneImports(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM import_history WHERE finished_at < ?`, before.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteCache(row rowScanner) (geocache.Cache, error) {
	var (
		c         geocache.Cache
		typ, size string
		hidden    sql.NullString
		wps       string
	)
	err := row.Scan(&c.Geocode, &c.Name, &c.Owner, &typ, &size, &c.Difficulty, &c.Terrain,
		&c.Coords.Lat, &c.Coords.Lon, &c.Hint, &c.ShortDescription, &c.Description, &hidden,
		&c.Archived, &c.Disabled, &c.Found, &c.ListID, &wps)
	if err != nil {
		return geocache.Cache{}, err
	}
	c.Type = geocache.CacheType(typ)
	c.Size = geocache.CacheSize(size)
	if hidden.Valid {
		t, err := time.Parse(sqliteTimeLayout, hidden.String)
		if err != nil {
			return geocache.Cache{}, fmt.Errorf("parse hidden date of %s: %w", c.Geocode, err)
		}
		c.Hidden = t
	}
	c.Waypoints, err = decodeWaypoints([]byte(wps))
	return c, err
}
