package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/geocache"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores caches in PostgreSQL.
type Postgres struct {
	db   DBTX
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool configured from cfg, pings it and applies
// the schema.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{db: pool, pool: pool}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing connection, pool or transaction. Close is a
// no-op for stores built this way.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) RemoveCache(ctx context.Context, geocode string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM caches WHERE geocode = $1`, geocode)
	return err
}

func (p *Postgres) SaveCache(ctx context.Context, c geocache.Cache) error {
	wps, err := encodeWaypoints(c.Waypoints)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx,
		`INSERT INTO caches (`+cacheColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.Geocode, c.Name, c.Owner, string(c.Type), string(c.Size), c.Difficulty, c.Terrain,
		c.Coords.Lat, c.Coords.Lon, c.Hint, c.ShortDescription, c.Description, toPgTimestamptz(c),
		c.Archived, c.Disabled, c.Found, c.ListID, wps,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExists
	}
	return err
}

func (p *Postgres) GetCache(ctx context.Context, geocode string) (geocache.Cache, error) {
	row := p.db.QueryRow(ctx, `SELECT `+cacheColumns+` FROM caches WHERE geocode = $1`, geocode)
	c, err := scanPgCache(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return geocache.Cache{}, ErrNotFound
	}
	return c, err
}

func (p *Postgres) ListCaches(ctx context.Context, listID, limit int) ([]geocache.Cache, error) {
	limit = clampLimit(limit, ListLimit, ListLimit)

	var (
		rows pgx.Rows
		err  error
	)
	if listID > 0 {
		rows, err = p.db.Query(ctx,
			`SELECT `+cacheColumns+` FROM caches WHERE list_id = $1 ORDER BY geocode LIMIT $2`,
			listID, limit)
	} else {
		rows, err = p.db.Query(ctx,
			`SELECT `+cacheColumns+` FROM caches ORDER BY geocode LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []geocache.Cache
	for rows.Next() {
		c, err := scanPgCache(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) CountCaches(ctx context.Context, listID int) (int, error) {
	var n int64
	var err error
	if listID > 0 {
		err = p.db.QueryRow(ctx, `SELECT count(*) FROM caches WHERE list_id = $1`, listID).Scan(&n)
	} else {
		err = p.db.QueryRow(ctx, `SELECT count(*) FROM caches`).Scan(&n)
	}
	return int(n), err
}

func (p *Postgres) RecordImport(ctx context.Context, rec ImportRecord) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO import_history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (job_id) DO NOTHING`,
		rec.JobID, rec.Source, rec.Kind, rec.ListID, rec.Format, rec.Stored, rec.Status,
		rec.ErrorCode, rec.Message, rec.StartedAt, rec.FinishedAt,
	)
	return err
}

func (p *Postgres) RecentImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	limit = clampLimit(limit, DefaultHistoryLimit, ListLimit)

	rows, err := p.db.Query(ctx,
		`SELECT `+historyColumns+` FROM import_history ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImportRecord
	for rows.Next() {
		var rec ImportRecord
		if err := rows.Scan(&rec.JobID, &rec.Source, &rec.Kind, &rec.ListID, &rec.Format,
			&rec.Stored, &rec.Status, &rec.ErrorCode, &rec.Message,
			&rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) PruneImports(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM import_history WHERE finished_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool if the store owns one.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func scanPgCache(row pgx.Row) (geocache.Cache, error) {
	var (
		c         geocache.Cache
		typ, size string
		hidden    pgtype.Timestamptz
		wps       []byte
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
		c.Hidden = hidden.Time
	}
	c.Waypoints, err = decodeWaypoints(wps)
	return c, err
}

func toPgTimestamptz(c geocache.Cache) pgtype.Timestamptz {
	if c.Hidden.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: c.Hidden, Valid: true}
}
