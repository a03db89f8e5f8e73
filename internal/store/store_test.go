package store

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/geocache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCache(code string, listID int) geocache.Cache {
	return geocache.Cache{
		Geocode:    code,
		Name:       "Cache " + code,
		Owner:      "owner",
		Type:       geocache.TypeMulti,
		Size:       geocache.SizeSmall,
		Difficulty: 2.5,
		Terrain:    1.5,
		Coords:     geocache.Coords{Lat: 52.5, Lon: 13.4},
		Hint:       "under the rock",
		Hidden:     time.Date(2009, 4, 1, 0, 0, 0, 0, time.UTC),
		Found:      true,
		ListID:     listID,
		Waypoints: []geocache.Waypoint{
			{Prefix: "PK", Name: "Parking", Type: "Parking Area", Coords: geocache.Coords{Lat: 52.49, Lon: 13.41}},
		},
	}
}

// runStoreSuite exercises the Store contract against one backend.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := open(t)
		want := sampleCache("GC1234", 1)
		require.NoError(t, s.SaveCache(ctx, want))

		got, err := s.GetCache(ctx, "GC1234")
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Size, got.Size)
		assert.InDelta(t, want.Difficulty, got.Difficulty, 0.001)
		assert.Equal(t, want.Coords, got.Coords)
		assert.True(t, want.Hidden.Equal(got.Hidden), "hidden = %v", got.Hidden)
		assert.True(t, got.Found)
		assert.Equal(t, want.Waypoints, got.Waypoints)
	})

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.GetCache(ctx, "GCNONE")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save twice without remove", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.SaveCache(ctx, sampleCache("GC1", 1)))
		assert.ErrorIs(t, s.SaveCache(ctx, sampleCache("GC1", 1)), ErrExists)
	})

	t.Run("remove then save replaces", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.SaveCache(ctx, sampleCache("GC1", 1)))

		updated := sampleCache("GC1", 2)
		updated.Name = "Renamed"
		updated.Waypoints = nil
		require.NoError(t, s.RemoveCache(ctx, "GC1"))
		require.NoError(t, s.SaveCache(ctx, updated))

		got, err := s.GetCache(ctx, "GC1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, 2, got.ListID)
		assert.Empty(t, got.Waypoints)

		n, err := s.CountCaches(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("remove unknown is not an error", func(t *testing.T) {
		s := open(t)
		assert.NoError(t, s.RemoveCache(ctx, "GCNONE"))
	})

	t.Run("list and count by list", func(t *testing.T) {
		s := open(t)
		for _, c := range []geocache.Cache{
			sampleCache("GC3", 1), sampleCache("GC1", 1), sampleCache("GC2", 2),
		} {
			require.NoError(t, s.SaveCache(ctx, c))
		}

		all, err := s.ListCaches(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "GC1", all[0].Geocode)
		assert.Equal(t, "GC3", all[2].Geocode)

		first, err := s.ListCaches(ctx, 1, 0)
		require.NoError(t, err)
		assert.Len(t, first, 2)

		limited, err := s.ListCaches(ctx, 0, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		n, err := s.CountCaches(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("import history newest first", func(t *testing.T) {
		s := open(t)
		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.RecordImport(ctx, ImportRecord{
				JobID:      id,
				Source:     id + ".gpx",
				Kind:       "file",
				ListID:     1,
				Stored:     i,
				Status:     StatusFinished,
				StartedAt:  base.Add(time.Duration(i) * time.Minute),
				FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
			}))
		}

		recs, err := s.RecentImports(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "c", recs[0].JobID)
		assert.Equal(t, "b", recs[1].JobID)
		assert.Equal(t, 2, recs[0].Stored)
		assert.True(t, recs[0].FinishedAt.Equal(base.Add(2*time.Minute+time.Second)))
	})

	t.Run("prune history before cutoff", func(t *testing.T) {
		s := open(t)
		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"old", "older", "new"} {
			finished := base.Add(-time.Duration(i+1) * 24 * time.Hour)
			if id == "new" {
				finished = base.Add(time.Hour)
			}
			require.NoError(t, s.RecordImport(ctx, ImportRecord{
				JobID: id, Source: id, Kind: "file", ListID: 1, Status: StatusFinished,
				StartedAt: finished.Add(-time.Second), FinishedAt: finished,
			}))
		}

		n, err := s.PruneImports(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		recs, err := s.RecentImports(ctx, 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "new", recs[0].JobID)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, URL: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMemoryStore_IsolatesWaypoints(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	c := sampleCache("GC1", 1)
	require.NoError(t, s.SaveCache(ctx, c))

	c.Waypoints[0].Name = "mutated"
	got, err := s.GetCache(ctx, "GC1")
	require.NoError(t, err)
	assert.Equal(t, "Parking", got.Waypoints[0].Name)
}
