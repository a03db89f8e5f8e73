package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prunerFunc func(ctx context.Context, before time.Time) (int64, error)

func (f prunerFunc) PruneImports(ctx context.Context, before time.Time) (int64, error) {
	return f(ctx, before)
}

func TestPruneHistory_UsesRetentionCutoff(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var got time.Time
	p := prunerFunc(func(_ context.Context, before time.Time) (int64, error) {
		got = before
		return 3, nil
	})

	pruneHistory(context.Background(), p, 48*time.Hour, func() time.Time { return now })
	assert.Equal(t, now.Add(-48*time.Hour), got)
}

func TestPruneHistory_ErrorIsLogged(t *testing.T) {
	calls := 0
	p := prunerFunc(func(context.Context, time.Time) (int64, error) {
		calls++
		return 0, errors.New("db down")
	})

	pruneHistory(context.Background(), p, time.Hour, time.Now)
	assert.Equal(t, 1, calls)
}

func TestStartHistoryPruner_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runs := make(chan struct{}, 16)
	p := prunerFunc(func(context.Context, time.Time) (int64, error) {
		runs <- struct{}{}
		return 0, nil
	})

	done := make(chan struct{})
	go func() {
		StartHistoryPruner(ctx, p, RetentionConfig{Retention: time.Hour, CheckInterval: 10 * time.Millisecond})
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(2 * time.Second):
			t.Fatal("pruner did not run")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestStartHistoryPruner_DisabledReturnsImmediately(t *testing.T) {
	p := prunerFunc(func(context.Context, time.Time) (int64, error) {
		t.Error("disabled pruner must not run")
		return 0, nil
	})
	StartHistoryPruner(context.Background(), p, RetentionConfig{})
}

func TestMemoryStore_PruneKeepsOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.RecordImport(ctx, ImportRecord{JobID: id, FinishedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	n, err := m.PruneImports(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recs, err := m.RecentImports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "d", recs[0].JobID)
	assert.Equal(t, "c", recs[1].JobID)
}
