package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/geoimport/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestPool(t *testing.T, s Store, history History, cfg PoolConfig) *Pool {
	t.Helper()
	p := NewPool(NewCoordinator(s), history, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func drain(ch <-chan Event) []Event {
	var events []Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestPool_SubmitAndWait(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pq.gpx", pocketQuery10)
	mem := store.NewMemory()
	pool := newTestPool(t, mem, mem, PoolConfig{MaxConcurrent: 2})

	extra := &Recorder{}
	fut, err := pool.Submit(context.Background(), NewFileJob(path, 1), extra)
	require.NoError(t, err)

	summary, err := fut.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Stored)
	assert.Equal(t, fut.JobID, summary.JobID)
	assert.Equal(t, StageFinished, fut.Stage())
	assert.Equal(t, 2, extra.TicksIn(StageStoreCaches))

	recs, err := mem.RecentImports(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, fut.JobID, recs[0].JobID)
	assert.Equal(t, store.StatusFinished, recs[0].Status)
	assert.Equal(t, 2, recs[0].Stored)
	assert.Equal(t, "gpx10", recs[0].Format)

	snap, err := pool.Snapshot(fut.JobID)
	require.NoError(t, err)
	assert.Equal(t, EventFinished, snap.Type)
	assert.Equal(t, 2, snap.Stored)

	assert.Equal(t, 0, pool.Status().Active)
}

func TestPool_SubmitterCancellationDoesNotStopJob(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pq.gpx", pocketQuery10)
	pool := newTestPool(t, store.NewMemory(), nil, PoolConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	fut, err := pool.Submit(ctx, NewFileJob(path, 1))
	require.NoError(t, err)
	cancel()

	summary, err := fut.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Stored)
}

func TestPool_SubscribeReceivesTerminalEvent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pq.gpx", pocketQuery10)
	spy := newSpyStore()
	spy.gate = make(chan struct{})
	pool := newTestPool(t, spy, nil, PoolConfig{})

	fut, err := pool.Submit(context.Background(), NewFileJob(path, 1))
	require.NoError(t, err)

	ch, unsubscribe, err := pool.Subscribe(fut.JobID)
	require.NoError(t, err)
	defer unsubscribe()

	close(spy.gate)
	events := drain(ch)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, EventFinished, last.Type)
	assert.Equal(t, fut.JobID, last.JobID)
	assert.Equal(t, 2, last.Stored)

	var sawStore bool
	for _, e := range events {
		if e.Stage == StageStoreCaches {
			sawStore = true
		}
	}
	assert.True(t, sawStore, "store stage should be reported: %+v", events)
}

func TestPool_SubscribeAfterFinish(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pq.gpx", pocketQuery10)
	pool := newTestPool(t, store.NewMemory(), nil, PoolConfig{})

	fut, err := pool.Submit(context.Background(), NewFileJob(path, 1))
	require.NoError(t, err)
	_, err = fut.Wait(waitCtx(t))
	require.NoError(t, err)

	ch, _, err := pool.Subscribe(fut.JobID)
	require.NoError(t, err)
	events := drain(ch)
	require.Len(t, events, 1)
	assert.Equal(t, EventFinished, events[0].Type)
}

func TestPool_FailedJob(t *testing.T) {
	mem := store.NewMemory()
	pool := newTestPool(t, mem, mem, PoolConfig{})

	fut, err := pool.Submit(context.Background(), NewFileJob(t.TempDir()+"/missing.gpx", 1))
	require.NoError(t, err)

	_, err = pool.Result(waitCtx(t), fut.JobID)
	require.Error(t, err)
	assert.Equal(t, KindIO, AsImportError(err).Kind)

	snap, err := pool.Snapshot(fut.JobID)
	require.NoError(t, err)
	assert.Equal(t, EventFailed, snap.Type)
	assert.Equal(t, "IMP001", snap.Code)
	assert.Contains(t, snap.Message, "missing.gpx")

	recs, err := mem.RecentImports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, store.StatusFailed, recs[0].Status)
	assert.Equal(t, "IMP001", recs[0].ErrorCode)
}

func TestPool_TooManyImports(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pq.gpx", pocketQuery10)
	spy := newSpyStore()
	spy.gate = make(chan struct{})
	pool := newTestPool(t, spy, nil, PoolConfig{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})

	first, err := pool.Submit(context.Background(), NewFileJob(path, 1))
	require.NoError(t, err)

	_, err = pool.Submit(context.Background(), NewFileJob(path, 1))
	assert.ErrorIs(t, err, ErrTooManyImports)
	assert.Equal(t, "IMP003", MapError(err).Code)

	status := pool.Status()
	assert.Equal(t, 1, status.Active)
	assert.Equal(t, 0, status.Available)

	close(spy.gate)
	_, err = first.Wait(waitCtx(t))
	require.NoError(t, err)
}

func TestPool_UnknownJob(t *testing.T) {
	pool := newTestPool(t, store.NewMemory(), nil, PoolConfig{})

	_, _, err := pool.Subscribe("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = pool.Snapshot("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = pool.Result(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPool_EvictsAfterTTL(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pq.gpx", pocketQuery10)
	pool := newTestPool(t, store.NewMemory(), nil, PoolConfig{ResultTTL: 20 * time.Millisecond})

	fut, err := pool.Submit(context.Background(), NewFileJob(path, 1))
	require.NoError(t, err)
	_, err = fut.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := pool.Snapshot(fut.JobID)
		return errors.Is(err, ErrJobNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPool_ShutdownRejectsNewJobs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pq.gpx", pocketQuery10)
	pool := newTestPool(t, store.NewMemory(), nil, PoolConfig{})

	fut, err := pool.Submit(context.Background(), NewFileJob(path, 1))
	require.NoError(t, err)

	require.NoError(t, pool.Shutdown(waitCtx(t)))
	select {
	case <-fut.Done():
	default:
		t.Fatal("Shutdown returned before the running job finished")
	}

	_, err = pool.Submit(context.Background(), NewFileJob(path, 1))
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.Equal(t, 0, pool.Status().Active)
}

func TestPool_UnsubscribeClosesChannel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pq.gpx", pocketQuery10)
	spy := newSpyStore()
	spy.gate = make(chan struct{})
	pool := newTestPool(t, spy, nil, PoolConfig{})

	fut, err := pool.Submit(context.Background(), NewFileJob(path, 1))
	require.NoError(t, err)

	ch, unsubscribe, err := pool.Subscribe(fut.JobID)
	require.NoError(t, err)
	unsubscribe()
	unsubscribe()

	drain(ch)
	close(spy.gate)
	_, err = fut.Wait(waitCtx(t))
	require.NoError(t, err)
}
