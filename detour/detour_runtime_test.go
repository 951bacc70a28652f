package detour_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gorustyt/gonavquery/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStatusErr(t *testing.T) {
	assert.NoError(t, detour.DT_SUCCESS.Err())
	assert.NoError(t, (detour.DT_SUCCESS | detour.DT_PARTIAL_RESULT).Err())
	assert.NoError(t, detour.DT_IN_PROGRESS.Err())

	err := (detour.DT_FAILURE | detour.DT_INVALID_PARAM | detour.DT_OUT_OF_NODES).Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, detour.ErrFailure)
	assert.ErrorIs(t, err, detour.ErrInvalidParam)
	assert.ErrorIs(t, err, detour.ErrOutOfNodes)
	assert.False(t, errors.Is(err, detour.ErrWrongMagic))

	var se *detour.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, detour.DT_FAILURE|detour.DT_INVALID_PARAM|detour.DT_OUT_OF_NODES, se.Status)
	assert.Equal(t, "detour: failure|invalid_param|out_of_nodes", err.Error())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "none", detour.DtStatus(0).String())
	assert.Equal(t, "success|partial_result", (detour.DT_SUCCESS | detour.DT_PARTIAL_RESULT).String())
	assert.Equal(t, "status(0x100)", detour.DtStatus(0x100).String())
}

func TestQueryPool(t *testing.T) {
	f := newFixture(t, newGrid(2, 2))
	pool, err := detour.NewDtQueryPool(f.mesh, 3, 512, detour.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, 3, pool.Size())

	start, end := f.ref(t, 0, 0), f.ref(t, 7, 7)
	var wg sync.WaitGroup
	lens := make([]int, 8)
	for i := range lens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := pool.Do(context.Background(), func(q *detour.DtNavMeshQuery) error {
				path, status := q.FindPath(start, end, f.center(0, 0), f.center(7, 7), f.filter, 64)
				lens[i] = len(path)
				return status.Err()
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	for _, n := range lens {
		assert.Equal(t, 15, n)
	}

	// Drain the pool, then a cancelled context gives up.
	held := make([]*detour.DtNavMeshQuery, 0, pool.Size())
	for i := 0; i < pool.Size(); i++ {
		q, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		held = append(held, q)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// A query bound to another mesh is not taken in.
	other := newFixture(t, newGrid(1, 1))
	pool.Release(other.query)
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	for _, q := range held {
		pool.Release(q)
	}
	q, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(q)

	_, err = detour.NewDtQueryPool(f.mesh, 0, 512)
	assert.ErrorIs(t, err, detour.ErrInvalidParam)
	_, err = detour.NewDtQueryPool(f.mesh, 1, 0)
	assert.ErrorIs(t, err, detour.ErrInvalidParam)
}

func TestQueryPoolReleaseResetsSlicedSearch(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))
	pool, err := detour.NewDtQueryPool(f.mesh, 1, 256)
	require.NoError(t, err)

	start, end := f.ref(t, 0, 0), f.ref(t, 3, 3)
	q, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, q.InitSlicedFindPath(start, end, f.center(0, 0), f.center(3, 3), f.filter, 0).DtStatusInProgress())
	pool.Release(q)

	q, err = pool.Acquire(context.Background())
	require.NoError(t, err)
	iters, status := q.UpdateSlicedFindPath(10)
	assert.Zero(t, iters)
	assert.False(t, status.DtStatusInProgress())
	pool.Release(q)
}

func TestPathQueue(t *testing.T) {
	f := newFixture(t, newGrid(2, 1))
	pq, status := detour.NewDtPathQueue(f.mesh, 32, 512, detour.WithLogger(zaptest.NewLogger(t)))
	require.True(t, status.DtStatusSucceed())

	start, end := f.ref(t, 0, 0), f.ref(t, 7, 0)
	ref := pq.Request(start, end, f.center(0, 0), f.center(7, 0), f.filter)
	require.NotEqual(t, detour.DT_PATHQ_INVALID, ref)
	bad := pq.Request(0, end, f.center(0, 0), f.center(7, 0), f.filter)
	require.NotEqual(t, detour.DT_PATHQ_INVALID, bad)
	assert.NotEqual(t, ref, bad)

	assert.Zero(t, pq.GetRequestStatus(ref))
	for i := 0; i < 20 && !pq.GetRequestStatus(ref).DtStatusSucceed(); i++ {
		pq.Update(2)
	}
	require.True(t, pq.GetRequestStatus(ref).DtStatusSucceed())
	pq.Update(2)
	assert.True(t, pq.GetRequestStatus(bad).DtStatusFailed())

	path, status := pq.GetPathResult(ref)
	require.True(t, status.DtStatusSucceed())
	assert.False(t, status.DtStatusDetail(detour.DT_PARTIAL_RESULT))
	require.Len(t, path, 8)
	assert.Equal(t, start, path[0])
	assert.Equal(t, end, path[7])

	// The slot is gone once the result has been read.
	assert.True(t, pq.GetRequestStatus(ref).DtStatusFailed())
	_, status = pq.GetPathResult(ref)
	assert.True(t, status.DtStatusFailed())

	_, status = detour.NewDtPathQueue(f.mesh, 0, 512)
	assert.True(t, status.DtStatusDetail(detour.DT_INVALID_PARAM))
}

func TestPathQueueFull(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))
	pq, status := detour.NewDtPathQueue(f.mesh, 16, 256)
	require.True(t, status.DtStatusSucceed())

	start := f.ref(t, 0, 0)
	for i := 0; i < detour.DT_PATHQ_MAX_QUEUE; i++ {
		ref := pq.Request(start, start, f.center(0, 0), f.center(0, 0), f.filter)
		require.NotEqual(t, detour.DT_PATHQ_INVALID, ref)
	}
	assert.Equal(t, detour.DT_PATHQ_INVALID, pq.Request(start, start, f.center(0, 0), f.center(0, 0), f.filter))

	// Unread results expire after a few updates and free their slots.
	for i := 0; i < detour.DT_PATHQ_MAX_KEEP_ALIVE+2; i++ {
		pq.Update(100)
	}
	assert.NotEqual(t, detour.DT_PATHQ_INVALID, pq.Request(start, start, f.center(0, 0), f.center(0, 0), f.filter))
}

func TestCreateNavMeshDataInvalid(t *testing.T) {
	_, status := detour.DtCreateNavMeshData(nil)
	assert.True(t, status.DtStatusDetail(detour.DT_INVALID_PARAM))

	g := newGrid(1, 1)
	p := g.TileParams(0, 0)
	p.Nvp = 100
	_, status = detour.DtCreateNavMeshData(p)
	assert.True(t, status.DtStatusFailed())

	p = g.TileParams(0, 0)
	p.PolyCount = 0
	_, status = detour.DtCreateNavMeshData(p)
	assert.True(t, status.DtStatusFailed())
}
