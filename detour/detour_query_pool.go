package detour

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DtQueryPool hands out DtNavMeshQuery instances sharing one DtNavMesh.
// Each query keeps its own node pools, so goroutines holding different
// queries may search concurrently as long as the mesh is not modified.
type DtQueryPool struct {
	nav     *DtNavMesh
	queries chan *DtNavMeshQuery
	size    int
	logger  *zap.Logger
}

// NewDtQueryPool creates size queries, each with maxNodes search nodes.
func NewDtQueryPool(nav *DtNavMesh, size int, maxNodes int32, opts ...Option) (*DtQueryPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("query pool size %d: %w", size, ErrInvalidParam)
	}
	o := newOptions(opts)
	p := &DtQueryPool{
		nav:     nav,
		queries: make(chan *DtNavMeshQuery, size),
		size:    size,
		logger:  o.logger,
	}
	for i := 0; i < size; i++ {
		q, status := NewDtNavMeshQuery(nav, maxNodes, opts...)
		if status.DtStatusFailed() {
			return nil, fmt.Errorf("init query %d: %w", i, status.Err())
		}
		p.queries <- q
	}
	p.logger.Debug("query pool ready", zap.Int("size", size), zap.Int32("maxNodes", maxNodes))
	return p, nil
}

// Size returns the number of queries owned by the pool.
func (p *DtQueryPool) Size() int { return p.size }

// Acquire blocks until a query is free or ctx is done.
func (p *DtQueryPool) Acquire(ctx context.Context) (*DtNavMeshQuery, error) {
	select {
	case q := <-p.queries:
		return q, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire query: %w", ctx.Err())
	}
}

// Release returns q to the pool. Queries from another pool are rejected.
func (p *DtQueryPool) Release(q *DtNavMeshQuery) {
	if q == nil || q.m_nav != p.nav {
		p.logger.Warn("release of foreign query ignored")
		return
	}
	// Drop sliced search state so the next holder starts clean.
	q.resetSlicedQuery()
	select {
	case p.queries <- q:
	default:
		p.logger.Warn("query pool overflow on release")
	}
}

// Do runs fn with a pooled query and releases it afterwards.
func (p *DtQueryPool) Do(ctx context.Context, fn func(q *DtNavMeshQuery) error) error {
	q, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(q)
	return fn(q)
}
