// Command navquery builds a grid navigation mesh from a YAML config and runs a
// path query between two world positions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorustyt/gonavquery/common"
	"github.com/gorustyt/gonavquery/common/config"
	"github.com/gorustyt/gonavquery/common/logger"
	"github.com/gorustyt/gonavquery/detour"
	"github.com/gorustyt/gonavquery/gridmesh"
	"go.uber.org/zap"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "YAML config file, defaults are used when empty")
		from    = flag.String("from", "", "start position x,y,z")
		to      = flag.String("to", "", "end position x,y,z")
		queued  = flag.Bool("queued", false, "run the search through the path queue")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg, *from, *to, *queued); err != nil {
		log.Error("navquery failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.Logger, cfg *config.Config, from, to string, queued bool) error {
	grid := gridFromConfig(&cfg.Mesh)
	mesh, err := grid.BuildNavMesh(detour.WithLogger(log))
	if err != nil {
		return err
	}
	log.Info("navmesh built",
		zap.Int("tilesX", grid.TilesX), zap.Int("tilesZ", grid.TilesZ),
		zap.Float32("tileSize", grid.TileSize()))

	if from == "" || to == "" {
		return nil
	}
	startPos, err := parseVec3(from)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	endPos, err := parseVec3(to)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}

	filter := filterFromConfig(&cfg.Query)
	pool, err := detour.NewDtQueryPool(mesh, cfg.Query.PoolSize, cfg.Query.MaxNodes, detour.WithLogger(log))
	if err != nil {
		return err
	}
	var res *pathResult
	if queued {
		res, err = queuedPath(ctx, log, mesh, pool, cfg, filter, startPos, endPos)
	} else {
		res, err = findPath(ctx, pool, &cfg.Query, filter, startPos, endPos)
	}
	if err != nil {
		return err
	}

	for i, p := range res.points {
		log.Info("waypoint", zap.Int("i", i),
			zap.Float32("x", p.Pos[0]), zap.Float32("y", p.Pos[1]), zap.Float32("z", p.Pos[2]),
			zap.Uint8("flags", p.Flags), zap.Uint64("ref", uint64(p.Ref)))
	}
	log.Info("path found",
		zap.Int("polys", len(res.polys)), zap.Int("points", len(res.points)),
		zap.Bool("partial", res.status.DtStatusDetail(detour.DT_PARTIAL_RESULT)),
		zap.Stringer("status", res.status))
	return nil
}

type pathResult struct {
	polys  []detour.DtPolyRef
	points []detour.DtStraightPathPoint
	status detour.DtStatus
}

var errNoPoly = errors.New("no polygon near position")

func nearest(q *detour.DtNavMeshQuery, pos common.Vec3, qc *config.QueryConfig, filter detour.DtQueryFilter) (detour.DtPolyRef, common.Vec3, error) {
	ref, pt, _, status := q.FindNearestPoly(pos, common.Vec3(qc.HalfExtents), filter)
	if err := status.Err(); err != nil {
		return 0, pt, err
	}
	if ref == 0 {
		return 0, pt, fmt.Errorf("%w: %v", errNoPoly, pos)
	}
	return ref, pt, nil
}

func findPath(ctx context.Context, pool *detour.DtQueryPool, qc *config.QueryConfig,
	filter detour.DtQueryFilter, startPos, endPos common.Vec3) (*pathResult, error) {
	res := &pathResult{}
	err := pool.Do(ctx, func(q *detour.DtNavMeshQuery) error {
		startRef, start, err := nearest(q, startPos, qc, filter)
		if err != nil {
			return err
		}
		endRef, end, err := nearest(q, endPos, qc, filter)
		if err != nil {
			return err
		}
		polys, status := q.FindPath(startRef, endRef, start, end, filter, qc.MaxPath)
		if err := status.Err(); err != nil {
			return fmt.Errorf("find path: %w", err)
		}
		return res.straighten(q, start, end, polys, status, qc.MaxStraightPath)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func queuedPath(ctx context.Context, log *zap.Logger, mesh *detour.DtNavMesh, pool *detour.DtQueryPool,
	cfg *config.Config, filter detour.DtQueryFilter, startPos, endPos common.Vec3) (*pathResult, error) {
	pq, status := detour.NewDtPathQueue(mesh, cfg.Query.MaxPath, cfg.Query.MaxNodes, detour.WithLogger(log))
	if err := status.Err(); err != nil {
		return nil, err
	}
	q := pq.GetNavQuery()
	startRef, start, err := nearest(q, startPos, &cfg.Query, filter)
	if err != nil {
		return nil, err
	}
	endRef, end, err := nearest(q, endPos, &cfg.Query, filter)
	if err != nil {
		return nil, err
	}

	ref := pq.Request(startRef, endRef, start, end, filter)
	if ref == detour.DT_PATHQ_INVALID {
		return nil, fmt.Errorf("path queue full: %w", detour.ErrOutOfMemory)
	}
	ticks := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := pq.GetRequestStatus(ref)
		if st.DtStatusSucceed() || st.DtStatusFailed() {
			break
		}
		pq.Update(cfg.Query.QueueIters)
		ticks++
	}
	log.Debug("path queue done", zap.Int("ticks", ticks))

	polys, status := pq.GetPathResult(ref)
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("queued path: %w", err)
	}
	if len(polys) == 0 {
		return nil, fmt.Errorf("queued path: %w", detour.ErrFailure)
	}
	res := &pathResult{}
	err = pool.Do(ctx, func(q *detour.DtNavMeshQuery) error {
		return res.straighten(q, start, end, polys, status, cfg.Query.MaxStraightPath)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *pathResult) straighten(q *detour.DtNavMeshQuery, start, end common.Vec3,
	polys []detour.DtPolyRef, status detour.DtStatus, maxPoints int) error {
	// A partial path ends at the polygon closest to the goal.
	if status.DtStatusDetail(detour.DT_PARTIAL_RESULT) {
		closest, _, st := q.ClosestPointOnPoly(polys[len(polys)-1], end)
		if err := st.Err(); err != nil {
			return err
		}
		end = closest
	}
	points, st := q.FindStraightPath(start, end, polys, maxPoints, 0)
	if err := st.Err(); err != nil {
		return fmt.Errorf("straight path: %w", err)
	}
	r.polys, r.points, r.status = polys, points, status|st&detour.DT_STATUS_DETAIL_MASK
	return nil
}

func gridFromConfig(m *config.MeshConfig) *gridmesh.Grid {
	g := &gridmesh.Grid{
		Orig:           common.Vec3(m.Origin),
		TilesX:         m.TilesX,
		TilesZ:         m.TilesZ,
		TileCells:      m.TileCells,
		CellVoxels:     m.CellVoxels,
		Cs:             m.Cs,
		Ch:             m.Ch,
		WalkableHeight: m.WalkableHeight,
		WalkableRadius: m.WalkableRadius,
		WalkableClimb:  m.WalkableClimb,
		BuildBvTree:    m.BvTree,
	}
	if len(m.Blocked) > 0 {
		g.Blocked = m.IsBlocked
	}
	if len(m.Areas) > 0 {
		g.Area = m.AreaAt
	}
	return g
}

func filterFromConfig(qc *config.QueryConfig) *detour.DtQueryFilterStandard {
	filter := detour.NewDtQueryFilter()
	filter.SetIncludeFlags(qc.IncludeFlags)
	filter.SetExcludeFlags(qc.ExcludeFlags)
	for area, cost := range qc.AreaCosts {
		filter.SetAreaCost(int(area), cost)
	}
	return filter
}

func parseVec3(s string) (common.Vec3, error) {
	var v common.Vec3
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return v, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
