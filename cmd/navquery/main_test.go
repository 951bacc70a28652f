package main

import (
	"context"
	"testing"

	"github.com/gorustyt/gonavquery/common"
	"github.com/gorustyt/gonavquery/common/config"
	"github.com/gorustyt/gonavquery/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Mesh.TilesX, cfg.Mesh.TilesZ = 2, 1
	cfg.Mesh.TileCells = 4
	cfg.Mesh.Cs = 0.5
	// Wall across x=3 with a gap in the top row.
	cfg.Mesh.Blocked = []config.Rect{{MinX: 3, MinZ: 0, MaxX: 3, MaxZ: 2}}
	cfg.Query.PoolSize = 2
	cfg.Query.HalfExtents = [3]float32{0.4, 1, 0.4}
	return cfg
}

func TestParseVec3(t *testing.T) {
	v, err := parseVec3("1.5, 0,-2")
	require.NoError(t, err)
	assert.Equal(t, common.Vec3{1.5, 0, -2}, v)

	_, err = parseVec3("1,2")
	assert.Error(t, err)
	_, err = parseVec3("1,x,2")
	assert.Error(t, err)
}

func TestGridFromConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Mesh.Areas = []config.AreaRect{{Rect: config.Rect{MaxX: 7, MaxZ: 0}, Area: 2}}
	g := gridFromConfig(&cfg.Mesh)
	require.NoError(t, g.Validate())
	assert.True(t, g.Blocked(3, 1))
	assert.False(t, g.Blocked(3, 3))
	assert.Equal(t, uint8(2), g.Area(5, 0))

	g = gridFromConfig(&config.Default().Mesh)
	assert.Nil(t, g.Blocked)
	assert.Nil(t, g.Area)
}

func TestFilterFromConfig(t *testing.T) {
	qc := config.Default().Query
	qc.ExcludeFlags = 0x10
	qc.AreaCosts = map[uint8]float32{5: 3}
	f := filterFromConfig(&qc)
	assert.Equal(t, uint16(0xffff), f.GetIncludeFlags())
	assert.Equal(t, uint16(0x10), f.GetExcludeFlags())
	assert.InDelta(t, 3, f.GetAreaCost(5), 1e-6)
	assert.InDelta(t, 1, f.GetAreaCost(4), 1e-6)
}

func buildSmall(t *testing.T, cfg *config.Config) (*detour.DtNavMesh, *detour.DtQueryPool) {
	t.Helper()
	mesh, err := gridFromConfig(&cfg.Mesh).BuildNavMesh()
	require.NoError(t, err)
	pool, err := detour.NewDtQueryPool(mesh, cfg.Query.PoolSize, cfg.Query.MaxNodes)
	require.NoError(t, err)
	return mesh, pool
}

func TestFindPathAroundWall(t *testing.T) {
	cfg := smallConfig()
	_, pool := buildSmall(t, cfg)
	filter := filterFromConfig(&cfg.Query)

	res, err := findPath(context.Background(), pool, &cfg.Query, filter, common.Vec3{0.5, 0, 0.5}, common.Vec3{6.5, 0, 0.5})
	require.NoError(t, err)
	assert.False(t, res.status.DtStatusDetail(detour.DT_PARTIAL_RESULT))
	require.GreaterOrEqual(t, len(res.points), 3)
	last := res.points[len(res.points)-1]
	assert.Equal(t, uint8(detour.DT_STRAIGHTPATH_END), last.Flags)
	assert.InDelta(t, 6.5, last.Pos[0], 1e-4)
	// The route bends through the gap above the wall.
	for _, p := range res.points[1 : len(res.points)-1] {
		assert.GreaterOrEqual(t, p.Pos[2], float32(3)-1e-4)
	}

	_, err = findPath(context.Background(), pool, &cfg.Query, filter, common.Vec3{50, 0, 50}, common.Vec3{6.5, 0, 0.5})
	assert.ErrorIs(t, err, errNoPoly)
}

func TestQueuedPathMatchesDirect(t *testing.T) {
	cfg := smallConfig()
	cfg.Query.QueueIters = 3
	mesh, pool := buildSmall(t, cfg)
	filter := filterFromConfig(&cfg.Query)
	start, end := common.Vec3{0.5, 0, 0.5}, common.Vec3{6.5, 0, 0.5}

	direct, err := findPath(context.Background(), pool, &cfg.Query, filter, start, end)
	require.NoError(t, err)
	queued, err := queuedPath(context.Background(), zaptest.NewLogger(t), mesh, pool, cfg, filter, start, end)
	require.NoError(t, err)
	assert.Equal(t, direct.polys, queued.polys)
	assert.Equal(t, len(direct.points), len(queued.points))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = queuedPath(ctx, zaptest.NewLogger(t), mesh, pool, cfg, filter, start, end)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun(t *testing.T) {
	cfg := smallConfig()
	log := zaptest.NewLogger(t)
	require.NoError(t, run(context.Background(), log, cfg, "", "", false))
	require.NoError(t, run(context.Background(), log, cfg, "0.5,0,0.5", "6.5,0,0.5", true))
	assert.Error(t, run(context.Background(), log, cfg, "0.5,0", "6.5,0,0.5", false))
}
