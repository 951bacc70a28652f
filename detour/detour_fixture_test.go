package detour_test

import (
	"testing"

	"github.com/gorustyt/gonavquery/common"
	"github.com/gorustyt/gonavquery/detour"
	"github.com/gorustyt/gonavquery/gridmesh"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Cells are 1x1 world units, tiles hold 4x4 cells.
func newGrid(tilesX, tilesZ int) *gridmesh.Grid {
	return &gridmesh.Grid{
		TilesX:         tilesX,
		TilesZ:         tilesZ,
		TileCells:      4,
		CellVoxels:     2,
		Cs:             0.5,
		Ch:             0.2,
		WalkableHeight: 2,
		WalkableRadius: 0.4,
		WalkableClimb:  0.5,
		BuildBvTree:    true,
	}
}

type fixture struct {
	grid   *gridmesh.Grid
	mesh   *detour.DtNavMesh
	query  *detour.DtNavMeshQuery
	filter *detour.DtQueryFilterStandard
}

func newFixture(t *testing.T, g *gridmesh.Grid) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mesh, err := g.BuildNavMesh(detour.WithLogger(logger))
	require.NoError(t, err)
	query, status := detour.NewDtNavMeshQuery(mesh, 2048, detour.WithLogger(logger))
	require.True(t, status.DtStatusSucceed(), status.String())
	return &fixture{grid: g, mesh: mesh, query: query, filter: detour.NewDtQueryFilter()}
}

func (f *fixture) center(cx, cz int) common.Vec3 {
	return f.grid.CellCenter(cx, cz)
}

// ref finds the polygon of cell (cx, cz).
func (f *fixture) ref(t *testing.T, cx, cz int) detour.DtPolyRef {
	t.Helper()
	ref, _, over, status := f.query.FindNearestPoly(f.center(cx, cz), common.Vec3{0.25, 1, 0.25}, f.filter)
	require.True(t, status.DtStatusSucceed(), status.String())
	require.NotZero(t, ref, "no polygon at cell %d,%d", cx, cz)
	require.True(t, over)
	return ref
}

// linked reports whether from has a link to to.
func (f *fixture) linked(from, to detour.DtPolyRef) bool {
	tile, poly, status := f.mesh.GetTileAndPolyByRef(from)
	if status.DtStatusFailed() {
		return false
	}
	for i := poly.FirstLink; i != detour.DT_NULL_LINK; i = tile.Links[i].Next {
		if tile.Links[i].Ref == to {
			return true
		}
	}
	return false
}
