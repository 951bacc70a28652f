package gridmesh

import (
	"errors"
	"testing"

	"github.com/gorustyt/gonavquery/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTileGrid() *Grid {
	return &Grid{
		TilesX:         2,
		TilesZ:         1,
		TileCells:      2,
		CellVoxels:     2,
		Cs:             0.5,
		Ch:             0.2,
		WalkableHeight: 2,
		WalkableRadius: 0.5,
		WalkableClimb:  0.5,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, twoTileGrid().Validate())

	cases := map[string]func(g *Grid){
		"no tiles":      func(g *Grid) { g.TilesX = 0 },
		"no cells":      func(g *Grid) { g.TileCells = 0 },
		"no voxels":     func(g *Grid) { g.CellVoxels = -1 },
		"zero cs":       func(g *Grid) { g.Cs = 0 },
		"too many cell": func(g *Grid) { g.TileCells = 300 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := twoTileGrid()
			mutate(g)
			err := g.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidGrid))
		})
	}
}

func TestSizes(t *testing.T) {
	g := twoTileGrid()
	assert.InDelta(t, 1.0, g.CellSize(), 1e-6)
	assert.InDelta(t, 2.0, g.TileSize(), 1e-6)

	c := g.CellCenter(3, 1)
	assert.InDelta(t, 3.5, c[0], 1e-6)
	assert.InDelta(t, 1.5, c[2], 1e-6)

	p := g.NavMeshParams()
	assert.Equal(t, int32(2), p.MaxTiles)
	assert.Equal(t, int32(4), p.MaxPolys)
	assert.InDelta(t, 2.0, p.TileWidth, 1e-6)
}

func TestTileParamsLayout(t *testing.T) {
	g := twoTileGrid()
	p := g.TileParams(0, 0)
	require.NotNil(t, p)

	assert.Equal(t, 9, p.VertCount)
	assert.Equal(t, 4, p.PolyCount)
	assert.Equal(t, 4, p.Nvp)
	assert.Len(t, p.Polys, 4*2*4)

	// Cell (1,0): west and north are internal, east crosses into tile (1,0), south is open air.
	neis := p.Polys[1*8+4 : 1*8+8]
	assert.Equal(t, []uint16{0, 3, 0x8002, detour.MESH_NULL_IDX}, neis)

	// Cell (0,1) mirrors it on the other corner.
	neis = p.Polys[2*8+4 : 2*8+8]
	assert.Equal(t, []uint16{detour.MESH_NULL_IDX, detour.MESH_NULL_IDX, 3, 0}, neis)

	// The second tile sees a portal back to the west.
	p = g.TileParams(1, 0)
	require.NotNil(t, p)
	assert.Equal(t, uint16(0x8000), p.Polys[0*8+4])
	assert.InDelta(t, 2.0, p.Bmin[0], 1e-6)
	assert.InDelta(t, 0.5, p.Bmax[1], 1e-6)
}

func TestTileParamsBlocked(t *testing.T) {
	g := twoTileGrid()
	g.Blocked = func(cx, cz int) bool { return cx == 2 }
	g.Area = func(cx, cz int) uint8 { return uint8(cz + 1) }

	p := g.TileParams(0, 0)
	require.NotNil(t, p)
	// The east portal of cell (1,0) faces a blocked cell and turns into a wall.
	assert.Equal(t, detour.MESH_NULL_IDX, int(p.Polys[1*8+6]))
	assert.Equal(t, []uint8{1, 1, 2, 2}, p.PolyAreas)

	p = g.TileParams(1, 0)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.PolyCount)
	assert.Equal(t, detour.MESH_NULL_IDX, int(p.Polys[0*8+4]))

	g.Blocked = func(cx, cz int) bool { return cx >= 2 }
	assert.Nil(t, g.TileParams(1, 0))
	data, err := g.BuildTile(1, 0)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestBuildNavMesh(t *testing.T) {
	g := twoTileGrid()
	g.BuildBvTree = true
	mesh, err := g.BuildNavMesh()
	require.NoError(t, err)

	left := mesh.GetTileAt(0, 0, 0)
	right := mesh.GetTileAt(1, 0, 0)
	require.NotNil(t, left)
	require.NotNil(t, right)
	assert.Equal(t, int32(4), left.Header.PolyCount)
	assert.NotZero(t, left.Header.BvNodeCount)

	// Cell (1,0) links across the tile border to cell (2,0).
	poly := &left.Polys[1]
	crossed := false
	for i := poly.FirstLink; i != detour.DT_NULL_LINK; i = left.Links[i].Next {
		link := &left.Links[i]
		if link.Side != 0xff {
			crossed = true
			assert.Equal(t, mesh.GetPolyRefBase(right), link.Ref)
			assert.Equal(t, uint8(0), link.Bmin)
			assert.Equal(t, uint8(255), link.Bmax)
		}
	}
	assert.True(t, crossed)
}

func TestBuildNavMeshInvalid(t *testing.T) {
	g := twoTileGrid()
	g.Cs = 0
	_, err := g.BuildNavMesh()
	assert.ErrorIs(t, err, ErrInvalidGrid)
}
