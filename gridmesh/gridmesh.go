// Package gridmesh builds tiled navigation meshes made of square cells. The cells are
// laid out on a regular grid and each tile is packaged through detour.DtCreateNavMeshData,
// which makes it the fixture source for tests and for the navquery command.
package gridmesh

import (
	"errors"
	"fmt"

	"github.com/gorustyt/gonavquery/common"
	"github.com/gorustyt/gonavquery/detour"
)

// Polygon flags written by the builder.
const (
	FlagWalk uint16 = 0x01
)

var ErrInvalidGrid = errors.New("gridmesh: invalid grid")

// Grid describes a flat walkable area split into TilesX * TilesZ tiles of
// TileCells * TileCells square cells.
type Grid struct {
	Orig       common.Vec3
	TilesX     int
	TilesZ     int
	TileCells  int // cells along one tile side
	CellVoxels int // voxels along one cell side
	Cs, Ch     float32

	WalkableHeight float32
	WalkableRadius float32
	WalkableClimb  float32
	BuildBvTree    bool

	// Blocked reports cells that carry no polygon. Coordinates are global cell indices.
	Blocked func(cx, cz int) bool
	// Area returns the area id of a cell. Nil means area 0 everywhere.
	Area func(cx, cz int) uint8
}

func (g *Grid) Validate() error {
	switch {
	case g.TilesX <= 0 || g.TilesZ <= 0:
		return fmt.Errorf("%w: tile count %dx%d", ErrInvalidGrid, g.TilesX, g.TilesZ)
	case g.TileCells <= 0:
		return fmt.Errorf("%w: tile cells %d", ErrInvalidGrid, g.TileCells)
	case g.CellVoxels <= 0:
		return fmt.Errorf("%w: cell voxels %d", ErrInvalidGrid, g.CellVoxels)
	case !(g.Cs > 0) || !(g.Ch > 0):
		return fmt.Errorf("%w: cell size %v/%v", ErrInvalidGrid, g.Cs, g.Ch)
	case (g.TileCells+1)*(g.TileCells+1) >= 0xffff:
		return fmt.Errorf("%w: %d cells per tile side exceeds vertex limit", ErrInvalidGrid, g.TileCells)
	case g.TileCells*g.CellVoxels > 0xffff:
		return fmt.Errorf("%w: tile span exceeds voxel range", ErrInvalidGrid)
	}
	return nil
}

// CellSize is the world space width of a cell.
func (g *Grid) CellSize() float32 { return float32(g.CellVoxels) * g.Cs }

// TileSize is the world space width of a tile.
func (g *Grid) TileSize() float32 { return float32(g.TileCells) * g.CellSize() }

// CellCenter returns the world position at the middle of cell (cx, cz).
func (g *Grid) CellCenter(cx, cz int) common.Vec3 {
	cs := g.CellSize()
	return common.Vec3{
		g.Orig[0] + (float32(cx)+0.5)*cs,
		g.Orig[1],
		g.Orig[2] + (float32(cz)+0.5)*cs,
	}
}

func (g *Grid) cellsX() int { return g.TilesX * g.TileCells }
func (g *Grid) cellsZ() int { return g.TilesZ * g.TileCells }

func (g *Grid) walkable(cx, cz int) bool {
	if cx < 0 || cz < 0 || cx >= g.cellsX() || cz >= g.cellsZ() {
		return false
	}
	return g.Blocked == nil || !g.Blocked(cx, cz)
}

// NavMeshParams returns the mesh parameters that fit every tile of the grid.
func (g *Grid) NavMeshParams() *detour.NavMeshParams {
	return &detour.NavMeshParams{
		Orig:       g.Orig,
		TileWidth:  g.TileSize(),
		TileHeight: g.TileSize(),
		MaxTiles:   int32(g.TilesX * g.TilesZ),
		MaxPolys:   int32(g.TileCells * g.TileCells),
	}
}

// TileParams lays out tile (tx, tz). Cells are wound west, north, east, south so
// edge j of a cell faces portal direction j. It returns nil when the tile has no walkable cell.
func (g *Grid) TileParams(tx, tz int) *detour.DtNavMeshCreateParams {
	const nvp = 4
	n := g.TileCells
	cx0, cz0 := tx*n, tz*n

	// Poly index per local cell, -1 when blocked.
	index := make([]int, n*n)
	polyCount := 0
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			index[z*n+x] = -1
			if g.walkable(cx0+x, cz0+z) {
				index[z*n+x] = polyCount
				polyCount++
			}
		}
	}
	if polyCount == 0 {
		return nil
	}

	vertIndex := func(x, z int) uint16 { return uint16(z*(n+1) + x) }
	verts := make([]uint16, 0, (n+1)*(n+1)*3)
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			verts = append(verts, uint16(x*g.CellVoxels), 0, uint16(z*g.CellVoxels))
		}
	}

	polys := make([]uint16, 0, polyCount*nvp*2)
	flags := make([]uint16, 0, polyCount)
	areas := make([]uint8, 0, polyCount)
	// Offsets of the west, north, east and south neighbours.
	dirs := [4][2]int{{-1, 0}, {0, 1}, {1, 0}, {0, -1}}
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			if index[z*n+x] < 0 {
				continue
			}
			polys = append(polys,
				vertIndex(x, z), vertIndex(x, z+1), vertIndex(x+1, z+1), vertIndex(x+1, z))
			for dir, d := range dirs {
				nx, nz := x+d[0], z+d[1]
				switch {
				case !g.walkable(cx0+nx, cz0+nz):
					polys = append(polys, detour.MESH_NULL_IDX)
				case nx < 0 || nz < 0 || nx >= n || nz >= n:
					polys = append(polys, 0x8000|uint16(dir))
				default:
					polys = append(polys, uint16(index[nz*n+nx]))
				}
			}
			flags = append(flags, FlagWalk)
			var area uint8
			if g.Area != nil {
				area = g.Area(cx0+x, cz0+z)
			}
			areas = append(areas, area)
		}
	}

	ts := g.TileSize()
	bmin := common.Vec3{g.Orig[0] + float32(tx)*ts, g.Orig[1], g.Orig[2] + float32(tz)*ts}
	bmax := common.Vec3{bmin[0] + ts, g.Orig[1] + max(g.Ch, g.WalkableClimb), bmin[2] + ts}

	return &detour.DtNavMeshCreateParams{
		Verts:          verts,
		VertCount:      (n + 1) * (n + 1),
		Polys:          polys,
		PolyFlags:      flags,
		PolyAreas:      areas,
		PolyCount:      polyCount,
		Nvp:            nvp,
		TileX:          int32(tx),
		TileY:          int32(tz),
		Bmin:           bmin,
		Bmax:           bmax,
		WalkableHeight: g.WalkableHeight,
		WalkableRadius: g.WalkableRadius,
		WalkableClimb:  g.WalkableClimb,
		Cs:             g.Cs,
		Ch:             g.Ch,
		BuildBvTree:    g.BuildBvTree,
	}
}

// BuildTile packages tile (tx, tz). It returns nil data when the tile is fully blocked.
func (g *Grid) BuildTile(tx, tz int) (*detour.NavMeshData, error) {
	params := g.TileParams(tx, tz)
	if params == nil {
		return nil, nil
	}
	data, status := detour.DtCreateNavMeshData(params)
	if status.DtStatusFailed() {
		return nil, fmt.Errorf("build tile %d,%d: %w", tx, tz, status.Err())
	}
	return data, nil
}

// BuildNavMesh builds every tile of the grid and adds it to a new mesh.
func (g *Grid) BuildNavMesh(opts ...detour.Option) (*detour.DtNavMesh, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	mesh, status := detour.NewDtNavMeshWithParams(g.NavMeshParams(), opts...)
	if status.DtStatusFailed() {
		return nil, fmt.Errorf("init navmesh: %w", status.Err())
	}
	for tz := 0; tz < g.TilesZ; tz++ {
		for tx := 0; tx < g.TilesX; tx++ {
			data, err := g.BuildTile(tx, tz)
			if err != nil {
				return nil, err
			}
			if data == nil {
				continue
			}
			if _, status := mesh.AddTile(data, detour.DT_TILE_FREE_DATA, 0); status.DtStatusFailed() {
				return nil, fmt.Errorf("add tile %d,%d: %w", tx, tz, status.Err())
			}
		}
	}
	return mesh, nil
}
