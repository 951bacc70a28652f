package detour

import "github.com/gorustyt/gonavquery/common"

const (
	DT_VERTS_PER_POLYGON = 6 // max vertices of a navigation polygon
	DT_NULL_LINK         = 0xffffffff

	// Neis bit marking an edge that is a portal into another tile.
	DT_EXT_LINK = 0x8000
	// Any-angle shortcuts are tried within this many agent radii.
	DT_RAY_CAST_LIMIT_PROPORTIONS = 50.0
	// Off-mesh connection flag: travel is allowed both ways.
	DT_OFFMESH_CON_BIDIR = 1

	DT_NAVMESH_MAGIC   = 'D'<<24 | 'N'<<16 | 'A'<<8 | 'V'
	DT_NAVMESH_VERSION = 7

	// Header of the tile state snapshot.
	DT_NAVMESH_STATE_MAGIC   = 'D'<<24 | 'N'<<16 | 'M'<<8 | 'S'
	DT_NAVMESH_STATE_VERSION = 1

	DT_MAX_AREAS = 64 // area ids live in the low 6 bits of AreaAndtype
)

// Polygon types, stored in the high 2 bits of AreaAndtype.
const (
	DT_POLYTYPE_GROUND             = 0
	DT_POLYTYPE_OFFMESH_CONNECTION = 1 // two vertex pseudo polygon
)

const DT_DETAIL_EDGE_BOUNDARY = 0x01 // detail triangle edge lies on the polygon boundary

// Raycast options.
const DT_RAYCAST_USE_COSTS = 0x01

// FindPath / InitSlicedFindPath options.
const DT_FINDPATH_ANY_ANGLE = 0x02

// Straight path vertex flags.
const (
	DT_STRAIGHTPATH_START              = 0x01
	DT_STRAIGHTPATH_END                = 0x02
	DT_STRAIGHTPATH_OFFMESH_CONNECTION = 0x04 // vertex where an off-mesh connection begins
)

// Straight path options.
const (
	DT_STRAIGHTPATH_AREA_CROSSINGS = 0x01 // extra vertex where the area id changes
	DT_STRAIGHTPATH_ALL_CROSSINGS  = 0x02 // extra vertex at every portal
)

// Tile flags.
const DT_TILE_FREE_DATA = 0x01

// Default bit widths of a 64 bit polygon reference.
const (
	DT_SALT_BITS = 16
	DT_TILE_BITS = 28
	DT_POLY_BITS = 20
)

type DtPolyRef uint64
type DtTileRef uint64

// DtPoly is a convex polygon of a tile, or a two vertex off-mesh connection.
type DtPoly struct {
	FirstLink uint32 // head of the link list, DT_NULL_LINK when empty
	Verts     [DT_VERTS_PER_POLYGON]uint16
	// Per edge: 0 no neighbour, n internal neighbour n-1, DT_EXT_LINK|side tile portal.
	Neis        [DT_VERTS_PER_POLYGON]uint16
	Flags       uint16
	VertCount   uint8
	AreaAndtype uint8
}

func (p *DtPoly) SetArea(a uint8) { p.AreaAndtype = (p.AreaAndtype & 0xc0) | (a & 0x3f) }
func (p *DtPoly) SetType(t uint8) { p.AreaAndtype = (p.AreaAndtype & 0x3f) | (t << 6) }
func (p *DtPoly) GetArea() uint8  { return p.AreaAndtype & 0x3f }
func (p *DtPoly) GetType() uint8  { return p.AreaAndtype >> 6 }

// DtPolyDetail locates the detail sub-mesh of a polygon. Detail vertex i < VertCount of the
// polygon is a polygon vertex, the rest start at VertBase in DetailVerts.
type DtPolyDetail struct {
	VertBase  uint32
	TriBase   uint32
	VertCount uint8
	TriCount  uint8
}

// DtLink is a directed connection from a polygon edge to a neighbour.
type DtLink struct {
	Ref  DtPolyRef
	Next uint32
	Edge uint8 // owning edge of the source polygon
	Side uint8 // tile side for portal links, 0xff otherwise
	// Connected part of the edge, 0..255 along it.
	Bmin uint8
	Bmax uint8
}

// DtBVNode is a quantized AABB tree node. Leaves hold the polygon index in I,
// inner nodes hold the negated escape offset.
type DtBVNode struct {
	Bmin [3]uint16
	Bmax [3]uint16
	I    int32
}

type DtOffMeshConnection struct {
	Pos  [6]float32 // start xyz, end xyz
	Rad  float32
	Poly uint16 // polygon index within the tile
	// Internal link flags (DT_OFFMESH_CON_BIDIR). User flags live on the polygon.
	Flags  uint8
	Side   uint8 // tile side of the end point, 0xff when inside
	UserId uint32
}

func (c *DtOffMeshConnection) StartPos() common.Vec3 { return common.Vec3{c.Pos[0], c.Pos[1], c.Pos[2]} }
func (c *DtOffMeshConnection) EndPos() common.Vec3   { return common.Vec3{c.Pos[3], c.Pos[4], c.Pos[5]} }

// DtMeshHeader describes one tile: its grid cell, element counts, agent limits and bounds.
type DtMeshHeader struct {
	Magic   int32
	Version int32
	X       int32 // tile grid x
	Y       int32 // tile grid y (world z)
	Layer   int32
	UserId  uint32

	PolyCount       int32
	VertCount       int32
	MaxLinkCount    int32
	DetailMeshCount int32
	DetailVertCount int32 // detail vertices beyond the polygon vertices
	DetailTriCount  int32
	BvNodeCount     int32 // 0 without a BV tree
	OffMeshConCount int32
	OffMeshBase     int32 // first off-mesh connection polygon

	WalkableHeight float32
	WalkableRadius float32
	WalkableClimb  float32
	Bmin           common.Vec3
	Bmax           common.Vec3
	BvQuantFactor  float32
}

// NavMeshData is the unit of tile data handed to DtNavMesh.AddTile. The mesh takes
// ownership of the arrays while the tile is loaded; links are rebuilt on every add.
type NavMeshData struct {
	Header       *DtMeshHeader
	Verts        []float32
	Polys        []DtPoly
	Links        []DtLink
	DetailMeshes []DtPolyDetail
	DetailVerts  []float32
	DetailTris   []uint8 // (a, b, c, edge flags) per triangle
	BvTree       []DtBVNode
	OffMeshCons  []DtOffMeshConnection
}

// DtMeshTile is a tile slot of DtNavMesh. Header is nil while the slot is free.
type DtMeshTile struct {
	salt          uint32
	linksFreeList uint32

	Header       *DtMeshHeader
	Polys        []DtPoly
	Verts        []float32
	Links        []DtLink
	DetailMeshes []DtPolyDetail
	DetailVerts  []float32
	DetailTris   []uint8
	BvTree       []DtBVNode // nil without a BV tree
	OffMeshCons  []DtOffMeshConnection
	Flags        int32

	next  *DtMeshTile // free list or position bucket chain
	index uint32
	data  *NavMeshData
}

// Salt returns the tile's modification counter.
func (t *DtMeshTile) Salt() uint32 { return t.salt }

// Data returns the blob the tile was created from.
func (t *DtMeshTile) Data() *NavMeshData { return t.data }

// GetVert returns polygon mesh vertex i.
func (t *DtMeshTile) GetVert(i uint16) common.Vec3 {
	return common.GetVert3(t.Verts, i)
}

// polyVerts gathers the vertices of poly into buf and returns the used prefix.
func (t *DtMeshTile) polyVerts(poly *DtPoly, buf *[DT_VERTS_PER_POLYGON]common.Vec3) []common.Vec3 {
	nv := int(poly.VertCount)
	for i := 0; i < nv; i++ {
		buf[i] = common.GetVert3(t.Verts, poly.Verts[i])
	}
	return buf[:nv]
}

// NavMeshParams sizes a tiled DtNavMesh.
type NavMeshParams struct {
	Orig       common.Vec3 // origin of the tile grid
	TileWidth  float32     // along x
	TileHeight float32     // along z
	MaxTiles   int32
	MaxPolys   int32 // per tile

	// Polygon reference bit widths. All zero selects DT_SALT_BITS/DT_TILE_BITS/DT_POLY_BITS.
	SaltBits uint32
	TileBits uint32
	PolyBits uint32
}

// DtGetDetailTriEdgeFlags extracts the 2 bit flags of edge edgeIndex (0 = AB) from a
// detail triangle's flag byte.
func DtGetDetailTriEdgeFlags(triFlags uint8, edgeIndex int) uint8 {
	return (triFlags >> (edgeIndex * 2)) & 0x3
}

func dtOppositeTile(side int) int { return (side + 4) & 0x7 }
