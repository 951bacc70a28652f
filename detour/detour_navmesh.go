package detour

import (
	"math"

	"github.com/gorustyt/gonavquery/common"
	"go.uber.org/zap"
)

// DtNavMesh is the tile registry. Reads are safe for concurrent use; AddTile, RemoveTile
// and the state setters must be serialized against every reader by the caller.
type DtNavMesh struct {
	m_params                  NavMeshParams
	m_orig                    common.Vec3
	m_tileWidth, m_tileHeight float32
	m_maxTiles                int32
	m_tileLutSize             int32 // power of two
	m_tileLutMask             int32
	m_posLookup               []*DtMeshTile // cell hash buckets
	m_nextFree                *DtMeshTile
	m_tiles                   []DtMeshTile

	m_saltBits uint32
	m_tileBits uint32
	m_polyBits uint32

	logger *zap.Logger
}

// NewDtNavMeshWithParams creates an empty tiled mesh. Zero bit widths in params select the
// defaults; explicit widths are checked for a usable salt and for fitting in 64 bits.
func NewDtNavMeshWithParams(params *NavMeshParams, opts ...Option) (*DtNavMesh, DtStatus) {
	if params == nil || params.MaxTiles <= 0 || params.MaxPolys <= 0 ||
		!(params.TileWidth > 0) || !(params.TileHeight > 0) || !common.Visfinite(params.Orig) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	o := newOptions(opts)
	mesh := &DtNavMesh{
		m_params:     *params,
		m_orig:       params.Orig,
		m_tileWidth:  params.TileWidth,
		m_tileHeight: params.TileHeight,
		m_maxTiles:   params.MaxTiles,
		logger:       o.logger,
	}

	mesh.m_saltBits, mesh.m_tileBits, mesh.m_polyBits = params.SaltBits, params.TileBits, params.PolyBits
	if mesh.m_saltBits == 0 && mesh.m_tileBits == 0 && mesh.m_polyBits == 0 {
		mesh.m_saltBits, mesh.m_tileBits, mesh.m_polyBits = DT_SALT_BITS, DT_TILE_BITS, DT_POLY_BITS
	}
	// The salt lives in a uint32 and must leave room to never wrap to zero.
	if mesh.m_saltBits < 10 || mesh.m_saltBits > 32 ||
		mesh.m_saltBits+mesh.m_tileBits+mesh.m_polyBits > 64 ||
		mesh.m_tileBits > 31 || mesh.m_polyBits > 31 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	if int64(params.MaxTiles) > int64(1)<<mesh.m_tileBits || int64(params.MaxPolys) > int64(1)<<mesh.m_polyBits {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	mesh.m_params.SaltBits, mesh.m_params.TileBits, mesh.m_params.PolyBits = mesh.m_saltBits, mesh.m_tileBits, mesh.m_polyBits

	mesh.m_tileLutSize = int32(common.NextPow2(uint32(params.MaxTiles) / 4))
	if mesh.m_tileLutSize == 0 {
		mesh.m_tileLutSize = 1
	}
	mesh.m_tileLutMask = mesh.m_tileLutSize - 1
	mesh.m_tiles = make([]DtMeshTile, mesh.m_maxTiles)
	mesh.m_posLookup = make([]*DtMeshTile, mesh.m_tileLutSize)
	mesh.m_nextFree = nil
	for i := mesh.m_maxTiles - 1; i >= 0; i-- {
		tile := &mesh.m_tiles[i]
		tile.salt = 1
		tile.index = uint32(i)
		tile.next = mesh.m_nextFree
		mesh.m_nextFree = tile
	}
	return mesh, DT_SUCCESS
}

// NewDtNavMesh creates a single tile mesh sized from data and adds data as its only tile.
func NewDtNavMesh(data *NavMeshData, flags int32, opts ...Option) (*DtNavMesh, DtTileRef, DtStatus) {
	if data == nil || data.Header == nil {
		return nil, 0, DT_FAILURE | DT_INVALID_PARAM
	}
	header := data.Header
	if header.Magic != DT_NAVMESH_MAGIC {
		return nil, 0, DT_FAILURE | DT_WRONG_MAGIC
	}
	if header.Version != DT_NAVMESH_VERSION {
		return nil, 0, DT_FAILURE | DT_WRONG_VERSION
	}

	params := NavMeshParams{
		Orig:       header.Bmin,
		TileWidth:  header.Bmax[0] - header.Bmin[0],
		TileHeight: header.Bmax[2] - header.Bmin[2],
		MaxTiles:   1,
		MaxPolys:   header.PolyCount,
	}
	mesh, status := NewDtNavMeshWithParams(&params, opts...)
	if status.DtStatusFailed() {
		return nil, 0, status
	}
	ref, status := mesh.AddTile(data, flags, 0)
	if status.DtStatusFailed() {
		return nil, 0, status
	}
	return mesh, ref, status
}

// GetParams returns the parameters the mesh was created with, derived from the tile for
// single tile meshes.
func (mesh *DtNavMesh) GetParams() *NavMeshParams {
	return &mesh.m_params
}

func (mesh *DtNavMesh) GetMaxTiles() int32 {
	return mesh.m_maxTiles
}

// GetTile returns the tile slot i, loaded or not. Check Header for nil before use.
func (mesh *DtNavMesh) GetTile(i int) *DtMeshTile {
	if i < 0 || i >= len(mesh.m_tiles) {
		return nil
	}
	return &mesh.m_tiles[i]
}

// EncodePolyId packs salt, tile index and polygon index into a reference.
func (mesh *DtNavMesh) EncodePolyId(salt, it, ip uint32) DtPolyRef {
	return DtPolyRef(uint64(salt)<<(mesh.m_polyBits+mesh.m_tileBits) | uint64(it)<<mesh.m_polyBits | uint64(ip))
}

func (mesh *DtNavMesh) DecodePolyId(ref DtPolyRef) (salt, it, ip uint32) {
	saltMask := uint64(1)<<mesh.m_saltBits - 1
	tileMask := uint64(1)<<mesh.m_tileBits - 1
	polyMask := uint64(1)<<mesh.m_polyBits - 1
	salt = uint32((uint64(ref) >> (mesh.m_polyBits + mesh.m_tileBits)) & saltMask)
	it = uint32((uint64(ref) >> mesh.m_polyBits) & tileMask)
	ip = uint32(uint64(ref) & polyMask)
	return
}

func (mesh *DtNavMesh) DecodePolyIdSalt(ref DtPolyRef) uint32 {
	saltMask := uint64(1)<<mesh.m_saltBits - 1
	return uint32((uint64(ref) >> (mesh.m_polyBits + mesh.m_tileBits)) & saltMask)
}

func (mesh *DtNavMesh) DecodePolyIdTile(ref DtPolyRef) uint32 {
	tileMask := uint64(1)<<mesh.m_tileBits - 1
	return uint32((uint64(ref) >> mesh.m_polyBits) & tileMask)
}

func (mesh *DtNavMesh) DecodePolyIdPoly(ref DtPolyRef) uint32 {
	polyMask := uint64(1)<<mesh.m_polyBits - 1
	return uint32(uint64(ref) & polyMask)
}

// CalcTileLoc maps a world position to its tile grid cell.
func (mesh *DtNavMesh) CalcTileLoc(pos common.Vec3) (tx, ty int32) {
	tx = int32(math.Floor(float64((pos[0] - mesh.m_orig[0]) / mesh.m_tileWidth)))
	ty = int32(math.Floor(float64((pos[2] - mesh.m_orig[2]) / mesh.m_tileHeight)))
	return tx, ty
}

// GetTileAt returns the tile at a cell and layer, or nil.
func (mesh *DtNavMesh) GetTileAt(x, y, layer int32) *DtMeshTile {
	h := common.ComputeTileHash(x, y, mesh.m_tileLutMask)
	for tile := mesh.m_posLookup[h]; tile != nil; tile = tile.next {
		if tile.Header != nil && tile.Header.X == x && tile.Header.Y == y && tile.Header.Layer == layer {
			return tile
		}
	}
	return nil
}

// GetTilesAt returns every layer loaded at a cell.
func (mesh *DtNavMesh) GetTilesAt(x, y int32) []*DtMeshTile {
	var tiles []*DtMeshTile
	h := common.ComputeTileHash(x, y, mesh.m_tileLutMask)
	for tile := mesh.m_posLookup[h]; tile != nil; tile = tile.next {
		if tile.Header != nil && tile.Header.X == x && tile.Header.Y == y {
			tiles = append(tiles, tile)
		}
	}
	return tiles
}

// getNeighbourTilesAt returns the tiles next to (x, y) in the given side direction.
func (mesh *DtNavMesh) getNeighbourTilesAt(x, y int32, side int) []*DtMeshTile {
	nx, ny := x, y
	switch side {
	case 0:
		nx++
	case 1:
		nx++
		ny++
	case 2:
		ny++
	case 3:
		nx--
		ny++
	case 4:
		nx--
	case 5:
		nx--
		ny--
	case 6:
		ny--
	case 7:
		nx++
		ny--
	}
	return mesh.GetTilesAt(nx, ny)
}

func (mesh *DtNavMesh) GetTileRefAt(x, y, layer int32) DtTileRef {
	return mesh.GetTileRef(mesh.GetTileAt(x, y, layer))
}

func (mesh *DtNavMesh) GetTileRef(tile *DtMeshTile) DtTileRef {
	if tile == nil {
		return 0
	}
	return DtTileRef(mesh.EncodePolyId(tile.salt, tile.index, 0))
}

// GetPolyRefBase is the reference of polygon 0 of tile; or it with a polygon index.
func (mesh *DtNavMesh) GetPolyRefBase(tile *DtMeshTile) DtPolyRef {
	if tile == nil {
		return 0
	}
	return mesh.EncodePolyId(tile.salt, tile.index, 0)
}

// GetTileByRef returns nil for stale or malformed refs.
func (mesh *DtNavMesh) GetTileByRef(ref DtTileRef) *DtMeshTile {
	if ref == 0 {
		return nil
	}
	tileIndex := mesh.DecodePolyIdTile(DtPolyRef(ref))
	tileSalt := mesh.DecodePolyIdSalt(DtPolyRef(ref))
	if int64(tileIndex) >= int64(mesh.m_maxTiles) {
		return nil
	}
	tile := &mesh.m_tiles[tileIndex]
	if tile.salt != tileSalt || tile.Header == nil {
		return nil
	}
	return tile
}

// GetTileAndPolyByRef resolves ref, failing with DT_INVALID_PARAM when it is stale.
func (mesh *DtNavMesh) GetTileAndPolyByRef(ref DtPolyRef) (*DtMeshTile, *DtPoly, DtStatus) {
	if ref == 0 {
		return nil, nil, DT_FAILURE
	}
	salt, it, ip := mesh.DecodePolyId(ref)
	if int64(it) >= int64(mesh.m_maxTiles) {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tile := &mesh.m_tiles[it]
	if tile.salt != salt || tile.Header == nil {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	if int64(ip) >= int64(tile.Header.PolyCount) {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	return tile, &tile.Polys[ip], DT_SUCCESS
}

// GetTileAndPolyByRefUnsafe skips the status return and panics on a bad ref. Use it only
// for refs read from links or already validated.
func (mesh *DtNavMesh) GetTileAndPolyByRefUnsafe(ref DtPolyRef) (*DtMeshTile, *DtPoly) {
	salt, it, ip := mesh.DecodePolyId(ref)
	if int64(it) >= int64(mesh.m_maxTiles) {
		panic("detour: tile index out of range")
	}
	tile := &mesh.m_tiles[it]
	if tile.Header == nil || tile.salt != salt || int64(ip) >= int64(tile.Header.PolyCount) {
		panic("detour: stale polygon reference")
	}
	return tile, &tile.Polys[ip]
}

func (mesh *DtNavMesh) IsValidPolyRef(ref DtPolyRef) bool {
	_, _, status := mesh.GetTileAndPolyByRef(ref)
	return status.DtStatusSucceed()
}

// AddTile loads data into a free slot and links it with its neighbours. Passing the ref the
// tile had before removal restores that ref, so paths computed earlier stay valid.
func (mesh *DtNavMesh) AddTile(data *NavMeshData, flags int32, lastRef DtTileRef) (DtTileRef, DtStatus) {
	if data == nil || data.Header == nil {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	header := data.Header
	if header.Magic != DT_NAVMESH_MAGIC {
		return 0, DT_FAILURE | DT_WRONG_MAGIC
	}
	if header.Version != DT_NAVMESH_VERSION {
		return 0, DT_FAILURE | DT_WRONG_VERSION
	}
	if int64(header.PolyCount) > int64(1)<<mesh.m_polyBits || !validTileData(data) {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	if mesh.GetTileAt(header.X, header.Y, header.Layer) != nil {
		return 0, DT_FAILURE | DT_ALREADY_OCCUPIED
	}

	var tile *DtMeshTile
	if lastRef == 0 {
		if mesh.m_nextFree != nil {
			tile = mesh.m_nextFree
			mesh.m_nextFree = tile.next
			tile.next = nil
		}
	} else {
		// Reuse the slot and salt encoded in lastRef.
		tileIndex := mesh.DecodePolyIdTile(DtPolyRef(lastRef))
		if int64(tileIndex) >= int64(mesh.m_maxTiles) {
			return 0, DT_FAILURE | DT_OUT_OF_MEMORY
		}
		target := &mesh.m_tiles[tileIndex]
		var prev *DtMeshTile
		tile = mesh.m_nextFree
		for tile != nil && tile != target {
			prev = tile
			tile = tile.next
		}
		if tile != target {
			return 0, DT_FAILURE | DT_OUT_OF_MEMORY
		}
		if prev == nil {
			mesh.m_nextFree = tile.next
		} else {
			prev.next = tile.next
		}
		tile.salt = mesh.DecodePolyIdSalt(DtPolyRef(lastRef))
		if tile.salt == 0 {
			tile.salt = 1
		}
	}

	if tile == nil {
		mesh.logger.Warn("navmesh tile pool exhausted",
			zap.Int32("x", header.X), zap.Int32("y", header.Y), zap.Int32("maxTiles", mesh.m_maxTiles))
		return 0, DT_FAILURE | DT_OUT_OF_MEMORY
	}

	h := common.ComputeTileHash(header.X, header.Y, mesh.m_tileLutMask)
	tile.next = mesh.m_posLookup[h]
	mesh.m_posLookup[h] = tile

	if len(data.Links) < int(header.MaxLinkCount) {
		data.Links = make([]DtLink, header.MaxLinkCount)
	}
	tile.Header = header
	tile.Verts = data.Verts
	tile.Polys = data.Polys
	tile.Links = data.Links[:header.MaxLinkCount]
	tile.DetailMeshes = data.DetailMeshes
	tile.DetailVerts = data.DetailVerts
	tile.DetailTris = data.DetailTris
	tile.BvTree = data.BvTree
	tile.OffMeshCons = data.OffMeshCons
	if header.BvNodeCount == 0 {
		tile.BvTree = nil
	}

	tile.linksFreeList = DT_NULL_LINK
	if header.MaxLinkCount > 0 {
		tile.linksFreeList = 0
		tile.Links[header.MaxLinkCount-1].Next = DT_NULL_LINK
		for i := int32(0); i < header.MaxLinkCount-1; i++ {
			tile.Links[i].Next = uint32(i + 1)
		}
	}
	for i := range tile.Polys {
		tile.Polys[i].FirstLink = DT_NULL_LINK
	}

	tile.data = data
	tile.Flags = flags

	mesh.connectIntLinks(tile)

	mesh.baseOffMeshLinks(tile)
	mesh.connectExtOffMeshLinks(tile, tile, -1)

	for _, nei := range mesh.GetTilesAt(header.X, header.Y) {
		if nei == tile {
			continue
		}
		mesh.connectExtLinks(tile, nei, -1)
		mesh.connectExtLinks(nei, tile, -1)
		mesh.connectExtOffMeshLinks(tile, nei, -1)
		mesh.connectExtOffMeshLinks(nei, tile, -1)
	}

	for i := 0; i < 8; i++ {
		for _, nei := range mesh.getNeighbourTilesAt(header.X, header.Y, i) {
			mesh.connectExtLinks(tile, nei, i)
			mesh.connectExtLinks(nei, tile, dtOppositeTile(i))
			mesh.connectExtOffMeshLinks(tile, nei, i)
			mesh.connectExtOffMeshLinks(nei, tile, dtOppositeTile(i))
		}
	}

	ref := mesh.GetTileRef(tile)
	mesh.logger.Debug("navmesh tile added",
		zap.Uint64("tileRef", uint64(ref)),
		zap.Int32("x", header.X), zap.Int32("y", header.Y), zap.Int32("layer", header.Layer),
		zap.Int32("polys", header.PolyCount))
	return ref, DT_SUCCESS
}

// validTileData checks that the arrays are large enough for the counts in the header.
func validTileData(data *NavMeshData) bool {
	h := data.Header
	if h.PolyCount < 0 || h.VertCount < 0 || h.MaxLinkCount < 0 || h.BvNodeCount < 0 ||
		h.OffMeshConCount < 0 || h.OffMeshBase < 0 || h.OffMeshBase+h.OffMeshConCount > h.PolyCount {
		return false
	}
	return len(data.Polys) >= int(h.PolyCount) &&
		len(data.Verts) >= int(h.VertCount)*3 &&
		len(data.DetailMeshes) >= int(h.DetailMeshCount) &&
		len(data.DetailVerts) >= int(h.DetailVertCount)*3 &&
		len(data.DetailTris) >= int(h.DetailTriCount)*4 &&
		len(data.BvTree) >= int(h.BvNodeCount) &&
		len(data.OffMeshCons) >= int(h.OffMeshConCount)
}

// RemoveTile unlinks the tile and bumps its salt so older refs go stale. The tile data is
// handed back for reuse with AddTile.
func (mesh *DtNavMesh) RemoveTile(ref DtTileRef) (*NavMeshData, DtStatus) {
	if ref == 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tileIndex := mesh.DecodePolyIdTile(DtPolyRef(ref))
	tileSalt := mesh.DecodePolyIdSalt(DtPolyRef(ref))
	if int64(tileIndex) >= int64(mesh.m_maxTiles) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tile := &mesh.m_tiles[tileIndex]
	if tile.salt != tileSalt || tile.Header == nil {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	h := common.ComputeTileHash(tile.Header.X, tile.Header.Y, mesh.m_tileLutMask)
	var prev *DtMeshTile
	cur := mesh.m_posLookup[h]
	for cur != nil {
		if cur == tile {
			if prev != nil {
				prev.next = cur.next
			} else {
				mesh.m_posLookup[h] = cur.next
			}
			break
		}
		prev = cur
		cur = cur.next
	}

	for _, nei := range mesh.GetTilesAt(tile.Header.X, tile.Header.Y) {
		if nei == tile {
			continue
		}
		mesh.unconnectLinks(nei, tile)
	}
	for i := 0; i < 8; i++ {
		for _, nei := range mesh.getNeighbourTilesAt(tile.Header.X, tile.Header.Y, i) {
			mesh.unconnectLinks(nei, tile)
		}
	}

	data := tile.data
	x, y, layer := tile.Header.X, tile.Header.Y, tile.Header.Layer

	tile.data = nil
	tile.Flags = 0
	tile.Header = nil
	tile.Polys = nil
	tile.Verts = nil
	tile.Links = nil
	tile.DetailMeshes = nil
	tile.DetailVerts = nil
	tile.DetailTris = nil
	tile.BvTree = nil
	tile.OffMeshCons = nil
	tile.linksFreeList = DT_NULL_LINK

	// Salt 0 is reserved.
	tile.salt = (tile.salt + 1) & uint32(uint64(1)<<mesh.m_saltBits-1)
	if tile.salt == 0 {
		tile.salt++
	}

	tile.next = mesh.m_nextFree
	mesh.m_nextFree = tile

	mesh.logger.Debug("navmesh tile removed",
		zap.Uint64("tileRef", uint64(ref)),
		zap.Int32("x", x), zap.Int32("y", y), zap.Int32("layer", layer))
	return data, DT_SUCCESS
}
