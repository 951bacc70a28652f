package detour

import (
	"github.com/gorustyt/gonavquery/common/rw"
)

// tile state layout: magic, version, tile ref, poly count, then flags and area per poly.
const tileStateHeaderSize = 4 + 4 + 8 + 4

func (mesh *DtNavMesh) GetTileStateSize(tile *DtMeshTile) int {
	if tile == nil || tile.Header == nil {
		return 0
	}
	return tileStateHeaderSize + int(tile.Header.PolyCount)*3
}

// StoreTileState snapshots the flags and area of every polygon of tile. The blob is bound
// to the tile's current ref.
func (mesh *DtNavMesh) StoreTileState(tile *DtMeshTile) ([]byte, DtStatus) {
	if tile == nil || tile.Header == nil {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	w := rw.NewBinWriter()
	w.WriteInt32(DT_NAVMESH_STATE_MAGIC)
	w.WriteInt32(DT_NAVMESH_STATE_VERSION)
	w.WriteUInt64(uint64(mesh.GetTileRef(tile)))
	w.WriteInt32(tile.Header.PolyCount)
	for i := 0; i < int(tile.Header.PolyCount); i++ {
		p := &tile.Polys[i]
		w.WriteUInt16(p.Flags)
		w.WriteUInt8(p.GetArea())
	}
	return w.GetWriteBytes(), DT_SUCCESS
}

// RestoreTileState applies a StoreTileState blob taken from the same tile.
func (mesh *DtNavMesh) RestoreTileState(tile *DtMeshTile, data []byte) DtStatus {
	if tile == nil || tile.Header == nil {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	if len(data) < mesh.GetTileStateSize(tile) {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	r := rw.NewBinReader(data)
	if r.ReadInt32() != DT_NAVMESH_STATE_MAGIC {
		return DT_FAILURE | DT_WRONG_MAGIC
	}
	if r.ReadInt32() != DT_NAVMESH_STATE_VERSION {
		return DT_FAILURE | DT_WRONG_VERSION
	}
	if DtTileRef(r.ReadUInt64()) != mesh.GetTileRef(tile) {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	if r.ReadInt32() != tile.Header.PolyCount {
		return DT_FAILURE | DT_INVALID_PARAM
	}

	flags := make([]uint16, tile.Header.PolyCount)
	areas := make([]uint8, tile.Header.PolyCount)
	for i := range flags {
		flags[i] = r.ReadUInt16()
		areas[i] = r.ReadUInt8()
	}
	if r.Err() != nil {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	for i := range flags {
		p := &tile.Polys[i]
		p.Flags = flags[i]
		p.SetArea(areas[i])
	}
	return DT_SUCCESS
}
