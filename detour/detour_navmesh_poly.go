package detour

import (
	"math"

	"github.com/gorustyt/gonavquery/common"
)

// visitPolygonsInTile calls fn for every ground polygon of tile whose bounds overlap
// [qmin, qmax]. The BV tree is used when the tile has one. Iteration stops when fn returns false.
func (mesh *DtNavMesh) visitPolygonsInTile(tile *DtMeshTile, qmin, qmax common.Vec3, fn func(ref DtPolyRef, poly *DtPoly) bool) {
	base := mesh.GetPolyRefBase(tile)
	if len(tile.BvTree) > 0 {
		tbmin := tile.Header.Bmin
		tbmax := tile.Header.Bmax
		qfac := tile.Header.BvQuantFactor

		var bmin, bmax [3]uint16
		minx := common.Clamp(qmin[0], tbmin[0], tbmax[0]) - tbmin[0]
		miny := common.Clamp(qmin[1], tbmin[1], tbmax[1]) - tbmin[1]
		minz := common.Clamp(qmin[2], tbmin[2], tbmax[2]) - tbmin[2]
		maxx := common.Clamp(qmax[0], tbmin[0], tbmax[0]) - tbmin[0]
		maxy := common.Clamp(qmax[1], tbmin[1], tbmax[1]) - tbmin[1]
		maxz := common.Clamp(qmax[2], tbmin[2], tbmax[2]) - tbmin[2]
		bmin[0] = uint16(qfac*minx) & 0xfffe
		bmin[1] = uint16(qfac*miny) & 0xfffe
		bmin[2] = uint16(qfac*minz) & 0xfffe
		bmax[0] = uint16(qfac*maxx+1) | 1
		bmax[1] = uint16(qfac*maxy+1) | 1
		bmax[2] = uint16(qfac*maxz+1) | 1

		end := int(tile.Header.BvNodeCount)
		for node := 0; node < end; {
			n := &tile.BvTree[node]
			overlap := common.OverlapQuantBounds(bmin, bmax, n.Bmin, n.Bmax)
			isLeafNode := n.I >= 0
			if isLeafNode && overlap {
				if !fn(base|DtPolyRef(n.I), &tile.Polys[n.I]) {
					return
				}
			}
			if overlap || isLeafNode {
				node++
			} else {
				node += int(-n.I)
			}
		}
		return
	}

	for i := range tile.Polys {
		p := &tile.Polys[i]
		if p.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}
		bmin := tile.GetVert(p.Verts[0])
		bmax := bmin
		for j := 1; j < int(p.VertCount); j++ {
			v := tile.GetVert(p.Verts[j])
			bmin = common.Vmin(bmin, v)
			bmax = common.Vmax(bmax, v)
		}
		if common.OverlapBounds(qmin, qmax, bmin, bmax) {
			if !fn(base|DtPolyRef(i), p) {
				return
			}
		}
	}
}

// QueryPolygonsInTile returns up to maxPolys ground polygons of tile whose bounds overlap
// [qmin, qmax], using the BV tree when the tile has one.
func (mesh *DtNavMesh) QueryPolygonsInTile(tile *DtMeshTile, qmin, qmax common.Vec3, maxPolys int) []DtPolyRef {
	var polys []DtPolyRef
	if tile == nil || tile.Header == nil || maxPolys <= 0 {
		return nil
	}
	mesh.visitPolygonsInTile(tile, qmin, qmax, func(ref DtPolyRef, _ *DtPoly) bool {
		polys = append(polys, ref)
		return len(polys) < maxPolys
	})
	return polys
}

// FindNearestPolyInTile returns 0 when no polygon of tile overlaps the box.
func (mesh *DtNavMesh) FindNearestPolyInTile(tile *DtMeshTile, center, halfExtents common.Vec3) (DtPolyRef, common.Vec3) {
	bmin := center.Sub(halfExtents)
	bmax := center.Add(halfExtents)

	polys := mesh.QueryPolygonsInTile(tile, bmin, bmax, 128)

	var nearest DtPolyRef
	var nearestPt common.Vec3
	nearestDistanceSqr := float32(math.MaxFloat32)
	for _, ref := range polys {
		closestPtPoly, posOverPoly := mesh.ClosestPointOnPoly(ref, center)

		// Over a polygon, only height beyond walkable climb counts.
		var d float32
		diff := center.Sub(closestPtPoly)
		if posOverPoly {
			d = common.Abs(diff[1]) - tile.Header.WalkableClimb
			if d > 0 {
				d = d * d
			} else {
				d = 0
			}
		} else {
			d = common.VlenSqr(diff)
		}
		if d < nearestDistanceSqr {
			nearestPt = closestPtPoly
			nearestDistanceSqr = d
			nearest = ref
		}
	}
	return nearest, nearestPt
}

// ClosestPointOnPoly snaps pos onto the detail surface of ref. posOverPoly reports whether
// pos was inside the polygon on the xz plane.
func (mesh *DtNavMesh) ClosestPointOnPoly(ref DtPolyRef, pos common.Vec3) (closest common.Vec3, posOverPoly bool) {
	tile, poly := mesh.GetTileAndPolyByRefUnsafe(ref)
	ip := int(mesh.DecodePolyIdPoly(ref))
	closest = pos
	if h, ok := mesh.getPolyHeight(tile, poly, ip, pos); ok {
		closest[1] = h
		return closest, true
	}

	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		v0 := tile.GetVert(poly.Verts[0])
		v1 := tile.GetVert(poly.Verts[1])
		_, t := common.DistancePtSegSqr2D(pos, v0, v1)
		return common.Vlerp(v0, v1, t), false
	}

	return mesh.closestPointOnDetailEdges(tile, poly, ip, pos, true), false
}

// GetPolyHeight samples the detail mesh of ref at pos. It reports false when pos is off the
// polygon or ref is an off-mesh connection.
func (mesh *DtNavMesh) GetPolyHeight(ref DtPolyRef, pos common.Vec3) (float32, bool) {
	tile, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return 0, false
	}
	return mesh.getPolyHeight(tile, poly, int(mesh.DecodePolyIdPoly(ref)), pos)
}

func (mesh *DtNavMesh) getDetailTriVerts(tile *DtMeshTile, poly *DtPoly, pd *DtPolyDetail, tri int) (v [3]common.Vec3, flags uint8) {
	t := tile.DetailTris[(int(pd.TriBase)+tri)*4:]
	for k := 0; k < 3; k++ {
		if t[k] < poly.VertCount {
			v[k] = tile.GetVert(poly.Verts[t[k]])
		} else {
			v[k] = common.GetVert3(tile.DetailVerts, int(pd.VertBase)+int(t[k]-poly.VertCount))
		}
	}
	return v, t[3]
}

func (mesh *DtNavMesh) getPolyHeight(tile *DtMeshTile, poly *DtPoly, ip int, pos common.Vec3) (float32, bool) {
	// Off-mesh polygons have no surface.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		return 0, false
	}

	var buf [DT_VERTS_PER_POLYGON]common.Vec3
	verts := tile.polyVerts(poly, &buf)
	if !common.PointInPolygon(pos, verts) {
		return 0, false
	}

	if ip < len(tile.DetailMeshes) {
		pd := &tile.DetailMeshes[ip]
		for j := 0; j < int(pd.TriCount); j++ {
			v, _ := mesh.getDetailTriVerts(tile, poly, pd, j)
			if h, ok := common.ClosestHeightPointTriangle(pos, v[0], v[1], v[2]); ok {
				return h, true
			}
		}
	}

	// Degenerate triangles: fall back to the closest detail edge.
	closest := mesh.closestPointOnDetailEdges(tile, poly, ip, pos, false)
	return closest[1], true
}

func (mesh *DtNavMesh) closestPointOnDetailEdges(tile *DtMeshTile, poly *DtPoly, ip int, pos common.Vec3, onlyBoundary bool) common.Vec3 {
	const anyBoundaryEdge = DT_DETAIL_EDGE_BOUNDARY<<0 | DT_DETAIL_EDGE_BOUNDARY<<2 | DT_DETAIL_EDGE_BOUNDARY<<4
	dmin := float32(math.MaxFloat32)
	var tmin float32
	var pmin, pmax common.Vec3
	found := false

	if ip < len(tile.DetailMeshes) {
		pd := &tile.DetailMeshes[ip]
		for i := 0; i < int(pd.TriCount); i++ {
			v, triFlags := mesh.getDetailTriVerts(tile, poly, pd, i)
			if onlyBoundary && triFlags&anyBoundaryEdge == 0 {
				continue
			}
			tris := tile.DetailTris[(int(pd.TriBase)+i)*4:]
			for k, j := 0, 2; k < 3; j, k = k, k+1 {
				if DtGetDetailTriEdgeFlags(triFlags, j)&DT_DETAIL_EDGE_BOUNDARY == 0 &&
					(onlyBoundary || tris[j] < tris[k]) {
					// Inner edges are seen from both sides; keep boundaries only.
					continue
				}
				d, t := common.DistancePtSegSqr2D(pos, v[j], v[k])
				if d < dmin {
					dmin = d
					tmin = t
					pmin = v[j]
					pmax = v[k]
					found = true
				}
			}
		}
	}

	if !found {
		// No detail triangles, fall back to the polygon outline.
		nv := int(poly.VertCount)
		for j, k := nv-1, 0; k < nv; j, k = k, k+1 {
			vj := tile.GetVert(poly.Verts[j])
			vk := tile.GetVert(poly.Verts[k])
			d, t := common.DistancePtSegSqr2D(pos, vj, vk)
			if d < dmin {
				dmin = d
				tmin = t
				pmin = vj
				pmax = vk
			}
		}
	}
	return common.Vlerp(pmin, pmax, tmin)
}

// GetOffMeshConnectionPolyEndPoints orders the connection's end points for travel
// arriving from prevRef.
func (mesh *DtNavMesh) GetOffMeshConnectionPolyEndPoints(prevRef, polyRef DtPolyRef) (startPos, endPos common.Vec3, status DtStatus) {
	if polyRef == 0 {
		return startPos, endPos, DT_FAILURE
	}

	tile, poly, status := mesh.GetTileAndPolyByRef(polyRef)
	if status.DtStatusFailed() {
		return startPos, endPos, DT_FAILURE | DT_INVALID_PARAM
	}

	if poly.GetType() != DT_POLYTYPE_OFFMESH_CONNECTION {
		return startPos, endPos, DT_FAILURE
	}

	idx0, idx1 := 0, 1

	for i := poly.FirstLink; i != DT_NULL_LINK; i = tile.Links[i].Next {
		if tile.Links[i].Edge == 0 {
			if tile.Links[i].Ref != prevRef {
				idx0, idx1 = 1, 0
			}
			break
		}
	}
	return tile.GetVert(poly.Verts[idx0]), tile.GetVert(poly.Verts[idx1]), DT_SUCCESS
}

func (mesh *DtNavMesh) GetOffMeshConnectionByRef(ref DtPolyRef) *DtOffMeshConnection {
	tile, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return nil
	}
	if poly.GetType() != DT_POLYTYPE_OFFMESH_CONNECTION {
		return nil
	}
	idx := int32(mesh.DecodePolyIdPoly(ref)) - tile.Header.OffMeshBase
	if idx < 0 || idx >= int32(len(tile.OffMeshCons)) {
		return nil
	}
	return &tile.OffMeshCons[idx]
}

// The poly setters change query results but never invalidate refs.

func (mesh *DtNavMesh) SetPolyFlags(ref DtPolyRef, flags uint16) DtStatus {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	poly.Flags = flags
	return DT_SUCCESS
}

func (mesh *DtNavMesh) GetPolyFlags(ref DtPolyRef) (uint16, DtStatus) {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	return poly.Flags, DT_SUCCESS
}

func (mesh *DtNavMesh) SetPolyArea(ref DtPolyRef, area uint8) DtStatus {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	if area >= DT_MAX_AREAS {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	poly.SetArea(area)
	return DT_SUCCESS
}

func (mesh *DtNavMesh) GetPolyArea(ref DtPolyRef) (uint8, DtStatus) {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	return poly.GetArea(), DT_SUCCESS
}
