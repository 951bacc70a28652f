package detour

import (
	"math"

	"github.com/gorustyt/gonavquery/common"
)

// DtRaycastHit is the result of Raycast. T is math.MaxFloat32 when the ray reached its end,
// otherwise the hit point is startPos + (endPos-startPos)*T.
type DtRaycastHit struct {
	T            float32
	HitNormal    common.Vec3
	HitEdgeIndex int // exit edge of the last polygon, -1 when the ray ends inside it
	Path         []DtPolyRef
	PathCost     float32
}

// Raycast walks the mesh from startPos toward endPos on the xz plane, recording the
// polygons it crosses until it meets a wall or reaches endPos. The y of endPos is ignored.
// With DT_RAYCAST_USE_COSTS the hit carries the filter cost of the walk; prevRef is the
// polygon before startRef for that cost. Off-mesh links are never followed. When more than
// maxPath polygons are crossed the path is cut and DT_BUFFER_TOO_SMALL is set.
func (q *DtNavMeshQuery) Raycast(startRef DtPolyRef, startPos, endPos common.Vec3,
	filter DtQueryFilter, options int32, prevRef DtPolyRef, maxPath int) (*DtRaycastHit, DtStatus) {
	if !q.m_nav.IsValidPolyRef(startRef) ||
		!common.Visfinite(startPos) || !common.Visfinite(endPos) ||
		filter == nil || maxPath < 0 ||
		(prevRef != 0 && !q.m_nav.IsValidPolyRef(prevRef)) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	hit := &DtRaycastHit{}
	curPos := startPos
	dir := endPos.Sub(startPos)

	status := DT_SUCCESS

	curRef := startRef
	tile, poly := q.m_nav.GetTileAndPolyByRefUnsafe(curRef)
	nextTile, nextPoly := tile, poly
	prevTile, prevPoly := tile, poly
	if prevRef != 0 {
		prevTile, prevPoly = q.m_nav.GetTileAndPolyByRefUnsafe(prevRef)
	}

	var buf [DT_VERTS_PER_POLYGON]common.Vec3
	for curRef != 0 {
		verts := tile.polyVerts(poly, &buf)
		nv := len(verts)

		seg, ok := common.IntersectSegmentPoly2D(startPos, endPos, verts)
		if !ok {
			// Ray misses the polygon.
			return hit, status
		}

		hit.HitEdgeIndex = seg.SegMax

		if seg.Tmax > hit.T {
			hit.T = seg.Tmax
		}

		if len(hit.Path) < maxPath {
			hit.Path = append(hit.Path, curRef)
		} else {
			status |= DT_BUFFER_TOO_SMALL
		}

		if seg.SegMax == -1 {
			hit.T = math.MaxFloat32

			if options&DT_RAYCAST_USE_COSTS != 0 {
				hit.PathCost += filter.GetCost(curPos, endPos,
					prevRef, prevTile, prevPoly,
					curRef, tile, poly,
					curRef, tile, poly)
			}
			return hit, status
		}

		var nextRef DtPolyRef
		for i := poly.FirstLink; i != DT_NULL_LINK; i = tile.Links[i].Next {
			link := &tile.Links[i]

			if int(link.Edge) != seg.SegMax {
				continue
			}

			nextTile, nextPoly = q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)

			if nextPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
				continue
			}

			if !filter.PassFilter(link.Ref, nextTile, nextPoly) {
				continue
			}

			if link.Side == 0xff {
				nextRef = link.Ref
				break
			}

			if link.Bmin == 0 && link.Bmax == 255 {
				nextRef = link.Ref
				break
			}

			// Portal covers part of the edge only.
			left := verts[link.Edge]
			right := verts[(int(link.Edge)+1)%nv]

			const s = 1.0 / 255.0
			if link.Side == 0 || link.Side == 4 {
				lmin := left[2] + (right[2]-left[2])*(float32(link.Bmin)*s)
				lmax := left[2] + (right[2]-left[2])*(float32(link.Bmax)*s)
				if lmin > lmax {
					lmin, lmax = lmax, lmin
				}

				z := startPos[2] + (endPos[2]-startPos[2])*seg.Tmax
				if z >= lmin && z <= lmax {
					nextRef = link.Ref
					break
				}
			} else if link.Side == 2 || link.Side == 6 {
				lmin := left[0] + (right[0]-left[0])*(float32(link.Bmin)*s)
				lmax := left[0] + (right[0]-left[0])*(float32(link.Bmax)*s)
				if lmin > lmax {
					lmin, lmax = lmax, lmin
				}

				x := startPos[0] + (endPos[0]-startPos[0])*seg.Tmax
				if x >= lmin && x <= lmax {
					nextRef = link.Ref
					break
				}
			}
		}

		if options&DT_RAYCAST_USE_COSTS != 0 {
			// Exit point of the last polygon, with y from the mesh.
			lastPos := curPos
			curPos = common.Vmad(startPos, dir, hit.T)
			e1 := verts[seg.SegMax]
			e2 := verts[(seg.SegMax+1)%nv]
			eDir := e2.Sub(e1)
			diff := curPos.Sub(e1)
			var s float32
			if common.Sqr(eDir[0]) > common.Sqr(eDir[2]) {
				s = diff[0] / eDir[0]
			} else {
				s = diff[2] / eDir[2]
			}
			curPos[1] = e1[1] + eDir[1]*s

			hit.PathCost += filter.GetCost(lastPos, curPos,
				prevRef, prevTile, prevPoly,
				curRef, tile, poly,
				nextRef, nextTile, nextPoly)
		}

		if nextRef == 0 {
			a := seg.SegMax
			b := a + 1
			if b >= nv {
				b = 0
			}
			va := verts[a]
			vb := verts[b]
			dx := vb[0] - va[0]
			dz := vb[2] - va[2]
			hit.HitNormal = common.Vnormalize(common.Vec3{dz, 0, -dx})
			return hit, status
		}

		prevRef = curRef
		curRef = nextRef
		prevTile = tile
		tile = nextTile
		prevPoly = poly
		poly = nextPoly
	}
	return hit, status
}
