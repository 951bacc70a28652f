package detour

import (
	"math"
	"math/rand"

	"github.com/gorustyt/gonavquery/common"
)

// DtRandFunc returns a random value in [0, 1).
type DtRandFunc func() float32

func randOrDefault(frand DtRandFunc) DtRandFunc {
	if frand == nil {
		return rand.Float32
	}
	return frand
}

// MoveAlongSurface slides from startPos toward endPos over the mesh, stopping at walls.
// It is meant for short per-frame moves: the search visits at most maxVisitedSize polygons.
// The result is the reached point on the xz plane; its y is not projected, so follow up
// with GetPolyHeight when needed.
func (q *DtNavMeshQuery) MoveAlongSurface(startRef DtPolyRef, startPos, endPos common.Vec3,
	filter DtQueryFilter, maxVisitedSize int) (resultPos common.Vec3, visited []DtPolyRef, status DtStatus) {
	if !q.m_nav.IsValidPolyRef(startRef) ||
		!common.Visfinite(startPos) || !common.Visfinite(endPos) ||
		filter == nil || maxVisitedSize <= 0 {
		return resultPos, nil, DT_FAILURE | DT_INVALID_PARAM
	}

	status = DT_SUCCESS

	const MAX_STACK = 48
	stack := make([]*DtNode, 0, MAX_STACK)

	q.m_tinyNodePool.Clear()

	startNode := q.m_tinyNodePool.GetNode(startRef, 0)
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_CLOSED
	stack = append(stack, startNode)

	bestPos := startPos
	bestDist := float32(math.MaxFloat32)
	var bestNode *DtNode

	searchPos := common.Vlerp(startPos, endPos, 0.5)
	searchRadSqr := common.Sqr(common.Vdist(startPos, endPos)/2.0 + 0.001)

	var buf [DT_VERTS_PER_POLYGON]common.Vec3

	for len(stack) > 0 {
		curNode := stack[0]
		stack = append(stack[:0], stack[1:]...)

		curRef := curNode.Id
		curTile, curPoly := q.m_nav.GetTileAndPolyByRefUnsafe(curRef)

		verts := curTile.polyVerts(curPoly, &buf)
		nverts := len(verts)

		if common.PointInPolygon(endPos, verts) {
			bestNode = curNode
			bestPos = endPos
			break
		}

		for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
			const MAX_NEIS = 8
			neis := q.passableEdgeNeighbours(curTile, curPoly, j, filter, MAX_NEIS)

			vj := verts[j]
			vi := verts[i]
			if len(neis) == 0 {
				distSqr, tseg := common.DistancePtSegSqr2D(endPos, vj, vi)
				if distSqr < bestDist {
					bestPos = common.Vlerp(vj, vi, tseg)
					bestDist = distSqr
					bestNode = curNode
				}
				continue
			}

			for _, nei := range neis {
				neighbourNode := q.m_tinyNodePool.GetNode(nei, 0)
				if neighbourNode == nil {
					continue
				}
				if neighbourNode.Flags&DT_NODE_CLOSED != 0 {
					continue
				}

				// Portal out of the search radius.
				if distSqr, _ := common.DistancePtSegSqr2D(searchPos, vj, vi); distSqr > searchRadSqr {
					continue
				}

				if len(stack) < MAX_STACK {
					neighbourNode.Pidx = q.m_tinyNodePool.GetNodeIdx(curNode)
					neighbourNode.Flags |= DT_NODE_CLOSED
					stack = append(stack, neighbourNode)
				}
			}
		}
	}

	if bestNode != nil {
		var prev *DtNode
		node := bestNode
		for node != nil {
			next := q.m_tinyNodePool.GetNodeAtIdx(node.Pidx)
			node.Pidx = q.m_tinyNodePool.GetNodeIdx(prev)
			prev = node
			node = next
		}

		for node = prev; node != nil; node = q.m_tinyNodePool.GetNodeAtIdx(node.Pidx) {
			if len(visited) >= maxVisitedSize {
				status |= DT_BUFFER_TOO_SMALL
				break
			}
			visited = append(visited, node.Id)
		}
	}
	return bestPos, visited, status
}

// passableEdgeNeighbours lists the polygons reachable through edge j of poly that pass filter.
func (q *DtNavMeshQuery) passableEdgeNeighbours(tile *DtMeshTile, poly *DtPoly, j int, filter DtQueryFilter, maxNeis int) []DtPolyRef {
	var neis []DtPolyRef
	if poly.Neis[j]&DT_EXT_LINK != 0 {
		for k := poly.FirstLink; k != DT_NULL_LINK; k = tile.Links[k].Next {
			link := &tile.Links[k]
			if int(link.Edge) != j || link.Ref == 0 {
				continue
			}
			neiTile, neiPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)
			if filter.PassFilter(link.Ref, neiTile, neiPoly) && len(neis) < maxNeis {
				neis = append(neis, link.Ref)
			}
		}
	} else if poly.Neis[j] != 0 {
		idx := uint32(poly.Neis[j] - 1)
		ref := q.m_nav.GetPolyRefBase(tile) | DtPolyRef(idx)
		if filter.PassFilter(ref, tile, &tile.Polys[idx]) {
			neis = append(neis, ref)
		}
	}
	return neis
}

// FindDistanceToWall runs a Dijkstra search out to maxRadius and returns the nearest wall
// point with the direction from it to centerPos. With no wall in range it returns
// maxRadius, centerPos and a zero normal. The normal is unreliable for tiny distances.
func (q *DtNavMeshQuery) FindDistanceToWall(startRef DtPolyRef, centerPos common.Vec3, maxRadius float32,
	filter DtQueryFilter) (hitDist float32, hitPos, hitNormal common.Vec3, status DtStatus) {
	if !q.m_nav.IsValidPolyRef(startRef) || !common.Visfinite(centerPos) ||
		maxRadius < 0 || !common.IsFinite(maxRadius) || filter == nil {
		return 0, hitPos, hitNormal, DT_FAILURE | DT_INVALID_PARAM
	}

	q.m_nodePool.Clear()
	q.m_openList.Clear()

	startNode := q.m_nodePool.GetNode(startRef, 0)
	startNode.Pos = centerPos
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_OPEN
	q.m_openList.Push(startNode)

	radiusSqr := common.Sqr(maxRadius)
	hitPos = centerPos
	hitWall := false

	status = DT_SUCCESS

	for !q.m_openList.Empty() {
		bestNode := q.m_openList.Pop()
		bestNode.Flags &= ^uint8(DT_NODE_OPEN)
		bestNode.Flags |= DT_NODE_CLOSED

		bestRef := bestNode.Id
		bestTile, bestPoly := q.m_nav.GetTileAndPolyByRefUnsafe(bestRef)

		var parentRef DtPolyRef
		if bestNode.Pidx != 0 {
			parentRef = q.m_nodePool.GetNodeAtIdx(bestNode.Pidx).Id
		}

		nv := int(bestPoly.VertCount)
		for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
			if bestPoly.Neis[j]&DT_EXT_LINK != 0 {
				solid := true
				for k := bestPoly.FirstLink; k != DT_NULL_LINK; k = bestTile.Links[k].Next {
					link := &bestTile.Links[k]
					if int(link.Edge) == j {
						if link.Ref != 0 {
							neiTile, neiPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)
							if filter.PassFilter(link.Ref, neiTile, neiPoly) {
								solid = false
							}
						}
						break
					}
				}
				if !solid {
					continue
				}
			} else if bestPoly.Neis[j] != 0 {
				idx := uint32(bestPoly.Neis[j] - 1)
				ref := q.m_nav.GetPolyRefBase(bestTile) | DtPolyRef(idx)
				if filter.PassFilter(ref, bestTile, &bestTile.Polys[idx]) {
					continue
				}
			}

			vj := bestTile.GetVert(bestPoly.Verts[j])
			vi := bestTile.GetVert(bestPoly.Verts[i])
			distSqr, tseg := common.DistancePtSegSqr2D(centerPos, vj, vi)

			if distSqr > radiusSqr {
				continue
			}

			radiusSqr = distSqr
			hitPos = common.Vlerp(vj, vi, tseg)
			hitWall = true
		}

		for i := bestPoly.FirstLink; i != DT_NULL_LINK; i = bestTile.Links[i].Next {
			link := &bestTile.Links[i]
			neighbourRef := link.Ref
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)

			if neighbourPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
				continue
			}

			va := bestTile.GetVert(bestPoly.Verts[link.Edge])
			vb := bestTile.GetVert(bestPoly.Verts[(int(link.Edge)+1)%nv])
			if distSqr, _ := common.DistancePtSegSqr2D(centerPos, va, vb); distSqr > radiusSqr {
				continue
			}

			if !filter.PassFilter(neighbourRef, neighbourTile, neighbourPoly) {
				continue
			}

			neighbourNode := q.m_nodePool.GetNode(neighbourRef, 0)
			if neighbourNode == nil {
				status |= DT_OUT_OF_NODES
				continue
			}

			if neighbourNode.Flags&DT_NODE_CLOSED != 0 {
				continue
			}

			// Cost
			if neighbourNode.Flags == 0 {
				neighbourNode.Pos, _ = q.getEdgeMidPointTile(bestRef, bestPoly, bestTile,
					neighbourRef, neighbourPoly, neighbourTile)
			}

			total := bestNode.Total + common.Vdist(bestNode.Pos, neighbourNode.Pos)

			if neighbourNode.Flags&DT_NODE_OPEN != 0 && total >= neighbourNode.Total {
				continue
			}

			neighbourNode.Id = neighbourRef
			neighbourNode.Flags &= ^uint8(DT_NODE_CLOSED)
			neighbourNode.Pidx = q.m_nodePool.GetNodeIdx(bestNode)
			neighbourNode.Total = total

			if neighbourNode.Flags&DT_NODE_OPEN != 0 {
				q.m_openList.Modify(neighbourNode)
			} else {
				neighbourNode.Flags |= DT_NODE_OPEN
				q.m_openList.Push(neighbourNode)
			}
		}
	}

	if !hitWall {
		return maxRadius, centerPos, common.Vec3{}, status
	}

	hitNormal = common.Vnormalize(centerPos.Sub(hitPos))
	return common.Sqrtf(radiusSqr), hitPos, hitNormal, status
}

// DtWallSegment is one edge piece returned by GetPolyWallSegments.
type DtWallSegment struct {
	Start, End common.Vec3
	Ref        DtPolyRef // The neighbour behind a portal segment, 0 for walls.
}

type dtSegInterval struct {
	ref        DtPolyRef
	tmin, tmax int16
}

func insertInterval(ints []dtSegInterval, maxInts int, tmin, tmax int16, ref DtPolyRef) []dtSegInterval {
	if len(ints)+1 > maxInts {
		return ints
	}
	idx := 0
	for idx < len(ints) {
		if tmax <= ints[idx].tmin {
			break
		}
		idx++
	}
	ints = append(ints, dtSegInterval{})
	copy(ints[idx+1:], ints[idx:])
	// Store
	ints[idx] = dtSegInterval{ref: ref, tmin: tmin, tmax: tmax}
	return ints
}

// GetPolyWallSegments lists the edges of ref. Edges to impassable or missing neighbours
// are walls; with storePortals the passable parts are returned too, tagged with the
// neighbour ref and split where a portal covers only part of an edge.
func (q *DtNavMeshQuery) GetPolyWallSegments(ref DtPolyRef, filter DtQueryFilter, storePortals bool,
	maxSegments int) ([]DtWallSegment, DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	if filter == nil || maxSegments < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	const MAX_INTERVAL = 16
	ints := make([]dtSegInterval, 0, MAX_INTERVAL)

	status = DT_SUCCESS
	var segs []DtWallSegment
	push := func(seg DtWallSegment) {
		if len(segs) < maxSegments {
			segs = append(segs, seg)
		} else {
			status |= DT_BUFFER_TOO_SMALL
		}
	}

	nv := int(poly.VertCount)
	for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
		vj := tile.GetVert(poly.Verts[j])
		vi := tile.GetVert(poly.Verts[i])

		ints = ints[:0]
		if poly.Neis[j]&DT_EXT_LINK != 0 {
			for k := poly.FirstLink; k != DT_NULL_LINK; k = tile.Links[k].Next {
				link := &tile.Links[k]
				if int(link.Edge) != j || link.Ref == 0 {
					continue
				}
				neiTile, neiPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)
				if filter.PassFilter(link.Ref, neiTile, neiPoly) {
					ints = insertInterval(ints, MAX_INTERVAL, int16(link.Bmin), int16(link.Bmax), link.Ref)
				}
			}
		} else {
			var neiRef DtPolyRef
			if poly.Neis[j] != 0 {
				idx := uint32(poly.Neis[j] - 1)
				neiRef = q.m_nav.GetPolyRefBase(tile) | DtPolyRef(idx)
				if !filter.PassFilter(neiRef, tile, &tile.Polys[idx]) {
					neiRef = 0
				}
			}

			if neiRef != 0 && !storePortals {
				continue
			}
			push(DtWallSegment{Start: vj, End: vi, Ref: neiRef})
			continue
		}

		ints = insertInterval(ints, MAX_INTERVAL, -1, 0, 0)
		ints = insertInterval(ints, MAX_INTERVAL, 255, 256, 0)

		for k := 1; k < len(ints); k++ {
			if storePortals && ints[k].ref != 0 {
				tmin := float32(ints[k].tmin) / 255.0
				tmax := float32(ints[k].tmax) / 255.0
				push(DtWallSegment{Start: common.Vlerp(vj, vi, tmin), End: common.Vlerp(vj, vi, tmax), Ref: ints[k].ref})
			}

			imin := ints[k-1].tmax
			imax := ints[k].tmin
			if imin != imax {
				tmin := float32(imin) / 255.0
				tmax := float32(imax) / 255.0
				push(DtWallSegment{Start: common.Vlerp(vj, vi, tmin), End: common.Vlerp(vj, vi, tmax)})
			}
		}
	}
	return segs, status
}

// FindRandomPoint picks a tile by passable area, then a polygon within it by area, then a
// uniform point inside. frand returns values in [0, 1); nil uses math/rand.
func (q *DtNavMeshQuery) FindRandomPoint(filter DtQueryFilter, frand DtRandFunc) (randomRef DtPolyRef, randomPt common.Vec3, status DtStatus) {
	if filter == nil {
		return 0, randomPt, DT_FAILURE | DT_INVALID_PARAM
	}
	frand = randOrDefault(frand)

	// Randomly pick one tile weighted by its passable area, using reservoir sampling.
	var tile *DtMeshTile
	var tsum float32
	for i := 0; i < int(q.m_nav.GetMaxTiles()); i++ {
		t := q.m_nav.GetTile(i)
		if t == nil || t.Header == nil {
			continue
		}
		area := q.passableTileArea(t, filter)
		if area <= 0 {
			continue
		}
		tsum += area
		if frand()*tsum <= area {
			tile = t
		}
	}
	if tile == nil {
		return 0, randomPt, DT_FAILURE
	}

	var poly *DtPoly
	var polyRef DtPolyRef
	base := q.m_nav.GetPolyRefBase(tile)

	var areaSum float32
	for i := range tile.Polys {
		p := &tile.Polys[i]
		if p.GetType() != DT_POLYTYPE_GROUND {
			continue
		}
		ref := base | DtPolyRef(i)
		if !filter.PassFilter(ref, tile, p) {
			continue
		}

		polyArea := polyArea2D(tile, p)

		// Choose random polygon weighted by area, using reservoi sampling.
		areaSum += polyArea
		if frand()*areaSum <= polyArea {
			poly = p
			polyRef = ref
		}
	}
	if poly == nil {
		return 0, randomPt, DT_FAILURE
	}

	return q.randomPointInPoly(tile, poly, polyRef, frand)
}

func (q *DtNavMeshQuery) passableTileArea(tile *DtMeshTile, filter DtQueryFilter) float32 {
	base := q.m_nav.GetPolyRefBase(tile)
	var area float32
	for i := range tile.Polys {
		p := &tile.Polys[i]
		if p.GetType() != DT_POLYTYPE_GROUND || !filter.PassFilter(base|DtPolyRef(i), tile, p) {
			continue
		}
		area += polyArea2D(tile, p)
	}
	return area
}

func (q *DtNavMeshQuery) randomPointInPoly(tile *DtMeshTile, poly *DtPoly, ref DtPolyRef, frand DtRandFunc) (DtPolyRef, common.Vec3, DtStatus) {
	var buf [DT_VERTS_PER_POLYGON]common.Vec3
	verts := tile.polyVerts(poly, &buf)

	s := frand()
	t := frand()

	pt := common.RandomPointInConvexPoly(verts, s, t)

	h, status := q.GetPolyHeight(ref, pt)
	if status.DtStatusFailed() {
		return 0, pt, status
	}
	pt[1] = h
	return ref, pt, DT_SUCCESS
}

// FindRandomPointAroundCircle samples polygons reachable from startRef within maxRadius,
// weighted by area. The point may fall slightly outside the circle since whole polygons
// are sampled.
func (q *DtNavMeshQuery) FindRandomPointAroundCircle(startRef DtPolyRef, centerPos common.Vec3, maxRadius float32,
	filter DtQueryFilter, frand DtRandFunc) (randomRef DtPolyRef, randomPt common.Vec3, status DtStatus) {
	if !q.m_nav.IsValidPolyRef(startRef) || !common.Visfinite(centerPos) ||
		maxRadius < 0 || !common.IsFinite(maxRadius) || filter == nil {
		return 0, randomPt, DT_FAILURE | DT_INVALID_PARAM
	}
	frand = randOrDefault(frand)

	startTile, startPoly := q.m_nav.GetTileAndPolyByRefUnsafe(startRef)
	if !filter.PassFilter(startRef, startTile, startPoly) {
		return 0, randomPt, DT_FAILURE | DT_INVALID_PARAM
	}

	q.m_nodePool.Clear()
	q.m_openList.Clear()

	startNode := q.m_nodePool.GetNode(startRef, 0)
	startNode.Pos = centerPos
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_OPEN
	q.m_openList.Push(startNode)

	radiusSqr := common.Sqr(maxRadius)
	var areaSum float32

	var randomTile *DtMeshTile
	var randomPoly *DtPoly
	var randomPolyRef DtPolyRef

	for !q.m_openList.Empty() {
		bestNode := q.m_openList.Pop()
		bestNode.Flags &= ^uint8(DT_NODE_OPEN)
		bestNode.Flags |= DT_NODE_CLOSED

		bestRef := bestNode.Id
		bestTile, bestPoly := q.m_nav.GetTileAndPolyByRefUnsafe(bestRef)

		if bestPoly.GetType() == DT_POLYTYPE_GROUND {
			polyArea := polyArea2D(bestTile, bestPoly)
			// Choose random polygon weighted by area, using reservoi sampling.
			areaSum += polyArea
			if frand()*areaSum <= polyArea {
				randomTile = bestTile
				randomPoly = bestPoly
				randomPolyRef = bestRef
			}
		}

		var parentRef DtPolyRef
		if bestNode.Pidx != 0 {
			parentRef = q.m_nodePool.GetNodeAtIdx(bestNode.Pidx).Id
		}

		for i := bestPoly.FirstLink; i != DT_NULL_LINK; i = bestTile.Links[i].Next {
			neighbourRef := bestTile.Links[i].Ref
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)

			if !filter.PassFilter(neighbourRef, neighbourTile, neighbourPoly) {
				continue
			}

			va, vb, st := q.getPortalPointsTile(bestRef, bestPoly, bestTile, neighbourRef, neighbourPoly, neighbourTile)
			if st.DtStatusFailed() {
				continue
			}

			if distSqr, _ := common.DistancePtSegSqr2D(centerPos, va, vb); distSqr > radiusSqr {
				continue
			}

			neighbourNode := q.m_nodePool.GetNode(neighbourRef, 0)
			if neighbourNode == nil {
				status |= DT_OUT_OF_NODES
				continue
			}

			if neighbourNode.Flags&DT_NODE_CLOSED != 0 {
				continue
			}

			// Cost
			if neighbourNode.Flags == 0 {
				neighbourNode.Pos = common.Vlerp(va, vb, 0.5)
			}

			total := bestNode.Total + common.Vdist(bestNode.Pos, neighbourNode.Pos)

			if neighbourNode.Flags&DT_NODE_OPEN != 0 && total >= neighbourNode.Total {
				continue
			}

			neighbourNode.Id = neighbourRef
			neighbourNode.Flags &= ^uint8(DT_NODE_CLOSED)
			neighbourNode.Pidx = q.m_nodePool.GetNodeIdx(bestNode)
			neighbourNode.Total = total

			if neighbourNode.Flags&DT_NODE_OPEN != 0 {
				q.m_openList.Modify(neighbourNode)
			} else {
				neighbourNode.Flags = DT_NODE_OPEN
				q.m_openList.Push(neighbourNode)
			}
		}
	}

	if randomPoly == nil {
		return 0, randomPt, DT_FAILURE
	}

	randomRef, randomPt, st := q.randomPointInPoly(randomTile, randomPoly, randomPolyRef, frand)
	if st.DtStatusFailed() {
		return 0, randomPt, st
	}
	return randomRef, randomPt, DT_SUCCESS | (status & DT_STATUS_DETAIL_MASK)
}
