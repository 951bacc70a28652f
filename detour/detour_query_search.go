package detour

import (
	"github.com/gorustyt/gonavquery/common"
)

// DtSearchResult is one polygon reached by a Dijkstra style expansion.
type DtSearchResult struct {
	Ref    DtPolyRef // The reached polygon.
	Parent DtPolyRef // The polygon it was reached from. 0 for the start polygon.
	Cost   float32   // Accumulated search cost. Always 0 for FindLocalNeighbourhood.
}

type searchEdgeTest func(va, vb common.Vec3) bool

// FindPolysAroundCircle runs a Dijkstra search from startRef, entering a polygon only when
// the circle touches the portal leading to it. The start polygon is always first. Costs
// are measured from centerPos, so its y matters. Results may overlap on layered meshes.
func (q *DtNavMeshQuery) FindPolysAroundCircle(startRef DtPolyRef, centerPos common.Vec3, radius float32,
	filter DtQueryFilter, maxResult int) ([]DtSearchResult, DtStatus) {
	if !q.m_nav.IsValidPolyRef(startRef) || !common.Visfinite(centerPos) ||
		radius < 0 || !common.IsFinite(radius) || filter == nil || maxResult < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	radiusSqr := common.Sqr(radius)
	return q.dijkstraSearch(startRef, centerPos, filter, maxResult, func(va, vb common.Vec3) bool {
		distSqr, _ := common.DistancePtSegSqr2D(centerPos, va, vb)
		return distSqr <= radiusSqr
	})
}

// FindPolysAroundShape is FindPolysAroundCircle for a convex polygon in mesh winding. The
// search is seeded at the centroid of verts.
func (q *DtNavMeshQuery) FindPolysAroundShape(startRef DtPolyRef, verts []common.Vec3,
	filter DtQueryFilter, maxResult int) ([]DtSearchResult, DtStatus) {
	if !q.m_nav.IsValidPolyRef(startRef) || len(verts) < 3 || filter == nil || maxResult < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	for _, v := range verts {
		if !common.Visfinite(v) {
			return nil, DT_FAILURE | DT_INVALID_PARAM
		}
	}

	centerPos := common.CalcPolyCenter(verts)
	return q.dijkstraSearch(startRef, centerPos, filter, maxResult, func(va, vb common.Vec3) bool {
		hit, ok := common.IntersectSegmentPoly2D(va, vb, verts)
		if !ok {
			return false
		}
		return hit.Tmin <= 1.0 && hit.Tmax >= 0.0
	})
}

// dijkstraSearch expands from startRef in order of accumulated filter cost, following
// only portals accepted by touches.
func (q *DtNavMeshQuery) dijkstraSearch(startRef DtPolyRef, centerPos common.Vec3, filter DtQueryFilter,
	maxResult int, touches searchEdgeTest) ([]DtSearchResult, DtStatus) {
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

	status := DT_SUCCESS
	var results []DtSearchResult

	for !q.m_openList.Empty() {
		bestNode := q.m_openList.Pop()
		bestNode.Flags &= ^uint8(DT_NODE_OPEN)
		bestNode.Flags |= DT_NODE_CLOSED

		bestRef := bestNode.Id
		bestTile, bestPoly := q.m_nav.GetTileAndPolyByRefUnsafe(bestRef)

		var parentRef DtPolyRef
		var parentTile *DtMeshTile
		var parentPoly *DtPoly
		if bestNode.Pidx != 0 {
			parentRef = q.m_nodePool.GetNodeAtIdx(bestNode.Pidx).Id
		}
		if parentRef != 0 {
			parentTile, parentPoly = q.m_nav.GetTileAndPolyByRefUnsafe(parentRef)
		}

		if len(results) < maxResult {
			results = append(results, DtSearchResult{Ref: bestRef, Parent: parentRef, Cost: bestNode.Total})
		} else {
			status |= DT_BUFFER_TOO_SMALL
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
			if !touches(va, vb) {
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

			cost := filter.GetCost(bestNode.Pos, neighbourNode.Pos,
				parentRef, parentTile, parentPoly,
				bestRef, bestTile, bestPoly,
				neighbourRef, neighbourTile, neighbourPoly)
			total := bestNode.Total + cost

			if neighbourNode.Flags&DT_NODE_OPEN != 0 && total >= neighbourNode.Total {
				continue
			}

			neighbourNode.Id = neighbourRef
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
	return results, status
}

// FindLocalNeighbourhood collects polygons around centerPos that do not overlap any polygon
// already collected, breadth first over the graph. It keeps its own small node pool and
// suits small radii. Overlap tests are on the xz plane.
func (q *DtNavMeshQuery) FindLocalNeighbourhood(startRef DtPolyRef, centerPos common.Vec3, radius float32,
	filter DtQueryFilter, maxResult int) ([]DtSearchResult, DtStatus) {
	if !q.m_nav.IsValidPolyRef(startRef) || !common.Visfinite(centerPos) ||
		radius < 0 || !common.IsFinite(radius) || filter == nil || maxResult < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	const MAX_STACK = 48
	stack := make([]*DtNode, 0, MAX_STACK)

	q.m_tinyNodePool.Clear()

	startNode := q.m_tinyNodePool.GetNode(startRef, 0)
	startNode.Pidx = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_CLOSED
	stack = append(stack, startNode)

	radiusSqr := common.Sqr(radius)

	var pa, pb [DT_VERTS_PER_POLYGON]common.Vec3

	status := DT_SUCCESS
	var results []DtSearchResult
	if maxResult > 0 {
		results = append(results, DtSearchResult{Ref: startNode.Id})
	} else {
		status |= DT_BUFFER_TOO_SMALL
	}

	for len(stack) > 0 {
		curNode := stack[0]
		stack = append(stack[:0], stack[1:]...)

		curRef := curNode.Id
		curTile, curPoly := q.m_nav.GetTileAndPolyByRefUnsafe(curRef)

		for i := curPoly.FirstLink; i != DT_NULL_LINK; i = curTile.Links[i].Next {
			neighbourRef := curTile.Links[i].Ref
			if neighbourRef == 0 {
				continue
			}

			neighbourNode := q.m_tinyNodePool.GetNode(neighbourRef, 0)
			if neighbourNode == nil {
				continue
			}
			if neighbourNode.Flags&DT_NODE_CLOSED != 0 {
				continue
			}

			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)

			if neighbourPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
				continue
			}

			if !filter.PassFilter(neighbourRef, neighbourTile, neighbourPoly) {
				continue
			}

			va, vb, st := q.getPortalPointsTile(curRef, curPoly, curTile, neighbourRef, neighbourPoly, neighbourTile)
			if st.DtStatusFailed() {
				continue
			}

			if distSqr, _ := common.DistancePtSegSqr2D(centerPos, va, vb); distSqr > radiusSqr {
				continue
			}

			// Marked before the overlap test so a rejected polygon is not retried.
			neighbourNode.Flags |= DT_NODE_CLOSED
			neighbourNode.Pidx = q.m_tinyNodePool.GetNodeIdx(curNode)

			polyA := neighbourTile.polyVerts(neighbourPoly, &pa)

			overlap := false
			for _, past := range results {
				connected := false
				for k := curPoly.FirstLink; k != DT_NULL_LINK; k = curTile.Links[k].Next {
					if curTile.Links[k].Ref == past.Ref {
						connected = true
						break
					}
				}
				if connected {
					continue
				}

				pastTile, pastPoly := q.m_nav.GetTileAndPolyByRefUnsafe(past.Ref)

				polyB := pastTile.polyVerts(pastPoly, &pb)
				if common.OverlapPolyPoly2D(polyA, polyB) {
					overlap = true
					break
				}
			}
			if overlap {
				continue
			}

			if len(results) < maxResult {
				results = append(results, DtSearchResult{Ref: neighbourRef, Parent: curRef})
			} else {
				status |= DT_BUFFER_TOO_SMALL
			}

			if len(stack) < MAX_STACK {
				stack = append(stack, neighbourNode)
			}
		}
	}
	return results, status
}

// GetPathFromDijkstraSearch reads the path to endRef out of the nodes left by the previous
// FindPolysAroundCircle, FindPolysAroundShape or FindPath. It fails with DT_INVALID_PARAM
// when endRef was never reached. Any other search in between invalidates the nodes.
func (q *DtNavMeshQuery) GetPathFromDijkstraSearch(endRef DtPolyRef, maxPath int) ([]DtPolyRef, DtStatus) {
	if !q.m_nav.IsValidPolyRef(endRef) || maxPath < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	nodes := q.m_nodePool.FindNodes(endRef, 1)
	if len(nodes) != 1 || nodes[0].Flags&DT_NODE_CLOSED == 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	return q.getPathToNode(nodes[0], maxPath)
}
