package detour

import (
	"math"

	"github.com/gorustyt/gonavquery/common"
	"go.uber.org/zap"
)

// polyHop is a polygon resolved to its tile, as passed to DtQueryFilter.GetCost.
type polyHop struct {
	ref  DtPolyRef
	tile *DtMeshTile
	poly *DtPoly
}

func stepCost(filter DtQueryFilter, pa, pb common.Vec3, prev, cur, next polyHop) float32 {
	return filter.GetCost(pa, pb,
		prev.ref, prev.tile, prev.poly,
		cur.ref, cur.tile, cur.poly,
		next.ref, next.tile, next.poly)
}

// linkState is the node state used when entering a polygon through link. Portals on
// different tile sides get separate nodes.
func linkState(link *DtLink) uint8 {
	if link.Side == 0xff {
		return 0
	}
	return link.Side >> 1
}

// openSearch resets the node pool and seeds the open list with the start polygon.
func (q *DtNavMeshQuery) openSearch(startRef DtPolyRef, startPos, endPos common.Vec3) *DtNode {
	q.m_nodePool.Clear()
	q.m_openList.Clear()
	start := q.m_nodePool.GetNode(startRef, 0)
	start.Pos = startPos
	start.Cost, start.Total = 0, common.Vdist(startPos, endPos)*H_SCALE
	start.Pidx = 0
	start.Flags = DT_NODE_OPEN
	q.m_openList.Push(start)
	return start
}

// closeBest moves the cheapest open node to the closed set.
func (q *DtNavMeshQuery) closeBest() *DtNode {
	n := q.m_openList.Pop()
	n.Flags = n.Flags&^DT_NODE_OPEN | DT_NODE_CLOSED
	return n
}

// relax offers node a new cost. It reports false, leaving the node untouched, when the node
// has already been reached at least as cheaply.
func (q *DtNavMeshQuery) relax(node *DtNode, ref DtPolyRef, pidx uint32, cost, total float32, detached bool) bool {
	if node.Flags&(DT_NODE_OPEN|DT_NODE_CLOSED) != 0 && total >= node.Total {
		return false
	}
	node.Pidx = pidx
	node.Id = ref
	node.Cost = cost
	node.Total = total
	node.Flags &^= DT_NODE_CLOSED | DT_NODE_PARENT_DETACHED
	if detached {
		node.Flags |= DT_NODE_PARENT_DETACHED
	}
	if node.Flags&DT_NODE_OPEN != 0 {
		q.m_openList.Modify(node)
	} else {
		node.Flags |= DT_NODE_OPEN
		q.m_openList.Push(node)
	}
	return true
}

// FindPath runs A* over the polygon graph from startRef to endRef. Traversal cost comes from
// filter, measured between portal midpoints, so the y of startPos and endPos matters.
//
// When endRef is unreachable the path leads to the visited polygon closest to endPos and
// DT_PARTIAL_RESULT is set. A path longer than maxPath is cut to its first maxPath polygons
// with DT_BUFFER_TOO_SMALL.
func (q *DtNavMeshQuery) FindPath(startRef, endRef DtPolyRef, startPos, endPos common.Vec3,
	filter DtQueryFilter, maxPath int) ([]DtPolyRef, DtStatus) {
	if !q.m_nav.IsValidPolyRef(startRef) || !q.m_nav.IsValidPolyRef(endRef) ||
		!common.Visfinite(startPos) || !common.Visfinite(endPos) ||
		filter == nil || maxPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	if startRef == endRef {
		return []DtPolyRef{startRef}, DT_SUCCESS
	}

	best := q.openSearch(startRef, startPos, endPos)
	bestH := best.Total
	outOfNodes := false

	for !q.m_openList.Empty() {
		n := q.closeBest()
		if n.Id == endRef {
			best = n
			break
		}

		cur := polyHop{ref: n.Id}
		cur.tile, cur.poly = q.m_nav.GetTileAndPolyByRefUnsafe(cur.ref)
		var prev polyHop
		if n.Pidx != 0 {
			prev.ref = q.m_nodePool.GetNodeAtIdx(n.Pidx).Id
			prev.tile, prev.poly = q.m_nav.GetTileAndPolyByRefUnsafe(prev.ref)
		}

		for li := cur.poly.FirstLink; li != DT_NULL_LINK; li = cur.tile.Links[li].Next {
			link := &cur.tile.Links[li]
			if link.Ref == 0 || link.Ref == prev.ref {
				continue
			}
			next := polyHop{ref: link.Ref}
			next.tile, next.poly = q.m_nav.GetTileAndPolyByRefUnsafe(next.ref)
			if !filter.PassFilter(next.ref, next.tile, next.poly) {
				continue
			}
			nn := q.m_nodePool.GetNode(next.ref, linkState(link))
			if nn == nil {
				outOfNodes = true
				continue
			}
			if nn.Flags == 0 {
				nn.Pos, _ = q.getEdgeMidPointTile(cur.ref, cur.poly, cur.tile, next.ref, next.poly, next.tile)
			}

			cost := n.Cost + stepCost(filter, n.Pos, nn.Pos, prev, cur, next)
			var h float32
			if next.ref == endRef {
				cost += stepCost(filter, nn.Pos, endPos, cur, next, polyHop{})
			} else {
				h = common.Vdist(nn.Pos, endPos) * H_SCALE
			}
			if !q.relax(nn, next.ref, q.m_nodePool.GetNodeIdx(n), cost, cost+h, false) {
				continue
			}
			if h < bestH {
				bestH = h
				best = nn
			}
		}
	}

	path, status := q.getPathToNode(best, maxPath)
	if best.Id != endRef {
		status |= DT_PARTIAL_RESULT
	}
	if outOfNodes {
		status |= DT_OUT_OF_NODES
		q.logger.Debug("path search ran out of nodes",
			zap.Uint64("startRef", uint64(startRef)),
			zap.Uint64("endRef", uint64(endRef)),
			zap.Int32("maxNodes", q.m_nodePool.GetMaxNodes()))
	}
	return path, status
}

// InitSlicedFindPath starts a path search that is advanced with UpdateSlicedFindPath and
// read back with FinalizeSlicedFindPath or FinalizeSlicedFindPathPartial.
//
// With DT_FINDPATH_ANY_ANGLE the search tries raycast shortcuts back to the grandparent
// node, within DT_RAY_CAST_LIMIT_PROPORTIONS agent radii of the start tile.
func (q *DtNavMeshQuery) InitSlicedFindPath(startRef, endRef DtPolyRef, startPos, endPos common.Vec3,
	filter DtQueryFilter, options int32) DtStatus {
	q.m_query = dtQueryData{
		status:          DT_FAILURE,
		startRef:        startRef,
		endRef:          endRef,
		startPos:        startPos,
		endPos:          endPos,
		filter:          filter,
		options:         options,
		raycastLimitSqr: math.MaxFloat32,
	}
	if !q.m_nav.IsValidPolyRef(startRef) || !q.m_nav.IsValidPolyRef(endRef) ||
		!common.Visfinite(startPos) || !common.Visfinite(endPos) || filter == nil {
		return DT_FAILURE | DT_INVALID_PARAM
	}

	if options&DT_FINDPATH_ANY_ANGLE != 0 {
		tile, _ := q.m_nav.GetTileAndPolyByRefUnsafe(startRef)
		q.m_query.raycastLimitSqr = common.Sqr(tile.Header.WalkableRadius * DT_RAY_CAST_LIMIT_PROPORTIONS)
	}

	if startRef == endRef {
		q.m_query.status = DT_SUCCESS
		return DT_SUCCESS
	}

	start := q.openSearch(startRef, startPos, endPos)
	q.m_query.status = DT_IN_PROGRESS
	q.m_query.lastBestNode = start
	q.m_query.lastBestNodeCost = start.Total
	return q.m_query.status
}

// finishSliced marks the sliced search done, keeping its detail bits.
func (q *DtNavMeshQuery) finishSliced() DtStatus {
	q.m_query.status = DT_SUCCESS | q.m_query.status&DT_STATUS_DETAIL_MASK
	return q.m_query.status
}

// failSliced drops the sliced state after a polygon it depends on was removed.
func (q *DtNavMeshQuery) failSliced() DtStatus {
	q.logger.Debug("sliced path search lost a polygon",
		zap.Uint64("startRef", uint64(q.m_query.startRef)),
		zap.Uint64("endRef", uint64(q.m_query.endRef)))
	q.m_query = dtQueryData{status: DT_FAILURE}
	return DT_FAILURE
}

// UpdateSlicedFindPath expands at most maxIter nodes and returns how many it expanded.
// The search fails if a polygon on the current frontier has been removed meanwhile.
func (q *DtNavMeshQuery) UpdateSlicedFindPath(maxIter int) (doneIters int, status DtStatus) {
	if !q.m_query.status.DtStatusInProgress() {
		return 0, q.m_query.status
	}
	if !q.m_nav.IsValidPolyRef(q.m_query.startRef) || !q.m_nav.IsValidPolyRef(q.m_query.endRef) {
		return 0, q.failSliced()
	}

	filter := q.m_query.filter
	endRef, endPos := q.m_query.endRef, q.m_query.endPos
	anyAngle := q.m_query.options&DT_FINDPATH_ANY_ANGLE != 0

	iter := 0
	for iter < maxIter && !q.m_openList.Empty() {
		iter++
		n := q.closeBest()
		if n.Id == endRef {
			q.m_query.lastBestNode = n
			return iter, q.finishSliced()
		}

		cur := polyHop{ref: n.Id}
		var st DtStatus
		if cur.tile, cur.poly, st = q.m_nav.GetTileAndPolyByRef(cur.ref); st.DtStatusFailed() {
			return iter, q.failSliced()
		}

		var prev polyHop
		var prevNode *DtNode
		var grandRef DtPolyRef
		if n.Pidx != 0 {
			prevNode = q.m_nodePool.GetNodeAtIdx(n.Pidx)
			prev.ref = prevNode.Id
			if prevNode.Pidx != 0 {
				grandRef = q.m_nodePool.GetNodeAtIdx(prevNode.Pidx).Id
			}
		}
		if prev.ref != 0 {
			prev.tile, prev.poly, st = q.m_nav.GetTileAndPolyByRef(prev.ref)
			if st.DtStatusFailed() || (grandRef != 0 && !q.m_nav.IsValidPolyRef(grandRef)) {
				return iter, q.failSliced()
			}
		}

		tryLOS := anyAngle && prev.ref != 0 &&
			common.VdistSqr(prevNode.Pos, n.Pos) < q.m_query.raycastLimitSqr

		for li := cur.poly.FirstLink; li != DT_NULL_LINK; li = cur.tile.Links[li].Next {
			link := &cur.tile.Links[li]
			if link.Ref == 0 || link.Ref == prev.ref {
				continue
			}
			next := polyHop{ref: link.Ref}
			next.tile, next.poly = q.m_nav.GetTileAndPolyByRefUnsafe(next.ref)
			if !filter.PassFilter(next.ref, next.tile, next.poly) {
				continue
			}
			nn := q.m_nodePool.GetNode(next.ref, linkState(link))
			if nn == nil {
				q.m_query.status |= DT_OUT_OF_NODES
				continue
			}
			// Already reached from the same parent.
			if anyAngle && nn.Pidx != 0 && nn.Pidx == n.Pidx {
				continue
			}
			if nn.Flags == 0 {
				nn.Pos, _ = q.getEdgeMidPointTile(cur.ref, cur.poly, cur.tile, next.ref, next.poly, next.tile)
			}

			shortcut := false
			var cost float32
			if tryLOS {
				hit, _ := q.Raycast(prev.ref, prevNode.Pos, nn.Pos, filter, DT_RAYCAST_USE_COSTS, grandRef, 0)
				if hit != nil && hit.T >= 1.0 {
					shortcut = true
					cost = prevNode.Cost + hit.PathCost
				}
			}
			if !shortcut {
				cost = n.Cost + stepCost(filter, n.Pos, nn.Pos, prev, cur, next)
			}

			var h float32
			if next.ref == endRef {
				cost += stepCost(filter, nn.Pos, endPos, cur, next, polyHop{})
			} else {
				h = common.Vdist(nn.Pos, endPos) * H_SCALE
			}

			pidx := q.m_nodePool.GetNodeIdx(n)
			if shortcut {
				pidx = n.Pidx
			}
			if !q.relax(nn, next.ref, pidx, cost, cost+h, shortcut) {
				continue
			}
			if h < q.m_query.lastBestNodeCost {
				q.m_query.lastBestNodeCost = h
				q.m_query.lastBestNode = nn
			}
		}
	}

	// Open list exhausted without reaching the goal.
	if q.m_openList.Empty() {
		return iter, q.finishSliced()
	}
	return iter, q.m_query.status
}

// FinalizeSlicedFindPath returns the path of a sliced search and resets the sliced state.
// An unfinished search yields the path to the best node found so far. Without a prior
// InitSlicedFindPath it fails.
func (q *DtNavMeshQuery) FinalizeSlicedFindPath(maxPath int) ([]DtPolyRef, DtStatus) {
	if maxPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	defer q.resetSlicedQuery()

	if q.m_query.status == 0 || q.m_query.status.DtStatusFailed() {
		return nil, DT_FAILURE
	}
	if q.m_query.startRef == q.m_query.endRef {
		return []DtPolyRef{q.m_query.startRef}, DT_SUCCESS | q.m_query.status&DT_STATUS_DETAIL_MASK
	}
	if q.m_query.lastBestNode.Id != q.m_query.endRef {
		q.m_query.status |= DT_PARTIAL_RESULT
	}
	path := q.storeSlicedPath(q.m_query.lastBestNode, maxPath)
	return path, DT_SUCCESS | q.m_query.status&DT_STATUS_DETAIL_MASK
}

// FinalizeSlicedFindPathPartial is like FinalizeSlicedFindPath but ends the path at the
// last polygon of existing that the search visited. If none was visited the best node is
// used and DT_PARTIAL_RESULT is set.
func (q *DtNavMeshQuery) FinalizeSlicedFindPathPartial(existing []DtPolyRef, maxPath int) ([]DtPolyRef, DtStatus) {
	if len(existing) == 0 || maxPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	defer q.resetSlicedQuery()

	if q.m_query.status == 0 || q.m_query.status.DtStatusFailed() {
		return nil, DT_FAILURE
	}
	if q.m_query.startRef == q.m_query.endRef {
		return []DtPolyRef{q.m_query.startRef}, DT_SUCCESS | q.m_query.status&DT_STATUS_DETAIL_MASK
	}

	var node *DtNode
	for i := len(existing) - 1; i >= 0 && node == nil; i-- {
		if nodes := q.m_nodePool.FindNodes(existing[i], 1); len(nodes) > 0 {
			node = nodes[0]
		}
	}
	if node == nil {
		q.m_query.status |= DT_PARTIAL_RESULT
		common.AssertTrue(q.m_query.lastBestNode != nil)
		node = q.m_query.lastBestNode
	}
	path := q.storeSlicedPath(node, maxPath)
	return path, DT_SUCCESS | q.m_query.status&DT_STATUS_DETAIL_MASK
}

func (q *DtNavMeshQuery) resetSlicedQuery() {
	q.m_query = dtQueryData{}
}

// storeSlicedPath reverses the parent chain ending at endNode and writes it out start first.
// Segments whose parent was found by raycast are expanded back into the polygons they cross.
func (q *DtNavMeshQuery) storeSlicedPath(endNode *DtNode, maxPath int) []DtPolyRef {
	// Flip the chain in place. The detached bit moves along with the link it describes.
	var head *DtNode
	var carried uint8
	for n := endNode; n != nil; {
		up := q.m_nodePool.GetNodeAtIdx(n.Pidx)
		n.Pidx = q.m_nodePool.GetNodeIdx(head)
		own := n.Flags & DT_NODE_PARENT_DETACHED
		n.Flags = n.Flags&^DT_NODE_PARENT_DETACHED | carried
		carried = own
		head = n
		n = up
	}

	path := make([]DtPolyRef, 0, maxPath)
	for n := head; n != nil; {
		next := q.m_nodePool.GetNodeAtIdx(n.Pidx)
		var status DtStatus
		if n.Flags&DT_NODE_PARENT_DETACHED != 0 && next != nil {
			hit, st := q.Raycast(n.Id, n.Pos, next.Pos, q.m_query.filter, 0, 0, maxPath-len(path))
			status = st
			if hit != nil {
				path = append(path, hit.Path...)
			}
			// The ray may stop on the boundary of next, which is appended on its own.
			if len(path) > 0 && path[len(path)-1] == next.Id {
				path = path[:len(path)-1]
			}
		} else {
			path = append(path, n.Id)
			if len(path) >= maxPath && next != nil {
				status = DT_BUFFER_TOO_SMALL
			}
		}
		if d := status & DT_STATUS_DETAIL_MASK; d != 0 {
			q.m_query.status |= d
			break
		}
		n = next
	}
	return path
}
