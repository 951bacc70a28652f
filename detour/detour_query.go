package detour

import (
	"math"

	"github.com/gorustyt/gonavquery/common"
	"go.uber.org/zap"
)

const H_SCALE = 0.999 // Search heuristic scale.

type dtQueryData struct {
	status           DtStatus
	lastBestNode     *DtNode
	lastBestNodeCost float32
	startRef, endRef DtPolyRef
	startPos         common.Vec3
	endPos           common.Vec3
	filter           DtQueryFilter
	options          int32
	raycastLimitSqr  float32
}

// DtNavMeshQuery runs searches against a DtNavMesh. It owns its node pools and open
// list, so one instance must not be used by more than one goroutine at a time.
type DtNavMeshQuery struct {
	m_nav          *DtNavMesh
	m_nodePool     *DtNodePool
	m_tinyNodePool *DtNodePool
	m_openList     *DtNodeQueue
	m_query        dtQueryData

	logger *zap.Logger
}

// NewDtNavMeshQuery binds a query to nav with room for maxNodes search nodes
// (1..65535). A query is not safe for concurrent use; see DtQueryPool.
func NewDtNavMeshQuery(nav *DtNavMesh, maxNodes int32, opts ...Option) (*DtNavMeshQuery, DtStatus) {
	if nav == nil || maxNodes <= 0 || maxNodes >= int32(DT_NULL_IDX) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	o := newOptions(opts)
	hashSize := int32(common.NextPow2(uint32(maxNodes / 4)))
	if hashSize < 1 {
		hashSize = 1
	}
	return &DtNavMeshQuery{
		m_nav:          nav,
		m_nodePool:     NewDtNodePool(maxNodes, hashSize),
		m_tinyNodePool: NewDtNodePool(64, 32),
		m_openList:     NewDtNodeQueue(int(maxNodes)),
		logger:         o.logger,
	}, DT_SUCCESS
}

func (q *DtNavMeshQuery) GetNodePool() *DtNodePool { return q.m_nodePool }

func (q *DtNavMeshQuery) GetAttachedNavMesh() *DtNavMesh { return q.m_nav }

// DtPolyQuery receives the polygons found by QueryPolygons, one tile batch at a time.
type DtPolyQuery interface {
	Process(tile *DtMeshTile, polys []*DtPoly, refs []DtPolyRef)
}

type dtFindNearestPolyQuery struct {
	m_query              *DtNavMeshQuery
	m_center             common.Vec3
	m_nearestDistanceSqr float32
	m_nearestRef         DtPolyRef
	m_nearestPoint       common.Vec3
	m_overPoly           bool
}

// Process scores each candidate by squared distance to the center. Standing over a polygon
// costs only the height in excess of walkable climb.
func (query *dtFindNearestPolyQuery) Process(tile *DtMeshTile, _ []*DtPoly, refs []DtPolyRef) {
	for _, ref := range refs {
		pt, over := query.m_query.m_nav.ClosestPointOnPoly(ref, query.m_center)
		var d float32
		if over {
			d = common.Sqr(max(common.Abs(query.m_center[1]-pt[1])-tile.Header.WalkableClimb, 0))
		} else {
			d = common.VdistSqr(pt, query.m_center)
		}
		if d < query.m_nearestDistanceSqr {
			query.m_nearestDistanceSqr = d
			query.m_nearestRef, query.m_nearestPoint, query.m_overPoly = ref, pt, over
		}
	}
}

type dtCollectPolysQuery struct {
	m_polys    []DtPolyRef
	m_maxPolys int
	m_overflow bool
}

func (query *dtCollectPolysQuery) Process(_ *DtMeshTile, _ []*DtPoly, refs []DtPolyRef) {
	numLeft := query.m_maxPolys - len(query.m_polys)
	toCopy := len(refs)
	if toCopy > numLeft {
		query.m_overflow = true
		toCopy = numLeft
	}
	query.m_polys = append(query.m_polys, refs[:toCopy]...)
}

// FindNearestPoly returns the polygon in the box around center closest to it. A polygon the
// center stands over wins when its height is within walkable climb. nearestRef is 0 when
// the box holds no passable polygon, which is not an error.
func (q *DtNavMeshQuery) FindNearestPoly(center, halfExtents common.Vec3, filter DtQueryFilter) (nearestRef DtPolyRef, nearestPt common.Vec3, isOverPoly bool, status DtStatus) {
	query := &dtFindNearestPolyQuery{
		m_query:              q,
		m_center:             center,
		m_nearestDistanceSqr: math.MaxFloat32,
	}
	status = q.QueryPolygons(center, halfExtents, filter, query)
	if status.DtStatusFailed() {
		return 0, nearestPt, false, status
	}
	if query.m_nearestRef != 0 {
		nearestPt = query.m_nearestPoint
	}
	return query.m_nearestRef, nearestPt, query.m_overPoly, DT_SUCCESS
}

// QueryPolygons streams the passable polygons overlapping the box to query.
func (q *DtNavMeshQuery) QueryPolygons(center, halfExtents common.Vec3, filter DtQueryFilter, query DtPolyQuery) DtStatus {
	if !common.Visfinite(center) || !common.Visfinite(halfExtents) ||
		halfExtents[0] < 0 || halfExtents[1] < 0 || halfExtents[2] < 0 ||
		filter == nil || query == nil {
		return DT_FAILURE | DT_INVALID_PARAM
	}

	bmin := center.Sub(halfExtents)
	bmax := center.Add(halfExtents)

	minx, miny := q.m_nav.CalcTileLoc(bmin)
	maxx, maxy := q.m_nav.CalcTileLoc(bmax)

	for y := miny; y <= maxy; y++ {
		for x := minx; x <= maxx; x++ {
			for _, tile := range q.m_nav.GetTilesAt(x, y) {
				q.queryPolygonsInTile(tile, bmin, bmax, filter, query)
			}
		}
	}
	return DT_SUCCESS
}

// QueryPolygonsCollect gathers up to maxPolys overlapping polygons, setting
// DT_BUFFER_TOO_SMALL when more were found.
func (q *DtNavMeshQuery) QueryPolygonsCollect(center, halfExtents common.Vec3, filter DtQueryFilter, maxPolys int) ([]DtPolyRef, DtStatus) {
	if maxPolys < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	collector := &dtCollectPolysQuery{m_maxPolys: maxPolys}
	status := q.QueryPolygons(center, halfExtents, filter, collector)
	if status.DtStatusFailed() {
		return nil, status
	}
	if collector.m_overflow {
		return collector.m_polys, DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	return collector.m_polys, DT_SUCCESS
}

func (q *DtNavMeshQuery) queryPolygonsInTile(tile *DtMeshTile, qmin, qmax common.Vec3, filter DtQueryFilter, query DtPolyQuery) {
	const batchSize = 32
	var polyRefs [batchSize]DtPolyRef
	var polys [batchSize]*DtPoly
	n := 0
	q.m_nav.visitPolygonsInTile(tile, qmin, qmax, func(ref DtPolyRef, poly *DtPoly) bool {
		if !filter.PassFilter(ref, tile, poly) {
			return true
		}
		polyRefs[n] = ref
		polys[n] = poly
		n++
		if n == batchSize {
			query.Process(tile, polys[:n], polyRefs[:n])
			n = 0
		}
		return true
	})
	if n > 0 {
		query.Process(tile, polys[:n], polyRefs[:n])
	}
}

func (q *DtNavMeshQuery) ClosestPointOnPoly(ref DtPolyRef, pos common.Vec3) (closest common.Vec3, posOverPoly bool, status DtStatus) {
	if !q.m_nav.IsValidPolyRef(ref) || !common.Visfinite(pos) {
		return closest, false, DT_FAILURE | DT_INVALID_PARAM
	}
	closest, posOverPoly = q.m_nav.ClosestPointOnPoly(ref, pos)
	return closest, posOverPoly, DT_SUCCESS
}

// ClosestPointOnPolyBoundary returns pos itself when it is inside ref on the xz plane and
// otherwise the nearest point of the polygon outline. It ignores the detail mesh.
func (q *DtNavMeshQuery) ClosestPointOnPolyBoundary(ref DtPolyRef, pos common.Vec3) (closest common.Vec3, status DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return closest, DT_FAILURE | DT_INVALID_PARAM
	}
	if !common.Visfinite(pos) {
		return closest, DT_FAILURE | DT_INVALID_PARAM
	}

	var buf [DT_VERTS_PER_POLYGON]common.Vec3
	verts := tile.polyVerts(poly, &buf)
	var edged, edget [DT_VERTS_PER_POLYGON]float32
	nv := len(verts)
	if common.DistancePtPolyEdgesSqr(pos, verts, edged[:nv], edget[:nv]) {
		return pos, DT_SUCCESS
	}

	dmin := edged[0]
	imin := 0
	for i := 1; i < nv; i++ {
		if edged[i] < dmin {
			dmin = edged[i]
			imin = i
		}
	}
	va := verts[imin]
	vb := verts[(imin+1)%nv]
	return common.Vlerp(va, vb, edget[imin]), DT_SUCCESS
}

// GetPolyHeight fails with DT_INVALID_PARAM when pos is outside ref on the xz plane.
func (q *DtNavMeshQuery) GetPolyHeight(ref DtPolyRef, pos common.Vec3) (float32, DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	if !common.Visfinite2D(pos) {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	// Off-mesh connections have no detail mesh, interpolate along the segment.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		v0 := tile.GetVert(poly.Verts[0])
		v1 := tile.GetVert(poly.Verts[1])
		_, t := common.DistancePtSegSqr2D(pos, v0, v1)
		return v0[1] + (v1[1]-v0[1])*t, DT_SUCCESS
	}

	if h, ok := q.m_nav.getPolyHeight(tile, poly, int(q.m_nav.DecodePolyIdPoly(ref)), pos); ok {
		return h, DT_SUCCESS
	}
	return 0, DT_FAILURE | DT_INVALID_PARAM
}

func (q *DtNavMeshQuery) IsValidPolyRef(ref DtPolyRef, filter DtQueryFilter) bool {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.DtStatusFailed() {
		return false
	}
	// Flags changed since the corridor was built.
	if filter == nil || !filter.PassFilter(ref, tile, poly) {
		return false
	}
	return true
}

// IsInClosedList reports whether the last search closed any node of ref.
func (q *DtNavMeshQuery) IsInClosedList(ref DtPolyRef) bool {
	for _, node := range q.m_nodePool.FindNodes(ref, DT_MAX_STATES_PER_NODE) {
		if node.Flags&DT_NODE_CLOSED != 0 {
			return true
		}
	}
	return false
}

func (q *DtNavMeshQuery) getPortalPoints(from, to DtPolyRef) (left, right common.Vec3, fromType, toType uint8, status DtStatus) {
	fromTile, fromPoly, status := q.m_nav.GetTileAndPolyByRef(from)
	if status.DtStatusFailed() {
		return left, right, 0, 0, DT_FAILURE | DT_INVALID_PARAM
	}
	fromType = fromPoly.GetType()

	toTile, toPoly, status := q.m_nav.GetTileAndPolyByRef(to)
	if status.DtStatusFailed() {
		return left, right, fromType, 0, DT_FAILURE | DT_INVALID_PARAM
	}
	toType = toPoly.GetType()

	left, right, status = q.getPortalPointsTile(from, fromPoly, fromTile, to, toPoly, toTile)
	return left, right, fromType, toType, status
}

func (q *DtNavMeshQuery) getPortalPointsTile(from DtPolyRef, fromPoly *DtPoly, fromTile *DtMeshTile,
	to DtPolyRef, toPoly *DtPoly, toTile *DtMeshTile) (left, right common.Vec3, status DtStatus) {
	var link *DtLink
	for i := fromPoly.FirstLink; i != DT_NULL_LINK; i = fromTile.Links[i].Next {
		if fromTile.Links[i].Ref == to {
			link = &fromTile.Links[i]
			break
		}
	}
	if link == nil {
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}

	if fromPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		for i := fromPoly.FirstLink; i != DT_NULL_LINK; i = fromTile.Links[i].Next {
			if fromTile.Links[i].Ref == to {
				v := fromTile.Links[i].Edge
				left = fromTile.GetVert(fromPoly.Verts[v])
				return left, left, DT_SUCCESS
			}
		}
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}

	if toPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		for i := toPoly.FirstLink; i != DT_NULL_LINK; i = toTile.Links[i].Next {
			if toTile.Links[i].Ref == from {
				v := toTile.Links[i].Edge
				left = toTile.GetVert(toPoly.Verts[v])
				return left, left, DT_SUCCESS
			}
		}
		return left, right, DT_FAILURE | DT_INVALID_PARAM
	}

	v0 := fromTile.GetVert(fromPoly.Verts[link.Edge])
	v1 := fromTile.GetVert(fromPoly.Verts[(int(link.Edge)+1)%int(fromPoly.VertCount)])
	left, right = v0, v1

	// Narrow tile border portals to the linked part of the edge.
	if link.Side != 0xff {
		if link.Bmin != 0 || link.Bmax != 255 {
			const s = 1.0 / 255.0
			tmin := float32(link.Bmin) * s
			tmax := float32(link.Bmax) * s
			left = common.Vlerp(v0, v1, tmin)
			right = common.Vlerp(v0, v1, tmax)
		}
	}
	return left, right, DT_SUCCESS
}

func (q *DtNavMeshQuery) getEdgeMidPoint(from, to DtPolyRef) (mid common.Vec3, status DtStatus) {
	left, right, _, _, status := q.getPortalPoints(from, to)
	if status.DtStatusFailed() {
		return mid, DT_FAILURE | DT_INVALID_PARAM
	}
	return common.Vlerp(left, right, 0.5), DT_SUCCESS
}

func (q *DtNavMeshQuery) getEdgeMidPointTile(from DtPolyRef, fromPoly *DtPoly, fromTile *DtMeshTile,
	to DtPolyRef, toPoly *DtPoly, toTile *DtMeshTile) (mid common.Vec3, status DtStatus) {
	left, right, status := q.getPortalPointsTile(from, fromPoly, fromTile, to, toPoly, toTile)
	if status.DtStatusFailed() {
		return mid, DT_FAILURE | DT_INVALID_PARAM
	}
	return common.Vlerp(left, right, 0.5), DT_SUCCESS
}

// getPathToNode walks the parent chain of endNode. When the chain is longer than maxPath
// the part closest to the start is kept.
func (q *DtNavMeshQuery) getPathToNode(endNode *DtNode, maxPath int) ([]DtPolyRef, DtStatus) {
	length := 0
	for curNode := endNode; curNode != nil; curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx) {
		length++
	}

	// Keep the start side of an overlong chain.
	curNode := endNode
	writeCount := length
	for ; writeCount > maxPath; writeCount-- {
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	path := make([]DtPolyRef, writeCount)
	for i := writeCount - 1; i >= 0; i-- {
		path[i] = curNode.Id
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	if length > maxPath {
		return path, DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	return path, DT_SUCCESS
}

// polyArea2D sums the fan triangle areas of poly on the xz-plane.
func polyArea2D(tile *DtMeshTile, poly *DtPoly) float32 {
	var area float32
	va := tile.GetVert(poly.Verts[0])
	for j := 2; j < int(poly.VertCount); j++ {
		vb := tile.GetVert(poly.Verts[j-1])
		vc := tile.GetVert(poly.Verts[j])
		area += common.TriArea2D(va, vb, vc)
	}
	return area
}
