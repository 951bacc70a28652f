package detour

import "github.com/gorustyt/gonavquery/common"

// DtStraightPathPoint is one corner of a string-pulled path.
type DtStraightPathPoint struct {
	Pos   common.Vec3
	Flags uint8     // Combination of DT_STRAIGHTPATH_START, DT_STRAIGHTPATH_END and DT_STRAIGHTPATH_OFFMESH_CONNECTION.
	Ref   DtPolyRef // The polygon entered at this point. 0 at the end point.
}

type straightPathBuilder struct {
	points []DtStraightPathPoint
	max    int
}

func (b *straightPathBuilder) full() bool { return len(b.points) >= b.max }

func (q *DtNavMeshQuery) appendVertex(pos common.Vec3, flags uint8, ref DtPolyRef, b *straightPathBuilder) DtStatus {
	if n := len(b.points); n > 0 && common.Vequal(b.points[n-1].Pos, pos) {
		b.points[n-1].Flags = flags
		b.points[n-1].Ref = ref
		return DT_IN_PROGRESS
	}

	if b.full() {
		return DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}

	b.points = append(b.points, DtStraightPathPoint{Pos: pos, Flags: flags, Ref: ref})

	if flags == DT_STRAIGHTPATH_END {
		return DT_SUCCESS
	}

	if b.full() {
		return DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	return DT_IN_PROGRESS
}

func (q *DtNavMeshQuery) appendPortals(startIdx, endIdx int, endPos common.Vec3, path []DtPolyRef,
	b *straightPathBuilder, options int32) DtStatus {
	startPos := b.points[len(b.points)-1].Pos
	for i := startIdx; i < endIdx; i++ {
		from := path[i]
		fromTile, fromPoly, status := q.m_nav.GetTileAndPolyByRef(from)
		if status.DtStatusFailed() {
			return DT_FAILURE | DT_INVALID_PARAM
		}

		to := path[i+1]
		toTile, toPoly, status := q.m_nav.GetTileAndPolyByRef(to)
		if status.DtStatusFailed() {
			return DT_FAILURE | DT_INVALID_PARAM
		}

		left, right, status := q.getPortalPointsTile(from, fromPoly, fromTile, to, toPoly, toTile)
		if status.DtStatusFailed() {
			break
		}

		if options&DT_STRAIGHTPATH_AREA_CROSSINGS != 0 {
			if fromPoly.GetArea() == toPoly.GetArea() {
				continue
			}
		}

		if _, t, ok := common.IntersectSegSeg2D(startPos, endPos, left, right); ok {
			pt := common.Vlerp(left, right, t)
			if stat := q.appendVertex(pt, 0, path[i+1], b); stat != DT_IN_PROGRESS {
				return stat
			}
		}
	}
	return DT_IN_PROGRESS
}

// FindStraightPath pulls the string through the portals of path, producing the corner
// points an agent walks from startPos to endPos. Both ends are clamped onto the first and
// last polygon. If maxStraightPath is too small the path is filled from the start and
// DT_BUFFER_TOO_SMALL is set.
func (q *DtNavMeshQuery) FindStraightPath(startPos, endPos common.Vec3, path []DtPolyRef,
	maxStraightPath int, options int32) ([]DtStraightPathPoint, DtStatus) {
	if !common.Visfinite(startPos) || !common.Visfinite(endPos) ||
		len(path) == 0 || path[0] == 0 || maxStraightPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	pathSize := len(path)
	b := &straightPathBuilder{max: maxStraightPath}
	crossings := options&(DT_STRAIGHTPATH_AREA_CROSSINGS|DT_STRAIGHTPATH_ALL_CROSSINGS) != 0

	closestStartPos, status := q.ClosestPointOnPolyBoundary(path[0], startPos)
	if status.DtStatusFailed() {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	closestEndPos, status := q.ClosestPointOnPolyBoundary(path[pathSize-1], endPos)
	if status.DtStatusFailed() {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	if stat := q.appendVertex(closestStartPos, DT_STRAIGHTPATH_START, path[0], b); stat != DT_IN_PROGRESS {
		return b.points, stat
	}

	if pathSize > 1 {
		portalApex := closestStartPos
		portalLeft := portalApex
		portalRight := portalApex
		apexIndex, leftIndex, rightIndex := 0, 0, 0

		var leftPolyType, rightPolyType uint8
		leftPolyRef := path[0]
		rightPolyRef := path[0]

		for i := 0; i < pathSize; i++ {
			var left, right common.Vec3
			var toType uint8

			if i+1 < pathSize {
				var status DtStatus
				left, right, _, toType, status = q.getPortalPoints(path[i], path[i+1])
				if status.DtStatusFailed() {
					// path[i+1] is gone: end on path[i].
					closestEndPos, status = q.ClosestPointOnPolyBoundary(path[i], endPos)
					if status.DtStatusFailed() {
						// Only possible when path[0] is stale.
						return nil, DT_FAILURE | DT_INVALID_PARAM
					}

					if crossings {
						q.appendPortals(apexIndex, i, closestEndPos, path, b, options)
					}

					q.appendVertex(closestEndPos, 0, path[i], b)

					stat := DT_SUCCESS | DT_PARTIAL_RESULT
					if b.full() {
						stat |= DT_BUFFER_TOO_SMALL
					}
					return b.points, stat
				}

				if i == 0 {
					if d, _ := common.DistancePtSegSqr2D(portalApex, left, right); d < common.Sqr(float32(0.001)) {
						continue
					}
				}
			} else {
				left = closestEndPos
				right = closestEndPos
				toType = DT_POLYTYPE_GROUND
			}

			if common.TriArea2D(portalApex, portalRight, right) <= 0.0 {
				if common.Vequal(portalApex, portalRight) || common.TriArea2D(portalApex, portalLeft, right) > 0.0 {
					portalRight = right
					rightPolyRef = 0
					if i+1 < pathSize {
						rightPolyRef = path[i+1]
					}
					rightPolyType = toType
					rightIndex = i
				} else {
					if crossings {
						if stat := q.appendPortals(apexIndex, leftIndex, portalLeft, path, b, options); stat != DT_IN_PROGRESS {
							return b.points, stat
						}
					}

					portalApex = portalLeft
					apexIndex = leftIndex

					var flags uint8
					if leftPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					} else if leftPolyType == DT_POLYTYPE_OFFMESH_CONNECTION {
						flags = DT_STRAIGHTPATH_OFFMESH_CONNECTION
					}

					if stat := q.appendVertex(portalApex, flags, leftPolyRef, b); stat != DT_IN_PROGRESS {
						return b.points, stat
					}

					portalLeft = portalApex
					portalRight = portalApex
					leftIndex = apexIndex
					rightIndex = apexIndex

					i = apexIndex
					continue
				}
			}

			if common.TriArea2D(portalApex, portalLeft, left) >= 0.0 {
				if common.Vequal(portalApex, portalLeft) || common.TriArea2D(portalApex, portalRight, left) < 0.0 {
					portalLeft = left
					leftPolyRef = 0
					if i+1 < pathSize {
						leftPolyRef = path[i+1]
					}
					leftPolyType = toType
					leftIndex = i
				} else {
					if crossings {
						if stat := q.appendPortals(apexIndex, rightIndex, portalRight, path, b, options); stat != DT_IN_PROGRESS {
							return b.points, stat
						}
					}

					portalApex = portalRight
					apexIndex = rightIndex

					var flags uint8
					if rightPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					} else if rightPolyType == DT_POLYTYPE_OFFMESH_CONNECTION {
						flags = DT_STRAIGHTPATH_OFFMESH_CONNECTION
					}

					if stat := q.appendVertex(portalApex, flags, rightPolyRef, b); stat != DT_IN_PROGRESS {
						return b.points, stat
					}

					portalLeft = portalApex
					portalRight = portalApex
					leftIndex = apexIndex
					rightIndex = apexIndex

					i = apexIndex
					continue
				}
			}
		}

		if crossings {
			if stat := q.appendPortals(apexIndex, pathSize-1, closestEndPos, path, b, options); stat != DT_IN_PROGRESS {
				return b.points, stat
			}
		}
	}

	// The end point is dropped only when the buffer is already full.
	if stat := q.appendVertex(closestEndPos, DT_STRAIGHTPATH_END, 0, b); stat.DtStatusDetail(DT_BUFFER_TOO_SMALL) {
		return b.points, stat
	}
	return b.points, DT_SUCCESS
}
