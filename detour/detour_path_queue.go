package detour

import (
	"github.com/gorustyt/gonavquery/common"
	"go.uber.org/zap"
)

type DtPathQueueRef uint32

const DT_PATHQ_INVALID DtPathQueueRef = 0

const (
	DT_PATHQ_MAX_QUEUE      = 8
	DT_PATHQ_MAX_KEEP_ALIVE = 2 // in update ticks.
)

type pathQuery struct {
	ref              DtPathQueueRef
	startPos, endPos common.Vec3
	startRef, endRef DtPolyRef
	path             []DtPolyRef
	status           DtStatus
	keepAlive        int // ticks left before an unread result is dropped
	filter           DtQueryFilter
}

// DtPathQueue spreads path requests over several Update calls using the sliced search,
// so no single call spends more than its iteration budget.
type DtPathQueue struct {
	m_queue       [DT_PATHQ_MAX_QUEUE]pathQuery
	m_nextHandle  DtPathQueueRef
	m_maxPathSize int
	m_queueHead   int
	m_navquery    *DtNavMeshQuery

	logger *zap.Logger
}

func NewDtPathQueue(nav *DtNavMesh, maxPathSize int, maxSearchNodeCount int32, opts ...Option) (*DtPathQueue, DtStatus) {
	if maxPathSize <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	navquery, status := NewDtNavMeshQuery(nav, maxSearchNodeCount, opts...)
	if status.DtStatusFailed() {
		return nil, status
	}
	return &DtPathQueue{
		m_nextHandle:  1,
		m_maxPathSize: maxPathSize,
		m_navquery:    navquery,
		logger:        newOptions(opts).logger,
	}, DT_SUCCESS
}

func (d *DtPathQueue) GetNavQuery() *DtNavMeshQuery { return d.m_navquery }

// Update advances pending requests round robin until maxIters search iterations are spent.
func (d *DtPathQueue) Update(maxIters int) {
	// Spend the iteration budget round robin across requests.
	iterCount := maxIters

	for i := 0; i < DT_PATHQ_MAX_QUEUE; i++ {
		q := &d.m_queue[d.m_queueHead%DT_PATHQ_MAX_QUEUE]

		if q.ref == DT_PATHQ_INVALID {
			d.m_queueHead++
			continue
		}

		if q.status.DtStatusSucceed() || q.status.DtStatusFailed() {
			// Unread results are dropped after DT_PATHQ_MAX_KEEP_ALIVE ticks.
			q.keepAlive++
			if q.keepAlive > DT_PATHQ_MAX_KEEP_ALIVE {
				d.logger.Debug("path request expired", zap.Uint32("ref", uint32(q.ref)))
				q.ref = DT_PATHQ_INVALID
				q.status = 0
			}

			d.m_queueHead++
			continue
		}

		if q.status == 0 {
			q.status = d.m_navquery.InitSlicedFindPath(q.startRef, q.endRef, q.startPos, q.endPos, q.filter, 0)
		}
		if q.status.DtStatusInProgress() {
			var iters int
			iters, q.status = d.m_navquery.UpdateSlicedFindPath(iterCount)
			iterCount -= iters
		}
		if q.status.DtStatusSucceed() {
			q.path, q.status = d.m_navquery.FinalizeSlicedFindPath(d.m_maxPathSize)
		}

		if iterCount <= 0 {
			break
		}

		d.m_queueHead++
	}
}

// Request queues a path search. DT_PATHQ_INVALID is returned when every slot is busy.
func (d *DtPathQueue) Request(startRef, endRef DtPolyRef, startPos, endPos common.Vec3, filter DtQueryFilter) DtPathQueueRef {
	slot := -1
	for i := range d.m_queue {
		if d.m_queue[i].ref == DT_PATHQ_INVALID {
			slot = i
			break
		}
	}
	if slot == -1 {
		return DT_PATHQ_INVALID
	}

	ref := d.m_nextHandle
	d.m_nextHandle++
	if d.m_nextHandle == DT_PATHQ_INVALID {
		d.m_nextHandle++
	}

	d.m_queue[slot] = pathQuery{
		ref:      ref,
		startPos: startPos,
		endPos:   endPos,
		startRef: startRef,
		endRef:   endRef,
		filter:   filter,
	}
	return ref
}

func (d *DtPathQueue) GetRequestStatus(ref DtPathQueueRef) DtStatus {
	for i := range d.m_queue {
		if d.m_queue[i].ref == ref {
			return d.m_queue[i].status
		}
	}
	return DT_FAILURE
}

// GetPathResult hands out the path of a finished request and frees its slot.
func (d *DtPathQueue) GetPathResult(ref DtPathQueueRef) ([]DtPolyRef, DtStatus) {
	for i := range d.m_queue {
		q := &d.m_queue[i]
		if q.ref != ref {
			continue
		}
		details := q.status & DT_STATUS_DETAIL_MASK
		path := q.path
		q.ref = DT_PATHQ_INVALID
		q.status = 0
		q.path = nil
		return path, details | DT_SUCCESS
	}
	return nil, DT_FAILURE
}
