package detour

import "github.com/gorustyt/gonavquery/common"

// DtQueryFilter decides which polygons a query may enter and what crossing them costs.
type DtQueryFilter interface {
	PassFilter(ref DtPolyRef, tile *DtMeshTile, poly *DtPoly) bool

	// GetCost prices the segment pa-pb inside cur. prev and next are the polygons before
	// and after it and may be zero.
	GetCost(pa, pb common.Vec3,
		prevRef DtPolyRef, prevTile *DtMeshTile, prevPoly *DtPoly,
		curRef DtPolyRef, curTile *DtMeshTile, curPoly *DtPoly,
		nextRef DtPolyRef, nextTile *DtMeshTile, nextPoly *DtPoly) float32
}

// DtQueryFilterStandard admits polygons by include/exclude flags and prices travel
// by the area cost of the polygon being crossed.
type DtQueryFilterStandard struct {
	m_areaCost     [DT_MAX_AREAS]float32 // multiplier on distance, per area id
	m_includeFlags uint16
	m_excludeFlags uint16
}

// NewDtQueryFilter returns a filter that includes every flag, excludes none and costs 1 per area.
func NewDtQueryFilter() *DtQueryFilterStandard {
	f := &DtQueryFilterStandard{m_includeFlags: 0xffff}
	for i := range f.m_areaCost {
		f.m_areaCost[i] = 1.0
	}
	return f
}

func (filter *DtQueryFilterStandard) GetAreaCost(i int) float32 { return filter.m_areaCost[i] }

func (filter *DtQueryFilterStandard) SetAreaCost(i int, cost float32) { filter.m_areaCost[i] = cost }

func (filter *DtQueryFilterStandard) GetIncludeFlags() uint16 { return filter.m_includeFlags }

func (filter *DtQueryFilterStandard) SetIncludeFlags(flags uint16) { filter.m_includeFlags = flags }

func (filter *DtQueryFilterStandard) GetExcludeFlags() uint16 { return filter.m_excludeFlags }

func (filter *DtQueryFilterStandard) SetExcludeFlags(flags uint16) { filter.m_excludeFlags = flags }

func (filter *DtQueryFilterStandard) PassFilter(_ DtPolyRef, _ *DtMeshTile, poly *DtPoly) bool {
	return (poly.Flags&filter.m_includeFlags) != 0 && (poly.Flags&filter.m_excludeFlags) == 0
}

func (filter *DtQueryFilterStandard) GetCost(pa, pb common.Vec3,
	_ DtPolyRef, _ *DtMeshTile, _ *DtPoly,
	_ DtPolyRef, _ *DtMeshTile, curPoly *DtPoly,
	_ DtPolyRef, _ *DtMeshTile, _ *DtPoly) float32 {
	return common.Vdist(pa, pb) * filter.m_areaCost[curPoly.GetArea()]
}
