package detour_test

import (
	"testing"

	"github.com/gorustyt/gonavquery/common"
	"github.com/gorustyt/gonavquery/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPolysAroundCircle(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))
	start := f.ref(t, 0, 0)

	res, status := f.query.FindPolysAroundCircle(start, f.center(0, 0), 0, f.filter, 16)
	require.True(t, status.DtStatusSucceed())
	require.Len(t, res, 1)
	assert.Equal(t, start, res[0].Ref)
	assert.Zero(t, res[0].Parent)

	res, status = f.query.FindPolysAroundCircle(start, f.center(0, 0), 1.2, f.filter, 16)
	require.True(t, status.DtStatusSucceed())
	refs := make([]detour.DtPolyRef, 0, len(res))
	for _, r := range res {
		refs = append(refs, r.Ref)
	}
	assert.ElementsMatch(t, []detour.DtPolyRef{start, f.ref(t, 1, 0), f.ref(t, 0, 1), f.ref(t, 1, 1)}, refs)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i].Cost, res[i-1].Cost)
	}

	path, status := f.query.GetPathFromDijkstraSearch(f.ref(t, 1, 1), 8)
	require.True(t, status.DtStatusSucceed())
	require.Len(t, path, 3)
	assert.Equal(t, start, path[0])
	assert.Equal(t, f.ref(t, 1, 1), path[2])

	// Not explored by the last search.
	_, status = f.query.GetPathFromDijkstraSearch(f.ref(t, 3, 3), 8)
	assert.True(t, status.DtStatusDetail(detour.DT_INVALID_PARAM))

	res, status = f.query.FindPolysAroundCircle(start, f.center(0, 0), 1.2, f.filter, 2)
	assert.True(t, status.DtStatusDetail(detour.DT_BUFFER_TOO_SMALL))
	assert.Len(t, res, 2)
}

func TestFindPolysAroundShape(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))
	start := f.ref(t, 0, 0)

	// A strip covering the bottom row, wound like the mesh polygons.
	shape := []common.Vec3{{0.2, 0, 0.2}, {0.2, 0, 0.8}, {3.8, 0, 0.8}, {3.8, 0, 0.2}}
	res, status := f.query.FindPolysAroundShape(start, shape, f.filter, 16)
	require.True(t, status.DtStatusSucceed())
	refs := make([]detour.DtPolyRef, 0, len(res))
	for _, r := range res {
		refs = append(refs, r.Ref)
	}
	assert.ElementsMatch(t, []detour.DtPolyRef{start, f.ref(t, 1, 0), f.ref(t, 2, 0), f.ref(t, 3, 0)}, refs)

	_, status = f.query.FindPolysAroundShape(start, shape[:2], f.filter, 16)
	assert.True(t, status.DtStatusDetail(detour.DT_INVALID_PARAM))
}

func TestFindLocalNeighbourhood(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))
	start := f.ref(t, 1, 1)

	res, status := f.query.FindLocalNeighbourhood(start, f.center(1, 1), 0.6, f.filter, 16)
	require.True(t, status.DtStatusSucceed())
	refs := make([]detour.DtPolyRef, 0, len(res))
	for _, r := range res {
		refs = append(refs, r.Ref)
	}
	// Direct neighbours share an edge with the start cell and do not overlap it.
	assert.ElementsMatch(t, []detour.DtPolyRef{start, f.ref(t, 0, 1), f.ref(t, 2, 1), f.ref(t, 1, 0), f.ref(t, 1, 2)}, refs)
	assert.Equal(t, start, res[0].Ref)
}

func TestGetPolyWallSegments(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))
	corner := f.ref(t, 0, 0)

	segs, status := f.query.GetPolyWallSegments(corner, f.filter, false, 8)
	require.True(t, status.DtStatusSucceed())
	require.Len(t, segs, 2)
	for _, s := range segs {
		assert.Zero(t, s.Ref)
		assert.InDelta(t, 1, common.Vdist(s.Start, s.End), 1e-5)
	}

	segs, status = f.query.GetPolyWallSegments(corner, f.filter, true, 8)
	require.True(t, status.DtStatusSucceed())
	require.Len(t, segs, 4)
	portals := 0
	for _, s := range segs {
		if s.Ref != 0 {
			portals++
		}
	}
	assert.Equal(t, 2, portals)

	segs, status = f.query.GetPolyWallSegments(corner, f.filter, true, 3)
	assert.True(t, status.DtStatusDetail(detour.DT_BUFFER_TOO_SMALL))
	assert.Len(t, segs, 3)

	_, status = f.query.GetPolyWallSegments(0, f.filter, false, 8)
	assert.True(t, status.DtStatusDetail(detour.DT_INVALID_PARAM))
}

func TestGetPolyWallSegmentsTileBorder(t *testing.T) {
	f := newFixture(t, newGrid(2, 1))
	border := f.ref(t, 3, 0)

	segs, status := f.query.GetPolyWallSegments(border, f.filter, true, 8)
	require.True(t, status.DtStatusSucceed())
	var crossing *detour.DtWallSegment
	for i := range segs {
		if segs[i].Ref == f.ref(t, 4, 0) {
			crossing = &segs[i]
		}
	}
	require.NotNil(t, crossing)
	assert.InDelta(t, 4, crossing.Start[0], 1e-5)
	assert.InDelta(t, 4, crossing.End[0], 1e-5)
	assert.InDelta(t, 1, common.Vdist(crossing.Start, crossing.End), 1e-5)
}

func TestFindDistanceToWall(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))

	dist, pos, normal, status := f.query.FindDistanceToWall(f.ref(t, 0, 0), f.center(0, 0), 5, f.filter)
	require.True(t, status.DtStatusSucceed())
	assert.InDelta(t, 0.5, dist, 1e-5)
	assert.InDelta(t, 0.5, common.Vdist(pos, f.center(0, 0)), 1e-5)
	assert.InDelta(t, 1, normal.Len(), 1e-5)

	// No wall inside the radius.
	dist, pos, normal, status = f.query.FindDistanceToWall(f.ref(t, 1, 1), common.Vec3{2, 0, 2}, 0.5, f.filter)
	require.True(t, status.DtStatusSucceed())
	assert.InDelta(t, 0.5, dist, 1e-6)
	assert.Equal(t, common.Vec3{2, 0, 2}, pos)
	assert.Equal(t, common.Vec3{}, normal)

	_, _, _, status = f.query.FindDistanceToWall(f.ref(t, 1, 1), common.Vec3{2, 0, 2}, -1, f.filter)
	assert.True(t, status.DtStatusDetail(detour.DT_INVALID_PARAM))
}

func TestMoveAlongSurface(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))
	start := f.ref(t, 0, 0)

	pos, visited, status := f.query.MoveAlongSurface(start, f.center(0, 0), f.center(2, 0), f.filter, 8)
	require.True(t, status.DtStatusSucceed())
	assert.Equal(t, f.center(2, 0), pos)
	assert.Equal(t, []detour.DtPolyRef{start, f.ref(t, 1, 0), f.ref(t, 2, 0)}, visited)

	// Sliding into the west wall stops on it.
	pos, visited, status = f.query.MoveAlongSurface(start, f.center(0, 0), common.Vec3{-1, 0, 0.5}, f.filter, 8)
	require.True(t, status.DtStatusSucceed())
	assert.InDelta(t, 0, pos[0], 1e-5)
	assert.InDelta(t, 0.5, pos[2], 1e-5)
	assert.Equal(t, []detour.DtPolyRef{start}, visited)

	_, visited, status = f.query.MoveAlongSurface(start, f.center(0, 0), f.center(2, 0), f.filter, 2)
	assert.True(t, status.DtStatusDetail(detour.DT_BUFFER_TOO_SMALL))
	assert.Len(t, visited, 2)
}

func fixedRand(vals ...float32) detour.DtRandFunc {
	i := 0
	return func() float32 {
		v := vals[i%len(vals)]
		i++
		return v
	}
}

func TestFindRandomPoint(t *testing.T) {
	g := newGrid(2, 1)
	g.Blocked = func(cx, cz int) bool { return cx == 0 && cz == 0 }
	f := newFixture(t, g)

	for _, frand := range []detour.DtRandFunc{fixedRand(0.5), fixedRand(0.1, 0.9, 0.3), nil} {
		ref, pt, status := f.query.FindRandomPoint(f.filter, frand)
		require.True(t, status.DtStatusSucceed())
		require.NotZero(t, ref)
		_, over, st := f.query.ClosestPointOnPoly(ref, pt)
		require.True(t, st.DtStatusSucceed())
		assert.True(t, over)
		assert.InDelta(t, 0, pt[1], 1e-5)
		assert.False(t, pt[0] < 1 && pt[2] < 1, "point %v in blocked cell", pt)
	}

	excl := detour.NewDtQueryFilter()
	excl.SetIncludeFlags(0x80)
	_, _, status := f.query.FindRandomPoint(excl, nil)
	assert.True(t, status.DtStatusFailed())
}

func TestFindRandomPointAroundCircle(t *testing.T) {
	f := newFixture(t, newGrid(1, 1))
	start := f.ref(t, 0, 0)

	// A zero radius keeps the pick on the start polygon.
	ref, pt, status := f.query.FindRandomPointAroundCircle(start, f.center(0, 0), 0, f.filter, fixedRand(0.7, 0.2))
	require.True(t, status.DtStatusSucceed())
	assert.Equal(t, start, ref)
	assert.True(t, pt[0] >= 0 && pt[0] <= 1 && pt[2] >= 0 && pt[2] <= 1)

	allowed := map[detour.DtPolyRef]bool{start: true, f.ref(t, 1, 0): true, f.ref(t, 0, 1): true, f.ref(t, 1, 1): true}
	for i := 0; i < 10; i++ {
		ref, _, status = f.query.FindRandomPointAroundCircle(start, f.center(0, 0), 1.2, f.filter, nil)
		require.True(t, status.DtStatusSucceed())
		assert.True(t, allowed[ref])
	}
}
