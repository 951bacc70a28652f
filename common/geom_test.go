package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare() []Vec3 {
	return []Vec3{{0, 0, 0}, {0, 0, 1}, {1, 0, 1}, {1, 0, 0}}
}

func TestDistancePtSegSqr2D(t *testing.T) {
	d, tt := DistancePtSegSqr2D(Vec3{0, 5, 1}, Vec3{-1, 0, 0}, Vec3{1, 0, 0})
	assert.InDelta(t, 1, d, 1e-6)
	assert.InDelta(t, 0.5, tt, 1e-6)

	d, tt = DistancePtSegSqr2D(Vec3{3, 0, 0}, Vec3{-1, 0, 0}, Vec3{1, 0, 0})
	assert.InDelta(t, 4, d, 1e-6)
	assert.InDelta(t, 1, tt, 1e-6)
}

func TestClosestHeightPointTriangle(t *testing.T) {
	a, b, c := Vec3{0, 2, 0}, Vec3{0, 2, 1}, Vec3{1, 2, 0}
	h, ok := ClosestHeightPointTriangle(Vec3{0.2, 0, 0.2}, a, b, c)
	require.True(t, ok)
	assert.InDelta(t, 2, h, 1e-5)

	_, ok = ClosestHeightPointTriangle(Vec3{2, 0, 2}, a, b, c)
	assert.False(t, ok)

	// degenerate
	_, ok = ClosestHeightPointTriangle(Vec3{0, 0, 0}, a, a, a)
	assert.False(t, ok)
}

func TestPointInPolygon(t *testing.T) {
	sq := unitSquare()
	assert.True(t, PointInPolygon(Vec3{0.5, 10, 0.5}, sq))
	assert.False(t, PointInPolygon(Vec3{1.5, 0, 0.5}, sq))
	assert.False(t, PointInPolygon(Vec3{0.5, 0, -0.1}, sq))
}

func TestDistancePtPolyEdgesSqr(t *testing.T) {
	sq := unitSquare()
	ed := make([]float32, len(sq))
	et := make([]float32, len(sq))
	inside := DistancePtPolyEdgesSqr(Vec3{1.5, 0, 0.5}, sq, ed, et)
	assert.False(t, inside)
	// edge 2 runs along x=1
	assert.InDelta(t, 0.25, ed[2], 1e-6)
	assert.InDelta(t, 0.5, et[2], 1e-6)
}

func TestIntersectSegmentPoly2D(t *testing.T) {
	sq := unitSquare()
	hit, ok := IntersectSegmentPoly2D(Vec3{0.5, 0, 0.5}, Vec3{1.5, 0, 0.5}, sq)
	require.True(t, ok)
	assert.Equal(t, -1, hit.SegMin)
	assert.Equal(t, 2, hit.SegMax)
	assert.InDelta(t, 0.5, hit.Tmax, 1e-6)

	hit, ok = IntersectSegmentPoly2D(Vec3{0.2, 0, 0.5}, Vec3{0.8, 0, 0.5}, sq)
	require.True(t, ok)
	assert.Equal(t, -1, hit.SegMax)
	assert.InDelta(t, 1, hit.Tmax, 1e-6)

	_, ok = IntersectSegmentPoly2D(Vec3{2, 0, 2}, Vec3{3, 0, 3}, sq)
	assert.False(t, ok)
}

func TestIntersectSegSeg2D(t *testing.T) {
	s, tt, ok := IntersectSegSeg2D(Vec3{0, 0, 0}, Vec3{2, 0, 0}, Vec3{1, 0, -1}, Vec3{1, 0, 1})
	require.True(t, ok)
	assert.InDelta(t, 0.5, s, 1e-6)
	assert.InDelta(t, 0.5, tt, 1e-6)

	_, _, ok = IntersectSegSeg2D(Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 0, 1}, Vec3{1, 0, 1})
	assert.False(t, ok)
}

func TestOverlapPolyPoly2D(t *testing.T) {
	a := unitSquare()
	shifted := func(dx, dz float32) []Vec3 {
		out := make([]Vec3, len(a))
		for i, v := range a {
			out[i] = v.Add(Vec3{dx, 0, dz})
		}
		return out
	}
	assert.True(t, OverlapPolyPoly2D(a, shifted(0.5, 0.5)))
	assert.False(t, OverlapPolyPoly2D(a, shifted(3, 0)))
	// shared edge only
	assert.False(t, OverlapPolyPoly2D(a, shifted(1, 0)))
}

func TestRandomPointInConvexPoly(t *testing.T) {
	sq := unitSquare()
	for _, st := range [][2]float32{{0, 0}, {0.3, 0.7}, {0.99, 0.99}, {0.5, 0.01}} {
		p := RandomPointInConvexPoly(sq, st[0], st[1])
		assert.GreaterOrEqual(t, p[0], float32(-1e-5))
		assert.LessOrEqual(t, p[0], float32(1+1e-5))
		assert.GreaterOrEqual(t, p[2], float32(-1e-5))
		assert.LessOrEqual(t, p[2], float32(1+1e-5))
	}
}

func TestOverlapBounds(t *testing.T) {
	assert.True(t, OverlapBounds(Vec3{0, 0, 0}, Vec3{1, 1, 1}, Vec3{1, 1, 1}, Vec3{2, 2, 2}))
	assert.False(t, OverlapBounds(Vec3{0, 0, 0}, Vec3{1, 1, 1}, Vec3{1, 1.5, 1}, Vec3{2, 2, 2}))
	assert.True(t, OverlapQuantBounds([3]uint16{0, 0, 0}, [3]uint16{4, 4, 4}, [3]uint16{4, 0, 0}, [3]uint16{8, 8, 8}))
	assert.False(t, OverlapQuantBounds([3]uint16{0, 0, 0}, [3]uint16{4, 4, 4}, [3]uint16{5, 0, 0}, [3]uint16{8, 8, 8}))
}

func TestComputeTileHash(t *testing.T) {
	for x := int32(-4); x < 4; x++ {
		for y := int32(-4); y < 4; y++ {
			h := ComputeTileHash(x, y, 15)
			assert.GreaterOrEqual(t, h, int32(0))
			assert.LessOrEqual(t, h, int32(15))
		}
	}
}

func TestCalcPolyCenter(t *testing.T) {
	c := CalcPolyCenter(unitSquare())
	assert.True(t, c.ApproxEqual(Vec3{0.5, 0, 0.5}))
}

func TestScalars(t *testing.T) {
	assert.Equal(t, uint32(8), NextPow2(5))
	assert.Equal(t, uint32(8), NextPow2(8))
	assert.Equal(t, 3, Clamp(7, 0, 3))
	assert.Equal(t, float32(2.5), Abs(float32(-2.5)))

	assert.True(t, IsFinite(1))
	assert.False(t, IsFinite(float32(math.NaN())))
	assert.False(t, IsFinite(float32(math.Inf(1))))
	assert.True(t, Visfinite(Vec3{1, 2, 3}))
	assert.False(t, Visfinite(Vec3{1, float32(math.Inf(-1)), 3}))
	assert.True(t, Visfinite2D(Vec3{1, float32(math.NaN()), 3}))

	assert.True(t, Vequal(Vec3{1, 1, 1}, Vec3{1, 1, 1.00001}))
	assert.False(t, Vequal(Vec3{1, 1, 1}, Vec3{1, 1, 1.1}))
	assert.InDelta(t, 1, TriArea2D(Vec3{0, 0, 0}, Vec3{0, 0, 1}, Vec3{1, 0, 1}), 1e-6)
	assert.InDelta(t, 5, Vdist(Vec3{0, 0, 0}, Vec3{3, 4, 0}), 1e-6)
	assert.True(t, Vnormalize(Vec3{0, 0, 2}).ApproxEqual(Vec3{0, 0, 1}))
	assert.Equal(t, Vec3{}, Vnormalize(Vec3{}))
}
