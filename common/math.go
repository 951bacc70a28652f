package common

import (
	"cmp"
	"math"
	"math/bits"
)

// colocated points are closer than 1/16384.
var vequalEpsSqr = Sqr(float32(1.0) / 16384.0)

func Sqr[T IT](a T) T { return a * a }

func Abs[T IT](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// Clamp limits v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

func Sqrtf(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// Vlerp moves from a toward b by t.
func Vlerp(a, b Vec3, t float32) Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Vmad returns v1 + v2*s.
func Vmad(v1, v2 Vec3, s float32) Vec3 {
	return v1.Add(v2.Mul(s))
}

func Vmin(a, b Vec3) Vec3 {
	return Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

func Vmax(a, b Vec3) Vec3 {
	return Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
}

// Vdist returns the distance between two points.
func Vdist(v1, v2 Vec3) float32 {
	return v2.Sub(v1).Len()
}

// VdistSqr returns the square of the distance between two points.
func VdistSqr(v1, v2 Vec3) float32 {
	return VlenSqr(v2.Sub(v1))
}

func VlenSqr(v Vec3) float32 {
	return v.Dot(v)
}

// Vnormalize returns v scaled to unit length; a zero vector is returned unchanged.
func Vnormalize(v Vec3) Vec3 {
	l := v.Len()
	if l <= 0 {
		return v
	}
	return v.Mul(1 / l)
}

// Vequal is a loose equality used to merge path vertices.
func Vequal(p0, p1 Vec3) bool {
	return VdistSqr(p0, p1) < vequalEpsSqr
}

// Vperp2D is the perp product of u and v on the xz plane.
func Vperp2D(u, v Vec3) float32 {
	return u[2]*v[0] - u[0]*v[2]
}

func Vdot2D(u, v Vec3) float32 {
	return u[0]*v[0] + u[2]*v[2]
}

// TriArea2D returns twice the signed xz area of abc.
func TriArea2D(a, b, c Vec3) float32 {
	return Vperp2D(b.Sub(a), c.Sub(a))
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float32) bool {
	f := float64(v)
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func Visfinite(v Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// Visfinite2D ignores y.
func Visfinite2D(v Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[2])
}

// NextPow2 rounds v up to a power of two.
func NextPow2(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	return 1 << (32 - bits.LeadingZeros32(v-1))
}
