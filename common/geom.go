package common

// DistancePtSegSqr2D returns the squared xz distance from pt to segment pq and the
// position of the closest point along it.
func DistancePtSegSqr2D(pt, p, q Vec3) (d, t float32) {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d = pqx*pqx + pqz*pqz
	t = pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = Clamp(t, 0, 1)
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz, t
}

// ClosestHeightPointTriangle interpolates the height of triangle abc under p. ok is false
// when p falls outside it on the xz plane.
func ClosestHeightPointTriangle(p, a, b, c Vec3) (h float32, ok bool) {
	const eps = 1e-6
	v0 := c.Sub(a)
	v1 := b.Sub(a)
	v2 := p.Sub(a)

	denom := v0[0]*v1[2] - v0[2]*v1[0]
	if Abs(denom) < eps {
		return 0, false
	}
	u := v1[2]*v2[0] - v1[0]*v2[2]
	v := v0[0]*v2[2] - v0[2]*v2[0]
	if denom < 0 {
		denom = -denom
		u = -u
		v = -v
	}
	if u >= 0 && v >= 0 && u+v <= denom {
		return a[1] + (v0[1]*u+v1[1]*v)/denom, true
	}
	return 0, false
}

// PointInPolygon is an even-odd crossing test of pt against verts on the xz plane.
func PointInPolygon(pt Vec3, verts []Vec3) bool {
	c := false
	for i, j := 0, len(verts)-1; i < len(verts); j, i = i, i+1 {
		vi := verts[i]
		vj := verts[j]
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
	}
	return c
}

// DistancePtPolyEdgesSqr fills ed and et with the squared distance and segment parameter from pt
// to each polygon edge j (verts[j] to verts[j+1]) and reports whether pt is inside the polygon.
func DistancePtPolyEdgesSqr(pt Vec3, verts []Vec3, ed, et []float32) bool {
	c := false
	for i, j := 0, len(verts)-1; i < len(verts); j, i = i, i+1 {
		vi := verts[i]
		vj := verts[j]
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
		ed[j], et[j] = DistancePtSegSqr2D(pt, vj, vi)
	}
	return c
}

// SegmentPolyHit is the result of clipping a segment against a convex polygon.
type SegmentPolyHit struct {
	Tmin, Tmax     float32
	SegMin, SegMax int
}

// IntersectSegmentPoly2D clips the segment p0-p1 against the convex polygon on the xz-plane.
// SegMin/SegMax are the indices of the entered/left edges, -1 when the segment starts/ends inside.
func IntersectSegmentPoly2D(p0, p1 Vec3, verts []Vec3) (hit SegmentPolyHit, ok bool) {
	const eps = 0.000001
	hit = SegmentPolyHit{Tmin: 0, Tmax: 1, SegMin: -1, SegMax: -1}
	dir := p1.Sub(p0)
	for i, j := 0, len(verts)-1; i < len(verts); j, i = i, i+1 {
		edge := verts[i].Sub(verts[j])
		diff := p0.Sub(verts[j])
		n := Vperp2D(edge, diff)
		d := Vperp2D(dir, edge)
		if Abs(d) < eps {
			// parallel
			if n < 0 {
				return hit, false
			}
			continue
		}
		t := n / d
		if d < 0 {
			// entering across this edge
			if t > hit.Tmin {
				hit.Tmin = t
				hit.SegMin = j
				if hit.Tmin > hit.Tmax {
					return hit, false
				}
			}
		} else {
			// leaving across this edge
			if t < hit.Tmax {
				hit.Tmax = t
				hit.SegMax = j
				if hit.Tmax < hit.Tmin {
					return hit, false
				}
			}
		}
	}
	return hit, true
}

func vperpXZ(a, b Vec3) float32 {
	return a[0]*b[2] - a[2]*b[0]
}

// IntersectSegSeg2D intersects segments ap-aq and bp-bq on the xz-plane and returns the
// parametric positions along both. Parallel segments do not intersect.
func IntersectSegSeg2D(ap, aq, bp, bq Vec3) (s, t float32, ok bool) {
	u := aq.Sub(ap)
	v := bq.Sub(bp)
	w := ap.Sub(bp)
	d := vperpXZ(u, v)
	if Abs(d) < 1e-6 {
		return 0, 0, false
	}
	return vperpXZ(v, w) / d, vperpXZ(u, w) / d, true
}

func projectPoly(axis Vec3, poly []Vec3) (rmin, rmax float32) {
	rmin = Vdot2D(axis, poly[0])
	rmax = rmin
	for _, p := range poly[1:] {
		d := Vdot2D(axis, p)
		rmin = min(rmin, d)
		rmax = max(rmax, d)
	}
	return
}

func overlapRange(amin, amax, bmin, bmax, eps float32) bool {
	return !(amin+eps > bmax || amax-eps < bmin)
}

// OverlapPolyPoly2D runs a separating axis test on the xz plane.
func OverlapPolyPoly2D(polya, polyb []Vec3) bool {
	const eps = 1e-4
	separated := func(poly []Vec3) bool {
		for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
			va := poly[j]
			vb := poly[i]
			n := Vec3{vb[2] - va[2], 0, -(vb[0] - va[0])}
			amin, amax := projectPoly(n, polya)
			bmin, bmax := projectPoly(n, polyb)
			if !overlapRange(amin, amax, bmin, bmax, eps) {
				return true
			}
		}
		return false
	}
	return !separated(polya) && !separated(polyb)
}

// RandomPointInConvexPoly maps s, t in [0, 1) to a uniform point in a convex polygon: s
// picks a fan triangle by area, then the point is sampled inside it.
func RandomPointInConvexPoly(pts []Vec3, s, t float32) Vec3 {
	npts := len(pts)
	areas := make([]float32, npts)
	// Calc triangle areas
	areasum := float32(0)
	for i := 2; i < npts; i++ {
		areas[i] = TriArea2D(pts[0], pts[i-1], pts[i])
		areasum += max(0.001, areas[i])
	}
	thr := s * areasum
	acc := float32(0)
	u := float32(1)
	tri := npts - 1
	for i := 2; i < npts; i++ {
		dacc := areas[i]
		if thr >= acc && thr < acc+dacc {
			u = (thr - acc) / dacc
			tri = i
			break
		}
		acc += dacc
	}
	v := Sqrtf(t)
	a := 1 - v
	b := (1 - u) * v
	c := u * v
	pa := pts[0]
	pb := pts[tri-1]
	pc := pts[tri]
	return pa.Mul(a).Add(pb.Mul(b)).Add(pc.Mul(c))
}

func OverlapBounds(amin, amax, bmin, bmax Vec3) bool {
	for i := 0; i < 3; i++ {
		if amin[i] > bmax[i] || amax[i] < bmin[i] {
			return false
		}
	}
	return true
}

func OverlapQuantBounds(amin, amax, bmin, bmax [3]uint16) bool {
	for i := 0; i < 3; i++ {
		if amin[i] > bmax[i] || amax[i] < bmin[i] {
			return false
		}
	}
	return true
}

func ComputeTileHash(x, y, mask int32) int32 {
	h1 := uint32(0x8da6b343) // Large multiplicative constants;
	h2 := uint32(0xd8163841) // here arbitrarily chosen primes
	n := h1*uint32(x) + h2*uint32(y)
	return int32(n & uint32(mask))
}

// CalcPolyCenter returns the average of the polygon vertices.
func CalcPolyCenter(verts []Vec3) Vec3 {
	var c Vec3
	for _, v := range verts {
		c = c.Add(v)
	}
	return c.Mul(1 / float32(len(verts)))
}
