package detour

import (
	"math"

	"github.com/gorustyt/gonavquery/common"
)

const portalEps = 0.01

func allocLink(tile *DtMeshTile) uint32 {
	idx := tile.linksFreeList
	if idx != DT_NULL_LINK {
		tile.linksFreeList = tile.Links[idx].Next
	}
	return idx
}

func freeLink(tile *DtMeshTile, link uint32) {
	tile.Links[link].Next = tile.linksFreeList
	tile.linksFreeList = link
}

// pushLink prepends a link to poly's list. It reports false when the tile is out of links.
func pushLink(tile *DtMeshTile, poly *DtPoly, ref DtPolyRef, edge, side, bmin, bmax uint8) bool {
	idx := allocLink(tile)
	if idx == DT_NULL_LINK {
		return false
	}
	tile.Links[idx] = DtLink{Ref: ref, Next: poly.FirstLink, Edge: edge, Side: side, Bmin: bmin, Bmax: bmax}
	poly.FirstLink = idx
	return true
}

// slabAxes returns the axis perpendicular to a tile border and the axis running along it.
// Diagonal sides have no slab.
func slabAxes(side int) (across, along int, ok bool) {
	switch side {
	case 0, 4:
		return 0, 2, true
	case 2, 6:
		return 2, 0, true
	}
	return 0, 0, false
}

// slab flattens an edge lying on a tile border to 2D: x is the position along the border
// and y the height, ordered by x.
type slab struct {
	lo, hi [2]float32
	pos    float32 // border coordinate
}

func makeSlab(va, vb common.Vec3, side int) (s slab) {
	across, along, ok := slabAxes(side)
	if !ok {
		return s
	}
	s.pos = va[across]
	s.lo = [2]float32{va[along], va[1]}
	s.hi = [2]float32{vb[along], vb[1]}
	if s.hi[0] < s.lo[0] {
		s.lo, s.hi = s.hi, s.lo
	}
	return s
}

// touches reports whether two slabs share a stretch of border at compatible heights.
// Slabs meeting only at their end points are not connected.
func (a slab) touches(b slab, px, climb float32) bool {
	x0 := max(a.lo[0], b.lo[0]) + px
	x1 := min(a.hi[0], b.hi[0]) - px
	if x0 > x1 {
		return false
	}
	heightAt := func(s slab, x float32) float32 {
		d := (s.hi[1] - s.lo[1]) / (s.hi[0] - s.lo[0])
		return s.lo[1] + d*(x-s.lo[0])
	}
	d0 := heightAt(b, x0) - heightAt(a, x0)
	d1 := heightAt(b, x1) - heightAt(a, x1)
	if d0*d1 < 0 {
		return true // crossing
	}
	lim := common.Sqr(climb * 2)
	return d0*d0 <= lim || d1*d1 <= lim
}

// findConnectingPolys lists the polygons of tile with a portal on side matching the edge
// va-vb, with the shared interval along the border for each.
func (mesh *DtNavMesh) findConnectingPolys(va, vb common.Vec3, tile *DtMeshTile, side int, maxcon int) (con []DtPolyRef, conarea [][2]float32) {
	if tile == nil {
		return nil, nil
	}
	a := makeSlab(va, vb, side)
	want := uint16(DT_EXT_LINK | side)
	base := mesh.GetPolyRefBase(tile)
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		nv := int(poly.VertCount)
		for j := 0; j < nv; j++ {
			if poly.Neis[j] != want {
				continue
			}
			b := makeSlab(tile.GetVert(poly.Verts[j]), tile.GetVert(poly.Verts[(j+1)%nv]), side)
			if common.Abs(a.pos-b.pos) > portalEps || !a.touches(b, portalEps, tile.Header.WalkableClimb) {
				continue
			}
			if len(con) < maxcon {
				con = append(con, base|DtPolyRef(i))
				conarea = append(conarea, [2]float32{max(a.lo[0], b.lo[0]), min(a.hi[0], b.hi[0])})
			}
			break
		}
	}
	return con, conarea
}

// unconnectLinks drops every link of tile that points into target.
func (mesh *DtNavMesh) unconnectLinks(tile, target *DtMeshTile) {
	if tile == nil || target == nil {
		return
	}
	for i := range tile.Polys {
		prev := &tile.Polys[i].FirstLink
		for *prev != DT_NULL_LINK {
			cur := *prev
			if mesh.DecodePolyIdTile(tile.Links[cur].Ref) != target.index {
				prev = &tile.Links[cur].Next
				continue
			}
			*prev = tile.Links[cur].Next
			freeLink(tile, cur)
		}
	}
}

// connectExtLinks links the portal edges of tile on side (-1 for all sides) to target.
func (mesh *DtNavMesh) connectExtLinks(tile, target *DtMeshTile, side int) {
	if tile == nil {
		return
	}
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		nv := int(poly.VertCount)
		for j := 0; j < nv; j++ {
			if poly.Neis[j]&DT_EXT_LINK == 0 {
				continue
			}
			dir := int(poly.Neis[j] & 0xff)
			if side != -1 && dir != side {
				continue
			}
			va := tile.GetVert(poly.Verts[j])
			vb := tile.GetVert(poly.Verts[(j+1)%nv])
			nei, neia := mesh.findConnectingPolys(va, vb, target, dtOppositeTile(dir), 4)
			_, along, ok := slabAxes(dir)
			for k, ref := range nei {
				bmin, bmax := uint8(0), uint8(255)
				if ok {
					span := vb[along] - va[along]
					tmin := (neia[k][0] - va[along]) / span
					tmax := (neia[k][1] - va[along]) / span
					if tmin > tmax {
						tmin, tmax = tmax, tmin
					}
					bmin, bmax = quantizePortal(tmin), quantizePortal(tmax)
				}
				pushLink(tile, poly, ref, uint8(j), uint8(dir), bmin, bmax)
			}
		}
	}
}

func quantizePortal(t float32) uint8 {
	return uint8(math.Round(float64(common.Clamp(t, 0, 1) * 255)))
}

// snapToTile finds the polygon of tile under an off-mesh end point. The hit must lie within
// rad of p on the xz plane and within climb of it vertically.
func (mesh *DtNavMesh) snapToTile(tile *DtMeshTile, p common.Vec3, rad, climb float32) (DtPolyRef, common.Vec3, bool) {
	ext := common.Vec3{rad, climb, rad}
	ref, pt := mesh.FindNearestPolyInTile(tile, p, ext)
	if ref == 0 || common.Sqr(pt[0]-p[0])+common.Sqr(pt[2]-p[2]) > common.Sqr(rad) {
		return 0, pt, false
	}
	return ref, pt, true
}

// connectExtOffMeshLinks lands the off-mesh connections of target whose end point falls
// in tile, across side (-1 when tile and target are the same cell).
func (mesh *DtNavMesh) connectExtOffMeshLinks(tile, target *DtMeshTile, side int) {
	if tile == nil {
		return
	}
	landSide := uint8(0xff)
	if side != -1 {
		landSide = uint8(dtOppositeTile(side))
	}
	backSide := uint8(0xff)
	if side != -1 {
		backSide = uint8(side)
	}
	conBase := mesh.GetPolyRefBase(target)
	for i := range target.OffMeshCons {
		con := &target.OffMeshCons[i]
		if con.Side != landSide {
			continue
		}
		conPoly := &target.Polys[con.Poly]
		// Start never attached.
		if conPoly.FirstLink == DT_NULL_LINK {
			continue
		}
		ref, pt, ok := mesh.snapToTile(tile, con.EndPos(), con.Rad, target.Header.WalkableClimb)
		if !ok {
			continue
		}
		common.SetVert3(target.Verts, conPoly.Verts[1], pt)
		pushLink(target, conPoly, ref, 1, landSide, 0, 0)

		if con.Flags&DT_OFFMESH_CON_BIDIR != 0 {
			land := &tile.Polys[mesh.DecodePolyIdPoly(ref)]
			pushLink(tile, land, conBase|DtPolyRef(con.Poly), 0xff, backSide, 0, 0)
		}
	}
}

// connectIntLinks rebuilds the links between polygons of the same tile. Edges are visited
// in reverse so each list ends up in edge order.
func (mesh *DtNavMesh) connectIntLinks(tile *DtMeshTile) {
	if tile == nil {
		return
	}
	base := mesh.GetPolyRefBase(tile)
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		poly.FirstLink = DT_NULL_LINK
		if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}
		for j := int(poly.VertCount) - 1; j >= 0; j-- {
			nei := poly.Neis[j]
			if nei == 0 || nei&DT_EXT_LINK != 0 {
				continue
			}
			pushLink(tile, poly, base|DtPolyRef(nei-1), uint8(j), 0xff, 0, 0)
		}
	}
}

// baseOffMeshLinks attaches the start of every off-mesh connection of tile. The start side
// always links back to the connection, whatever its direction.
func (mesh *DtNavMesh) baseOffMeshLinks(tile *DtMeshTile) {
	if tile == nil {
		return
	}
	base := mesh.GetPolyRefBase(tile)
	for i := range tile.OffMeshCons {
		con := &tile.OffMeshCons[i]
		conPoly := &tile.Polys[con.Poly]
		ref, pt, ok := mesh.snapToTile(tile, con.StartPos(), con.Rad, tile.Header.WalkableClimb)
		if !ok {
			continue
		}
		common.SetVert3(tile.Verts, conPoly.Verts[0], pt)
		pushLink(tile, conPoly, ref, 0, 0xff, 0, 0)

		land := &tile.Polys[mesh.DecodePolyIdPoly(ref)]
		pushLink(tile, land, base|DtPolyRef(con.Poly), 0xff, 0xff, 0, 0)
	}
}
