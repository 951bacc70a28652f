package detour

import (
	"math"
	"sort"

	"github.com/gorustyt/gonavquery/common"
)

// MESH_NULL_IDX marks unused vertex slots in DtNavMeshCreateParams.Polys.
const MESH_NULL_IDX = 0xffff

// DtNavMeshCreateParams is the polygon mesh of one tile in voxel units, plus optional
// detail meshes and off-mesh connections.
type DtNavMeshCreateParams struct {
	// Polygon vertices as voxel (x, y, z) triples, relative to Bmin.
	Verts     []uint16
	VertCount int
	// Nvp vertex indices then Nvp neighbour entries per polygon. Unused slots hold
	// MESH_NULL_IDX; a neighbour of 0x8000|dir is a tile border (0 west, 1 north, 2 east, 3 south).
	Polys     []uint16
	PolyFlags []uint16
	PolyAreas []uint8
	PolyCount int
	Nvp       int

	// Detail meshes are (vertBase, vertCount, triBase, triCount) per polygon. Without them
	// each polygon is fanned into triangles.
	DetailMeshes     []uint32
	DetailVerts      []float32
	DetailVertsCount int
	DetailTris       []uint8
	DetailTriCount   int

	OffMeshConVerts  []float32 // (ax, ay, az, bx, by, bz) per connection
	OffMeshConRad    []float32
	OffMeshConFlags  []uint16
	OffMeshConAreas  []uint8
	OffMeshConDir    []uint8 // 0 for A to B only, DT_OFFMESH_CON_BIDIR
	OffMeshConUserID []uint32
	OffMeshConCount  int

	UserId    uint32
	TileX     int32
	TileY     int32 // grid z
	TileLayer int32
	Bmin      common.Vec3
	Bmax      common.Vec3

	WalkableHeight float32
	WalkableRadius float32
	WalkableClimb  float32
	Cs             float32
	Ch             float32
	BuildBvTree    bool
}

type bvItem struct {
	bmin [3]uint16
	bmax [3]uint16
	i    int32
}

func calcExtends(items []bvItem) (bmin, bmax [3]uint16) {
	bmin = items[0].bmin
	bmax = items[0].bmax
	for _, it := range items[1:] {
		for k := 0; k < 3; k++ {
			bmin[k] = min(bmin[k], it.bmin[k])
			bmax[k] = max(bmax[k], it.bmax[k])
		}
	}
	return bmin, bmax
}

func longestAxis(x, y, z uint16) int {
	axis := 0
	maxVal := x
	if y > maxVal {
		axis = 1
		maxVal = y
	}
	if z > maxVal {
		axis = 2
	}
	return axis
}

func subdivide(items []bvItem, imin, imax int, curNode *int, nodes []DtBVNode) {
	inum := imax - imin
	icur := *curNode

	node := &nodes[*curNode]
	*curNode++

	if inum == 1 {
		// Leaf
		node.Bmin = items[imin].bmin
		node.Bmax = items[imin].bmax
		node.I = items[imin].i
		return
	}

	// Split
	node.Bmin, node.Bmax = calcExtends(items[imin:imax])
	axis := longestAxis(node.Bmax[0]-node.Bmin[0], node.Bmax[1]-node.Bmin[1], node.Bmax[2]-node.Bmin[2])

	// Sort along the longest axis.
	part := items[imin:imax]
	sort.SliceStable(part, func(i, j int) bool {
		return part[i].bmin[axis] < part[j].bmin[axis]
	})

	isplit := imin + inum/2
	// Left
	subdivide(items, imin, isplit, curNode, nodes)
	// Right
	subdivide(items, isplit, imax, curNode, nodes)

	// escape offset
	node.I = -int32(*curNode - icur)
}

func quantizeBV(v, origin, quantFactor float32) uint16 {
	return uint16(common.Clamp(int(math.Floor(float64((v-origin)*quantFactor))), 0, 0xffff))
}

func createBVTree(params *DtNavMeshCreateParams, nodes []DtBVNode) int {
	quantFactor := 1 / params.Cs
	items := make([]bvItem, params.PolyCount)
	for i := range items {
		it := &items[i]
		it.i = int32(i)
		if len(params.DetailMeshes) > 0 {
			vb := int(params.DetailMeshes[i*4+0])
			ndv := int(params.DetailMeshes[i*4+1])
			bmin := common.GetVert3(params.DetailVerts, vb)
			bmax := bmin
			for j := 1; j < ndv; j++ {
				v := common.GetVert3(params.DetailVerts, vb+j)
				bmin = common.Vmin(bmin, v)
				bmax = common.Vmax(bmax, v)
			}
			// Quantized with cs on every axis.
			for k := 0; k < 3; k++ {
				it.bmin[k] = quantizeBV(bmin[k], params.Bmin[k], quantFactor)
				it.bmax[k] = quantizeBV(bmax[k], params.Bmin[k], quantFactor)
			}
		} else {
			p := params.Polys[i*params.Nvp*2:]
			for k := 0; k < 3; k++ {
				it.bmin[k] = params.Verts[int(p[0])*3+k]
				it.bmax[k] = it.bmin[k]
			}
			for j := 1; j < params.Nvp; j++ {
				if p[j] == MESH_NULL_IDX {
					break
				}
				for k := 0; k < 3; k++ {
					c := params.Verts[int(p[j])*3+k]
					it.bmin[k] = min(it.bmin[k], c)
					it.bmax[k] = max(it.bmax[k], c)
				}
			}
			it.bmin[1] = uint16(math.Floor(float64(float32(it.bmin[1]) * params.Ch / params.Cs)))
			it.bmax[1] = uint16(math.Ceil(float64(float32(it.bmax[1]) * params.Ch / params.Cs)))
		}
	}

	curNode := 0
	subdivide(items, 0, len(items), &curNode, nodes)
	return curNode
}

const (
	offMeshXP = 1 << 0
	offMeshZP = 1 << 1
	offMeshXM = 1 << 2
	offMeshZM = 1 << 3
)

// classifyOffMeshPoint returns the neighbour side a point outside the tile falls on,
// or 0xff when the point is inside the tile bounds.
func classifyOffMeshPoint(pt, bmin, bmax common.Vec3) uint8 {
	outcode := 0
	if pt[0] >= bmax[0] {
		outcode |= offMeshXP
	}
	if pt[2] >= bmax[2] {
		outcode |= offMeshZP
	}
	if pt[0] < bmin[0] {
		outcode |= offMeshXM
	}
	if pt[2] < bmin[2] {
		outcode |= offMeshZM
	}

	switch outcode {
	case offMeshXP:
		return 0
	case offMeshXP | offMeshZP:
		return 1
	case offMeshZP:
		return 2
	case offMeshXM | offMeshZP:
		return 3
	case offMeshXM:
		return 4
	case offMeshXM | offMeshZM:
		return 5
	case offMeshZM:
		return 6
	case offMeshXP | offMeshZM:
		return 7
	}
	return 0xff
}

func (params *DtNavMeshCreateParams) polyVertCount(i int) int {
	p := params.Polys[i*params.Nvp*2:]
	nv := 0
	for j := 0; j < params.Nvp; j++ {
		if p[j] == MESH_NULL_IDX {
			break
		}
		nv++
	}
	return nv
}

func (params *DtNavMeshCreateParams) valid() bool {
	if params == nil || params.Nvp < 3 || params.Nvp > DT_VERTS_PER_POLYGON {
		return false
	}
	if params.VertCount == 0 || params.VertCount >= 0xffff || len(params.Verts) < params.VertCount*3 {
		return false
	}
	if params.PolyCount == 0 || len(params.Polys) < params.PolyCount*params.Nvp*2 ||
		len(params.PolyFlags) < params.PolyCount || len(params.PolyAreas) < params.PolyCount {
		return false
	}
	if !(params.Cs > 0) || !(params.Ch > 0) {
		return false
	}
	if len(params.DetailMeshes) > 0 {
		if len(params.DetailMeshes) < params.PolyCount*4 ||
			len(params.DetailVerts) < params.DetailVertsCount*3 ||
			len(params.DetailTris) < params.DetailTriCount*4 {
			return false
		}
	}
	n := params.OffMeshConCount
	if n < 0 {
		return false
	}
	if n > 0 && (len(params.OffMeshConVerts) < n*6 || len(params.OffMeshConRad) < n ||
		len(params.OffMeshConFlags) < n || len(params.OffMeshConAreas) < n || len(params.OffMeshConDir) < n) {
		return false
	}
	return true
}

// DtCreateNavMeshData turns params into tile data for DtNavMesh.AddTile. Off-mesh connections
// whose start lies outside the tile bounds are dropped.
func DtCreateNavMeshData(params *DtNavMeshCreateParams) (*NavMeshData, DtStatus) {
	if !params.valid() {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	nvp := params.Nvp

	// Classify off-mesh end points; only starts inside the tile are kept.
	offMeshConClass := make([]uint8, params.OffMeshConCount*2)
	storedOffMeshConCount := 0
	offMeshConLinkCount := 0

	if params.OffMeshConCount > 0 {
		// Height range of the polygons.
		hmin := float32(math.MaxFloat32)
		hmax := float32(-math.MaxFloat32)
		if len(params.DetailVerts) > 0 && params.DetailVertsCount > 0 {
			for i := 0; i < params.DetailVertsCount; i++ {
				h := params.DetailVerts[i*3+1]
				hmin = min(hmin, h)
				hmax = max(hmax, h)
			}
		} else {
			for i := 0; i < params.VertCount; i++ {
				h := params.Bmin[1] + float32(params.Verts[i*3+1])*params.Ch
				hmin = min(hmin, h)
				hmax = max(hmax, h)
			}
		}
		hmin -= params.WalkableClimb
		hmax += params.WalkableClimb
		bmin := params.Bmin
		bmax := params.Bmax
		bmin[1] = hmin
		bmax[1] = hmax

		for i := 0; i < params.OffMeshConCount; i++ {
			p0 := common.GetVert3(params.OffMeshConVerts, i*2+0)
			p1 := common.GetVert3(params.OffMeshConVerts, i*2+1)
			offMeshConClass[i*2+0] = classifyOffMeshPoint(p0, bmin, bmax)
			offMeshConClass[i*2+1] = classifyOffMeshPoint(p1, bmin, bmax)

			// Starts outside the height range cannot attach.
			if offMeshConClass[i*2+0] == 0xff {
				if p0[1] < bmin[1] || p0[1] > bmax[1] {
					offMeshConClass[i*2+0] = 0
				}
			}

			// Count how many links should be allocated for off-mesh connections.
			if offMeshConClass[i*2+0] == 0xff {
				offMeshConLinkCount++
			}
			if offMeshConClass[i*2+1] == 0xff {
				offMeshConLinkCount++
			}
			if offMeshConClass[i*2+0] == 0xff {
				storedOffMeshConCount++
			}
		}
	}

	totPolyCount := params.PolyCount + storedOffMeshConCount
	totVertCount := params.VertCount + storedOffMeshConCount*2

	edgeCount := 0
	portalCount := 0
	for i := 0; i < params.PolyCount; i++ {
		p := params.Polys[i*2*nvp:]
		for j := 0; j < nvp; j++ {
			if p[j] == MESH_NULL_IDX {
				break
			}
			edgeCount++
			if p[nvp+j]&0x8000 != 0 {
				dir := p[nvp+j] & 0xf
				if dir != 0xf {
					portalCount++
				}
			}
		}
	}
	maxLinkCount := edgeCount + portalCount*2 + offMeshConLinkCount*2

	uniqueDetailVertCount := 0
	detailTriCount := 0
	if len(params.DetailMeshes) > 0 {
		detailTriCount = params.DetailTriCount
		for i := 0; i < params.PolyCount; i++ {
			ndv := int(params.DetailMeshes[i*4+1])
			uniqueDetailVertCount += ndv - params.polyVertCount(i)
		}
	} else {
		for i := 0; i < params.PolyCount; i++ {
			detailTriCount += params.polyVertCount(i) - 2
		}
	}

	header := &DtMeshHeader{
		Magic:           DT_NAVMESH_MAGIC,
		Version:         DT_NAVMESH_VERSION,
		X:               params.TileX,
		Y:               params.TileY,
		Layer:           params.TileLayer,
		UserId:          params.UserId,
		PolyCount:       int32(totPolyCount),
		VertCount:       int32(totVertCount),
		MaxLinkCount:    int32(maxLinkCount),
		Bmin:            params.Bmin,
		Bmax:            params.Bmax,
		DetailMeshCount: int32(params.PolyCount),
		DetailVertCount: int32(uniqueDetailVertCount),
		DetailTriCount:  int32(detailTriCount),
		BvQuantFactor:   1.0 / params.Cs,
		OffMeshBase:     int32(params.PolyCount),
		WalkableHeight:  params.WalkableHeight,
		WalkableRadius:  params.WalkableRadius,
		WalkableClimb:   params.WalkableClimb,
		OffMeshConCount: int32(storedOffMeshConCount),
	}
	data := &NavMeshData{
		Header:       header,
		Verts:        make([]float32, 3*totVertCount),
		Polys:        make([]DtPoly, totPolyCount),
		Links:        make([]DtLink, maxLinkCount),
		DetailMeshes: make([]DtPolyDetail, params.PolyCount),
		DetailVerts:  make([]float32, 3*uniqueDetailVertCount),
		DetailTris:   make([]uint8, 4*detailTriCount),
		OffMeshCons:  make([]DtOffMeshConnection, storedOffMeshConCount),
	}

	offMeshVertsBase := params.VertCount
	offMeshPolyBase := params.PolyCount

	for i := 0; i < params.VertCount; i++ {
		iv := params.Verts[i*3:]
		common.SetVert3(data.Verts, i, common.Vec3{
			params.Bmin[0] + float32(iv[0])*params.Cs,
			params.Bmin[1] + float32(iv[1])*params.Ch,
			params.Bmin[2] + float32(iv[2])*params.Cs,
		})
	}
	n := 0
	for i := 0; i < params.OffMeshConCount; i++ {
		// Connections starting in another tile are stored there.
		if offMeshConClass[i*2+0] == 0xff {
			copy(data.Verts[(offMeshVertsBase+n*2)*3:], params.OffMeshConVerts[i*6:i*6+6])
			n++
		}
	}

	for i := 0; i < params.PolyCount; i++ {
		src := params.Polys[i*nvp*2:]
		p := &data.Polys[i]
		p.VertCount = 0
		p.Flags = params.PolyFlags[i]
		p.SetArea(params.PolyAreas[i])
		p.SetType(DT_POLYTYPE_GROUND)
		for j := 0; j < nvp; j++ {
			if src[j] == MESH_NULL_IDX {
				break
			}
			p.Verts[j] = src[j]
			if src[nvp+j]&0x8000 != 0 {
				switch src[nvp+j] & 0xf {
				case 0xf: // Border
					p.Neis[j] = 0
				case 0: // Portal x-
					p.Neis[j] = DT_EXT_LINK | 4
				case 1: // Portal z+
					p.Neis[j] = DT_EXT_LINK | 2
				case 2: // Portal x+
					p.Neis[j] = DT_EXT_LINK | 0
				case 3: // Portal z-
					p.Neis[j] = DT_EXT_LINK | 6
				}
			} else {
				p.Neis[j] = src[nvp+j] + 1
			}
			p.VertCount++
		}
	}
	// Off-mesh connection polys.
	n = 0
	for i := 0; i < params.OffMeshConCount; i++ {
		// Connections starting in another tile are stored there.
		if offMeshConClass[i*2+0] == 0xff {
			p := &data.Polys[offMeshPolyBase+n]
			p.VertCount = 2
			p.Verts[0] = uint16(offMeshVertsBase + n*2 + 0)
			p.Verts[1] = uint16(offMeshVertsBase + n*2 + 1)
			p.Flags = params.OffMeshConFlags[i]
			p.SetArea(params.OffMeshConAreas[i])
			p.SetType(DT_POLYTYPE_OFFMESH_CONNECTION)
			n++
		}
	}

	// Detail meshes omit the polygon's own vertices, which come first.
	if len(params.DetailMeshes) > 0 {
		vbase := 0
		for i := 0; i < params.PolyCount; i++ {
			dtl := &data.DetailMeshes[i]
			vb := int(params.DetailMeshes[i*4+0])
			ndv := int(params.DetailMeshes[i*4+1])
			nv := int(data.Polys[i].VertCount)
			dtl.VertBase = uint32(vbase)
			dtl.VertCount = uint8(ndv - nv)
			dtl.TriBase = params.DetailMeshes[i*4+2]
			dtl.TriCount = uint8(params.DetailMeshes[i*4+3])
			if ndv-nv > 0 {
				copy(data.DetailVerts[vbase*3:], params.DetailVerts[(vb+nv)*3:(vb+ndv)*3])
				vbase += ndv - nv
			}
		}
		copy(data.DetailTris, params.DetailTris[:4*params.DetailTriCount])
	} else {
		tbase := 0
		for i := 0; i < params.PolyCount; i++ {
			dtl := &data.DetailMeshes[i]
			nv := int(data.Polys[i].VertCount)
			dtl.VertBase = 0
			dtl.VertCount = 0
			dtl.TriBase = uint32(tbase)
			dtl.TriCount = uint8(nv - 2)
			for j := 2; j < nv; j++ {
				t := data.DetailTris[tbase*4 : tbase*4+4]
				t[0] = 0
				t[1] = uint8(j - 1)
				t[2] = uint8(j)
				t[3] = 1 << 2
				if j == 2 {
					t[3] |= 1 << 0
				}
				if j == nv-1 {
					t[3] |= 1 << 4
				}
				tbase++
			}
		}
	}

	if params.BuildBvTree {
		nodes := make([]DtBVNode, params.PolyCount*2)
		count := createBVTree(params, nodes)
		data.BvTree = nodes[:count]
		header.BvNodeCount = int32(count)
	}

	n = 0
	for i := 0; i < params.OffMeshConCount; i++ {
		// Connections starting in another tile are stored there.
		if offMeshConClass[i*2+0] == 0xff {
			con := &data.OffMeshCons[n]
			con.Poly = uint16(offMeshPolyBase + n)
			copy(con.Pos[:], params.OffMeshConVerts[i*6:i*6+6])
			con.Rad = params.OffMeshConRad[i]
			con.Flags = 0
			if params.OffMeshConDir[i] != 0 {
				con.Flags = DT_OFFMESH_CON_BIDIR
			}
			con.Side = offMeshConClass[i*2+1]
			if len(params.OffMeshConUserID) > i {
				con.UserId = params.OffMeshConUserID[i]
			}
			n++
		}
	}

	return data, DT_SUCCESS
}
