package detour

import (
	"container/heap"

	"github.com/gorustyt/gonavquery/common"
)

const (
	DT_NODE_OPEN            = 0x01
	DT_NODE_CLOSED          = 0x02
	DT_NODE_PARENT_DETACHED = 0x04 // parent reached by a raycast shortcut, not a shared edge
)

type DtNodeIndex uint16

const (
	DT_NULL_IDX = DtNodeIndex(0xffff)

	DT_NODE_PARENT_BITS    = 24
	DT_NODE_STATE_BITS     = 2
	DT_MAX_STATES_PER_NODE = 1 << DT_NODE_STATE_BITS // nodes a single polygon can own
)

type DtNode struct {
	Pos   common.Vec3
	Cost  float32 // accumulated cost from the start
	Total float32 // Cost plus heuristic
	Pidx  uint32  // parent index in the pool, 0 for none
	State uint8   // tells apart nodes of the same polygon
	Flags uint8
	Id    DtPolyRef

	idx       uint32 // 1-based position in the pool
	heapIndex int
}

func dtHashRef(a DtPolyRef) uint32 {
	a += ^(a << 31)
	a ^= a >> 20
	a += a << 6
	a ^= a >> 12
	a += ^(a << 22)
	a ^= a >> 32
	return uint32(a)
}

type DtNodePool struct {
	m_nodes     []DtNode
	m_first     []DtNodeIndex
	m_next      []DtNodeIndex
	m_maxNodes  int32
	m_hashSize  int32
	m_nodeCount int32
}

func NewDtNodePool(maxNodes, hashSize int32) *DtNodePool {
	common.AssertTrue(common.NextPow2(uint32(hashSize)) == uint32(hashSize))
	// Pidx 0 means no parent, so at most 1<<DT_NODE_PARENT_BITS - 1 nodes fit.
	common.AssertTrue(maxNodes > 0 && maxNodes < int32(DT_NULL_IDX) && maxNodes <= (1<<DT_NODE_PARENT_BITS)-1)
	p := &DtNodePool{
		m_maxNodes: maxNodes,
		m_hashSize: hashSize,
		m_nodes:    make([]DtNode, maxNodes),
		m_next:     make([]DtNodeIndex, maxNodes),
		m_first:    make([]DtNodeIndex, hashSize),
	}
	for i := range p.m_first {
		p.m_first[i] = DT_NULL_IDX
	}
	for i := range p.m_next {
		p.m_next[i] = DT_NULL_IDX
	}
	return p
}

func (p *DtNodePool) Clear() {
	for i := range p.m_first {
		p.m_first[i] = DT_NULL_IDX
	}
	p.m_nodeCount = 0
}

func (p *DtNodePool) GetNodeIdx(node *DtNode) uint32 {
	if node == nil {
		return 0
	}
	return node.idx
}

func (p *DtNodePool) GetNodeAtIdx(idx uint32) *DtNode {
	if idx == 0 || idx > uint32(p.m_nodeCount) {
		return nil
	}
	return &p.m_nodes[idx-1]
}

func (p *DtNodePool) GetMaxNodes() int32  { return p.m_maxNodes }
func (p *DtNodePool) GetHashSize() int32  { return p.m_hashSize }
func (p *DtNodePool) GetNodeCount() int32 { return p.m_nodeCount }

// FindNodes returns up to maxNodes nodes of any state allocated for id.
func (p *DtNodePool) FindNodes(id DtPolyRef, maxNodes int) []*DtNode {
	var nodes []*DtNode
	bucket := dtHashRef(id) & uint32(p.m_hashSize-1)
	for i := p.m_first[bucket]; i != DT_NULL_IDX; i = p.m_next[i] {
		if p.m_nodes[i].Id == id {
			if len(nodes) >= maxNodes {
				return nodes
			}
			nodes = append(nodes, &p.m_nodes[i])
		}
	}
	return nodes
}

// FindNode returns the node for (id, state) without allocating one.
func (p *DtNodePool) FindNode(id DtPolyRef, state uint8) *DtNode {
	bucket := dtHashRef(id) & uint32(p.m_hashSize-1)
	for i := p.m_first[bucket]; i != DT_NULL_IDX; i = p.m_next[i] {
		if p.m_nodes[i].Id == id && p.m_nodes[i].State == state {
			return &p.m_nodes[i]
		}
	}
	return nil
}

// GetNode returns the node for (id, state), allocating a fresh one when none exists.
// Returns nil when the pool is exhausted.
func (p *DtNodePool) GetNode(id DtPolyRef, state uint8) *DtNode {
	if node := p.FindNode(id, state); node != nil {
		return node
	}
	if p.m_nodeCount >= p.m_maxNodes {
		return nil
	}

	i := DtNodeIndex(p.m_nodeCount)
	p.m_nodeCount++

	node := &p.m_nodes[i]
	*node = DtNode{
		Id:        id,
		State:     state,
		idx:       uint32(i) + 1,
		heapIndex: -1,
	}

	bucket := dtHashRef(id) & uint32(p.m_hashSize-1)
	p.m_next[i] = p.m_first[bucket]
	p.m_first[bucket] = i
	return node
}

// nodeHeap is the container/heap backing of DtNodeQueue, ordered by Total.
type nodeHeap []*DtNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].Total < h[j].Total }
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *nodeHeap) Push(x any) {
	node := x.(*DtNode)
	node.heapIndex = len(*h)
	*h = append(*h, node)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.heapIndex = -1
	*h = old[:n-1]
	return node
}

// DtNodeQueue is the open list: a binary min-heap on DtNode.Total.
type DtNodeQueue struct {
	heap nodeHeap
}

func NewDtNodeQueue(n int) *DtNodeQueue {
	return &DtNodeQueue{heap: make(nodeHeap, 0, n)}
}

func (q *DtNodeQueue) Clear() {
	for _, node := range q.heap {
		node.heapIndex = -1
	}
	q.heap = q.heap[:0]
}

func (q *DtNodeQueue) Top() *DtNode {
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

func (q *DtNodeQueue) Pop() *DtNode {
	if len(q.heap) == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*DtNode)
}

func (q *DtNodeQueue) Push(node *DtNode) {
	heap.Push(&q.heap, node)
}

// Modify restores heap order after node.Total changed. Nodes not in the queue are pushed.
func (q *DtNodeQueue) Modify(node *DtNode) {
	if node.heapIndex < 0 || node.heapIndex >= len(q.heap) || q.heap[node.heapIndex] != node {
		q.Push(node)
		return
	}
	heap.Fix(&q.heap, node.heapIndex)
}

func (q *DtNodeQueue) Empty() bool { return len(q.heap) == 0 }

func (q *DtNodeQueue) Len() int { return len(q.heap) }
