package detour_test

import (
	"testing"

	"github.com/gorustyt/gonavquery/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodePool(t *testing.T) {
	pool := detour.NewDtNodePool(3, 2)

	a := pool.GetNode(10, 0)
	require.NotNil(t, a)
	assert.Same(t, a, pool.GetNode(10, 0))
	b := pool.GetNode(10, 1)
	require.NotNil(t, b)
	assert.NotSame(t, a, b)
	c := pool.GetNode(11, 0)
	require.NotNil(t, c)
	assert.Nil(t, pool.GetNode(12, 0), "pool is full")
	assert.Equal(t, int32(3), pool.GetNodeCount())

	assert.Len(t, pool.FindNodes(10, 4), 2)
	assert.Len(t, pool.FindNodes(10, 1), 1)
	assert.Same(t, b, pool.FindNode(10, 1))
	assert.Nil(t, pool.FindNode(11, 1))

	idx := pool.GetNodeIdx(c)
	assert.Equal(t, uint32(3), idx)
	assert.Same(t, c, pool.GetNodeAtIdx(idx))
	assert.Nil(t, pool.GetNodeAtIdx(0))
	assert.Zero(t, pool.GetNodeIdx(nil))

	pool.Clear()
	assert.Zero(t, pool.GetNodeCount())
	assert.Nil(t, pool.FindNode(10, 0))
	assert.Nil(t, pool.GetNodeAtIdx(1))
}

func TestNodeQueue(t *testing.T) {
	pool := detour.NewDtNodePool(8, 4)
	q := detour.NewDtNodeQueue(8)
	totals := []float32{5, 1, 4, 3, 2}
	nodes := make([]*detour.DtNode, len(totals))
	for i, total := range totals {
		nodes[i] = pool.GetNode(detour.DtPolyRef(i+1), 0)
		nodes[i].Total = total
		q.Push(nodes[i])
	}
	assert.Equal(t, 5, q.Len())
	assert.Same(t, nodes[1], q.Top())

	// Decrease key moves the node to the front.
	nodes[0].Total = 0.5
	q.Modify(nodes[0])
	assert.Same(t, nodes[0], q.Pop())

	var got []float32
	for !q.Empty() {
		got = append(got, q.Pop().Total)
	}
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
	assert.Nil(t, q.Pop())
	assert.Nil(t, q.Top())

	// A node that is not queued is pushed by Modify.
	q.Modify(nodes[2])
	assert.Equal(t, 1, q.Len())
	q.Clear()
	assert.True(t, q.Empty())
}
