package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSort_LinearChain(t *testing.T) {
	r := NewResolver()
	r.AddNode("sys-logger", nil)
	r.AddNode("db", []string{"sys-logger"})
	r.AddNode("api", []string{"sys-logger", "db"})

	order, err := r.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"sys-logger", "db", "api"}, order)
}

func TestSort_Deterministic(t *testing.T) {
	build := func() *Resolver {
		r := NewResolver()
		r.AddNode("c", []string{"a", "b"})
		r.AddNode("a", nil)
		r.AddNode("b", []string{"a"})
		return r
	}

	o1, err := build().Sort()
	require.NoError(t, err)
	o2, err := build().Sort()
	require.NoError(t, err)
	assert.Equal(t, o1, o2)
}

func TestSort_ExternalDependencyIsLeaf(t *testing.T) {
	r := NewResolver()
	r.AddNode("app", []string{"ext-logger"})

	order, err := r.Sort()
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, order)
}

func TestSort_SelfWiringIsCycle(t *testing.T) {
	r := NewResolver()
	r.AddNode("x", []string{"x"})

	_, err := r.Sort()
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"x", "x"}, cycleErr.Path)
}

func TestSort_TwoNodeCycle(t *testing.T) {
	r := NewResolver()
	r.AddNode("x", []string{"y"})
	r.AddNode("y", []string{"x"})

	_, err := r.Sort()
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Error(), "x")
	assert.Contains(t, cycleErr.Error(), "y")
	assert.Contains(t, cycleErr.Error(), "->")
}

func TestSort_LeafBeforeConsumer(t *testing.T) {
	r := NewResolver()
	r.AddNode("leaf", nil)
	r.AddNode("consumer", []string{"leaf"})

	order, err := r.Sort()
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, "leaf", order[0])
	assert.Equal(t, "consumer", order[1])
}

func TestHasNode(t *testing.T) {
	r := NewResolver()
	assert.False(t, r.HasNode("a"))
	r.AddNode("a", nil)
	assert.True(t, r.HasNode("a"))
}
