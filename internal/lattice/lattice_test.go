package lattice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"attributor/internal/lattice"
)

func TestBooleanMonotonicity(t *testing.T) {
	b := lattice.NewBoolean(true)
	assert.True(t, b.Assumed())
	assert.False(t, b.Known())

	b.IntersectAssumed(false)
	assert.False(t, b.Assumed())
	assert.False(t, b.IsValidState())
}

func TestBooleanOptimisticFixpoint(t *testing.T) {
	b := lattice.NewBoolean(true)
	b.IndicateOptimisticFixpoint()
	assert.True(t, b.IsAtFixpoint())
	assert.True(t, b.Known())
	assert.True(t, b.Assumed())
}

func TestBitSetIntersectNeverGrows(t *testing.T) {
	s := lattice.NewBitSet(0b111)
	s.IntersectAssumed(0b011)
	assert.Equal(t, uint64(0b011), s.Assumed())
	s.AddKnown(0b001)
	assert.True(t, s.HasKnown(0b001))
	assert.True(t, s.IsValidState())
}

func TestIntRangeUnionAndIntersect(t *testing.T) {
	r := lattice.Union(lattice.Range(0, 5), lattice.Range(10, 15))
	assert.Equal(t, lattice.Range(0, 15), r)

	i := lattice.Intersect(lattice.Range(0, 10), lattice.Range(5, 20))
	assert.Equal(t, lattice.Range(5, 10), i)

	empty := lattice.Intersect(lattice.Range(0, 5), lattice.Range(10, 20))
	assert.True(t, empty.Empty)
}

func TestIntRangeStateMonotone(t *testing.T) {
	s := lattice.NewIntRangeState()
	s.IntersectAssumed(lattice.Range(0, 10))
	s.IntersectAssumed(lattice.Range(0, 5))
	assert.Equal(t, lattice.Range(0, 5), s.Assumed())
}

func TestDerefClampsBothWays(t *testing.T) {
	d := lattice.NewDeref()
	d.TakeKnownMinimum(16)
	d.TakeAssumedMaximum(12)
	assert.False(t, d.IsValidState())
}

func TestOptionalValuePropose(t *testing.T) {
	o := lattice.NewOptionalValue()
	eq := func(a, b any) bool { return a == b }
	o.Propose(1, eq)
	v, ok := o.SimplifiedValue()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	o.Propose(2, eq)
	assert.True(t, o.IsUnsimplifiable())
	_, ok = o.SimplifiedValue()
	assert.False(t, ok)
}
