package scanner

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestChunkSizerShrinkHalvesToFloor(t *testing.T) {
	c := newChunkSizer(2000, 50)
	assert.Equal(t, uint64(2000), c.size())

	c.shrink()
	assert.Equal(t, uint64(1000), c.size())
	c.shrink()
	c.shrink()
	c.shrink()
	c.shrink()
	assert.Equal(t, uint64(62), c.size())
	c.shrink()
	assert.Equal(t, uint64(50), c.size(), "shrink is bounded by the floor")
	c.shrink()
	assert.Equal(t, uint64(50), c.size())
}

func TestChunkSizerGrowStepsBackToTarget(t *testing.T) {
	c := newChunkSizer(2000, 50)
	for c.size() > 50 {
		c.shrink()
	}

	c.grow()
	assert.Equal(t, uint64(550), c.size())
	c.grow()
	c.grow()
	assert.Equal(t, uint64(1550), c.size())
	c.grow()
	assert.Equal(t, uint64(2000), c.size(), "grow is capped at the target")
	c.grow()
	assert.Equal(t, uint64(2000), c.size())
}

func TestChunkSizerDegenerateConfig(t *testing.T) {
	c := newChunkSizer(0, 0)
	assert.Equal(t, uint64(1), c.size())
	c.shrink()
	assert.Equal(t, uint64(1), c.size())
	c.grow()
	assert.Equal(t, uint64(1), c.size())
}

func TestChunkSizerStaysInBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("size stays within [min, target] under any op sequence", prop.ForAll(
		func(target, min uint64, ops []bool) bool {
			c := newChunkSizer(target, min)
			lo, hi := c.min, c.target
			for _, shrink := range ops {
				if shrink {
					c.shrink()
				} else {
					c.grow()
				}
				if c.size() < lo || c.size() > hi {
					return false
				}
			}
			return true
		},
		gen.UInt64Range(0, 100000),
		gen.UInt64Range(0, 5000),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
