package scanner

// chunkSizer owns the self-tuning chunk width. Log fetches that fail shrink
// the chunk by half down to a floor, working around provider-side payload
// limits; successful chunks grow it back toward the configured target by a
// fixed step. Both factors are deterministic so behavior is reproducible.
type chunkSizer struct {
	target   uint64
	min      uint64
	growStep uint64
	cur      uint64
}

func newChunkSizer(target, min uint64) *chunkSizer {
	if min == 0 {
		min = 1
	}
	if target < min {
		target = min
	}
	growStep := target / 4
	if growStep == 0 {
		growStep = 1
	}
	return &chunkSizer{
		target:   target,
		min:      min,
		growStep: growStep,
		cur:      target,
	}
}

// size returns the current chunk width in blocks.
func (c *chunkSizer) size() uint64 {
	return c.cur
}

// shrink halves the chunk width after a failed fetch, bounded by the floor.
func (c *chunkSizer) shrink() {
	c.cur /= 2
	if c.cur < c.min {
		c.cur = c.min
	}
}

// grow steps the chunk width back toward the target after a success.
func (c *chunkSizer) grow() {
	if c.cur >= c.target {
		return
	}
	c.cur += c.growStep
	if c.cur > c.target {
		c.cur = c.target
	}
}
