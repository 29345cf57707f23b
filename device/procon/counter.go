package procon

import "sync"

// FrameCounter is the rolling 8-bit sequence id carried in outgoing frames.
type FrameCounter struct {
	mu sync.Mutex
	v  uint8
}

// Tick increments the counter, wrapping 255 to 0, and returns the new value.
func (c *FrameCounter) Tick() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v++
	return c.v
}

// Value returns the current counter.
func (c *FrameCounter) Value() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}
