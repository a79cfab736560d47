package session

import "math"

// counter is a per-direction frame counter. Values 0 to MaxUint64-1 are
// usable; reaching MaxUint64 exhausts the key. It never wraps.
type counter struct {
	value uint64
}

// next returns the current value and advances the counter.
func (c *counter) next() (uint64, error) {
	if c.value == math.MaxUint64 {
		return 0, ErrNonceExhausted
	}
	v := c.value
	c.value++
	return v, nil
}

// peek returns the value the next frame will use.
func (c *counter) peek() (uint64, error) {
	if c.value == math.MaxUint64 {
		return 0, ErrNonceExhausted
	}
	return c.value, nil
}
