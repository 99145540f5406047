package native

// BoxCache holds the canonical boxes for small integral values, mirroring
// Integer.valueOf's guaranteed caching of -128..127.
type BoxCache[T any] struct {
	low   int32
	boxes []T
}

// NewBoxCache eagerly boxes every value in [low, high].
func NewBoxCache[T any](low, high int32, box func(int32) T) *BoxCache[T] {
	c := &BoxCache[T]{low: low, boxes: make([]T, 0, int(high-low)+1)}
	for v := low; v <= high; v++ {
		c.boxes = append(c.boxes, box(v))
	}
	return c
}

// Get returns the cached box for v, or ok=false when v is out of range.
func (c *BoxCache[T]) Get(v int32) (box T, ok bool) {
	i := int(v) - int(c.low)
	if i < 0 || i >= len(c.boxes) {
		return box, false
	}
	return c.boxes[i], true
}
