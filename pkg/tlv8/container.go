package tlv8

import "fmt"

// Item is a single logical TLV8 value. Fragmentation is handled by the
// codec, so Value may be longer than MaxFragmentSize.
type Item struct {
	Type  Type
	Value []byte
}

// Container is an ordered list of items. Order matters: list responses use
// Separator items between records and the same type can appear once per
// record.
type Container []Item

// Add appends an item with the given value.
func (c *Container) Add(t Type, value []byte) *Container {
	*c = append(*c, Item{Type: t, Value: value})
	return c
}

// AddByte appends a single byte item.
func (c *Container) AddByte(t Type, v byte) *Container {
	return c.Add(t, []byte{v})
}

// AddString appends an item holding the UTF-8 bytes of s.
func (c *Container) AddString(t Type, s string) *Container {
	return c.Add(t, []byte(s))
}

// AddUint appends an unsigned integer encoded little-endian in the
// minimal number of bytes (at least one).
func (c *Container) AddUint(t Type, v uint64) *Container {
	buf := []byte{byte(v)}
	for v >>= 8; v > 0; v >>= 8 {
		buf = append(buf, byte(v))
	}
	return c.Add(t, buf)
}

// AddSeparator appends a zero-length separator item.
func (c *Container) AddSeparator() *Container {
	return c.Add(TypeSeparator, nil)
}

// Has reports whether an item of type t is present.
func (c Container) Has(t Type) bool {
	_, ok := c.Get(t)
	return ok
}

// Get returns the value of the first item of type t.
func (c Container) Get(t Type) ([]byte, bool) {
	for _, it := range c {
		if it.Type == t {
			return it.Value, true
		}
	}
	return nil, false
}

// MustGet returns the value of the first item of type t or ErrMissingItem.
func (c Container) MustGet(t Type) ([]byte, error) {
	v, ok := c.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingItem, t)
	}
	return v, nil
}

// GetByte returns a single byte item.
func (c Container) GetByte(t Type) (byte, error) {
	v, err := c.MustGet(t)
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("%w: %s has %d bytes", ErrInvalidLength, t, len(v))
	}
	return v[0], nil
}

// GetUint decodes a little-endian unsigned integer of 1 to 8 bytes.
func (c Container) GetUint(t Type) (uint64, error) {
	v, err := c.MustGet(t)
	if err != nil {
		return 0, err
	}
	if len(v) == 0 || len(v) > 8 {
		return 0, fmt.Errorf("%w: %s has %d bytes", ErrInvalidLength, t, len(v))
	}
	var n uint64
	for i := len(v) - 1; i >= 0; i-- {
		n = n<<8 | uint64(v[i])
	}
	return n, nil
}

// GetString returns an item's value as a string.
func (c Container) GetString(t Type) (string, error) {
	v, err := c.MustGet(t)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Split breaks the container into records at each Separator item.
// Separators are not included in the result. Empty records are dropped.
func (c Container) Split() []Container {
	var (
		out []Container
		cur Container
	)
	for _, it := range c {
		if it.Type == TypeSeparator {
			if len(cur) > 0 {
				out = append(out, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, it)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
