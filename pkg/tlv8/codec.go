package tlv8

// Encode serializes the container. Values longer than MaxFragmentSize are
// written as consecutive fragments of the same type.
func Encode(c Container) []byte {
	size := 0
	for _, it := range c {
		n := len(it.Value)
		frags := (n + MaxFragmentSize - 1) / MaxFragmentSize
		if frags == 0 {
			frags = 1
		}
		size += 2*frags + n
	}

	out := make([]byte, 0, size)
	for _, it := range c {
		v := it.Value
		if len(v) == 0 {
			out = append(out, byte(it.Type), 0)
			continue
		}
		for len(v) > 0 {
			n := len(v)
			if n > MaxFragmentSize {
				n = MaxFragmentSize
			}
			out = append(out, byte(it.Type), byte(n))
			out = append(out, v[:n]...)
			v = v[n:]
		}
	}
	return out
}

// Decode parses data into a container.
//
// An item continues the previous one when it has the same type and the
// previous fragment was exactly MaxFragmentSize bytes long. A header or
// value cut short by the end of input yields ErrMalformed.
func Decode(data []byte) (Container, error) {
	var (
		c        Container
		lastFull bool
	)
	for i := 0; i < len(data); {
		if len(data)-i < 2 {
			return nil, ErrMalformed
		}
		t := Type(data[i])
		n := int(data[i+1])
		i += 2
		if len(data)-i < n {
			return nil, ErrMalformed
		}
		v := data[i : i+n]
		i += n

		if lastFull && len(c) > 0 && c[len(c)-1].Type == t {
			last := &c[len(c)-1]
			last.Value = append(last.Value, v...)
		} else {
			c = append(c, Item{Type: t, Value: append([]byte(nil), v...)})
		}
		lastFull = n == MaxFragmentSize
	}
	return c, nil
}
