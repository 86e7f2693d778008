package frames

import (
	"fmt"
	"math"
)

// ScaledSource multiplies every byte read from the wrapped source by a
// constant factor. The result is truncated toward zero and clamped to 255.
type ScaledSource struct {
	ByteSource
	table [256]byte
}

// Scale wraps src so its bytes are scaled by factor. A factor of 1 returns
// src unchanged.
func Scale(src ByteSource, factor float64) (ByteSource, error) {
	if factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("invalid channel scale %v", factor)
	}
	if factor == 1 {
		return src, nil
	}
	s := &ScaledSource{ByteSource: src}
	for v := range s.table {
		s.table[v] = byte(math.Min(float64(v)*factor, 255))
	}
	return s, nil
}

// ReadRange reads from the wrapped source and scales p in place.
func (s *ScaledSource) ReadRange(off int64, p []byte) error {
	if err := s.ByteSource.ReadRange(off, p); err != nil {
		return err
	}
	for i, v := range p {
		p[i] = s.table[v]
	}
	return nil
}
