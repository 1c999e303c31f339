package vector

import (
	"encoding/binary"
	"fmt"
	"math"

	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
)

// Encode serializes a vector as little-endian float32 bytes.
func Encode(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Decode deserializes little-endian float32 bytes, requiring exactly dim
// elements. A length mismatch is a hard validation failure, never a
// truncation or reinterpretation.
func Decode(data []byte, dim int) ([]float32, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimension %d", appErr.ErrDimensionMismatch, dim)
	}
	if len(data) != dim*4 {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %d float32 values",
			appErr.ErrDimensionMismatch, len(data), dim*4, dim)
	}
	values := make([]float32, dim)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return values, nil
}

// Dot is the raw inner product. It does not normalize; ranking by Dot is
// maximum-inner-product search, not cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
