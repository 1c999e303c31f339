package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, math.MaxFloat32, math.SmallestNonzeroFloat32, float32(math.Inf(1))}
	out, err := Decode(Encode(in), len(in))
	require.NoError(t, err)
	// Bit-identical, not merely approximately equal.
	for i := range in {
		require.Equal(t, math.Float32bits(in[i]), math.Float32bits(out[i]))
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	data := Encode([]float32{1, 2, 3})

	_, err := Decode(data, 4)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)

	_, err = Decode(data[:len(data)-1], 3)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)

	_, err = Decode(data, 0)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestDot(t *testing.T) {
	require.Equal(t, float64(0), Dot(nil, nil))
	require.InDelta(t, 32.0, Dot([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-9)
	require.InDelta(t, -2.0, Dot([]float32{1, -1}, []float32{0, 2}), 1e-9)
}
