package indexer

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex(t *testing.T) *FlatIndex {
	t.Helper()
	idx := NewFlatIndex(2)
	require.NoError(t, idx.Add([]float32{1, 0}, "east"))
	require.NoError(t, idx.Add([]float32{0, 1}, "north"))
	require.NoError(t, idx.Add([]float32{0.6, 0.8}, "between"))
	return idx
}

func TestFlatIndex_Add_DimensionMismatch(t *testing.T) {
	idx := NewFlatIndex(3)
	err := idx.Add([]float32{1, 2}, "x")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Rows())
}

func TestFlatIndex_Search_OrdersByScore(t *testing.T) {
	idx := sampleIndex(t)

	hits, err := idx.Search(context.Background(), []float32{0, 1}, 3)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, 2, hits[1].Position)
	assert.Equal(t, 0, hits[2].Position)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
}

func TestFlatIndex_Search_PadsWhenUnderfilled(t *testing.T) {
	idx := sampleIndex(t)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)

	require.Len(t, hits, 5)
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, EmptyPosition, hits[3].Position)
	assert.Equal(t, EmptyPosition, hits[4].Position)
}

func TestFlatIndex_Search_Truncates(t *testing.T) {
	hits, err := sampleIndex(t).Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Position)
}

func TestFlatIndex_Search_Errors(t *testing.T) {
	idx := sampleIndex(t)

	_, err := idx.Search(context.Background(), []float32{1, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlatIndex_EncodeDecode(t *testing.T) {
	idx := sampleIndex(t)

	var buf bytes.Buffer
	require.NoError(t, idx.Encode(&buf))

	decoded, err := DecodeFlatIndex(&buf)
	require.NoError(t, err)

	assert.Equal(t, idx.Rows(), decoded.Rows())
	assert.Equal(t, idx.Dimensions(), decoded.Dimensions())
	assert.Equal(t, idx.ChunkIDs(), decoded.ChunkIDs())
	for i := 0; i < idx.Rows(); i++ {
		assert.Equal(t, idx.Vector(i), decoded.Vector(i))
	}
}

func TestDecodeFlatIndex_Corrupt(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleIndex(t).Encode(&buf))
	full := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("XXXX"), full[4:]...)},
		{"truncated vectors", full[:len(full)-3]},
		{"trailing bytes", append(append([]byte{}, full...), 0)},
		{"huge shape without payload", indexHeader(math.MaxInt32, math.MaxInt32)},
		{"huge dims after one id", append(indexHeader(1, math.MaxInt32), 1, 0, 0, 0, 'a')},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFlatIndex(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrCorruptIndex)
		})
	}
}

func indexHeader(rows, dims uint64) []byte {
	b := []byte(indexMagic)
	b = binary.LittleEndian.AppendUint32(b, indexVersion)
	b = binary.LittleEndian.AppendUint64(b, rows)
	return binary.LittleEndian.AppendUint64(b, dims)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestQueryText(t *testing.T) {
	assert.Equal(t, "query: مشروطی", QueryText("مشروطی"))
}
