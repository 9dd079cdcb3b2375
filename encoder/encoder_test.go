package encoder

import (
	"errors"
	"testing"

	"github.com/asu-crypto/mario/protocol"
	"github.com/stretchr/testify/require"
)

func TestSplitPadsLastBlock(t *testing.T) {
	blocks, err := Split([]int64{1, 2, 3, 4, 5}, 4)
	require.NoError(t, err)
	require.Equal(t, []Block{{1, 2, 3, 4}, {5, 0, 0, 0}}, blocks)
	require.Equal(t, []int64{1, 2, 3, 4, 5}, Join(blocks, 5))
	require.Len(t, Join(blocks, -1), 8)
}

func TestSplitExactMultiple(t *testing.T) {
	blocks, err := Split([]int64{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
}

func TestSplitErrors(t *testing.T) {
	var enc *protocol.EncodingError
	_, err := Split(nil, 4)
	require.True(t, errors.As(err, &enc))
	_, err = Split([]int64{1}, 0)
	require.True(t, errors.As(err, &enc))
}

func TestCheckRange(t *testing.T) {
	require.NoError(t, CheckRange(Block{-3, 0, 3}, 3))
	err := CheckRange(Block{0, 4}, 3)
	var enc *protocol.EncodingError
	require.True(t, errors.As(err, &enc))
}
