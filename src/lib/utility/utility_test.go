package utility_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/pnathan/tagdex/src/lib/utility"
)

func TestConcatInt(t *testing.T) {
	b1 := []int{1, 2}
	b2 := []int{3, 4}
	assert.Equal(t, []int{1, 2, 3, 4}, utility.Concat(b1, b2))
}

func TestConcatByte(t *testing.T) {
	b1 := []byte{1, 2}
	b2 := []byte{3, 4}
	assert.Equal(t, []byte{1, 2, 3, 4}, utility.Concat(b1, b2, nil))
	assert.Empty(t, utility.Concat[byte]())
}

func TestVarints(t *testing.T) {
	u, n := binary.Uvarint(utility.UintToBytes(300))
	require.Positive(t, n)
	assert.Equal(t, uint64(300), u)

	i, n := binary.Varint(utility.IntToBytes(-42))
	require.Positive(t, n)
	assert.Equal(t, int64(-42), i)
}

func TestStack(t *testing.T) {
	var s utility.Stack[string]

	_, ok := s.Pop()
	require.False(t, ok)

	s.Push("a")
	s.Push("b")
	s.Push("c")
	require.Equal(t, 3, s.Len())

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", v)

	v, _ = s.Pop()
	assert.Equal(t, "b", v)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	_, ok = s.Pop()
	assert.False(t, ok)

	s.Push("d")
	v, _ = s.Pop()
	assert.Equal(t, "d", v)
}
