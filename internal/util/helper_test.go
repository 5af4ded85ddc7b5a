package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneSlice(t *testing.T) {
	src := []byte{1, 2, 3}
	clone := CloneSlice(src, 0)
	clone[0] = 9
	assert.Equal(t, byte(1), src[0])

	assert.Equal(t, []byte{1, 2, 3, 0}, CloneSlice(src, 4))
}

func TestCString(t *testing.T) {
	assert.Equal(t, "00000000000000000000000000000012", CString([]byte("00000000000000000000000000000012\x00\x00garbage")))
	assert.Equal(t, "Tekdaqc", CString([]byte("  Tekdaqc  ")))
	assert.Equal(t, "", CString([]byte{0, 'a'}))
}

func TestJoinInts(t *testing.T) {
	assert.Equal(t, "1.0.12.3", JoinInts([]uint8{1, 0, 12, 3}, "."))
	assert.Equal(t, "0,5,31", JoinInts([]int{0, 5, 31}, ","))
	assert.Equal(t, "", JoinInts([]int{}, ","))
}
