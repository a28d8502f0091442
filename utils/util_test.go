package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	data := []string{"a", "b"}
	m := map[int32]string{1: "a", 2: "b"}

	ok, failed := Find(m, data, nil)
	assert.Equal(t, data, ok)
	assert.Empty(t, failed)

	ok, failed = Find(m, data, []int32{2, 9})
	assert.Equal(t, []string{"b"}, ok)
	assert.Equal(t, []int32{9}, failed)
}
