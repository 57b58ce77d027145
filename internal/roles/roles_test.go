package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic(t *testing.T) {
	s := NewStatic([]int{1, 2}, []int{2, 3})

	assert.True(t, s.HasPermission(1))
	assert.Equal(t, Creator, s.RoleOf(2), "creator entry wins over moderator")
	assert.True(t, s.HasPermission(3))
	assert.False(t, s.HasPermission(4))
	assert.Equal(t, Player, s.RoleOf(4))
}
