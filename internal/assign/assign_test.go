package assign

import (
	"fmt"
	"testing"

	"moodchat-be/internal/constant"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
)

func TestGroupIsDeterministic(t *testing.T) {
	ids := []string{"alice", "bob", "user-42", "日本語", "", "a b c"}
	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			first := Group(id)
			for i := 0; i < 100; i++ {
				assert.Equal(t, first, Group(id))
			}
		})
	}
}

func TestGroupParity(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("user-%d", i)
		want := constant.GroupB
		if xxhash.Sum64String(id)%2 == 0 {
			want = constant.GroupA
		}
		assert.Equal(t, want, Group(id))
	}
}

func TestGroupCoversBothGroups(t *testing.T) {
	seen := map[string]int{}
	for i := 0; i < 1000; i++ {
		seen[Group(fmt.Sprintf("user-%d", i))]++
	}
	// Both groups must be populated; the split should not be pathological.
	assert.Greater(t, seen[constant.GroupA], 300)
	assert.Greater(t, seen[constant.GroupB], 300)
}
