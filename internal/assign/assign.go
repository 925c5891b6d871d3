// Package assign maps opaque user identifiers onto the two UI experiment
// groups. The mapping is a pure function of the identifier bytes, so it is
// identical on every call, across restarts, and across platforms.
package assign

import (
	"github.com/cespare/xxhash/v2"

	"moodchat-be/internal/constant"
)

// Group returns the permanent experiment group for a user identifier.
// xxhash is a fixed-width 64-bit digest; the reduction modulo 2 never
// depends on the platform's native integer width.
func Group(userID string) string {
	if xxhash.Sum64String(userID)%2 == 0 {
		return constant.GroupA
	}
	return constant.GroupB
}
