// Package presence tracks which live connections belong to which logical
// user. Nothing here is persisted; the registry starts empty on every boot.
package presence

import (
	"sync"

	"moodchat-be/internal/dto"

	"github.com/google/uuid"
)

// Entry is the identity bound to one connection for its whole lifetime.
type Entry struct {
	UserId          string
	DisplayName     string
	ExperimentGroup string
	SessionId       uuid.UUID
}

type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Entry
	users map[string]map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[uuid.UUID]Entry),
		users: make(map[string]map[uuid.UUID]struct{}),
	}
}

func (r *Registry) Add(connID uuid.UUID, entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = entry
	set, ok := r.users[entry.UserId]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.users[entry.UserId] = set
	}
	set[connID] = struct{}{}
}

// Remove drops the connection and atomically reports how many connections
// the same user still has. Removing an unknown connection is a no-op with
// ok=false.
func (r *Registry) Remove(connID uuid.UUID) (entry Entry, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok = r.conns[connID]
	if !ok {
		return Entry{}, 0, false
	}
	delete(r.conns, connID)
	if set, found := r.users[entry.UserId]; found {
		delete(set, connID)
		remaining = len(set)
		if remaining == 0 {
			delete(r.users, entry.UserId)
		}
	}
	return entry, remaining, true
}

func (r *Registry) Lookup(connID uuid.UUID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[connID]
	return entry, ok
}

// OnlineUsers lists distinct online users; a user with N tabs appears once.
func (r *Registry) OnlineUsers() []dto.OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]dto.OnlineUser, 0, len(r.users))
	seen := make(map[string]struct{}, len(r.users))
	for _, entry := range r.conns {
		if _, dup := seen[entry.UserId]; dup {
			continue
		}
		seen[entry.UserId] = struct{}{}
		out = append(out, dto.OnlineUser{
			UserId:          entry.UserId,
			DisplayName:     entry.DisplayName,
			ExperimentGroup: entry.ExperimentGroup,
		})
	}
	return out
}
