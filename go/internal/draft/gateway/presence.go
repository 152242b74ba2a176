package gateway

import (
	"sort"
	"sync"
)

// Presence counts each user's connections per room. A user is present while
// at least one of their connections has joined the room.
type Presence struct {
	mu    sync.Mutex
	rooms map[string]map[string]int
}

func NewPresence() *Presence {
	return &Presence{rooms: make(map[string]map[string]int)}
}

// Join records one more connection and reports whether the user just arrived.
func (p *Presence) Join(roomID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	users, ok := p.rooms[roomID]
	if !ok {
		users = make(map[string]int)
		p.rooms[roomID] = users
	}
	users[userID]++
	return users[userID] == 1
}

// Leave drops one connection and reports whether the user is now gone.
func (p *Presence) Leave(roomID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	users, ok := p.rooms[roomID]
	if !ok || users[userID] == 0 {
		return false
	}
	users[userID]--
	if users[userID] > 0 {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.rooms, roomID)
	}
	return true
}

// IsPresent reports whether userID has a connection in roomID.
func (p *Presence) IsPresent(roomID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rooms[roomID][userID] > 0
}

// Users lists the present users, sorted.
func (p *Presence) Users(roomID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.rooms[roomID]))
	for id := range p.rooms[roomID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
