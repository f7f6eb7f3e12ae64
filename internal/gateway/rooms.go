package gateway

import "sync"

// roomChannel is the set of local connections in one room. Channels are
// created on first join and kept when they empty out.
type roomChannel struct {
	id string

	// sendMu orders append and fanout so members observe store id order.
	sendMu sync.Mutex

	mu      sync.Mutex
	members map[ConnectionID]member
}

// member captures the user at join time so the room never has to lock a
// connection to learn who it belongs to.
type member struct {
	conn   *connection
	userID string
}

// add registers c and reports whether it is the user's first connection here.
func (rc *roomChannel) add(c *connection, userID string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	first := true
	for id, m := range rc.members {
		if id != c.id && m.userID == userID {
			first = false
			break
		}
	}
	rc.members[c.id] = member{conn: c, userID: userID}
	return first
}

func (rc *roomChannel) remove(id ConnectionID) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if _, ok := rc.members[id]; !ok {
		return false
	}
	delete(rc.members, id)
	return true
}

// broadcast enqueues frame on every member except skip without blocking.
func (rc *roomChannel) broadcast(frame []byte, skip ConnectionID) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	n := 0
	for id, m := range rc.members {
		if id == skip {
			continue
		}
		if m.conn.transport.TrySend(frame) {
			n++
		}
	}
	return n
}

// hasUser reports whether any member other than except belongs to userID.
func (rc *roomChannel) hasUser(userID string, except ConnectionID) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for id, m := range rc.members {
		if id != except && m.userID == userID {
			return true
		}
	}
	return false
}

func (rc *roomChannel) size() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.members)
}

type roomTable struct {
	mu    sync.RWMutex
	rooms map[string]*roomChannel
}

func newRoomTable() *roomTable {
	return &roomTable{rooms: make(map[string]*roomChannel)}
}

// channel returns the room's channel, creating it if needed.
func (t *roomTable) channel(roomID string) *roomChannel {
	t.mu.RLock()
	rc, ok := t.rooms[roomID]
	t.mu.RUnlock()
	if ok {
		return rc
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rc, ok := t.rooms[roomID]; ok {
		return rc
	}
	rc = &roomChannel{id: roomID, members: make(map[ConnectionID]member)}
	t.rooms[roomID] = rc
	return rc
}

func (t *roomTable) lookup(roomID string) *roomChannel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rooms[roomID]
}
