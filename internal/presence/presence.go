// Package presence tracks which users currently hold an open push connection.
// A Table instance is owned by the socket server and injected wherever a
// lookup is needed; it is the authoritative "who is online" source for one
// server process.
package presence

import (
	"sort"
	"sync"
)

// Writer is the outbound half of a live push connection.
type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection binds a user identity to its live connection handle.
type Connection struct {
	UserID string
	Writer Writer
}

// Table maps each online user to a single connection handle. A second join
// for the same user overwrites the handle (multi-tab, last-writer-wins).
type Table struct {
	mu     sync.RWMutex
	online map[string]*Connection
}

func NewTable() *Table {
	return &Table{online: make(map[string]*Connection)}
}

// Join marks the user online. There is no "already online" error; the new
// handle simply replaces any previous one.
func (t *Table) Join(userID string, w Writer) *Connection {
	conn := &Connection{UserID: userID, Writer: w}
	t.mu.Lock()
	t.online[userID] = conn
	t.mu.Unlock()
	return conn
}

// Lookup returns the user's live connection, or false when the user is
// offline. Unknown users and offline users are indistinguishable here.
func (t *Table) Lookup(userID string) (*Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conn, ok := t.online[userID]
	return conn, ok
}

// Disconnect removes the entry whose handle matches w and reports which user
// went offline. A handle that was overwritten by a later Join no longer
// appears in the table, so its disconnect is a no-op.
func (t *Table) Disconnect(w Writer) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for userID, conn := range t.online {
		if conn.Writer == w {
			delete(t.online, userID)
			return userID, true
		}
	}
	return "", false
}

// Remove drops the user's entry regardless of handle (explicit logout).
func (t *Table) Remove(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.online[userID]; !ok {
		return false
	}
	delete(t.online, userID)
	return true
}

// OnlineUserIDs returns a sorted snapshot of all online user ids.
func (t *Table) OnlineUserIDs() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.online))
	for userID := range t.online {
		ids = append(ids, userID)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
