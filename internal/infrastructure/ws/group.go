package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// GroupManager routes broadcasts to the set of connections bound to each
// device code. It is a pure routing cache: authoritative session state lives
// in the store, and this map is rebuilt from nothing as clients re-join.
type GroupManager struct {
	groups map[string]map[*Client]struct{} // code -> bound clients
	index  map[*Client]string              // client -> code
	mu     sync.RWMutex

	upgrader websocket.Upgrader
}

func NewGroupManager() *GroupManager {
	return &GroupManager{
		groups: make(map[string]map[*Client]struct{}),
		index:  make(map[*Client]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins; the join
			// handshake carries the real credential (code + secret key).
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (gm *GroupManager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return gm.upgrader.Upgrade(w, r, nil)
}

// Bind admits a client to the group for code. If the client was bound to a
// different code, that membership is removed first and the previous code is
// returned so the caller can notify the old group.
func (gm *GroupManager) Bind(cl *Client, code string) (previous string) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if prev, ok := gm.index[cl]; ok {
		if prev == code {
			return ""
		}
		gm.removeLocked(cl, prev)
		previous = prev
	}

	group, ok := gm.groups[code]
	if !ok {
		group = make(map[*Client]struct{})
		gm.groups[code] = group
	}

	group[cl] = struct{}{}
	gm.index[cl] = code

	return previous
}

// Remove drops the client's membership, reporting which code it was bound to.
func (gm *GroupManager) Remove(cl *Client) (code string, wasBound bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	code, wasBound = gm.index[cl]
	if wasBound {
		gm.removeLocked(cl, code)
	}
	return code, wasBound
}

func (gm *GroupManager) removeLocked(cl *Client, code string) {
	delete(gm.index, cl)
	if group, ok := gm.groups[code]; ok {
		delete(group, cl)
		if len(group) == 0 {
			delete(gm.groups, code)
		}
	}
}

// BroadcastToGroup delivers msg to every client bound to code, including the
// originator; the echo is idempotent on the client side.
func (gm *GroupManager) BroadcastToGroup(code string, msg *WSMessage) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	for cl := range gm.groups[code] {
		gm.enqueue(cl, msg)
	}
}

// BroadcastToOthers delivers msg to the group, skipping sender.
func (gm *GroupManager) BroadcastToOthers(code string, sender *Client, msg *WSMessage) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	for cl := range gm.groups[code] {
		if cl == sender {
			continue
		}
		gm.enqueue(cl, msg)
	}
}

// ConnectedCount reports how many connections are currently bound to a group.
func (gm *GroupManager) ConnectedCount() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	return len(gm.index)
}

func (gm *GroupManager) enqueue(cl *Client, msg *WSMessage) {
	select {
	case cl.Message <- msg:
	default:
		// Client is too slow – drop the message
		log.Printf("client %s buffer full, dropping message", cl.ID)
	}
}
