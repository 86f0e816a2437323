// Package notify delivers credit-applied events to live client
// connections. Delivery is best-effort and at-most-once: the ledger never
// waits on it and never fails because of it.
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/metrics"
)

const writeWait = 5 * time.Second

// Conn is the slice of a websocket connection the hub needs, so tests can
// register fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// client wraps one registered connection. The websocket protocol allows a
// single concurrent writer per connection; wmu serializes every write the
// hub issues, since each committed cash-in notifies from its own goroutine.
type client struct {
	wmu  sync.Mutex
	conn Conn
}

func (c *client) send(ev ledger.NotifyEvent) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if ws, ok := c.conn.(*websocket.Conn); ok {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
	}
	return c.conn.WriteJSON(ev)
}

// Hub is the connection registry: mobile number to live connections. It
// implements ledger.Notifier. Lifecycle is scoped to the hub value, not the
// process.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]map[*client]bool
	clients map[Conn]*client
	owner   map[Conn]string
}

var _ ledger.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		conns:   map[string]map[*client]bool{},
		clients: map[Conn]*client{},
		owner:   map[Conn]string{},
	}
}

// Register attaches a live connection for the given mobile number. One
// number may hold several connections (multiple devices).
func (h *Hub) Register(mobileNumber string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[mobileNumber]
	if !ok {
		set = map[*client]bool{}
		h.conns[mobileNumber] = set
	}
	cl := &client{conn: c}
	set[cl] = true
	h.clients[c] = cl
	h.owner[c] = mobileNumber
}

// Unregister detaches a connection. Safe to call for unknown handles.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// Notify pushes the event to every live connection of the target mobile
// number. Dead connections are dropped; a number with no connections is
// simply not notified.
func (h *Hub) Notify(mobileNumber string, ev ledger.NotifyEvent) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns[mobileNumber]))
	for cl := range h.conns[mobileNumber] {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	for _, cl := range targets {
		if err := cl.send(ev); err != nil {
			log.Printf("notification to %s failed, dropping connection: %v", mobileNumber, err)
			h.mu.Lock()
			h.drop(cl.conn)
			h.mu.Unlock()
			cl.conn.Close()
			continue
		}
		metrics.NotificationsDelivered.Inc()
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(c Conn) {
	mobile, ok := h.owner[c]
	if !ok {
		return
	}
	cl := h.clients[c]
	delete(h.owner, c)
	delete(h.clients, c)
	if set, ok := h.conns[mobile]; ok {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.conns, mobile)
		}
	}
}
