package notify

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
)

type fakeConn struct {
	sent   []ledger.NotifyEvent
	err    error
	closed bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, v.(ledger.NotifyEvent))
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestHubNotify(t *testing.T) {
	hub := NewHub()
	phone1 := &fakeConn{}
	phone2 := &fakeConn{}
	other := &fakeConn{}
	hub.Register("01711111111", phone1)
	hub.Register("01711111111", phone2)
	hub.Register("01722222222", other)

	ev := ledger.NotifyEvent{ID: "e1", MobileNumber: "01711111111", Kind: "cash-in", Amount: 20000}
	hub.Notify("01711111111", ev)

	for _, c := range []*fakeConn{phone1, phone2} {
		if len(c.sent) != 1 || c.sent[0].ID != "e1" {
			t.Errorf("conn sent = %+v, want one e1 event", c.sent)
		}
	}
	if len(other.sent) != 0 {
		t.Errorf("unrelated connection received %+v", other.sent)
	}
}

func TestHubNotifyUnknownNumberIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Notify("01799999999", ledger.NotifyEvent{ID: "e1"})
}

func TestHubDropsDeadConnections(t *testing.T) {
	hub := NewHub()
	dead := &fakeConn{err: errors.New("broken pipe")}
	live := &fakeConn{}
	hub.Register("01711111111", dead)
	hub.Register("01711111111", live)

	hub.Notify("01711111111", ledger.NotifyEvent{ID: "e1"})
	if !dead.closed {
		t.Error("dead connection not closed")
	}
	if len(live.sent) != 1 {
		t.Errorf("live connection sent = %+v", live.sent)
	}

	// The dead connection is gone; only the live one gets the next event.
	hub.Notify("01711111111", ledger.NotifyEvent{ID: "e2"})
	if len(live.sent) != 2 {
		t.Errorf("live connection sent = %+v, want two events", live.sent)
	}
}

// serialConn counts writes and flags any two that overlap in time. The
// websocket protocol permits one concurrent writer per connection, so the
// hub must serialize them.
type serialConn struct {
	inflight int32
	overlaps int32
	writes   int32
}

func (c *serialConn) WriteJSON(v interface{}) error {
	if atomic.AddInt32(&c.inflight, 1) > 1 {
		atomic.AddInt32(&c.overlaps, 1)
	}
	time.Sleep(time.Microsecond)
	atomic.AddInt32(&c.inflight, -1)
	atomic.AddInt32(&c.writes, 1)
	return nil
}

func (c *serialConn) Close() error { return nil }

func TestHubSerializesWritesPerConnection(t *testing.T) {
	hub := NewHub()
	conn := &serialConn{}
	hub.Register("01711111111", conn)

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			hub.Notify("01711111111", ledger.NotifyEvent{ID: "e", MobileNumber: "01711111111"})
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&conn.overlaps); n != 0 {
		t.Errorf("observed %d overlapping writes, want 0", n)
	}
	if n := atomic.LoadInt32(&conn.writes); n != writers {
		t.Errorf("writes = %d, want %d", n, writers)
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}
	hub.Register("01711111111", c)
	hub.Unregister(c)
	hub.Notify("01711111111", ledger.NotifyEvent{ID: "e1"})
	if len(c.sent) != 0 {
		t.Errorf("unregistered connection received %+v", c.sent)
	}

	// Unknown handles are tolerated.
	hub.Unregister(&fakeConn{})
}
