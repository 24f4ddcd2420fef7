package room

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// recordConn records every message written to it and can be told to fail.
type recordConn struct {
	messages []interface{}
	failWith error
	closed   bool
}

func (c *recordConn) WriteJSON(v interface{}) error {
	if c.failWith != nil {
		return c.failWith
	}
	if c.closed {
		return errors.New("connection closed")
	}
	c.messages = append(c.messages, v)
	return nil
}

func (c *recordConn) Close() error {
	c.closed = true
	return nil
}

func newTestFanout() (*Registry, *Fanout) {
	reg := NewRegistry("ko", "en")
	return reg, NewFanout(reg, zerolog.Nop())
}

func TestDeliver_UnknownRoomIsNoOp(t *testing.T) {
	_, fan := newTestFanout()

	sent, pruned := fan.Deliver("ghost", map[string]string{"type": "caption"})
	if sent != 0 || pruned != 0 {
		t.Errorf("Expected (0, 0) for unknown room, got (%d, %d)", sent, pruned)
	}
}

func TestDeliver_EmptyRoomIsNoOp(t *testing.T) {
	reg, fan := newTestFanout()
	b := &recordConn{}
	reg.UpsertBroadcaster("r1", b)
	reg.DetachBroadcaster("r1", b)

	sent, pruned := fan.Deliver("r1", map[string]string{"type": "caption"})
	if sent != 0 || pruned != 0 {
		t.Errorf("Expected (0, 0) for empty room, got (%d, %d)", sent, pruned)
	}
	if len(b.messages) != 0 {
		t.Errorf("Detached broadcaster received %d messages", len(b.messages))
	}
}

func TestDeliver_AllViewersReceiveOneCopy(t *testing.T) {
	reg, fan := newTestFanout()
	b := &recordConn{}
	v1 := &recordConn{}
	v2 := &recordConn{}
	reg.UpsertBroadcaster("r1", b)
	reg.AddViewer("r1", v1)
	reg.AddViewer("r1", v2)

	msg := map[string]string{"type": "caption", "original": "안녕하세요", "translation": "Hello"}
	sent, pruned := fan.Deliver("r1", msg)

	if sent != 2 {
		t.Errorf("Expected 2 viewer sends, got %d", sent)
	}
	if pruned != 0 {
		t.Errorf("Expected no pruning, got %d", pruned)
	}
	for i, v := range []*recordConn{v1, v2} {
		if len(v.messages) != 1 {
			t.Errorf("Viewer %d received %d copies, want 1", i, len(v.messages))
		}
	}
	// Caption is echoed to the broadcaster too
	if len(b.messages) != 1 {
		t.Errorf("Broadcaster received %d copies, want 1", len(b.messages))
	}
}

func TestDeliver_OrderPreservedPerViewer(t *testing.T) {
	reg, fan := newTestFanout()
	reg.UpsertBroadcaster("r1", &recordConn{})
	v := &recordConn{}
	reg.AddViewer("r1", v)

	fan.Deliver("r1", "first")
	fan.Deliver("r1", "second")
	fan.Deliver("r1", "third")

	want := []interface{}{"first", "second", "third"}
	if len(v.messages) != len(want) {
		t.Fatalf("Viewer received %d messages, want %d", len(v.messages), len(want))
	}
	for i := range want {
		if v.messages[i] != want[i] {
			t.Errorf("Message %d = %v, want %v", i, v.messages[i], want[i])
		}
	}
}

func TestDeliver_FailedViewerPrunedAfterPass(t *testing.T) {
	reg, fan := newTestFanout()
	reg.UpsertBroadcaster("r1", &recordConn{})
	good := &recordConn{}
	bad := &recordConn{failWith: errors.New("write: broken pipe")}
	reg.AddViewer("r1", good)
	reg.AddViewer("r1", bad)

	snap, _ := reg.Snapshot("r1")
	if len(snap.Viewers) != 2 {
		t.Fatalf("Expected 2 viewers before delivery, got %d", len(snap.Viewers))
	}

	sent, pruned := fan.Deliver("r1", "hello")
	if sent != 1 {
		t.Errorf("Expected 1 successful send, got %d", sent)
	}
	if pruned != 1 {
		t.Errorf("Expected 1 pruned viewer, got %d", pruned)
	}

	snap, _ = reg.Snapshot("r1")
	if len(snap.Viewers) != 1 {
		t.Errorf("Expected failed viewer absent after the pass, got %d viewers", len(snap.Viewers))
	}

	// The surviving viewer keeps receiving
	fan.Deliver("r1", "again")
	if len(good.messages) != 2 {
		t.Errorf("Surviving viewer received %d messages, want 2", len(good.messages))
	}
}

func TestDeliver_BroadcasterFailureDoesNotAffectViewers(t *testing.T) {
	reg, fan := newTestFanout()
	reg.UpsertBroadcaster("r1", &recordConn{failWith: errors.New("gone")})
	v := &recordConn{}
	reg.AddViewer("r1", v)

	sent, _ := fan.Deliver("r1", "hello")
	if sent != 1 {
		t.Errorf("Expected viewer delivery despite broadcaster echo failure, got %d", sent)
	}

	// Broadcaster stays registered; its own receive loop owns teardown
	snap, _ := reg.Snapshot("r1")
	if snap.Broadcaster == nil {
		t.Error("Broadcaster should not be detached by a failed echo")
	}
}

func TestDeliver_ClosedViewerIsPruned(t *testing.T) {
	reg, fan := newTestFanout()
	reg.UpsertBroadcaster("r1", &recordConn{})
	v := &recordConn{}
	reg.AddViewer("r1", v)
	v.Close()

	_, pruned := fan.Deliver("r1", "hello")
	if pruned != 1 {
		t.Errorf("Expected closed viewer to be pruned, got %d", pruned)
	}
}
