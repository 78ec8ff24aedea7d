package socketio

import (
	"errors"
	"strings"
	"testing"

	"github.com/toikobi401/MessengerClone/internal/presence"
)

type recordWriter struct {
	messages []string
	fail     bool
}

func (w *recordWriter) Write(message []byte) error {
	if w.fail {
		return errors.New("write failed")
	}
	w.messages = append(w.messages, string(message))
	return nil
}

func (w *recordWriter) Close() error { return nil }

func TestForwardToOnlineRecipient(t *testing.T) {
	tbl := presence.NewTable()
	w := &recordWriter{}
	tbl.Join("bob", w)

	r := NewRouter(tbl)
	if !r.Forward("bob", "msg-recieve", map[string]any{"from": "alice", "message": "hi", "type": "text"}) {
		t.Fatal("expected delivery to online recipient")
	}
	if len(w.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.messages))
	}
	if !strings.HasPrefix(w.messages[0], `42["msg-recieve",`) {
		t.Fatalf("unexpected wire payload: %s", w.messages[0])
	}
	if !strings.Contains(w.messages[0], `"from":"alice"`) {
		t.Fatalf("payload missing sender: %s", w.messages[0])
	}
}

func TestForwardDropsWhenOffline(t *testing.T) {
	r := NewRouter(presence.NewTable())

	// No error, no panic, nothing delivered.
	if r.Forward("nobody", "msg-recieve", map[string]any{"from": "alice"}) {
		t.Fatal("expected drop for offline recipient")
	}
}

func TestForwardRemovesDeadHandle(t *testing.T) {
	tbl := presence.NewTable()
	w := &recordWriter{fail: true}
	tbl.Join("bob", w)

	r := NewRouter(tbl)
	if r.Forward("bob", "user-typing", map[string]any{"from": "alice", "isTyping": true}) {
		t.Fatal("expected failed write to report undelivered")
	}
	if _, ok := tbl.Lookup("bob"); ok {
		t.Fatal("expected dead handle to be removed from presence")
	}
}
