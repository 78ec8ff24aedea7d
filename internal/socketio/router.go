package socketio

import (
	"github.com/toikobi401/MessengerClone/internal/presence"
)

// Router forwards push events to a recipient's live connection. Delivery is
// fire-and-forget: an offline recipient means the event is dropped, and the
// durable store remains the record the recipient catches up from.
type Router struct {
	presence *presence.Table
}

func NewRouter(table *presence.Table) *Router {
	return &Router{presence: table}
}

// Forward emits the event to the recipient only, never broadcast. It reports
// whether a live connection received the payload; callers must not treat
// false as an error.
func (r *Router) Forward(recipient string, event string, args ...any) bool {
	conn, ok := r.presence.Lookup(recipient)
	if !ok {
		return false
	}

	payload, err := buildSocketEventPacket("/", event, args...)
	if err != nil {
		return false
	}
	if err := conn.Writer.Write([]byte(string(engineMessage) + payload)); err != nil {
		// A dead handle is removed so later sends fall back to the
		// offline path immediately.
		_ = conn.Writer.Close()
		r.presence.Disconnect(conn.Writer)
		return false
	}
	return true
}
