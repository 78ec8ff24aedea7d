package socketio

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/toikobi401/MessengerClone/internal/model"
	"github.com/toikobi401/MessengerClone/internal/presence"
)

const (
	maxPayload   int64         = 1000000
	writeTimeout time.Duration = 10 * time.Second
)

// Server speaks the Socket.IO v4 protocol over websocket and runs the
// connection lifecycle: add-user binds an identity to a socket, disconnect
// removes it, and every roster change broadcasts the full online-users
// snapshot to all connected clients.
type Server struct {
	presence *presence.Table
	router   *Router

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

func NewServer(table *presence.Table) *Server {
	return &Server{
		presence: table,
		router:   NewRouter(table),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(maxPayload)

	c := newConn(ws)
	s.registerConn(c)
	defer s.unregisterConn(c)

	_ = c.writeText(buildEngineOpenPacket(c.sid, maxPayload))

	go c.pingLoop()
	c.readLoop(func(msg string) {
		s.handleMessage(c, msg)
	})
}

func (s *Server) registerConn(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) unregisterConn(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	c.close()

	// Only the handle currently in the table counts; an overwritten tab's
	// disconnect must not mark the user offline.
	if _, ok := s.presence.Disconnect(c); ok {
		s.broadcastOnlineUsers()
	}
}

// broadcastOnlineUsers pushes the full roster snapshot to every connected
// socket, joined or not. Full-snapshot wire semantics are part of the client
// contract; delta events would be a protocol change.
func (s *Server) broadcastOnlineUsers() {
	payload, err := buildSocketEventPacket("/", "online-users", s.presence.OnlineUserIDs())
	if err != nil {
		return
	}

	s.mu.RLock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeText(string(engineMessage) + payload); err != nil {
			s.unregisterConn(c)
		}
	}
}

func (s *Server) handleMessage(c *conn, msg string) {
	if msg == "" {
		return
	}

	switch enginePacketType(msg[0]) {
	case enginePong:
		c.markPong()
	case engineMessage:
		s.handleSocketPayload(c, msg[1:])
	case engineClose:
		c.close()
	default:
	}
}

func (s *Server) handleSocketPayload(c *conn, payload string) {
	if payload == "" {
		return
	}

	switch socketPacketType(payload[0]) {
	case socketConnect:
		s.handleConnect(c, payload)
	case socketEvent:
		s.handleEvent(c, payload)
	default:
	}
}

func (s *Server) handleConnect(c *conn, payload string) {
	if c.connected.Load() {
		return
	}
	ns, _ := parseOptionalNamespace(payload[1:])
	c.connected.Store(true)

	connectPayload, err := buildSocketConnectPacket(ns, c.sid)
	if err != nil {
		return
	}
	_ = c.writeText(string(engineMessage) + connectPayload)
}

func (s *Server) handleEvent(c *conn, payload string) {
	if !c.connected.Load() {
		return
	}

	pkt, err := parseSocketEventPacket(payload)
	if err != nil {
		return
	}

	switch pkt.Event {
	case "add-user":
		s.handleAddUser(c, pkt)
	case "send-msg":
		s.handleSendMsg(c, pkt)
	case "edit-msg":
		s.handleEditMsg(c, pkt)
	case "typing":
		s.handleTyping(c, pkt)
	case "friend-request-sent":
		s.handleFriendRequestSent(c, pkt)
	case "friend-request-accepted":
		s.handleFriendRequestAccepted(c, pkt)
	default:
		// Unknown events are ignored; the push layer never errors back.
	}
}

func (s *Server) handleAddUser(c *conn, pkt socketEventPacket) {
	var userID string
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &userID) != nil || userID == "" {
		return
	}

	s.presence.Join(userID, c)
	s.broadcastOnlineUsers()
}

func (s *Server) handleSendMsg(c *conn, pkt socketEventPacket) {
	var body struct {
		To             string `json:"to"`
		From           string `json:"from"`
		Msg            string `json:"msg"`
		Type           string `json:"type"`
		ConversationID string `json:"conversationId"`
	}
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil {
		return
	}
	if body.To == "" || body.From == "" {
		return
	}
	msgType, err := model.ParseMessageType(body.Type)
	if err != nil {
		return
	}

	// Event name keeps the original client's spelling; it is wire contract.
	s.router.Forward(body.To, "msg-recieve", map[string]any{
		"from":           body.From,
		"message":        body.Msg,
		"type":           msgType,
		"conversationId": body.ConversationID,
	})
}

func (s *Server) handleEditMsg(c *conn, pkt socketEventPacket) {
	var body struct {
		MessageID      string `json:"messageId"`
		Content        string `json:"content"`
		ConversationID string `json:"conversationId"`
		IsEdited       bool   `json:"isEdited"`
		To             string `json:"to"`
	}
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil {
		return
	}
	if body.To == "" || body.MessageID == "" {
		return
	}

	s.router.Forward(body.To, "msg-updated", map[string]any{
		"messageId":      body.MessageID,
		"content":        body.Content,
		"isEdited":       body.IsEdited,
		"conversationId": body.ConversationID,
	})
}

func (s *Server) handleTyping(c *conn, pkt socketEventPacket) {
	var body struct {
		To       string `json:"to"`
		From     string `json:"from"`
		IsTyping bool   `json:"isTyping"`
	}
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil {
		return
	}
	if body.To == "" || body.From == "" {
		return
	}

	s.router.Forward(body.To, "user-typing", map[string]any{
		"from":     body.From,
		"isTyping": body.IsTyping,
	})
}

func (s *Server) handleFriendRequestSent(c *conn, pkt socketEventPacket) {
	var body struct {
		ReceiverID string          `json:"receiverId"`
		Sender     json.RawMessage `json:"sender"`
	}
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil {
		return
	}
	if body.ReceiverID == "" || len(body.Sender) == 0 {
		return
	}

	s.router.Forward(body.ReceiverID, "new-friend-request", map[string]any{
		"sender": body.Sender,
	})
}

func (s *Server) handleFriendRequestAccepted(c *conn, pkt socketEventPacket) {
	var body struct {
		SenderID string          `json:"senderId"`
		Acceptor json.RawMessage `json:"acceptor"`
	}
	if len(pkt.Args) < 1 || json.Unmarshal(pkt.Args[0], &body) != nil {
		return
	}
	if body.SenderID == "" || len(body.Acceptor) == 0 {
		return
	}

	s.router.Forward(body.SenderID, "request-accepted", map[string]any{
		"acceptor": body.Acceptor,
	})
}

type conn struct {
	ws *websocket.Conn

	sid string

	connected atomic.Bool

	sendMu sync.Mutex

	pingMu       sync.Mutex
	awaitingPong bool
	pingSentAt   time.Time
	nextPingAt   time.Time

	closed atomic.Bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:         ws,
		sid:        uuid.NewString(),
		nextPingAt: time.Now().Add(25 * time.Second),
	}
}

// Write and Close satisfy presence.Writer so a conn can serve as the live
// connection handle in the presence table.
func (c *conn) Write(message []byte) error {
	return c.writeText(string(message))
}

func (c *conn) Close() error {
	c.close()
	return nil
}

func (c *conn) close() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.ws.Close()
}

func (c *conn) writeText(msg string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *conn) readLoop(onMessage func(string)) {
	defer c.close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(string(data))
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if c.closed.Load() {
			return
		}
		now := time.Now()
		c.pingMu.Lock()
		awaiting := c.awaitingPong
		pingSentAt := c.pingSentAt
		nextPingAt := c.nextPingAt
		if awaiting && now.Sub(pingSentAt) > 20*time.Second {
			c.pingMu.Unlock()
			c.close()
			return
		}
		if !awaiting && !now.Before(nextPingAt) {
			c.awaitingPong = true
			c.pingSentAt = now
			c.nextPingAt = now.Add(25 * time.Second)
			c.pingMu.Unlock()
			_ = c.writeText(string(enginePing))
			continue
		}
		c.pingMu.Unlock()
	}
}

func (c *conn) markPong() {
	c.pingMu.Lock()
	c.awaitingPong = false
	c.pingMu.Unlock()
}
