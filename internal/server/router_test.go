package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/toikobi401/MessengerClone/internal/auth"
	"github.com/toikobi401/MessengerClone/internal/blob"
	"github.com/toikobi401/MessengerClone/internal/store"
)

// recordingSender captures one-time codes instead of mailing them.
type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (r *recordingSender) SendOTP(to, code, purpose string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes == nil {
		r.codes = make(map[string]string)
	}
	r.codes[to+"|"+purpose] = code
	return nil
}

func (r *recordingSender) lastCode(to, purpose string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[to+"|"+purpose]
}

type testEnv struct {
	router *gin.Engine
	store  *store.Memory
	email  *recordingSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemory()
	sender := &recordingSender{}
	r := NewRouter(Deps{
		Store:       st,
		TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"},
		Email:       sender,
	})
	return &testEnv{router: r, store: st, email: sender}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

// signUp runs the full register and verify flow and returns the user id and
// a login token.
func (e *testEnv) signUp(t *testing.T, username, emailAddr string) (string, string) {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    emailAddr,
		"password": "hunter2hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}

	code := e.email.lastCode(emailAddr, "registration")
	if code == "" {
		t.Fatal("no registration code was sent")
	}
	w = e.do(t, http.MethodPost, "/api/auth/verify-registration", "", gin.H{
		"email": emailAddr,
		"otp":   code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify-registration: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	user, _ := body["user"].(map[string]any)
	userID, _ := user["id"].(string)
	if userID == "" {
		t.Fatalf("no user id in response: %s", w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    emailAddr,
		"password": "hunter2hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	code = e.email.lastCode(emailAddr, "login_2fa")
	if code == "" {
		t.Fatal("no login code was sent")
	}
	w = e.do(t, http.MethodPost, "/api/auth/verify-login", "", gin.H{
		"email": emailAddr,
		"otp":   code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify-login: %d %s", w.Code, w.Body.String())
	}
	body = decodeBody(t, w)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("no token in response: %s", w.Body.String())
	}
	return userID, token
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	e := newTestEnv(t)
	userID, token := e.signUp(t, "alice", "alice@example.com")

	w := e.do(t, http.MethodGet, "/api/users/"+userID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get user: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]any)
	if data["username"] != "alice" {
		t.Fatalf("unexpected profile: %s", w.Body.String())
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "alice", "alice@example.com")

	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", w.Code, w.Body.String())
	}
}

func TestVerifyRegistrationRejectsWrongCode(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register: %d", w.Code)
	}

	w = e.do(t, http.MethodPost, "/api/auth/verify-registration", "", gin.H{
		"email": "alice@example.com",
		"otp":   "000000",
	})
	if w.Code == http.StatusOK {
		t.Fatalf("wrong code accepted: %s", w.Body.String())
	}
	// The real code still works afterwards.
	code := e.email.lastCode("alice@example.com", "registration")
	w = e.do(t, http.MethodPost, "/api/auth/verify-registration", "", gin.H{
		"email": "alice@example.com",
		"otp":   code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("real code rejected: %d %s", w.Code, w.Body.String())
	}
}

func TestLoginWrongPasswordIssuesNoCode(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "alice", "alice@example.com")
	before := e.email.lastCode("alice@example.com", "login_2fa")

	w := e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if after := e.email.lastCode("alice@example.com", "login_2fa"); after != before {
		t.Fatal("a login code was issued for a failed password check")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/conversations", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestConversationAndMessageFlow(t *testing.T) {
	e := newTestEnv(t)
	aliceID, aliceToken := e.signUp(t, "alice", "alice@example.com")
	bobID, bobToken := e.signUp(t, "bob", "bob@example.com")

	// First init creates, second resolves the same conversation.
	w := e.do(t, http.MethodPost, "/api/conversations/init", aliceToken, gin.H{"receiverId": bobID})
	if w.Code != http.StatusOK {
		t.Fatalf("init: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["isNew"] != true {
		t.Fatalf("expected isNew=true: %s", w.Body.String())
	}
	conv, _ := body["data"].(map[string]any)
	convID, _ := conv["id"].(string)

	w = e.do(t, http.MethodPost, "/api/conversations/init", bobToken, gin.H{"receiverId": aliceID})
	body = decodeBody(t, w)
	if body["isNew"] != false {
		t.Fatalf("expected isNew=false: %s", w.Body.String())
	}
	conv, _ = body["data"].(map[string]any)
	if conv["id"] != convID {
		t.Fatalf("resolver returned a different conversation: %s", w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/api/messages/addmsg", aliceToken, gin.H{
		"to":             bobID,
		"message":        "hello bob",
		"conversationId": convID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("addmsg: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/api/messages/"+convID, bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d %s", w.Code, w.Body.String())
	}
	body = decodeBody(t, w)
	entries, _ := body["data"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 message: %s", w.Body.String())
	}
	first, _ := entries[0].(map[string]any)
	if first["fromSelf"] != false || first["message"] != "hello bob" {
		t.Fatalf("unexpected entry: %s", w.Body.String())
	}

	// Same history from alice's side flips fromSelf.
	w = e.do(t, http.MethodGet, "/api/messages/"+convID, aliceToken, nil)
	body = decodeBody(t, w)
	entries, _ = body["data"].([]any)
	first, _ = entries[0].(map[string]any)
	if first["fromSelf"] != true {
		t.Fatalf("expected fromSelf=true: %s", w.Body.String())
	}
}

func TestInitConversationWithSelfRejected(t *testing.T) {
	e := newTestEnv(t)
	aliceID, aliceToken := e.signUp(t, "alice", "alice@example.com")

	w := e.do(t, http.MethodPost, "/api/conversations/init", aliceToken, gin.H{"receiverId": aliceID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}
}

func TestHistoryDeniedToNonParticipant(t *testing.T) {
	e := newTestEnv(t)
	_, aliceToken := e.signUp(t, "alice", "alice@example.com")
	bobID, _ := e.signUp(t, "bob", "bob@example.com")
	_, eveToken := e.signUp(t, "eve", "eve@example.com")

	w := e.do(t, http.MethodPost, "/api/conversations/init", aliceToken, gin.H{"receiverId": bobID})
	body := decodeBody(t, w)
	conv, _ := body["data"].(map[string]any)
	convID, _ := conv["id"].(string)

	w = e.do(t, http.MethodGet, "/api/messages/"+convID, eveToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", w.Code, w.Body.String())
	}
}

func TestEditMessageSenderOnly(t *testing.T) {
	e := newTestEnv(t)
	_, aliceToken := e.signUp(t, "alice", "alice@example.com")
	bobID, bobToken := e.signUp(t, "bob", "bob@example.com")

	w := e.do(t, http.MethodPost, "/api/conversations/init", aliceToken, gin.H{"receiverId": bobID})
	body := decodeBody(t, w)
	conv, _ := body["data"].(map[string]any)
	convID, _ := conv["id"].(string)

	w = e.do(t, http.MethodPost, "/api/messages/addmsg", aliceToken, gin.H{
		"message":        "typo'd mesage",
		"conversationId": convID,
	})
	body = decodeBody(t, w)
	msg, _ := body["data"].(map[string]any)
	msgID, _ := msg["id"].(string)

	w = e.do(t, http.MethodPut, "/api/messages/edit", bobToken, gin.H{
		"messageId": msgID,
		"content":   "hijacked",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPut, "/api/messages/edit", aliceToken, gin.H{
		"messageId": msgID,
		"content":   "typo'd message",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", w.Code, w.Body.String())
	}
	body = decodeBody(t, w)
	msg, _ = body["data"].(map[string]any)
	if msg["message"] != "typo'd message" || msg["isEdited"] != true {
		t.Fatalf("unexpected edit result: %s", w.Body.String())
	}
}

func TestFriendRequestFlow(t *testing.T) {
	e := newTestEnv(t)
	aliceID, aliceToken := e.signUp(t, "alice", "alice@example.com")
	bobID, bobToken := e.signUp(t, "bob", "bob@example.com")

	w := e.do(t, http.MethodPost, "/api/friends/add", aliceToken, gin.H{"receiverId": bobID})
	if w.Code != http.StatusOK {
		t.Fatalf("add: %d %s", w.Code, w.Body.String())
	}

	// Duplicate requests are refused in either direction.
	w = e.do(t, http.MethodPost, "/api/friends/add", bobToken, gin.H{"receiverId": aliceID})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/api/friends/requests", bobToken, nil)
	body := decodeBody(t, w)
	reqs, _ := body["data"].([]any)
	if len(reqs) != 1 {
		t.Fatalf("expected 1 pending request: %s", w.Body.String())
	}
	req, _ := reqs[0].(map[string]any)
	reqID, _ := req["id"].(string)
	sender, _ := req["sender"].(map[string]any)
	if sender["username"] != "alice" {
		t.Fatalf("request missing sender profile: %s", w.Body.String())
	}

	// Only the receiver can answer.
	w = e.do(t, http.MethodPost, "/api/friends/accept", aliceToken, gin.H{"requestId": reqID})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/api/friends/accept", bobToken, gin.H{"requestId": reqID})
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}

	for _, tc := range []struct{ name, token string }{
		{"alice", aliceToken},
		{"bob", bobToken},
	} {
		w = e.do(t, http.MethodGet, "/api/friends/list", tc.token, nil)
		body = decodeBody(t, w)
		friends, _ := body["data"].([]any)
		if len(friends) != 1 {
			t.Fatalf("%s: expected 1 friend: %s", tc.name, w.Body.String())
		}
	}
}

func TestFriendSearch(t *testing.T) {
	e := newTestEnv(t)
	_, aliceToken := e.signUp(t, "alice", "alice@example.com")
	e.signUp(t, "bobby", "bob@example.com")
	e.signUp(t, "carol", "carol@example.com")

	w := e.do(t, http.MethodGet, "/api/friends/search?q=bob", aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	results, _ := body["data"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 result: %s", w.Body.String())
	}
}

func TestAllUsersExcludesSelf(t *testing.T) {
	e := newTestEnv(t)
	aliceID, aliceToken := e.signUp(t, "alice", "alice@example.com")
	e.signUp(t, "bob", "bob@example.com")

	w := e.do(t, http.MethodGet, "/api/auth/allusers/"+aliceID, aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("allusers: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	users, _ := body["data"].([]any)
	if len(users) != 1 {
		t.Fatalf("expected 1 user: %s", w.Body.String())
	}
	u, _ := users[0].(map[string]any)
	if u["username"] != "bob" {
		t.Fatalf("unexpected user list: %s", w.Body.String())
	}
}

func TestAddFileMessageAndSignature(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"secure_url":"https://cdn.example/photo.png"}`))
	}))
	defer media.Close()

	gin.SetMode(gin.TestMode)
	st := store.NewMemory()
	sender := &recordingSender{}
	blobClient := blob.NewClient("demo", "key123", "secret", "uploads")
	blobClient.BaseURL = media.URL
	e := &testEnv{
		router: NewRouter(Deps{
			Store:       st,
			TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"},
			Email:       sender,
			Blob:        blobClient,
		}),
		store: st,
		email: sender,
	}

	_, aliceToken := e.signUp(t, "alice", "alice@example.com")
	bobID, _ := e.signUp(t, "bob", "bob@example.com")

	w := e.do(t, http.MethodPost, "/api/conversations/init", aliceToken, gin.H{"receiverId": bobID})
	body := decodeBody(t, w)
	conv, _ := body["data"].(map[string]any)
	convID, _ := conv["id"].(string)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	_ = mw.WriteField("conversationId", convID)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="photo.png"`},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write([]byte("png bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/addmsg", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("file addmsg: %d %s", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	msg, _ := body["data"].(map[string]any)
	if msg["message"] != "https://cdn.example/photo.png" || msg["type"] != "image" {
		t.Fatalf("unexpected media message: %s", rec.Body.String())
	}

	w = e.do(t, http.MethodGet, "/api/messages/generate-signature", aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("generate-signature: %d %s", w.Code, w.Body.String())
	}
	body = decodeBody(t, w)
	cred, _ := body["data"].(map[string]any)
	if cred["signature"] == "" || cred["cloudName"] != "demo" {
		t.Fatalf("unexpected credential: %s", w.Body.String())
	}
}

func TestRegisterRateLimited(t *testing.T) {
	e := newTestEnv(t)

	var last int
	for i := 0; i < 12; i++ {
		w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"username": fmt.Sprintf("user%d", i),
			"email":    fmt.Sprintf("user%d@example.com", i),
			"password": "hunter2hunter2",
		})
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated registrations, got %d", last)
	}
}
