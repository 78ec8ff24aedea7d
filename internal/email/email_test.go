package email

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMailgunSenderSendsCode(t *testing.T) {
	var gotPath, gotTo, gotSubject, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		gotTo = r.FormValue("to")
		gotSubject = r.FormValue("subject")
		gotText = r.FormValue("text")
		w.Write([]byte(`{"message":"Queued. Thank you.","id":"<msg-id>"}`))
	}))
	defer srv.Close()

	s := NewMailgunSender("mg.example.com", "key-test", "no-reply@example.com")
	s.mg.SetAPIBase(srv.URL + "/v3")

	if err := s.SendOTP("alice@example.com", "123456", "login_2fa"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if !strings.Contains(gotPath, "mg.example.com/messages") {
		t.Fatalf("path = %s", gotPath)
	}
	if gotTo != "alice@example.com" {
		t.Fatalf("to = %q", gotTo)
	}
	if gotSubject != "Your login code" {
		t.Fatalf("subject = %q", gotSubject)
	}
	if !strings.Contains(gotText, "123456") {
		t.Fatalf("body missing code: %q", gotText)
	}
}

func TestMailgunSenderReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Forbidden"}`))
	}))
	defer srv.Close()

	s := NewMailgunSender("mg.example.com", "bad-key", "no-reply@example.com")
	s.mg.SetAPIBase(srv.URL + "/v3")

	if err := s.SendOTP("alice@example.com", "123456", "registration"); err == nil {
		t.Fatal("expected error from rejected send")
	}
}
