package blob

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSignSortsParams(t *testing.T) {
	params := map[string]string{
		"timestamp": "1700000000",
		"folder":    "messenger_uploads",
	}
	got := Sign(params, "shhh")

	sum := sha1.Sum([]byte("folder=messenger_uploads&timestamp=1700000000shhh"))
	want := hex.EncodeToString(sum[:])
	if got != want {
		t.Fatalf("signature = %s, want %s", got, want)
	}
}

func TestSignUploadCredential(t *testing.T) {
	c := NewClient("demo", "key123", "secret", "avatars")
	now := time.Unix(1700000000, 0)

	cred := c.SignUpload(now)
	if cred.Timestamp != 1700000000 {
		t.Fatalf("timestamp = %d", cred.Timestamp)
	}
	if cred.APIKey != "key123" || cred.CloudName != "demo" || cred.Folder != "avatars" {
		t.Fatalf("credential fields wrong: %+v", cred)
	}
	want := Sign(map[string]string{"timestamp": "1700000000", "folder": "avatars"}, "secret")
	if cred.Signature != want {
		t.Fatalf("signature = %s, want %s", cred.Signature, want)
	}
}

func TestUpload(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		if r.FormValue("api_key") != "key123" {
			t.Errorf("api_key = %q", r.FormValue("api_key"))
		}
		if r.FormValue("signature") == "" {
			t.Error("missing signature")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			body, _ := io.ReadAll(file)
			if string(body) != "cat picture" {
				t.Errorf("file body = %q", body)
			}
		}
		w.Write([]byte(`{"secure_url":"https://cdn.example/cat.png","public_id":"cat"}`))
	}))
	defer srv.Close()

	c := NewClient("demo", "key123", "secret", "uploads")
	c.BaseURL = srv.URL

	url, err := c.Upload(context.Background(), "cat.png", strings.NewReader("cat picture"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.example/cat.png" {
		t.Fatalf("url = %s", url)
	}
	if gotPath != "/demo/auto/upload" {
		t.Fatalf("path = %s", gotPath)
	}
}

func TestUploadErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid signature"}}`))
	}))
	defer srv.Close()

	c := NewClient("demo", "key123", "secret", "uploads")
	c.BaseURL = srv.URL

	_, err := c.Upload(context.Background(), "cat.png", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid signature") {
		t.Fatalf("err = %v", err)
	}
}

func TestUploadNonJSONErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
	}))
	defer srv.Close()

	c := NewClient("demo", "key123", "secret", "uploads")
	c.BaseURL = srv.URL

	_, err := c.Upload(context.Background(), "cat.png", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("status code lost: %v", err)
	}
}
