package email_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkwell/courier/internal/email"
)

func TestPostmarkClient_Send(t *testing.T) {
	var got map[string]string
	var gotToken string
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := email.NewPostmarkClient(srv.URL, "newsletter@example.com", "secret-token", time.Second)
	err := c.Send(context.Background(), "reader@example.com", "Weekly Digest", "text body", "<p>html body</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/email" {
		t.Fatalf("expected POST to /email, got %s", gotPath)
	}
	if gotToken != "secret-token" {
		t.Fatalf("expected server token header, got %q", gotToken)
	}

	want := map[string]string{
		"From":     "newsletter@example.com",
		"To":       "reader@example.com",
		"Subject":  "Weekly Digest",
		"TextBody": "text body",
		"HtmlBody": "<p>html body</p>",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestPostmarkClient_Send_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := email.NewPostmarkClient(srv.URL, "newsletter@example.com", "secret-token", time.Second)
	err := c.Send(context.Background(), "reader@example.com", "s", "t", "h")
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestPostmarkClient_Send_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := email.NewPostmarkClient(srv.URL, "newsletter@example.com", "secret-token", time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.Send(ctx, "reader@example.com", "s", "t", "h"); err == nil {
		t.Fatal("expected error when the send context expires")
	}
}
