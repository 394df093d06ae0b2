package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProwlSendPostsFormData(t *testing.T) {
	var got map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		got = map[string]string{
			"apikey":      r.PostForm.Get("apikey"),
			"application": r.PostForm.Get("application"),
			"event":       r.PostForm.Get("event"),
			"description": r.PostForm.Get("description"),
			"priority":    r.PostForm.Get("priority"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProwlNotifier("key-123", "mirrortrade")
	p.endpoint = srv.URL

	err := p.Send(context.Background(), "LONG OPENED", "0.5 ETH @ $3000", PriorityHigh)
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	want := map[string]string{
		"apikey":      "key-123",
		"application": "mirrortrade",
		"event":       "LONG OPENED",
		"description": "0.5 ETH @ $3000",
		"priority":    "1",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, got[k], v)
		}
	}
}

func TestProwlSendErrorsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewProwlNotifier("bad-key", "")
	p.endpoint = srv.URL

	if err := p.Send(context.Background(), "t", "b", PriorityLow); err == nil {
		t.Error("Send returned nil error for 401 response")
	}
}

func TestTelegramSendPostsMessage(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("bot-token", "chat-1")
	n.baseURL = srv.URL

	if err := n.Send(context.Background(), "title", "body", PriorityLow); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if gotPath != "/botbot-token/sendMessage" {
		t.Errorf("path = %q, want /botbot-token/sendMessage", gotPath)
	}
}

// failingNotifier always errors; Multi must swallow it.
type failingNotifier struct{}

func (failingNotifier) Name() string { return "failing" }
func (failingNotifier) Send(context.Context, string, string, Priority) error {
	return errors.New("channel down")
}

// countingNotifier records deliveries.
type countingNotifier struct{ sent int }

func (c *countingNotifier) Name() string { return "counting" }
func (c *countingNotifier) Send(context.Context, string, string, Priority) error {
	c.sent++
	return nil
}

func TestMultiContinuesPastFailures(t *testing.T) {
	counter := &countingNotifier{}
	m := NewMulti(failingNotifier{}, nil, counter)

	if err := m.Send(context.Background(), "t", "b", PriorityLow); err != nil {
		t.Fatalf("Multi.Send returned error: %v", err)
	}
	if counter.sent != 1 {
		t.Errorf("later channel received %d sends, want 1", counter.sent)
	}
}
