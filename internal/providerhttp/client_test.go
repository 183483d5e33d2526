package providerhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization header = %q, want Bearer secret", got)
		}
		json.NewEncoder(w).Encode(map[string]int{"value": 42})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, BearerToken: "secret"})

	var out struct {
		Value int `json:"value"`
	}
	if err := c.GetJSON(context.Background(), "/x", &out); err != nil {
		t.Fatalf("GetJSON returned error: %v", err)
	}
	if out.Value != 42 {
		t.Fatalf("out.Value = %d, want 42", out.Value)
	}
}

func TestGetJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	err := c.GetJSON(context.Background(), "/x", nil)
	if err == nil {
		t.Fatal("expected an error for a 429 response")
	}
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("StatusCode = %d, want 429", statusErr.StatusCode)
	}
}

func TestGetJSON_TimeoutPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Millisecond})
	err := c.GetJSON(context.Background(), "/slow", nil)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestPostJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]string{"echo": body["name"]})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	var out struct {
		Echo string `json:"echo"`
	}
	err := c.PostJSON(context.Background(), "/echo", map[string]string{"name": "octocat"}, &out)
	if err != nil {
		t.Fatalf("PostJSON returned error: %v", err)
	}
	if out.Echo != "octocat" {
		t.Fatalf("out.Echo = %q, want octocat", out.Echo)
	}
}

func TestGetText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw file contents"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	text, err := c.GetText(context.Background(), "/file")
	if err != nil {
		t.Fatalf("GetText returned error: %v", err)
	}
	if text != "raw file contents" {
		t.Fatalf("text = %q, want %q", text, "raw file contents")
	}
}
