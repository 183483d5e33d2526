package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ocx/trustengine/internal/providerhttp"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	return &Provider{http: providerhttp.New(providerhttp.Config{BaseURL: srv.URL})}
}

func TestEvaluate_AuthorOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octocat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(githubUser{
			Login: "octocat", Followers: 500, PublicRepos: 20, CreatedAt: time.Now().AddDate(-3, 0, 0),
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "github", ID: "octocat"}})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal for a bare owner id, got %d", len(signals))
	}
	if signals[0].Score < 0 || signals[0].Score > 1 {
		t.Fatalf("score out of range: %v", signals[0].Score)
	}
}

func TestEvaluate_RepoAddsHealthSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/octocat":
			json.NewEncoder(w).Encode(githubUser{Login: "octocat", Followers: 500, PublicRepos: 20, CreatedAt: time.Now()})
		case "/repos/octocat/hello-world":
			json.NewEncoder(w).Encode(githubRepo{StargazersCount: 1200, ForksCount: 300, PushedAt: time.Now()})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "github", ID: "octocat/hello-world"}})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected author + repo signals, got %d", len(signals))
	}
}

func TestEvaluate_NotFoundReturnsNoSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "github", ID: "nobody"}})
	if err != nil {
		t.Fatalf("not-found must not raise, got %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals for a missing subject, got %d", len(signals))
	}
}

func TestSupports(t *testing.T) {
	p := New("")
	if !p.Supports(trust.Subject{Namespace: "github", ID: "x"}) {
		t.Error("expected github namespace to be supported")
	}
	if p.Supports(trust.Subject{Namespace: "twitter", ID: "x"}) {
		t.Error("expected twitter namespace to be unsupported")
	}
}
