package moltbook

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

func newTestProvider(srv *httptest.Server) *Provider {
	return &Provider{
		http:       providerhttp.New(providerhttp.Config{BaseURL: srv.URL, BearerToken: "test-key"}),
		configured: true,
	}
}

func TestEvaluate_Unconfigured(t *testing.T) {
	p := New("", "")
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "moltbook", ID: "octocat"}})
	if err != nil {
		t.Fatalf("unconfigured provider must not error, got %v", err)
	}
	if signals != nil {
		t.Fatalf("expected no signals when unconfigured, got %v", signals)
	}
}

func TestEvaluate_ReturnsCommunityReputationSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(profile{
			Karma: 5000, Followers: 800, Claimed: true, Active: true, CreatedAt: time.Now().AddDate(-2, 0, 0),
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "moltbook", ID: "octocat"}})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 1 || signals[0].SignalType != "community_reputation" {
		t.Fatalf("expected 1 community_reputation signal, got %v", signals)
	}
}

func TestEvaluate_NotFoundReturnsNoSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "moltbook", ID: "nobody"}})
	if err != nil {
		t.Fatalf("not-found must not raise, got %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(signals))
	}
}

func TestSupports(t *testing.T) {
	p := New("", "")
	if !p.Supports(trust.Subject{Namespace: "moltbook", ID: "x"}) {
		t.Error("expected moltbook namespace supported")
	}
	if p.Supports(trust.Subject{Namespace: "github", ID: "x"}) {
		t.Error("expected github namespace unsupported")
	}
}
