package twitter

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
		http:       providerhttp.New(providerhttp.Config{BaseURL: srv.URL, BearerToken: "test-token"}),
		configured: true,
	}
}

func TestEvaluate_Unconfigured(t *testing.T) {
	p := New("")
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "twitter", ID: "octocat"}})
	if err != nil {
		t.Fatalf("unconfigured provider must not error, got %v", err)
	}
	if signals != nil {
		t.Fatalf("expected no signals when unconfigured, got %v", signals)
	}
}

func TestEvaluate_ReturnsSocialPresenceSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("expected bearer auth header, got %q", got)
		}
		var lookup userLookup
		lookup.Data.CreatedAt = time.Now().AddDate(-5, 0, 0)
		lookup.Data.Verified = true
		lookup.Data.Description = "agent builder"
		lookup.Data.PublicMetrics.FollowersCount = 10000
		lookup.Data.PublicMetrics.TweetCount = 2000
		lookup.Data.PublicMetrics.ListedCount = 50
		json.NewEncoder(w).Encode(lookup)
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "twitter", ID: "octocat"}})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	if signals[0].Score <= 0 || signals[0].Score > 1 {
		t.Fatalf("score out of range: %v", signals[0].Score)
	}
}

func TestEvaluate_NotFoundReturnsNoSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProvider(srv)
	signals, err := p.Evaluate(context.Background(), signal.Request{Subject: trust.Subject{Namespace: "twitter", ID: "nobody"}})
	if err != nil {
		t.Fatalf("not-found must not raise, got %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(signals))
	}
}

func TestSupports(t *testing.T) {
	p := New("")
	if !p.Supports(trust.Subject{Namespace: "twitter", ID: "x"}) {
		t.Error("expected twitter namespace supported")
	}
	if !p.Supports(trust.Subject{Namespace: "x", ID: "x"}) {
		t.Error("expected x namespace supported")
	}
	if p.Supports(trust.Subject{Namespace: "github", ID: "x"}) {
		t.Error("expected github namespace unsupported")
	}
}
