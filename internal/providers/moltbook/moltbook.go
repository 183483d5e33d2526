// Package moltbook implements the community-reputation signal
// provider. Like twitter, it is a graceful no-op without credentials.
package moltbook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ocx/trustengine/internal/providerhttp"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

const providerName = "moltbook"

// Provider implements signal.Provider against the Moltbook community
// reputation API.
type Provider struct {
	http       *providerhttp.Client
	configured bool
}

// New builds a Moltbook provider. An empty apiKey disables dispatch.
func New(baseURL, apiKey string) *Provider {
	return &Provider{
		http:       providerhttp.New(providerhttp.Config{BaseURL: baseURL, BearerToken: apiKey}),
		configured: apiKey != "",
	}
}

func (p *Provider) Metadata() signal.Metadata {
	return signal.Metadata{
		Name:                providerName,
		Version:             "1.0.0",
		Description:         "Moltbook community reputation signals",
		SupportedNamespaces: []string{"moltbook"},
		SignalTypesOffered:  []string{"community_reputation"},
		SoftRateLimitPerMin: 30,
	}
}

func (p *Provider) Supports(subject trust.Subject) bool {
	return strings.EqualFold(subject.Namespace, "moltbook")
}

type profile struct {
	Karma     int       `json:"karma"`
	Followers int       `json:"followers"`
	Claimed   bool      `json:"claimed"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Provider) Evaluate(ctx context.Context, req signal.Request) ([]trust.Signal, error) {
	if !p.configured {
		return nil, nil
	}

	var prof profile
	if err := p.http.GetJSON(ctx, "/profiles/"+req.Subject.ID, &prof); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return []trust.Signal{signal.ErrorFallbackSignal(providerName, "community_reputation", req.Subject, err)}, nil
	}

	karmaScore := saturate(float64(prof.Karma), 10000)
	followerScore := saturate(float64(prof.Followers), 2000)
	ageYears := time.Since(prof.CreatedAt).Hours() / (24 * 365)
	ageScore := saturate(ageYears, 5)
	claimedScore := 0.0
	if prof.Claimed {
		claimedScore = 1.0
	}
	activeScore := 0.0
	if prof.Active {
		activeScore = 1.0
	}

	score := 0.35*karmaScore + 0.25*followerScore + 0.2*ageScore + 0.1*claimedScore + 0.1*activeScore
	confidence := saturate(float64(prof.Karma+prof.Followers), 500)

	return []trust.Signal{{
		Provider:   providerName,
		SignalType: "community_reputation",
		Subject:    req.Subject,
		Score:      signal.Clamp01(score),
		Confidence: signal.Clamp01(confidence),
		Evidence: map[string]any{
			"karma":   fmt.Sprint(prof.Karma),
			"claimed": fmt.Sprint(prof.Claimed),
		},
		ProducedAt: time.Now(),
		TTLSeconds: 1800,
	}}, nil
}

func (p *Provider) Health(ctx context.Context) signal.Health {
	if !p.configured {
		return signal.Health{Status: signal.HealthDegraded, LastCheck: time.Now()}
	}
	return signal.Health{Status: signal.HealthHealthy, LastCheck: time.Now()}
}

func saturate(v, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return signal.Clamp01(v / ceiling)
}

func isNotFound(err error) bool {
	statusErr, ok := err.(*providerhttp.StatusError)
	return ok && statusErr.StatusCode == 404
}
