// Package erc8004 implements the on-chain identity registry signal
// provider. It also exposes LinkedIdentifiers, the opportunistic
// extraction helper the resolver calls to materialise
// registry-declared identity links.
package erc8004

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ocx/trustengine/internal/providerhttp"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

const providerName = "erc8004"

// recognizedServiceNames are the declared-service names the resolver
// is willing to turn into identity links. Anything else is ignored.
var recognizedServiceNames = map[string]string{
	"ens":     "ens",
	"did":     "did",
	"github":  "github",
	"twitter": "twitter",
	"x":       "twitter",
}

// registrationService is one entry in an ERC-8004 registration's
// services array.
type registrationService struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Version  string `json:"version,omitempty"`
}

// registration is the on-chain registration document resolved for an
// integer identifier.
type registration struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	Active         bool                   `json:"active,omitempty"`
	Services       []registrationService  `json:"services,omitempty"`
	SupportedTrust []string               `json:"supportedTrust,omitempty"`
}

// Provider implements signal.Provider against an ERC-8004 registry
// reader (fronted by an HTTP indexer, not a raw RPC client, so the
// shared HTTP helper still applies).
type Provider struct {
	http *providerhttp.Client
}

// New builds an ERC-8004 provider against a registry indexer base URL.
func New(baseURL string) *Provider {
	return &Provider{http: providerhttp.New(providerhttp.Config{BaseURL: baseURL})}
}

func (p *Provider) Metadata() signal.Metadata {
	return signal.Metadata{
		Name:                providerName,
		Version:             "1.0.0",
		Description:         "ERC-8004 on-chain identity registry signals",
		SupportedNamespaces: []string{"erc8004"},
		SignalTypesOffered:  []string{"identity_on_chain", "service_diversity"},
		SoftRateLimitPerMin: 30,
	}
}

func (p *Provider) Supports(subject trust.Subject) bool {
	return strings.EqualFold(subject.Namespace, "erc8004")
}

func (p *Provider) fetchRegistration(ctx context.Context, id string) (registration, error) {
	var reg registration
	err := p.http.GetJSON(ctx, "/registrations/"+id, &reg)
	return reg, err
}

func (p *Provider) Evaluate(ctx context.Context, req signal.Request) ([]trust.Signal, error) {
	reg, err := p.fetchRegistration(ctx, req.Subject.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return []trust.Signal{signal.ErrorFallbackSignal(providerName, "identity_on_chain", req.Subject, err)}, nil
	}

	identityScore := identityCompletenessScore(reg)
	diversityScore := serviceDiversityScore(reg)

	now := time.Now()
	return []trust.Signal{
		{
			Provider:   providerName,
			SignalType: "identity_on_chain",
			Subject:    req.Subject,
			Score:      signal.Clamp01(identityScore),
			Confidence: 0.8,
			Evidence: map[string]any{
				"active": fmt.Sprint(reg.Active),
				"name":   reg.Name,
			},
			ProducedAt: now,
			TTLSeconds: 3600,
		},
		{
			Provider:   providerName,
			SignalType: "service_diversity",
			Subject:    req.Subject,
			Score:      signal.Clamp01(diversityScore),
			Confidence: 0.7,
			Evidence: map[string]any{
				"service_count": fmt.Sprint(len(reg.Services)),
			},
			ProducedAt: now,
			TTLSeconds: 3600,
		},
	}, nil
}

func identityCompletenessScore(reg registration) float64 {
	score := 0.0
	if reg.Name != "" {
		score += 0.3
	}
	if reg.Description != "" {
		score += 0.2
	}
	if reg.Active {
		score += 0.3
	}
	if len(reg.SupportedTrust) > 0 {
		score += 0.2
	}
	return score
}

func serviceDiversityScore(reg registration) float64 {
	kinds := map[string]struct{}{}
	for _, svc := range reg.Services {
		kinds[strings.ToLower(svc.Name)] = struct{}{}
	}
	// Saturates at 4 distinct declared service names, recognized for
	// link extraction or not.
	return signal.Clamp01(float64(len(kinds)) / 4.0)
}

// LinkedIdentifiers resolves an ERC-8004 registration and extracts
// identity links for every recognized declared service. The endpoint
// parser is permissive (strips scheme/host prefixes) but idempotent:
// calling it twice on the same registration yields the same subjects.
func (p *Provider) LinkedIdentifiers(ctx context.Context, id string) ([]trust.Subject, error) {
	reg, err := p.fetchRegistration(ctx, id)
	if err != nil {
		return nil, err
	}

	var linked []trust.Subject
	for _, svc := range reg.Services {
		namespace, ok := recognizedServiceNames[strings.ToLower(svc.Name)]
		if !ok {
			continue
		}
		linked = append(linked, trust.Subject{
			Namespace: namespace,
			ID:        stripEndpointPrefix(svc.Endpoint),
		})
	}
	return linked, nil
}

// stripEndpointPrefix strips a leading URL scheme and host-like
// prefix (e.g. "https://github.com/" or "@") so the remaining text is
// a bare in-namespace id.
func stripEndpointPrefix(endpoint string) string {
	e := endpoint
	for _, prefix := range []string{"https://", "http://"} {
		e = strings.TrimPrefix(e, prefix)
	}
	if idx := strings.Index(e, "/"); idx >= 0 && strings.Contains(e[:idx], ".") {
		e = e[idx+1:]
	}
	e = strings.TrimPrefix(e, "@")
	return strings.TrimSuffix(e, "/")
}

func (p *Provider) Health(ctx context.Context) signal.Health {
	return signal.Health{Status: signal.HealthHealthy, LastCheck: time.Now()}
}

func isNotFound(err error) bool {
	statusErr, ok := err.(*providerhttp.StatusError)
	return ok && statusErr.StatusCode == 404
}
