// Package clawhub implements the marketplace-adoption signal provider:
// skill install/rating/recency metrics and per-author aggregates.
package clawhub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ocx/trustengine/internal/providerhttp"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

const providerName = "clawhub"

// Provider implements signal.Provider against the ClawHub marketplace
// API.
type Provider struct {
	http *providerhttp.Client
}

// New builds a ClawHub provider.
func New(baseURL, apiKey string) *Provider {
	return &Provider{http: providerhttp.New(providerhttp.Config{BaseURL: baseURL, BearerToken: apiKey})}
}

func (p *Provider) Metadata() signal.Metadata {
	return signal.Metadata{
		Name:                providerName,
		Version:             "1.0.0",
		Description:         "ClawHub skill marketplace adoption signals",
		SupportedNamespaces: []string{"clawhub"},
		SignalTypesOffered:  []string{"skill_adoption", "author_portfolio"},
		SoftRateLimitPerMin: 60,
	}
}

func (p *Provider) Supports(subject trust.Subject) bool {
	return strings.EqualFold(subject.Namespace, "clawhub")
}

type skillStats struct {
	CurrentInstalls int       `json:"current_installs"`
	TotalInstalls   int       `json:"total_installs"`
	Stars           int       `json:"stars"`
	Downloads       int       `json:"downloads"`
	Comments        int       `json:"comments"`
	VersionCount    int       `json:"version_count"`
	LastReleaseAt   time.Time `json:"last_release_at"`
}

type authorStats struct {
	SkillCount    int     `json:"skill_count"`
	TotalInstalls int     `json:"total_installs"`
	AvgRating     float64 `json:"avg_rating"`
}

// kind classifies a ClawHub subject id per the namespace's id prefix
// convention: "skill/<name>" for a skill, "author/<name>" or a bare
// name for an author.
func kind(id string) (section, name string) {
	switch {
	case strings.HasPrefix(id, "skill/"):
		return "skill", strings.TrimPrefix(id, "skill/")
	case strings.HasPrefix(id, "author/"):
		return "author", strings.TrimPrefix(id, "author/")
	default:
		return "author", id
	}
}

func (p *Provider) Evaluate(ctx context.Context, req signal.Request) ([]trust.Signal, error) {
	section, name := kind(req.Subject.ID)

	if section == "skill" {
		var stats skillStats
		if err := p.http.GetJSON(ctx, "/skills/"+name, &stats); err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return []trust.Signal{signal.ErrorFallbackSignal(providerName, "skill_adoption", req.Subject, err)}, nil
		}
		return []trust.Signal{skillAdoptionSignal(req.Subject, stats)}, nil
	}

	var author authorStats
	if err := p.http.GetJSON(ctx, "/authors/"+name, &author); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return []trust.Signal{signal.ErrorFallbackSignal(providerName, "author_portfolio", req.Subject, err)}, nil
	}
	return []trust.Signal{authorPortfolioSignal(req.Subject, author)}, nil
}

func skillAdoptionSignal(subject trust.Subject, s skillStats) trust.Signal {
	installScore := saturate(float64(s.CurrentInstalls), 10000)
	totalScore := saturate(float64(s.TotalInstalls), 50000)
	starScore := saturate(float64(s.Stars), 1000)
	downloadScore := saturate(float64(s.Downloads), 20000)
	commentScore := saturate(float64(s.Comments), 200)
	versionScore := saturate(float64(s.VersionCount), 20)
	daysSinceRelease := time.Since(s.LastReleaseAt).Hours() / 24
	recencyScore := 1 - saturate(daysSinceRelease, 365)

	score := 0.25*installScore + 0.15*totalScore + 0.15*starScore +
		0.15*downloadScore + 0.1*commentScore + 0.1*versionScore + 0.1*recencyScore

	return trust.Signal{
		Provider:   providerName,
		SignalType: "skill_adoption",
		Subject:    subject,
		Score:      signal.Clamp01(score),
		Confidence: saturate(float64(s.CurrentInstalls), 500),
		Evidence: map[string]any{
			"current_installs": fmt.Sprint(s.CurrentInstalls),
			"stars":             fmt.Sprint(s.Stars),
		},
		ProducedAt: time.Now(),
		TTLSeconds: 1800,
	}
}

func authorPortfolioSignal(subject trust.Subject, a authorStats) trust.Signal {
	skillCountScore := saturate(float64(a.SkillCount), 20)
	installScore := saturate(float64(a.TotalInstalls), 100000)
	ratingScore := signal.Clamp01(a.AvgRating / 5.0)

	score := 0.3*skillCountScore + 0.4*installScore + 0.3*ratingScore

	return trust.Signal{
		Provider:   providerName,
		SignalType: "author_portfolio",
		Subject:    subject,
		Score:      signal.Clamp01(score),
		Confidence: saturate(float64(a.SkillCount), 5),
		Evidence: map[string]any{
			"skill_count":    fmt.Sprint(a.SkillCount),
			"total_installs": fmt.Sprint(a.TotalInstalls),
		},
		ProducedAt: time.Now(),
		TTLSeconds: 1800,
	}
}

func (p *Provider) Health(ctx context.Context) signal.Health {
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
