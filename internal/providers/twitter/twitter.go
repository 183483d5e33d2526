// Package twitter implements the social-graph signal provider. It is
// a graceful no-op when no credentials are configured, as required by
// providers whose upstream needs paid API access.
package twitter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ocx/trustengine/internal/providerhttp"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

const providerName = "twitter"

// Provider implements signal.Provider against the X/Twitter API v2.
type Provider struct {
	http       *providerhttp.Client
	configured bool
}

// New builds a Twitter provider. An empty bearerToken disables
// dispatch entirely rather than calling an API that will reject it.
func New(bearerToken string) *Provider {
	return &Provider{
		http: providerhttp.New(providerhttp.Config{
			BaseURL:     "https://api.twitter.com/2",
			BearerToken: bearerToken,
		}),
		configured: bearerToken != "",
	}
}

func (p *Provider) Metadata() signal.Metadata {
	return signal.Metadata{
		Name:                providerName,
		Version:             "1.0.0",
		Description:         "X/Twitter social presence signals",
		SupportedNamespaces: []string{"twitter", "x"},
		SignalTypesOffered:  []string{"social_presence"},
		SoftRateLimitPerMin: 15,
	}
}

func (p *Provider) Supports(subject trust.Subject) bool {
	ns := strings.ToLower(subject.Namespace)
	return ns == "twitter" || ns == "x"
}

type userLookup struct {
	Data struct {
		CreatedAt       time.Time `json:"created_at"`
		Verified        bool      `json:"verified"`
		Description     string    `json:"description"`
		PublicMetrics   struct {
			FollowersCount int `json:"followers_count"`
			TweetCount     int `json:"tweet_count"`
			ListedCount    int `json:"listed_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// Evaluate returns no signals (not an error) when no credentials are
// configured — the absence of this signal is distinct from the
// subject being untrustworthy.
func (p *Provider) Evaluate(ctx context.Context, req signal.Request) ([]trust.Signal, error) {
	if !p.configured {
		return nil, nil
	}

	var lookup userLookup
	path := fmt.Sprintf("/users/by/username/%s?user.fields=created_at,verified,description,public_metrics", req.Subject.ID)
	if err := p.http.GetJSON(ctx, path, &lookup); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return []trust.Signal{signal.ErrorFallbackSignal(providerName, "social_presence", req.Subject, err)}, nil
	}

	d := lookup.Data
	ageYears := time.Since(d.CreatedAt).Hours() / (24 * 365)
	ageScore := saturate(ageYears, 8)
	followerScore := saturate(float64(d.PublicMetrics.FollowersCount), 50000)
	tweetScore := saturate(float64(d.PublicMetrics.TweetCount), 5000)
	listedScore := saturate(float64(d.PublicMetrics.ListedCount), 100)
	verifiedScore := 0.0
	if d.Verified {
		verifiedScore = 1.0
	}
	bioScore := 0.0
	if strings.TrimSpace(d.Description) != "" {
		bioScore = 1.0
	}

	score := 0.25*ageScore + 0.25*followerScore + 0.15*tweetScore + 0.1*listedScore + 0.15*verifiedScore + 0.1*bioScore

	return []trust.Signal{{
		Provider:   providerName,
		SignalType: "social_presence",
		Subject:    req.Subject,
		Score:      signal.Clamp01(score),
		Confidence: saturate(float64(d.PublicMetrics.FollowersCount), 1000),
		Evidence: map[string]any{
			"followers": fmt.Sprint(d.PublicMetrics.FollowersCount),
			"verified":  fmt.Sprint(d.Verified),
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
