// Package github implements the source-code-hosting signal provider:
// author reputation and repository health, derived from the GitHub
// REST API.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ocx/trustengine/internal/providerhttp"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

const providerName = "github"

// Provider implements signal.Provider against the GitHub REST API.
type Provider struct {
	http  *providerhttp.Client
	token string
}

// New builds a GitHub provider. An empty token still works against
// GitHub's public, rate-limited anonymous API.
func New(token string) *Provider {
	return &Provider{
		http: providerhttp.New(providerhttp.Config{
			BaseURL:     "https://api.github.com",
			BearerToken: token,
		}),
		token: token,
	}
}

func (p *Provider) Metadata() signal.Metadata {
	return signal.Metadata{
		Name:                providerName,
		Version:             "1.0.0",
		Description:         "GitHub account and repository reputation signals",
		SupportedNamespaces: []string{"github"},
		SignalTypesOffered:  []string{"author_reputation", "repo_health"},
		SoftRateLimitPerMin: 50,
	}
}

func (p *Provider) Supports(subject trust.Subject) bool {
	return strings.EqualFold(subject.Namespace, "github")
}

type githubUser struct {
	Login       string    `json:"login"`
	Followers   int       `json:"followers"`
	PublicRepos int       `json:"public_repos"`
	CreatedAt   time.Time `json:"created_at"`
}

type githubRepo struct {
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	OpenIssues      int       `json:"open_issues_count"`
	PushedAt        time.Time `json:"pushed_at"`
	License         *struct {
		Key string `json:"key"`
	} `json:"license"`
}

// Evaluate dispatches to the author or repo-health scoring path
// depending on whether the subject id contains an owner/repo split.
func (p *Provider) Evaluate(ctx context.Context, req signal.Request) ([]trust.Signal, error) {
	owner, repo, isRepo := splitOwnerRepo(req.Subject.ID)

	var user githubUser
	if err := p.http.GetJSON(ctx, "/users/"+owner, &user); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return []trust.Signal{signal.ErrorFallbackSignal(providerName, "author_reputation", req.Subject, err)}, nil
	}

	signals := []trust.Signal{authorReputationSignal(req.Subject, user)}

	if isRepo {
		var repoInfo githubRepo
		if err := p.http.GetJSON(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &repoInfo); err != nil {
			if !isNotFound(err) {
				signals = append(signals, signal.ErrorFallbackSignal(providerName, "repo_health", req.Subject, err))
			}
		} else {
			signals = append(signals, repoHealthSignal(req.Subject, repoInfo))
		}
	}

	return signals, nil
}

// authorReputationSignal derives a saturating score from followers,
// public repo count and account age: each input is capped by a
// ceiling, then weighted, so no
// single input can push the score past its allotted share.
func authorReputationSignal(subject trust.Subject, u githubUser) trust.Signal {
	followerScore := saturate(float64(u.Followers), 1000) // caps at 1000 followers
	repoScore := saturate(float64(u.PublicRepos), 50)
	ageYears := time.Since(u.CreatedAt).Hours() / (24 * 365)
	ageScore := saturate(ageYears, 5) // caps at 5 years

	score := 0.4*followerScore + 0.2*repoScore + 0.4*ageScore
	confidence := saturate(float64(u.PublicRepos+u.Followers), 200)
	if confidence < 0.5 && u.PublicRepos+u.Followers > 0 {
		confidence = 0.5
	}

	return trust.Signal{
		Provider:   providerName,
		SignalType: "author_reputation",
		Subject:    subject,
		Score:      signal.Clamp01(score),
		Confidence: signal.Clamp01(confidence),
		Evidence: map[string]any{
			"followers":    fmt.Sprint(u.Followers),
			"public_repos": fmt.Sprint(u.PublicRepos),
		},
		ProducedAt: time.Now(),
		TTLSeconds: 1800,
	}
}

func repoHealthSignal(subject trust.Subject, r githubRepo) trust.Signal {
	starScore := saturate(float64(r.StargazersCount), 5000)
	forkScore := saturate(float64(r.ForksCount), 1000)
	daysSincePush := time.Since(r.PushedAt).Hours() / 24
	freshnessScore := 1 - saturate(daysSincePush, 365) // fresher pushes score higher
	licenseScore := 0.0
	if r.License != nil && r.License.Key != "" {
		licenseScore = 1.0
	}
	issueRatio := 0.0
	if r.StargazersCount > 0 {
		issueRatio = float64(r.OpenIssues) / float64(r.StargazersCount)
	}
	issueScore := 1 - saturate(issueRatio, 1)

	score := 0.3*starScore + 0.2*forkScore + 0.2*freshnessScore + 0.1*licenseScore + 0.2*issueScore

	return trust.Signal{
		Provider:   providerName,
		SignalType: "repo_health",
		Subject:    subject,
		Score:      signal.Clamp01(score),
		Confidence: saturate(float64(r.StargazersCount), 100),
		Evidence: map[string]any{
			"stars": fmt.Sprint(r.StargazersCount),
			"forks": fmt.Sprint(r.ForksCount),
		},
		ProducedAt: time.Now(),
		TTLSeconds: 1800,
	}
}

func (p *Provider) Health(ctx context.Context) signal.Health {
	status := signal.HealthHealthy
	if err := p.http.GetJSON(ctx, "/zen", nil); err != nil {
		status = signal.HealthDegraded
	}
	return signal.Health{Status: status, LastCheck: time.Now()}
}

// splitOwnerRepo parses a subject id of "owner" or "owner/repo" shape.
func splitOwnerRepo(id string) (owner, repo string, isRepo bool) {
	if idx := strings.Index(id, "/"); idx >= 0 {
		return id[:idx], id[idx+1:], true
	}
	return id, "", false
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
