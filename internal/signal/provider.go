// Package signal defines the provider trait every concrete signal
// source implements, plus the shared request/health/metadata types
// the pipeline dispatches against.
package signal

import (
	"context"
	"time"

	"github.com/ocx/trustengine/internal/trust"
)

// HealthStatus is a provider's self-reported operating condition.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Metadata describes a provider's identity and capabilities.
type Metadata struct {
	Name                 string
	Version              string
	Description          string
	SupportedNamespaces  []string
	SignalTypesOffered   []string
	SoftRateLimitPerMin  int
}

// Health is a provider's point-in-time health report.
type Health struct {
	Status              HealthStatus
	LastCheck           time.Time
	RollingAvgLatencyMs float64
	RollingErrorRate1h  float64
	DependencyMap       map[string]string
}

// Request is what the pipeline hands a provider for one dispatch.
type Request struct {
	Subject trust.Subject
}

// Provider is the capability trait every signal source implements.
// Evaluate must not raise for "subject not found" (return an empty
// slice); it may raise for transport or auth errors, in which case the
// pipeline records the provider as unresolved. Evaluate must honour
// ctx's deadline and must clamp outgoing Score/Confidence to [0,1].
type Provider interface {
	Metadata() Metadata
	Supports(subject trust.Subject) bool
	Evaluate(ctx context.Context, req Request) ([]trust.Signal, error)
	Health(ctx context.Context) Health
}

// ErrorFallbackSignal builds the soft-error signal providers should
// return instead of raising on a recoverable transport failure: zero
// score, low confidence, a short ttl, and the underlying error
// recorded in evidence so diagnostics can see why the provider had
// nothing better to say.
func ErrorFallbackSignal(providerName, signalType string, subject trust.Subject, cause error) trust.Signal {
	return trust.Signal{
		Provider:   providerName,
		SignalType: signalType,
		Subject:    subject,
		Score:      0,
		Confidence: 0.3,
		Evidence:   map[string]any{"error": cause.Error()},
		ProducedAt: time.Now(),
		TTLSeconds: 120,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp01 exposes the shared clamp helper for providers building
// signals outside this package.
func Clamp01(v float64) float64 { return clamp01(v) }
