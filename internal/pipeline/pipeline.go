// Package pipeline orchestrates one trust evaluation end to end: cache
// probe, in-flight de-duplication, identity resolution, parallel
// provider dispatch, fraud-heuristic scanning, Subjective-Logic fusion
// and risk/recommendation mapping.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ocx/trustengine/internal/cache"
	"github.com/ocx/trustengine/internal/circuitbreaker"
	"github.com/ocx/trustengine/internal/identitygraph"
	"github.com/ocx/trustengine/internal/obsmetrics"
	"github.com/ocx/trustengine/internal/resolver"
	"github.com/ocx/trustengine/internal/scorer"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

// DefaultProviderTimeout is the per-provider wall-clock cap applied
// when no override is configured.
const DefaultProviderTimeout = 10 * time.Second

// Pipeline evaluates subjects against a registered set of signal
// providers. It is safe for concurrent use by many callers.
type Pipeline struct {
	providers       []signal.Provider
	resolver        *resolver.Resolver
	cache           cache.ResultStore
	breakers        *circuitbreaker.ProviderBreakers
	metrics         *obsmetrics.Metrics
	logger          *slog.Logger
	providerTimeout time.Duration
	stabilityLambda float64
	defaultTTL      time.Duration

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall
}

// inflightCall is the hand-rolled single-flight future one in-progress
// evaluation registers under its subject key: every concurrent caller
// for the same key blocks on done instead of dispatching its own
// round of providers.
type inflightCall struct {
	done   chan struct{}
	result trust.TrustResult
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithProviderTimeout overrides the default per-provider dispatch
// timeout.
func WithProviderTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.providerTimeout = d }
}

// WithMetrics attaches a Prometheus metrics recorder.
func WithMetrics(m *obsmetrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithBreakers attaches a per-provider circuit breaker set.
func WithBreakers(b *circuitbreaker.ProviderBreakers) Option {
	return func(p *Pipeline) { p.breakers = b }
}

// WithStabilityLambda overrides the evolutionary-stability penalty
// coefficient used when fused signals disagree widely.
func WithStabilityLambda(lambda float64) Option {
	return func(p *Pipeline) { p.stabilityLambda = lambda }
}

// WithDefaultTTL overrides the cache TTL used when a result carries no
// usable signal TTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(p *Pipeline) { p.defaultTTL = d }
}

// NewPipeline builds a pipeline over the given providers, identity
// graph and result cache.
func NewPipeline(providers []signal.Provider, graph *identitygraph.Graph, linker resolver.OnChainLinker, store cache.ResultStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		providers:       providers,
		cache:           store,
		breakers:        circuitbreaker.NewProviderBreakers(),
		logger:          slog.Default(),
		providerTimeout: DefaultProviderTimeout,
		stabilityLambda: scorer.DefaultStabilityLambda,
		defaultTTL:      cache.DefaultTTL,
		inflight:        make(map[string]*inflightCall),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.resolver = resolver.New(graph, linker, p.logger)
	return p
}

// Evaluate runs the full pipeline for subject under the given action
// context.
func (p *Pipeline) Evaluate(ctx context.Context, subject trust.Subject, action trust.Action) trust.TrustResult {
	start := time.Now()
	key := subject.Key()

	if cached, ok := p.cache.Get(ctx, key); ok {
		if p.metrics != nil {
			p.metrics.RecordCacheHit()
		}
		cached.CacheHit = true
		return cached
	}

	result, leader := p.joinOrLeadInflight(key)
	if !leader {
		if p.metrics != nil {
			p.metrics.RecordInflightCoalesced()
		}
		return result
	}

	result = p.evaluateFresh(ctx, subject, action)
	p.finishInflight(key, result)

	if p.metrics != nil {
		p.metrics.RecordEvaluation(string(result.Recommendation), time.Since(start).Seconds())
	}
	return result
}

// joinOrLeadInflight registers this call as the leader for key if no
// evaluation is already running, or blocks until the running one
// completes and returns its result. The second return is true iff
// this call became the leader and must actually compute the result.
func (p *Pipeline) joinOrLeadInflight(key string) (trust.TrustResult, bool) {
	p.inflightMu.Lock()
	if existing, ok := p.inflight[key]; ok {
		p.inflightMu.Unlock()
		<-existing.done
		return existing.result, false
	}

	call := &inflightCall{done: make(chan struct{})}
	p.inflight[key] = call
	p.inflightMu.Unlock()
	return trust.TrustResult{}, true
}

// finishInflight publishes result to every caller waiting on key's
// in-flight future and removes the entry. Evaluate calls it once
// evaluateFresh returns, and evaluateFresh's own recover calls it on a
// panic, so a panic mid-evaluation still releases waiters instead of
// poisoning the key forever.
func (p *Pipeline) finishInflight(key string, result trust.TrustResult) {
	p.inflightMu.Lock()
	call, ok := p.inflight[key]
	delete(p.inflight, key)
	p.inflightMu.Unlock()

	if ok {
		call.result = result
		close(call.done)
	}
}

// evaluateFresh runs steps 4-11 of the evaluation: resolve, dispatch,
// fraud scan, fuse, adjust, map, label, cache.
func (p *Pipeline) evaluateFresh(ctx context.Context, subject trust.Subject, action trust.Action) trust.TrustResult {
	defer func() {
		if r := recover(); r != nil {
			p.finishInflight(subject.Key(), trust.TrustResult{})
			panic(r)
		}
	}()

	cohort := p.resolver.Resolve(ctx, subject)

	type dispatchPair struct {
		provider signal.Provider
		subject  trust.Subject
	}
	var pairs []dispatchPair
	for _, s := range cohort.All {
		for _, prov := range p.providers {
			if prov.Supports(s) {
				pairs = append(pairs, dispatchPair{provider: prov, subject: s})
			}
		}
	}

	if len(pairs) == 0 {
		return p.noProvidersResult(subject)
	}

	var (
		mu         sync.Mutex
		signals    []trust.Signal
		unresolved []trust.Unresolved
		wg         sync.WaitGroup
	)

	for _, pair := range pairs {
		wg.Add(1)
		go func(pair dispatchPair) {
			defer wg.Done()
			sigs, reason := p.dispatchOne(ctx, pair.provider, pair.subject)
			mu.Lock()
			defer mu.Unlock()
			if reason != "" {
				unresolved = append(unresolved, trust.Unresolved{Provider: pair.provider.Metadata().Name, Reason: reason})
				return
			}
			signals = append(signals, sigs...)
		}(pair)
	}
	wg.Wait()

	fraudSignals := scanForFraud(signals)

	opinions := make([]trust.Opinion, len(signals))
	for i, s := range signals {
		opinions[i] = scorer.SignalToOpinion(s)
	}
	fused := scorer.FuseAll(opinions)
	projected := scorer.Project(fused)
	adjusted := scorer.AdjustForStability(projected, signals, p.stabilityLambda)

	bucket := scorer.MapRiskBucket(adjusted)
	bucket = scorer.ApplyContext(bucket, action)
	recommendation := scorer.MapRecommendation(bucket, adjusted)
	entityType := scorer.DetectEntityType(subject)
	label := scorer.HumanLabel(entityType, recommendation)

	result := trust.TrustResult{
		QueryID:        uuid.NewString(),
		Subject:        subject,
		EntityType:     entityType,
		Opinion:        fused,
		Score:          scorer.Round2(adjusted * 100),
		Confidence:     scorer.Round4(1 - fused.Uncertainty),
		RiskBucket:     bucket,
		Recommendation: recommendation,
		Label:          label,
		Signals:        signals,
		FraudSignals:   fraudSignals,
		Unresolved:     unresolved,
		Breakdown: map[string]float64{
			"belief":             fused.Belief,
			"disbelief":          fused.Disbelief,
			"uncertainty":        fused.Uncertainty,
			"base_rate":          fused.BaseRate,
			"projected":          projected,
			"stability_adjusted": adjusted,
			"stability_factor":   stabilityFactor(projected, adjusted),
		},
		EvaluatedAt: time.Now(),
		CacheHit:    false,
	}

	ttl := cache.TTLFromSignals(signals, p.defaultTTL)
	if err := p.cache.Put(ctx, subject.Key(), result, ttl); err != nil {
		p.logger.Warn("failed to cache trust result", "subject", subject.Key(), "error", err)
	}

	return result
}

// dispatchOne races a single provider call against the configured
// per-provider timeout, routed through that provider's circuit
// breaker. An empty reason string means the call succeeded.
func (p *Pipeline) dispatchOne(ctx context.Context, prov signal.Provider, subject trust.Subject) ([]trust.Signal, string) {
	name := prov.Metadata().Name
	breaker := p.breakers.For(name)

	callCtx, cancel := context.WithTimeout(ctx, p.providerTimeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan struct {
		signals []trust.Signal
		err     error
	}, 1)

	go func() {
		signals, err := circuitbreaker.ExecuteWithFallback(breaker,
			func() ([]trust.Signal, error) {
				return prov.Evaluate(callCtx, signal.Request{Subject: subject})
			},
			func(breakerErr error) ([]trust.Signal, error) {
				return nil, breakerErr
			},
		)
		resultCh <- struct {
			signals []trust.Signal
			err     error
		}{signals, err}
	}()

	select {
	case res := <-resultCh:
		reason, metricReason := "", ""
		if res.err != nil {
			reason = res.err.Error()
			metricReason = "error"
			if errors.Is(res.err, circuitbreaker.ErrCircuitOpen) || errors.Is(res.err, circuitbreaker.ErrTooManyRequests) {
				metricReason = "circuit_open"
			}
		}
		if p.metrics != nil {
			p.metrics.RecordProviderDispatch(name, time.Since(start).Seconds(), metricReason)
		}
		return res.signals, reason
	case <-callCtx.Done():
		if p.metrics != nil {
			p.metrics.RecordProviderDispatch(name, time.Since(start).Seconds(), "timeout")
		}
		return nil, fmt.Sprintf("timeout after %s", p.providerTimeout)
	}
}

// noProvidersResult builds the synthetic result for a subject no
// registered provider supports.
func (p *Pipeline) noProvidersResult(subject trust.Subject) trust.TrustResult {
	entityType := scorer.DetectEntityType(subject)
	return trust.TrustResult{
		QueryID:        uuid.NewString(),
		Subject:        subject,
		EntityType:     entityType,
		Opinion:        trust.Vacuous(),
		Score:          0,
		Confidence:     0,
		RiskBucket:     trust.RiskCritical,
		Recommendation: trust.RecommendDeny,
		Label:          scorer.HumanLabel(entityType, trust.RecommendDeny),
		Signals:        nil,
		FraudSignals: []trust.FraudSignal{{
			Kind:     trust.FraudNoProviders,
			Severity: trust.SeverityHigh,
		}},
		Unresolved:  nil,
		EvaluatedAt: time.Now(),
		CacheHit:    false,
	}
}

// stabilityFactor recovers the multiplier AdjustForStability applied,
// for inclusion in TrustResult.Breakdown. It is 1 (no-op) when
// projected is zero, since the adjustment is always the identity in
// that case.
func stabilityFactor(projected, adjusted float64) float64 {
	if projected == 0 {
		return 1
	}
	return adjusted / projected
}

// scanForFraud applies the fixed fraud heuristics over one
// evaluation's collected signals.
func scanForFraud(signals []trust.Signal) []trust.FraudSignal {
	if len(signals) == 0 {
		return []trust.FraudSignal{{Kind: trust.FraudNoSignals, Severity: trust.SeverityHigh}}
	}

	var findings []trust.FraudSignal
	for _, s := range signals {
		if s.Score < 0.1 && s.Confidence > 0.7 {
			findings = append(findings, trust.FraudSignal{
				Kind:     trust.FraudLowTrustSignal,
				Severity: trust.SeverityMedium,
				Provider: s.Provider,
				Evidence: s.Evidence,
			})
		}
	}
	return findings
}

// Invalidate removes any cached result for subject.
func (p *Pipeline) Invalidate(ctx context.Context, subject trust.Subject) error {
	return p.cache.Invalidate(ctx, subject.Key())
}

// Health reports each registered provider's own health, keyed by
// provider name. Circuit breaker state is not included.
func (p *Pipeline) Health(ctx context.Context) map[string]signal.Health {
	statuses := make(map[string]signal.Health, len(p.providers))
	for _, prov := range p.providers {
		statuses[prov.Metadata().Name] = prov.Health(ctx)
	}
	return statuses
}
