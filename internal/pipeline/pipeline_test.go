package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ocx/trustengine/internal/cache"
	"github.com/ocx/trustengine/internal/identitygraph"
	"github.com/ocx/trustengine/internal/signal"
	"github.com/ocx/trustengine/internal/trust"
)

type fakeProvider struct {
	name      string
	namespace string
	calls     int32
	delay     time.Duration
	signals   []trust.Signal
	err       error
}

func (f *fakeProvider) Metadata() signal.Metadata {
	return signal.Metadata{Name: f.name, SupportedNamespaces: []string{f.namespace}}
}

func (f *fakeProvider) Supports(subject trust.Subject) bool {
	return subject.Namespace == f.namespace
}

func (f *fakeProvider) Evaluate(ctx context.Context, req signal.Request) ([]trust.Signal, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.signals, nil
}

func (f *fakeProvider) Health(ctx context.Context) signal.Health {
	return signal.Health{Status: signal.HealthHealthy, LastCheck: time.Now()}
}

func newTestPipeline(t *testing.T, providers []signal.Provider, opts ...Option) *Pipeline {
	t.Helper()
	store := cache.New(nil, 0)
	t.Cleanup(store.Stop)
	graph := identitygraph.New()
	return NewPipeline(providers, graph, nil, cache.NewResultStore(store), opts...)
}

func TestEvaluate_NoSupportingProvidersYieldsDenyCritical(t *testing.T) {
	p := newTestPipeline(t, []signal.Provider{&fakeProvider{name: "github", namespace: "github"}})

	result := p.Evaluate(context.Background(), trust.Subject{Namespace: "unknown-ns", ID: "x"}, trust.ActionReview)

	require.Equal(t, trust.RiskCritical, result.RiskBucket)
	require.Equal(t, trust.RecommendDeny, result.Recommendation)
	require.Len(t, result.FraudSignals, 1)
	require.Equal(t, trust.FraudNoProviders, result.FraudSignals[0].Kind)
}

func TestEvaluate_ProviderReturningNoSignalsYieldsFraudNoSignals(t *testing.T) {
	p := newTestPipeline(t, []signal.Provider{&fakeProvider{name: "github", namespace: "github"}})

	result := p.Evaluate(context.Background(), trust.Subject{Namespace: "github", ID: "octocat"}, trust.ActionReview)

	require.Len(t, result.FraudSignals, 1)
	require.Equal(t, trust.FraudNoSignals, result.FraudSignals[0].Kind)
	require.Equal(t, 0.0, result.Confidence)
}

func TestEvaluate_LowTrustSignalFlagged(t *testing.T) {
	provider := &fakeProvider{
		name:      "github",
		namespace: "github",
		signals: []trust.Signal{{
			Provider: "github", SignalType: "author_reputation",
			Score: 0.02, Confidence: 0.9, ProducedAt: time.Now(), TTLSeconds: 1800,
		}},
	}
	p := newTestPipeline(t, []signal.Provider{provider})

	result := p.Evaluate(context.Background(), trust.Subject{Namespace: "github", ID: "octocat"}, trust.ActionReview)

	require.Len(t, result.FraudSignals, 1)
	require.Equal(t, trust.FraudLowTrustSignal, result.FraudSignals[0].Kind)
	require.Equal(t, trust.SeverityMedium, result.FraudSignals[0].Severity)
}

func TestEvaluate_CacheHitOnSecondCall(t *testing.T) {
	provider := &fakeProvider{
		name:      "github",
		namespace: "github",
		signals: []trust.Signal{{
			Provider: "github", SignalType: "author_reputation",
			Score: 0.8, Confidence: 0.8, ProducedAt: time.Now(), TTLSeconds: 1800,
		}},
	}
	p := newTestPipeline(t, []signal.Provider{provider})

	subject := trust.Subject{Namespace: "github", ID: "octocat"}
	first := p.Evaluate(context.Background(), subject, trust.ActionReview)
	require.False(t, first.CacheHit)

	second := p.Evaluate(context.Background(), subject, trust.ActionReview)
	require.True(t, second.CacheHit)
	require.Equal(t, first.QueryID, second.QueryID)

	require.EqualValues(t, 1, atomic.LoadInt32(&provider.calls))
}

func TestEvaluate_ContextEscalatesRiskForTransact(t *testing.T) {
	provider := &fakeProvider{
		name:      "github",
		namespace: "github",
		signals: []trust.Signal{{
			Provider: "github", SignalType: "author_reputation",
			Score: 0.65, Confidence: 0.9, ProducedAt: time.Now(), TTLSeconds: 1800,
		}},
	}
	reviewResult := newTestPipeline(t, []signal.Provider{provider}).Evaluate(
		context.Background(), trust.Subject{Namespace: "github", ID: "octocat"}, trust.ActionReview)
	require.Equal(t, trust.RiskLow, reviewResult.RiskBucket)

	provider2 := &fakeProvider{name: "github", namespace: "github", signals: provider.signals}
	transactResult := newTestPipeline(t, []signal.Provider{provider2}).Evaluate(
		context.Background(), trust.Subject{Namespace: "github", ID: "octocat"}, trust.ActionTransact)
	require.Equal(t, trust.RiskMedium, transactResult.RiskBucket)
}

func TestEvaluate_ProviderTimeoutGoesToUnresolved(t *testing.T) {
	provider := &fakeProvider{name: "slow", namespace: "github", delay: 50 * time.Millisecond}
	p := newTestPipeline(t, []signal.Provider{provider}, WithProviderTimeout(5*time.Millisecond))

	result := p.Evaluate(context.Background(), trust.Subject{Namespace: "github", ID: "octocat"}, trust.ActionReview)

	require.Len(t, result.Unresolved, 1)
	require.Equal(t, "slow", result.Unresolved[0].Provider)
}

func TestEvaluate_ConcurrentCallsCoalesceDispatch(t *testing.T) {
	provider := &fakeProvider{
		name:      "github",
		namespace: "github",
		delay:     20 * time.Millisecond,
		signals: []trust.Signal{{
			Provider: "github", SignalType: "author_reputation",
			Score: 0.7, Confidence: 0.7, ProducedAt: time.Now(), TTLSeconds: 1800,
		}},
	}
	p := newTestPipeline(t, []signal.Provider{provider})
	subject := trust.Subject{Namespace: "github", ID: "octocat"}

	var wg sync.WaitGroup
	results := make([]trust.TrustResult, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Evaluate(context.Background(), subject, trust.ActionReview)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&provider.calls))
	for _, r := range results {
		require.Equal(t, results[0].QueryID, r.QueryID)
	}
}

func TestEvaluate_TrustScoreAndConfidenceRounding(t *testing.T) {
	provider := &fakeProvider{
		name:      "github",
		namespace: "github",
		signals: []trust.Signal{{
			Provider: "github", SignalType: "author_reputation",
			Score: 0.9, Confidence: 0.9, ProducedAt: time.Now(), TTLSeconds: 1800,
		}},
	}
	p := newTestPipeline(t, []signal.Provider{provider})

	result := p.Evaluate(context.Background(), trust.Subject{Namespace: "github", ID: "octocat"}, trust.ActionReview)

	require.InDelta(t, 86.00, result.Score, 0.01)
	require.InDelta(t, 0.90, result.Confidence, 0.0001)
}
