// Package trust holds the shared data types that flow through the trust
// aggregation engine: subjects being scored, the raw signals providers
// return about them, the subjective-logic opinions derived from those
// signals, and the final result handed back to a caller.
package trust

import "time"

// EntityType classifies the thing a Subject refers to.
type EntityType string

const (
	EntityAgent     EntityType = "agent"
	EntityRepo      EntityType = "repo"
	EntityDeveloper EntityType = "developer"
	EntitySkill     EntityType = "skill"
	EntityUnknown   EntityType = "unknown"
)

// Subject identifies the entity a caller wants a trust result for.
// Namespace and ID together form the canonical identity used for
// caching, graph lookups and provider dispatch (e.g. namespace
// "github" id "octocat/hello-world", namespace "wallet" id an 0x
// address). Type is an optional caller-supplied classification hint;
// it is never required for correctness since scorer.DetectEntityType
// derives an equivalent classification from Namespace/ID alone, and is
// left empty when the caller doesn't know or care.
type Subject struct {
	Type      EntityType
	Namespace string
	ID        string
}

// Key returns the canonical string form used as a map/cache key.
func (s Subject) Key() string {
	return s.Namespace + ":" + s.ID
}

// String satisfies fmt.Stringer for logging.
func (s Subject) String() string {
	return s.Key()
}

// Signal is one provider's raw observation about a subject. Providers
// emit Signals; the scorer turns them into Opinions. Score of 0 means
// "this provider thinks the subject is untrustworthy with the reported
// confidence" — it is never used to mean absence of data. Absence is
// signalled by a provider returning no signals at all.
type Signal struct {
	Provider   string
	SignalType string
	Subject    Subject
	Score      float64
	Confidence float64
	Evidence   map[string]any
	ProducedAt time.Time
	TTLSeconds int
}

// Opinion is a subjective-logic belief tuple: belief, disbelief,
// uncertainty and base rate, with b+d+u == 1 and a in [0,1].
type Opinion struct {
	Belief      float64
	Disbelief   float64
	Uncertainty float64
	BaseRate    float64
}

// Vacuous is the opinion of total ignorance: no belief, no disbelief,
// full uncertainty, neutral base rate.
func Vacuous() Opinion {
	return Opinion{Belief: 0, Disbelief: 0, Uncertainty: 1, BaseRate: 0.5}
}

// Projected returns the opinion's expected probability: b + a*u.
func (o Opinion) Projected() float64 {
	return o.Belief + o.BaseRate*o.Uncertainty
}

// IdentityLink records that two subjects were observed to share an
// identity, with a confidence weight and the provider/source that
// asserted it. Evidence and AttestationRef are optional: most links
// (opportunistic registry extraction, startup hydration) carry
// neither.
type IdentityLink struct {
	From           Subject
	To             Subject
	Weight         float64
	Source         string
	ObservedAt     time.Time
	Evidence       map[string]any
	AttestationRef string
}

// RiskBucket is the coarse-grained risk classification derived from a
// projected trust score.
type RiskBucket string

const (
	RiskMinimal  RiskBucket = "minimal"
	RiskLow      RiskBucket = "low"
	RiskMedium   RiskBucket = "medium"
	RiskHigh     RiskBucket = "high"
	RiskCritical RiskBucket = "critical"
)

// Recommendation is the caller-facing action suggestion.
type Recommendation string

const (
	RecommendAllow   Recommendation = "allow"
	RecommendInstall Recommendation = "install"
	RecommendReview  Recommendation = "review"
	RecommendCaution Recommendation = "caution"
	RecommendDeny    Recommendation = "deny"
)

// Action is the context a caller is about to take with the subject;
// used to escalate risk for higher-stakes actions.
type Action string

const (
	ActionInstall  Action = "install"
	ActionExecute  Action = "execute"
	ActionDelegate Action = "delegate"
	ActionTransact Action = "transact"
	ActionReview   Action = "review"
)

// FraudSeverity grades how serious a fraud-heuristic finding is.
type FraudSeverity string

const (
	SeverityMedium FraudSeverity = "medium"
	SeverityHigh   FraudSeverity = "high"
)

// FraudSignalKind enumerates the fraud-heuristic findings the pipeline
// can attach to a result.
type FraudSignalKind string

const (
	FraudNoProviders    FraudSignalKind = "no_providers"
	FraudNoSignals      FraudSignalKind = "no_signals"
	FraudLowTrustSignal FraudSignalKind = "low_trust_signal"
)

// FraudSignal is a synthetic finding the pipeline's heuristic scan
// attaches to a result; it never participates in the opinion fusion
// itself, only in the final report.
type FraudSignal struct {
	Kind     FraudSignalKind
	Severity FraudSeverity
	Provider string
	Evidence map[string]any
}

// Unresolved records a provider that failed or timed out during
// dispatch, with the reason it was dropped.
type Unresolved struct {
	Provider string
	Reason   string
}

// TrustResult is the final, caller-facing outcome of an evaluation.
type TrustResult struct {
	QueryID        string
	Subject        Subject
	EntityType     EntityType
	Opinion        Opinion
	Score          float64 // adjusted projection * 100, rounded to 2dp
	Confidence     float64 // round(1 - fused.Uncertainty, 4)
	RiskBucket     RiskBucket
	Recommendation Recommendation
	Label          string
	Signals        []Signal
	FraudSignals   []FraudSignal
	Unresolved     []Unresolved
	// Breakdown is a presentation/debugging aid exposing the fused
	// opinion's components and the stability-adjustment factor applied;
	// it never drives RiskBucket or Recommendation, which are computed
	// directly from Opinion and the adjusted score.
	Breakdown   map[string]float64
	EvaluatedAt time.Time
	CacheHit    bool
}
