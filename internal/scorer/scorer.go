// Package scorer implements the pure subjective-logic arithmetic the
// trust engine is built on: turning a provider signal into an opinion,
// fusing opinions, adjusting for evolutionary stability, and mapping
// the result onto risk buckets and recommendations.
//
// Every function here is pure and side-effect free by design: the
// pipeline is the only caller that touches providers, caches or the
// clock, which keeps this package trivial to test exhaustively.
package scorer

import (
	"math"
	"strings"

	"github.com/ocx/trustengine/internal/trust"
)

// dogmaticGuard is the minimum combined uncertainty below which two
// opinions are treated as dogmatic; fusing them directly would divide
// by (close to) zero.
const dogmaticGuard = 1e-10

// DefaultStabilityLambda is the penalty coefficient applied when a
// subject's signals disagree widely with each other, the midpoint of
// the stable honest-equilibrium range [0.1, 0.2]. Used when the caller
// passes a non-positive lambda to AdjustForStability.
const DefaultStabilityLambda = 0.15

// evStabilityMinSignals is the minimum number of signals required
// before the stability adjustment applies at all.
const evStabilityMinSignals = 2

// evStabilityRangeThreshold is the minimum spread between the
// highest and lowest signal score before the penalty kicks in.
const evStabilityRangeThreshold = 0.4

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SignalToOpinion converts one provider's raw signal into a subjective
// logic opinion: b = s*c, d = (1-s)*c, u = 1-c, a = 0.5, where s and c
// are the signal's score and confidence clamped to [0,1].
func SignalToOpinion(sig trust.Signal) trust.Opinion {
	s := clamp01(sig.Score)
	c := clamp01(sig.Confidence)

	return trust.Opinion{
		Belief:      s * c,
		Disbelief:   (1 - s) * c,
		Uncertainty: 1 - c,
		BaseRate:    0.5,
	}
}

// Fuse combines two opinions via cumulative belief fusion (CBF). When
// both opinions are dogmatic (kappa below the guard), fusion falls
// back to the pairwise arithmetic mean of belief/disbelief/base-rate
// with zero uncertainty, since CBF's formula is undefined at that
// limit.
func Fuse(a, b trust.Opinion) trust.Opinion {
	kappa := a.Uncertainty + b.Uncertainty - a.Uncertainty*b.Uncertainty

	if kappa < dogmaticGuard {
		return trust.Opinion{
			Belief:      (a.Belief + b.Belief) / 2,
			Disbelief:   (a.Disbelief + b.Disbelief) / 2,
			Uncertainty: 0,
			BaseRate:    (a.BaseRate + b.BaseRate) / 2,
		}
	}

	belief := (a.Belief*b.Uncertainty + b.Belief*a.Uncertainty) / kappa
	disbelief := (a.Disbelief*b.Uncertainty + b.Disbelief*a.Uncertainty) / kappa
	uncertainty := (a.Uncertainty * b.Uncertainty) / kappa

	denom := a.Uncertainty + b.Uncertainty - 2*a.Uncertainty*b.Uncertainty
	var baseRate float64
	if math.Abs(denom) < dogmaticGuard {
		baseRate = (a.BaseRate + b.BaseRate) / 2
	} else {
		baseRate = (a.BaseRate*(kappa-a.Uncertainty) + b.BaseRate*(kappa-b.Uncertainty)) / denom
	}

	return trust.Opinion{
		Belief:      clamp01(belief),
		Disbelief:   clamp01(disbelief),
		Uncertainty: clamp01(uncertainty),
		BaseRate:    clamp01(baseRate),
	}
}

// FuseAll left-folds a sequence of opinions starting from the vacuous
// opinion. Zero signals yields the vacuous opinion; one signal yields
// itself (fusing with vacuous is the identity).
func FuseAll(opinions []trust.Opinion) trust.Opinion {
	result := trust.Vacuous()
	for _, o := range opinions {
		result = Fuse(result, o)
	}
	return result
}

// Project returns an opinion's expected probability, b + a*u, clamped
// to [0,1].
func Project(o trust.Opinion) float64 {
	return clamp01(o.Belief + o.BaseRate*o.Uncertainty)
}

// AdjustForStability applies the evolutionary-stability penalty to a
// projected score: when two or more signals disagree by more than
// evStabilityRangeThreshold in their raw score, the projection is
// multiplied by (1 - lambda*r). It never increases the score and is
// the identity when fewer than two signals are present or the range
// is at or below the threshold. A non-positive lambda falls back to
// DefaultStabilityLambda.
func AdjustForStability(projected float64, signals []trust.Signal, lambda float64) float64 {
	if lambda <= 0 {
		lambda = DefaultStabilityLambda
	}
	if len(signals) < evStabilityMinSignals {
		return projected
	}

	lo, hi := signals[0].Score, signals[0].Score
	for _, s := range signals[1:] {
		if s.Score < lo {
			lo = s.Score
		}
		if s.Score > hi {
			hi = s.Score
		}
	}
	r := hi - lo
	if r <= evStabilityRangeThreshold {
		return projected
	}

	return clamp01(projected * (1 - lambda*r))
}

type riskThreshold struct {
	min    float64
	bucket trust.RiskBucket
}

var riskThresholds = []riskThreshold{
	{0.8, trust.RiskMinimal},
	{0.6, trust.RiskLow},
	{0.4, trust.RiskMedium},
	{0.2, trust.RiskHigh},
	{0, trust.RiskCritical},
}

// MapRiskBucket converts an adjusted score in [0,1] to a risk bucket.
func MapRiskBucket(adjusted float64) trust.RiskBucket {
	for _, t := range riskThresholds {
		if adjusted >= t.min {
			return t.bucket
		}
	}
	return trust.RiskCritical
}

var bucketEscalation = map[trust.RiskBucket]trust.RiskBucket{
	trust.RiskMinimal:  trust.RiskLow,
	trust.RiskLow:      trust.RiskMedium,
	trust.RiskMedium:   trust.RiskHigh,
	trust.RiskHigh:     trust.RiskCritical,
	trust.RiskCritical: trust.RiskCritical,
}

// ApplyContext escalates a risk bucket one step toward critical when
// the caller's intended action is higher-stakes (transact or
// delegate). Other actions leave the bucket unchanged.
func ApplyContext(bucket trust.RiskBucket, action trust.Action) trust.RiskBucket {
	if action != trust.ActionTransact && action != trust.ActionDelegate {
		return bucket
	}
	if escalated, ok := bucketEscalation[bucket]; ok {
		return escalated
	}
	return bucket
}

// MapRecommendation derives the caller-facing recommendation from the
// (possibly context-adjusted) risk bucket and the adjusted score.
func MapRecommendation(bucket trust.RiskBucket, adjusted float64) trust.Recommendation {
	highConfidence := adjusted >= 0.7
	switch bucket {
	case trust.RiskMinimal:
		return trust.RecommendAllow
	case trust.RiskLow:
		if highConfidence {
			return trust.RecommendInstall
		}
		return trust.RecommendAllow
	case trust.RiskMedium:
		return trust.RecommendReview
	case trust.RiskHigh:
		return trust.RecommendCaution
	default:
		return trust.RecommendDeny
	}
}

// DetectEntityType infers the kind of subject from its namespace and
// ID shape alone, with no network access.
func DetectEntityType(s trust.Subject) trust.EntityType {
	ns := strings.ToLower(s.Namespace)
	switch ns {
	case "erc8004", "twitter", "x", "moltbook", "wallet", "ens", "did", "email":
		return trust.EntityAgent
	case "github", "gitlab":
		if strings.Contains(s.ID, "/") {
			return trust.EntityRepo
		}
		return trust.EntityDeveloper
	case "clawhub":
		if strings.HasPrefix(s.ID, "skill/") || strings.Contains(s.ID, "/") {
			return trust.EntitySkill
		}
		return trust.EntityDeveloper
	default:
		return trust.EntityUnknown
	}
}

// humanLabels is the fixed (entity-type, recommendation) -> phrase
// table. It is a presentation aid only and never affects scoring.
var humanLabels = map[trust.EntityType]map[trust.Recommendation]string{
	trust.EntityAgent: {
		trust.RecommendAllow:   "✅ agent looks trustworthy",
		trust.RecommendInstall: "✅ agent cleared to install",
		trust.RecommendReview:  "🔎 agent needs manual review",
		trust.RecommendCaution: "⚠️ proceed with caution on this agent",
		trust.RecommendDeny:    "⛔ agent not recommended",
	},
	trust.EntityRepo: {
		trust.RecommendAllow:   "✅ repository looks trustworthy",
		trust.RecommendInstall: "✅ repository cleared to install",
		trust.RecommendReview:  "🔎 repository needs manual review",
		trust.RecommendCaution: "⚠️ proceed with caution on this repository",
		trust.RecommendDeny:    "⛔ repository not recommended",
	},
	trust.EntitySkill: {
		trust.RecommendAllow:   "✅ skill looks trustworthy",
		trust.RecommendInstall: "✅ skill cleared to install",
		trust.RecommendReview:  "🔎 skill needs manual review",
		trust.RecommendCaution: "⚠️ proceed with caution on this skill",
		trust.RecommendDeny:    "⛔ skill not recommended",
	},
	trust.EntityDeveloper: {
		trust.RecommendAllow:   "✅ developer looks trustworthy",
		trust.RecommendInstall: "✅ developer cleared to install",
		trust.RecommendReview:  "🔎 developer needs manual review",
		trust.RecommendCaution: "⚠️ proceed with caution on this developer",
		trust.RecommendDeny:    "⛔ developer not recommended",
	},
	trust.EntityUnknown: {
		trust.RecommendAllow:   "✅ looks trustworthy",
		trust.RecommendInstall: "✅ cleared to install",
		trust.RecommendReview:  "🔎 needs manual review",
		trust.RecommendCaution: "⚠️ proceed with caution",
		trust.RecommendDeny:    "⛔ not recommended",
	},
}

// HumanLabel produces a short, human-readable phrase for an
// (entity-type, recommendation) pair.
func HumanLabel(entity trust.EntityType, rec trust.Recommendation) string {
	if byRec, ok := humanLabels[entity]; ok {
		if phrase, ok := byRec[rec]; ok {
			return phrase
		}
	}
	return humanLabels[trust.EntityUnknown][trust.RecommendDeny]
}

// Round2 rounds a float to two decimal places, used to convert an
// adjusted [0,1] projection into the public 0-100 trust_score.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round4 rounds a float to four decimal places, used for confidence.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
