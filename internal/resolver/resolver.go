// Package resolver expands a subject to its identity cohort —
// itself plus every subject transitively linked to it in the identity
// graph — opportunistically materialising ERC-8004 registry-declared
// links along the way.
package resolver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ocx/trustengine/internal/identitygraph"
	"github.com/ocx/trustengine/internal/trust"
)

// OnChainLinker is the subset of the ERC-8004 provider the resolver
// depends on: extracting declared identity links for a registration.
// Defined here rather than imported directly so the resolver does not
// depend on the concrete provider package.
type OnChainLinker interface {
	LinkedIdentifiers(ctx context.Context, id string) ([]trust.Subject, error)
}

// Result is the outcome of resolving one subject.
type Result struct {
	Canonical trust.Subject
	Linked    []trust.Subject
	All       []trust.Subject
}

// Resolver expands subjects against a shared identity graph. It
// carries no cache of its own — graph mutation from prior resolutions
// is its cache, per the no-neighbours check in Resolve.
type Resolver struct {
	graph  *identitygraph.Graph
	linker OnChainLinker
	logger *slog.Logger

	// extracted memoizes which erc8004 subject keys have already had
	// their on-chain links opportunistically pulled, so concurrent
	// resolutions of the same subject never issue duplicate RPC calls
	// and a subject is extracted at most once regardless of how many
	// times it is later resolved with neighbours already present.
	extractedMu sync.Mutex
	extracted   map[string]bool
}

// New builds a resolver over graph, using linker for opportunistic
// ERC-8004 extraction. linker may be nil if no on-chain provider is
// registered, in which case step 1 of Resolve is skipped entirely.
func New(graph *identitygraph.Graph, linker OnChainLinker, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		graph:     graph,
		linker:    linker,
		logger:    logger,
		extracted: make(map[string]bool),
	}
}

// Resolve expands subject to its cohort. Errors from opportunistic
// on-chain extraction are swallowed and logged, never propagated: a
// registry outage degrades resolution to "no linked identities", not
// to a failed query.
func (r *Resolver) Resolve(ctx context.Context, subject trust.Subject) Result {
	if r.linker != nil && subject.Namespace == "erc8004" {
		r.maybeExtractOnChainLinks(ctx, subject)
	}

	linked := r.graph.Reachable(subject)

	all := make([]trust.Subject, 0, len(linked)+1)
	all = append(all, subject)
	all = append(all, linked...)

	return Result{Canonical: subject, Linked: linked, All: all}
}

// maybeExtractOnChainLinks performs the opportunistic extraction step:
// only when the graph currently has no neighbours for this subject,
// and only once per subject key for the lifetime of this resolver
// (race-safe: the first caller claims the key under a mutex, so
// concurrent callers never issue their own call). A concurrent caller
// that finds the key already claimed returns at once without waiting,
// so its cohort may not yet include the links still being extracted.
func (r *Resolver) maybeExtractOnChainLinks(ctx context.Context, subject trust.Subject) {
	if len(r.graph.Reachable(subject)) > 0 {
		return
	}

	key := subject.Key()

	r.extractedMu.Lock()
	if r.extracted[key] {
		r.extractedMu.Unlock()
		return
	}
	r.extracted[key] = true
	r.extractedMu.Unlock()

	linked, err := r.linker.LinkedIdentifiers(ctx, subject.ID)
	if err != nil {
		r.logger.Warn("opportunistic on-chain link extraction failed", "subject", subject.Key(), "error", err)
		return
	}

	for _, other := range linked {
		r.graph.AddLink(trust.IdentityLink{
			From:   subject,
			To:     other,
			Source: string(identitygraph.MethodRegistryDeclared),
		})
	}
}
