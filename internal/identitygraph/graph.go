// Package identitygraph maintains the in-memory mirror of known
// identity links between subjects: "this wallet is the same actor as
// that GitHub account", asserted by a registry, a signed challenge, or
// manual operator action. The graph is read on almost every query (to
// build the fan-out cohort) and written rarely (startup hydration,
// opportunistic registry extraction, external challenge callbacks), so
// it is guarded by a single sync.RWMutex rather than
// sharding — the write rate never justifies the extra complexity.
package identitygraph

import (
	"sync"
	"time"

	"github.com/ocx/trustengine/internal/trust"
)

// maxHops bounds the breadth-first search so identity resolution can
// never become an unbounded graph walk across a large mirror.
const maxHops = 3

// LinkMethod is how an identity link was established. Confidence is a
// fixed function of the method.
type LinkMethod string

const (
	MethodWalletSigned     LinkMethod = "wallet-signed"
	MethodManual           LinkMethod = "manual"
	MethodTextChallenge    LinkMethod = "text-challenge"
	MethodRegistryDeclared LinkMethod = "registry-declared"
)

// MethodConfidence is the fixed method-to-confidence mapping.
var MethodConfidence = map[LinkMethod]float64{
	MethodWalletSigned:     0.95,
	MethodManual:           0.90,
	MethodTextChallenge:    0.80,
	MethodRegistryDeclared: 0.70,
}

// edge is one directed adjacency record stored per endpoint.
type edge struct {
	to             trust.Subject
	method         LinkMethod
	confidence     float64
	verifiedAt     time.Time
	evidence       map[string]any
	attestationRef string
}

// Graph is the symmetric, in-memory identity mirror.
type Graph struct {
	mu       sync.RWMutex
	adj      map[string][]edge
	verified map[string]bool // subjects with a self-loop: "A is verified"
}

// New returns an empty identity graph.
func New() *Graph {
	return &Graph{
		adj:      make(map[string][]edge),
		verified: make(map[string]bool),
	}
}

// AddLink records a symmetric identity link between from and to. A
// self-loop (from == to) is the canonical "subject is verified"
// marker and does not create a traversable edge. AddLink is
// idempotent: adding the same (from, to) pair again updates its
// method, confidence, evidence and verified-at in place rather than
// creating a duplicate edge.
func (g *Graph) AddLink(link trust.IdentityLink) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if link.From.Key() == link.To.Key() {
		g.verified[link.From.Key()] = true
		return
	}

	confidence := link.Weight
	if confidence == 0 {
		confidence = MethodConfidence[LinkMethod(link.Source)]
	}
	verifiedAt := link.ObservedAt
	if verifiedAt.IsZero() {
		verifiedAt = time.Now()
	}

	g.upsertDirected(link.From, link.To, LinkMethod(link.Source), confidence, verifiedAt, link.Evidence, link.AttestationRef)
	g.upsertDirected(link.To, link.From, LinkMethod(link.Source), confidence, verifiedAt, link.Evidence, link.AttestationRef)
}

func (g *Graph) upsertDirected(from, to trust.Subject, method LinkMethod, confidence float64, verifiedAt time.Time, evidence map[string]any, attestationRef string) {
	key := from.Key()
	for i, e := range g.adj[key] {
		if e.to.Key() == to.Key() {
			g.adj[key][i].method = method
			g.adj[key][i].confidence = confidence
			g.adj[key][i].verifiedAt = verifiedAt
			g.adj[key][i].evidence = evidence
			g.adj[key][i].attestationRef = attestationRef
			return
		}
	}
	g.adj[key] = append(g.adj[key], edge{
		to: to, method: method, confidence: confidence, verifiedAt: verifiedAt,
		evidence: evidence, attestationRef: attestationRef,
	})
}

// IsVerified reports whether the subject carries a self-loop marker.
func (g *Graph) IsVerified(s trust.Subject) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.verified[s.Key()]
}

// Linked reports whether a and b are directly connected by an edge.
func (g *Graph) Linked(a, b trust.Subject) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.adj[a.Key()] {
		if e.to.Key() == b.Key() {
			return true
		}
	}
	return false
}

// LinksOf returns every identity link incident to s.
func (g *Graph) LinksOf(s trust.Subject) []trust.IdentityLink {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges := g.adj[s.Key()]
	links := make([]trust.IdentityLink, 0, len(edges))
	for _, e := range edges {
		links = append(links, trust.IdentityLink{
			From:           s,
			To:             e.to,
			Weight:         e.confidence,
			Source:         string(e.method),
			ObservedAt:     e.verifiedAt,
			Evidence:       e.evidence,
			AttestationRef: e.attestationRef,
		})
	}
	return links
}

// Reachable returns every subject reachable from s within maxHops
// traversal steps, not including s itself. A subject with only a
// self-loop (no real edges) has an empty reachable set.
func (g *Graph) Reachable(s trust.Subject) []trust.Subject {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]struct{}{s.Key(): {}}
	frontier := []trust.Subject{s}
	var order []trust.Subject

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []trust.Subject
		for _, cur := range frontier {
			for _, e := range g.adj[cur.Key()] {
				if _, seen := visited[e.to.Key()]; seen {
					continue
				}
				visited[e.to.Key()] = struct{}{}
				next = append(next, e.to)
				order = append(order, e.to)
			}
		}
		frontier = next
	}

	return order
}

// Size returns the number of distinct subjects with at least one
// recorded edge or verification marker, used for diagnostics.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{}, len(g.adj))
	for k := range g.adj {
		seen[k] = struct{}{}
	}
	for k := range g.verified {
		seen[k] = struct{}{}
	}
	return len(seen)
}
