package identitygraph

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/trustengine/internal/trust"
)

func subj(ns, id string) trust.Subject {
	return trust.Subject{Namespace: ns, ID: id}
}

func TestAddLink_SelfLoopMarksVerified(t *testing.T) {
	g := New()
	a := subj("github", "octocat")

	g.AddLink(trust.IdentityLink{From: a, To: a, Source: string(MethodManual)})

	assert.True(t, g.IsVerified(a))
	assert.Empty(t, g.Reachable(a), "self-loop should not create a traversable edge")
}

func TestAddLink_Symmetric(t *testing.T) {
	g := New()
	a := subj("github", "octocat")
	b := subj("wallet", "0xabc")

	g.AddLink(trust.IdentityLink{From: a, To: b, Source: string(MethodWalletSigned)})

	require.Contains(t, keysOf(g.Reachable(a)), b.Key())
	require.Contains(t, keysOf(g.Reachable(b)), a.Key())
}

func TestAddLink_Idempotent(t *testing.T) {
	g := New()
	a, b := subj("github", "octocat"), subj("wallet", "0xabc")

	g.AddLink(trust.IdentityLink{From: a, To: b, Source: string(MethodWalletSigned)})
	g.AddLink(trust.IdentityLink{From: a, To: b, Source: string(MethodWalletSigned)})
	g.AddLink(trust.IdentityLink{From: a, To: b, Source: string(MethodWalletSigned)})

	assert.Len(t, g.Reachable(a), 1, "repeated identical links must not duplicate edges")
}

func TestReachable_BoundedByMaxHops(t *testing.T) {
	g := New()
	chain := []trust.Subject{
		subj("github", "a"), subj("wallet", "b"), subj("twitter", "c"),
		subj("clawhub", "d"), subj("erc8004", "e"),
	}
	for i := 0; i < len(chain)-1; i++ {
		g.AddLink(trust.IdentityLink{From: chain[i], To: chain[i+1], Source: string(MethodRegistryDeclared)})
	}

	reachable := keysOf(g.Reachable(chain[0]))

	// 3 hops from chain[0] reaches chain[1..3]; chain[4] is 4 hops away.
	assert.Contains(t, reachable, chain[1].Key())
	assert.Contains(t, reachable, chain[2].Key())
	assert.Contains(t, reachable, chain[3].Key())
	assert.NotContains(t, reachable, chain[4].Key())
}

func TestReachable_UnknownSubjectIsEmpty(t *testing.T) {
	g := New()
	assert.Empty(t, g.Reachable(subj("github", "nobody")))
}

func TestGraph_ConcurrentReadsAndWrites(t *testing.T) {
	g := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			g.AddLink(trust.IdentityLink{
				From:   subj("github", "writer"),
				To:     subj("wallet", "target"),
				Source: string(MethodManual),
			})
		}(i)
		go func() {
			defer wg.Done()
			g.Reachable(subj("github", "writer"))
		}()
	}
	wg.Wait()

	assert.Len(t, g.Reachable(subj("github", "writer")), 1)
}

func keysOf(subjects []trust.Subject) []string {
	keys := make([]string, len(subjects))
	for i, s := range subjects {
		keys[i] = s.Key()
	}
	sort.Strings(keys)
	return keys
}
