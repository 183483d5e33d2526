package identitygraph

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/ocx/trustengine/internal/trust"
)

// identity_links table columns this hydrator expects:
//
//	from_namespace, from_id, to_namespace, to_id, method, confidence, observed_at
//
// The graph is the source of truth at query time; Postgres is the
// external collaborator that owns durability and survives restarts.
const hydrateQuery = `SELECT from_namespace, from_id, to_namespace, to_id, method, confidence, observed_at FROM identity_links`

// PgHydrator loads identity links from Postgres into a Graph at
// startup. The core never writes back through this path — new links
// discovered during resolution are mirrored into the graph only, and
// persisted by the owning collaborator out of band.
type PgHydrator struct {
	db *sql.DB
}

// NewPgHydrator opens a Postgres connection for startup hydration.
func NewPgHydrator(dsn string) (*PgHydrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &PgHydrator{db: db}, nil
}

// Close releases the underlying connection pool.
func (h *PgHydrator) Close() error {
	return h.db.Close()
}

// Hydrate loads every identity link row into g. It is intended to run
// once at process startup; a failure here is logged but non-fatal —
// the engine starts with an empty graph and resolves what it can from
// ERC-8004 registries going forward.
func (h *PgHydrator) Hydrate(ctx context.Context, g *Graph, logger *slog.Logger) error {
	rows, err := h.db.QueryContext(ctx, hydrateQuery)
	if err != nil {
		return fmt.Errorf("query identity_links: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var fromNS, fromID, toNS, toID, method string
		var confidence float64
		var observedAt time.Time

		if err := rows.Scan(&fromNS, &fromID, &toNS, &toID, &method, &confidence, &observedAt); err != nil {
			logger.Warn("skipping malformed identity link row", "error", err)
			continue
		}

		g.AddLink(trust.IdentityLink{
			From:       trust.Subject{Namespace: fromNS, ID: fromID},
			To:         trust.Subject{Namespace: toNS, ID: toID},
			Weight:     confidence,
			Source:     method,
			ObservedAt: observedAt,
		})
		loaded++
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate identity_links: %w", err)
	}

	logger.Info("hydrated identity graph from postgres", "links", loaded)
	return nil
}
