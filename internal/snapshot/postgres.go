package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the one concrete Store implementation, modeled on the
// teacher's internal/db/postgres.go: a pgxpool.Pool wrapped by a thin
// JSON-blob schema (wallets/NFTs serialize straightforwardly; there is
// no relational query this engine needs to run against them, so one
// JSONB column per tenant snapshot avoids a migration for every new
// field the domain model grows).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool and verifies connectivity.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool. Safe to call on a nil-pooled store.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the single table this store needs.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS tenant_snapshots (
			tenant_id TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema migration: %v", err)
	}
	return nil
}

// Save upserts a tenant's full snapshot.
func (s *PostgresStore) Save(ctx context.Context, snap TenantSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %v", err)
	}

	const upsertSQL = `
		INSERT INTO tenant_snapshots (tenant_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tenant_id) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = NOW();
	`
	_, err = s.pool.Exec(ctx, upsertSQL, snap.TenantID, payload)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant snapshot: %v", err)
	}
	return nil
}

// Load reads back a tenant's most recent snapshot.
func (s *PostgresStore) Load(ctx context.Context, tenantID string) (TenantSnapshot, error) {
	const selectSQL = `SELECT payload FROM tenant_snapshots WHERE tenant_id = $1;`

	var payload []byte
	err := s.pool.QueryRow(ctx, selectSQL, tenantID).Scan(&payload)
	if err != nil {
		return TenantSnapshot{}, fmt.Errorf("failed to load tenant snapshot: %v", err)
	}

	var snap TenantSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return TenantSnapshot{}, fmt.Errorf("unmarshal snapshot: %v", err)
	}
	return snap, nil
}

// ListTenantIDs lists every tenant with a persisted snapshot, so the
// engine can restore its tenant set on boot.
func (s *PostgresStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT tenant_id FROM tenant_snapshots;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant ids: %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %v", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
