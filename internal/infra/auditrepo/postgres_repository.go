package auditrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/horizon/internal/domain/auditlog"
)

const schema = `
	CREATE TABLE IF NOT EXISTS analysis_audit (
		id            TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL DEFAULT '',
		location_kind TEXT NOT NULL,
		location      TEXT NOT NULL,
		date          TEXT NOT NULL,
		outcome       TEXT NOT NULL,
		sunrise_score INTEGER,
		sunset_score  INTEGER,
		latency_ms    BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS analysis_audit_created_at_idx ON analysis_audit (created_at DESC);
`

// PostgresRepository implements auditlog.Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the audit table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Insert appends a new entry.
func (r *PostgresRepository) Insert(ctx context.Context, entry auditlog.Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO analysis_audit (
			id, session_id, location_kind, location, date, outcome,
			sunrise_score, sunset_score, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.SessionID, entry.LocationKind, entry.Location, entry.Date, string(entry.Outcome),
		nullableScore(entry.SunriseScore, entry.Outcome), nullableScore(entry.SunsetScore, entry.Outcome),
		entry.LatencyMs, entry.CreatedAt)
	return err
}

// Recent returns the newest entries first.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]auditlog.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, location_kind, location, date, outcome,
			sunrise_score, sunset_score, latency_ms, created_at
		FROM analysis_audit
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]auditlog.Entry, 0, limit)
	for rows.Next() {
		var (
			entry   auditlog.Entry
			outcome string
			sunrise sql.NullInt32
			sunset  sql.NullInt32
		)
		if err := rows.Scan(
			&entry.ID, &entry.SessionID, &entry.LocationKind, &entry.Location, &entry.Date, &outcome,
			&sunrise, &sunset, &entry.LatencyMs, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Outcome = auditlog.Outcome(outcome)
		entry.SunriseScore = int(sunrise.Int32)
		entry.SunsetScore = int(sunset.Int32)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableScore(score int, outcome auditlog.Outcome) any {
	if outcome != auditlog.OutcomeSuccess {
		return nil
	}
	return score
}

var _ auditlog.Repository = (*PostgresRepository)(nil)
