package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/opsloop/remedia/pkg/execute"
	"github.com/opsloop/remedia/pkg/sources"
)

// Postgres persists samples and execution records to PostgreSQL for
// long-term analysis. The schema is created on startup if missing.
type Postgres struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS system_metrics (
	id            BIGSERIAL PRIMARY KEY,
	subsystem_id  TEXT NOT NULL,
	metric        TEXT NOT NULL,
	value         DOUBLE PRECISION NOT NULL,
	ts            TIMESTAMPTZ NOT NULL,
	seq           BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS system_metrics_key_ts
	ON system_metrics (subsystem_id, metric, ts);

CREATE TABLE IF NOT EXISTS execution_records (
	id              UUID PRIMARY KEY,
	subsystem_id    TEXT NOT NULL,
	kind            TEXT NOT NULL,
	idempotence_key TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	err             TEXT,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
);
`

// NewPostgres opens a connection pool, verifies connectivity and ensures the
// schema exists.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) WriteSample(ctx context.Context, s sources.Sample) error {
	const query = `
		INSERT INTO system_metrics (subsystem_id, metric, value, ts, seq)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := p.db.ExecContext(ctx, query, s.SubsystemID, s.Metric, s.Value, s.Timestamp, int64(s.Seq))
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

func (p *Postgres) WriteRecord(ctx context.Context, r execute.Record) error {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}

	const query = `
		INSERT INTO execution_records
			(id, subsystem_id, kind, idempotence_key, outcome, err, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := p.db.ExecContext(ctx, query,
		id, r.Action.SubsystemID, string(r.Action.Kind), r.Action.IdempotenceKey,
		string(r.Outcome), r.Err, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
