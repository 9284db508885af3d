package deliverylog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "notification-workers/internal/common/errors"
)

// Postgres upserts records into one table keyed by job id.
type Postgres struct {
	db    *sql.DB
	table string
}

func NewPostgres(db *sql.DB, table string) *Postgres {
	if table == "" {
		table = "delivery_log"
	}
	return &Postgres{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the table when it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			job_id      TEXT PRIMARY KEY,
			channel     TEXT NOT NULL,
			recipient   TEXT NOT NULL,
			status      TEXT NOT NULL,
			message_id  TEXT NOT NULL DEFAULT '',
			error       TEXT NOT NULL DEFAULT '',
			attempts    INTEGER NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)`, p.table))
	if err != nil {
		return apperrors.NewDeliveryLogFailedError("postgres", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, r Record) error {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (job_id, channel, recipient, status, message_id, error, attempts, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			message_id = EXCLUDED.message_id,
			error = EXCLUDED.error,
			attempts = EXCLUDED.attempts,
			recorded_at = EXCLUDED.recorded_at`, p.table),
		r.JobID, r.Channel, r.Recipient, r.Status, r.MessageID, r.Error, r.Attempts, r.RecordedAt,
	)
	if err != nil {
		return apperrors.NewDeliveryLogFailedError("postgres", err).WithMetadata("jobId", r.JobID)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
