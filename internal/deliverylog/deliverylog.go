// Package deliverylog records the terminal outcome of every notification
// job in Postgres or Elasticsearch.
package deliverylog

import (
	"context"
	"fmt"
	"time"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/database"
)

// Status of a logged delivery.
const (
	StatusDelivered = "delivered"
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
)

// Record is one terminal job outcome.
type Record struct {
	JobID      string    `json:"jobId"`
	Channel    string    `json:"channel"`
	Recipient  string    `json:"recipient"`
	Status     string    `json:"status"`
	MessageID  string    `json:"messageId,omitempty"`
	Error      string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Recorder stores records. Writing the same job id twice overwrites the
// earlier record.
type Recorder interface {
	Record(ctx context.Context, r Record) error
	Ping(ctx context.Context) error
	Close() error
}

const connectRetries = 5

// New opens the recorder selected by cfg.DeliveryLog.Backend.
func New(ctx context.Context, cfg *config.Config) (Recorder, error) {
	switch cfg.DeliveryLog.Backend {
	case "", "none":
		return Nop{}, nil
	case "postgres":
		pg, err := database.ConnectPostgres(ctx, cfg.Database.Postgres, connectRetries, time.Second)
		if err != nil {
			return nil, err
		}
		rec := NewPostgres(pg.DB, cfg.DeliveryLog.Table)
		if err := rec.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return rec, nil
	case "elasticsearch":
		es, err := database.ConnectElasticsearch(ctx, cfg.Database.Elasticsearch, connectRetries, time.Second)
		if err != nil {
			return nil, err
		}
		return NewElasticsearch(es.Client, cfg.DeliveryLog.Index), nil
	default:
		return nil, fmt.Errorf("unknown delivery log backend %q", cfg.DeliveryLog.Backend)
	}
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }
func (Nop) Ping(context.Context) error           { return nil }
func (Nop) Close() error                         { return nil }
