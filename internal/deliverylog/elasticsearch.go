package deliverylog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "notification-workers/internal/common/errors"
)

// Elasticsearch indexes records with the job id as document id.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearch(client *elasticsearch.Client, index string) *Elasticsearch {
	if index == "" {
		index = "delivery-log"
	}
	return &Elasticsearch{client: client, index: index}
}

func (e *Elasticsearch) Record(ctx context.Context, r Record) error {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	body, err := json.Marshal(r)
	if err != nil {
		return apperrors.NewDeliveryLogFailedError("elasticsearch", err)
	}

	res, err := e.client.Index(e.index, bytes.NewReader(body),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(r.JobID),
	)
	if err != nil {
		return apperrors.NewDeliveryLogFailedError("elasticsearch", err).WithMetadata("jobId", r.JobID)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return apperrors.NewDeliveryLogFailedError("elasticsearch",
			fmt.Errorf("index %s: %s: %s", e.index, res.Status(), msg)).WithMetadata("jobId", r.JobID)
	}
	return nil
}

func (e *Elasticsearch) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

func (e *Elasticsearch) Close() error { return nil }
