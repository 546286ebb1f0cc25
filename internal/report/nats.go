package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnemolabs/reprime/internal/domain"
	"github.com/nats-io/nats.go"
)

// NATSSink publishes batch reports as JSON onto a per-tier subject so
// downstream consumers can subscribe to a single cycle or the whole stream.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to the given NATS URL. The subject acts as a prefix;
// reports go to "<subject>.<tier>".
func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("reprime-reports"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) EmitBatch(ctx context.Context, report domain.BatchReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal batch report: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", s.subject, report.Tier)
	if err := s.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish batch report: %w", err)
	}
	return nil
}

func (s *NATSSink) Close() {
	_ = s.conn.Drain()
}

var _ domain.ReportSink = (*NATSSink)(nil)
