package report

import (
	"context"

	"github.com/mnemolabs/reprime/internal/domain"
	"go.uber.org/zap"
)

// LogSink writes batch reports to the structured log. Always wired; keeps
// cycle outcomes observable even with no broker configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) EmitBatch(ctx context.Context, report domain.BatchReport) error {
	s.logger.Info("rescue batch complete",
		zap.String("tier", string(report.Tier)),
		zap.Int("attempted", report.Attempted),
		zap.Int("successes", report.Successes),
		zap.Float64("mean_effectiveness", report.MeanEffectiveness),
		zap.Int("deferred", report.Deferred),
		zap.Time("completed_at", report.CompletedAt))
	return nil
}

var _ domain.ReportSink = (*LogSink)(nil)
