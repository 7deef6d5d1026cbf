package telemetry

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapSink writes each event as one JSON log line.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapLogger builds the production JSON logger used for telemetry lines.
func NewZapLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("telemetry")}
}

func (s *ZapSink) Emit(_ context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("request_id", ev.RequestID),
		zap.String("endpoint", ev.Endpoint),
		zap.String("outcome", ev.Outcome),
		zap.Int("http_status", ev.HTTPStatus),
		zap.Int64("latency_ms", ev.LatencyMs),
		zap.Bool("cached", ev.Cached),
		zap.Bool("stale", ev.Stale),
	}
	if ev.CacheKey != "" {
		fields = append(fields, zap.String("cache_key", ev.CacheKey))
	}
	if ev.CandidateLabel != "" {
		fields = append(fields,
			zap.String("candidate_label", ev.CandidateLabel),
			zap.String("candidate_query", ev.CandidateQuery),
		)
	}
	if ev.ForecastProvider != "" {
		fields = append(fields, zap.String("forecast_provider", ev.ForecastProvider))
	}
	if ev.SummaryProvider != "" {
		fields = append(fields, zap.String("summary_provider", ev.SummaryProvider))
	}

	if ev.Error != "" || ev.HTTPStatus >= 500 {
		s.logger.Warn("weather_request", append(fields, zap.String("error", ev.Error))...)
		return
	}
	s.logger.Info("weather_request", fields...)
}
