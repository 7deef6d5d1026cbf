// Package telemetry records one terminal event per weather request.
package telemetry

import (
	"context"
	"log"
)

// Event is the structured record of a single weather request.
type Event struct {
	RequestID        string `json:"request_id"`
	Endpoint         string `json:"endpoint"`
	Outcome          string `json:"outcome"`
	HTTPStatus       int    `json:"http_status"`
	LatencyMs        int64  `json:"latency_ms"`
	CacheKey         string `json:"cache_key,omitempty"`
	Cached           bool   `json:"cached"`
	Stale            bool   `json:"stale"`
	CandidateLabel   string `json:"candidate_label,omitempty"`
	CandidateQuery   string `json:"candidate_query,omitempty"`
	SummaryProvider  string `json:"summary_provider,omitempty"`
	ForecastProvider string `json:"forecast_provider,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Sink receives events. Implementations must not block the request path for long
// and must swallow their own failures.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Multi fans an event out to every sink, isolating panics per sink.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s == nil {
			continue
		}
		emitSafe(ctx, s, ev)
	}
}

func emitSafe(ctx context.Context, s Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: [telemetry] sink %T panicked: %v", s, r)
		}
	}()
	s.Emit(ctx, ev)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}
