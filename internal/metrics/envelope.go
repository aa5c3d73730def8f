package metrics

import "time"

// Envelope wraps a sampled value with freshness metadata. A failing source
// still produces an envelope so consumers can render degraded state without
// guessing.
type Envelope[T any] struct {
	Value       *T        `json:"value,omitempty"`
	Error       string    `json:"error,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
	LatencyMS   int64     `json:"latency_ms"`
	AgeMS       int64     `json:"age_ms"`
}

// Fresh builds an envelope around a successfully collected value.
func Fresh[T any](value T, collectedAt time.Time, latency time.Duration) Envelope[T] {
	return Envelope[T]{
		Value:       &value,
		CollectedAt: collectedAt,
		LatencyMS:   latency.Milliseconds(),
	}
}

// Errored builds an envelope recording a collection failure.
func Errored[T any](err error, collectedAt time.Time, latency time.Duration) Envelope[T] {
	return Envelope[T]{
		Error:       err.Error(),
		CollectedAt: collectedAt,
		LatencyMS:   latency.Milliseconds(),
	}
}

// withAge stamps the derived age relative to now. Ages across a snapshot are
// derived from the same wall-clock read.
func (e Envelope[T]) withAge(now time.Time) Envelope[T] {
	age := now.Sub(e.CollectedAt).Milliseconds()
	if age < 0 {
		age = 0
	}
	e.AgeMS = age
	return e
}
