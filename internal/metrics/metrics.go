// Package metrics exposes Prometheus collectors for the compiler, the parse
// cache and the emulator. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "octet"

// Metrics groups every collector. Build one per registry with New.
type Metrics struct {
	compilesTotal    *prometheus.CounterVec
	compileDuration  prometheus.Histogram
	uniqueGates      *prometheus.GaugeVec
	bytecodeWords    *prometheus.CounterVec
	parseCacheLookup *prometheus.CounterVec
	decodedWords     *prometheus.CounterVec
	decodeErrors     prometheus.Counter
}

// New registers the collectors on reg. Passing prometheus.NewRegistry()
// keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		compilesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "compiles_total",
				Help:      "Total number of circuit compilations",
			},
			// status: success/error
			[]string{"status"},
		),
		compileDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "compile_duration_seconds",
				Help:      "Duration of circuit compilations",
				Buckets:   prometheus.DefBuckets,
			},
		),
		uniqueGates: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "unique_gates",
				Help:      "Unique gate definitions of the last compilation, per channel",
			},
			[]string{"channel"},
		),
		bytecodeWords: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compiler",
				Name:      "bytecode_words_total",
				Help:      "Words emitted, by output block",
			},
			// block: programming/sequence/stream
			[]string{"block"},
		),
		parseCacheLookup: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit",
				Name:      "parse_cache_lookups_total",
				Help:      "Parse cache lookups",
			},
			// result: hit/miss
			[]string{"result"},
		),
		decodedWords: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "emulator",
				Name:      "decoded_words_total",
				Help:      "Words decoded, by programming mode",
			},
			[]string{"mode"},
		),
		decodeErrors: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "emulator",
				Name:      "decode_errors_total",
				Help:      "Words that failed to decode",
			},
		),
	}
}

// ObserveCompile records one compilation and its duration.
func (m *Metrics) ObserveCompile(start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.compilesTotal.WithLabelValues(status).Inc()
	m.compileDuration.Observe(time.Since(start).Seconds())
}

// SetUniqueGates records the unique gate count of one channel.
func (m *Metrics) SetUniqueGates(channel, n int) {
	if m == nil {
		return
	}
	m.uniqueGates.WithLabelValues(strconv.Itoa(channel)).Set(float64(n))
}

// AddWords counts words emitted into block.
func (m *Metrics) AddWords(block string, n int) {
	if m == nil {
		return
	}
	m.bytecodeWords.WithLabelValues(block).Add(float64(n))
}

// CacheLookup counts one parse cache lookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.parseCacheLookup.WithLabelValues(result).Inc()
}

// Decoded counts one decoded word of the given mode.
func (m *Metrics) Decoded(mode string) {
	if m == nil {
		return
	}
	m.decodedWords.WithLabelValues(mode).Inc()
}

// DecodeFailed counts one word that failed to decode.
func (m *Metrics) DecodeFailed() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}
