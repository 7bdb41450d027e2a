// Package metrics holds the prometheus collectors of the mail core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	FallbackNoRecipientKey = "no_recipient_key"
	FallbackUnsigned       = "unsigned"
	FallbackDecryptFailed  = "decrypt_failed"
	FallbackEncryptFailed  = "encrypt_failed"
)

// Metrics is safe to use through a nil pointer, in which case nothing is
// recorded.
type Metrics struct {
	SyncedMessages  prometheus.Counter
	SyncFailures    prometheus.Counter
	SyncRuns        *prometheus.CounterVec
	SyncDuration    prometheus.Histogram
	MessagesSent    prometheus.Counter
	CryptoFallbacks *prometheus.CounterVec
}

// New creates the collectors and registers them on reg (skipped when reg is
// nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophmail_sync_messages_total",
			Help: "Messages persisted by folder sync",
		}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophmail_sync_message_failures_total",
			Help: "Messages that failed to fetch or persist during sync",
		}),
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophmail_sync_runs_total",
			Help: "Account sync runs by outcome",
		}, []string{"outcome"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gophmail_sync_duration_milliseconds",
			Help:    "Duration of account sync runs",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophmail_messages_sent_total",
			Help: "Messages handed to SMTP",
		}),
		CryptoFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophmail_crypto_fallbacks_total",
			Help: "Degradations of the message crypto pipeline",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.SyncedMessages, m.SyncFailures, m.SyncRuns, m.SyncDuration, m.MessagesSent, m.CryptoFallbacks)
	}
	return m
}

func (m *Metrics) MessageSynced() {
	if m != nil {
		m.SyncedMessages.Inc()
	}
}

func (m *Metrics) MessageFailed() {
	if m != nil {
		m.SyncFailures.Inc()
	}
}

func (m *Metrics) SyncRun(success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.SyncRuns.WithLabelValues(outcome).Inc()
	m.SyncDuration.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) MessageSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) CryptoFallback(reason string) {
	if m != nil {
		m.CryptoFallbacks.WithLabelValues(reason).Inc()
	}
}
