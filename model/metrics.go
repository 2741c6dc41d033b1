package model

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type providerMetricsProvider struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProviderMetricsProvider(registry *prometheus.Registry) *providerMetricsProvider {
	if registry == nil {
		return nil
	}

	provider := &providerMetricsProvider{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_invocation_attempts_total",
				Help: "Total number of model invocation attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_invocation_duration_seconds",
				Help:    "Duration of model invocation attempts by provider",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		provider.attempts,
		provider.latency,
	)

	return provider
}

func (p *providerMetricsProvider) RecordAttempt(provider string, start time.Time, err *ProviderError) {
	if p == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = string(err.Kind)
	}

	p.attempts.WithLabelValues(provider, outcome).Inc()
	p.latency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
