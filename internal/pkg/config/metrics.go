package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics reports how a component's configuration was loaded. Every
// metric name is prefixed with the component, e.g. worker_config_fallbacks_total.
type ConfigMetrics struct {
	// LoadTimestamp is the Unix time of the last load.
	LoadTimestamp prometheus.Gauge
	// ValidationErrorsTotal counts rejected values by field.
	ValidationErrorsTotal *prometheus.CounterVec
	// FallbacksTotal counts applied fallbacks by field and fallback kind.
	FallbacksTotal *prometheus.CounterVec
	// FallbackActive is 1 while the running configuration contains any fallback.
	FallbackActive prometheus.Gauge
}

// NewConfigMetrics registers the metrics for component on the default registry.
// It panics if called twice with the same component.
func NewConfigMetrics(component string) *ConfigMetrics {
	return NewConfigMetricsWith(prometheus.DefaultRegisterer, component)
}

// NewConfigMetricsWith registers the metrics on reg.
func NewConfigMetricsWith(reg prometheus.Registerer, component string) *ConfigMetrics {
	factory := promauto.With(reg)
	return &ConfigMetrics{
		LoadTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: component + "_config_load_timestamp",
			Help: "Unix timestamp of the last " + component + " configuration load",
		}),
		ValidationErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: component + "_config_validation_errors_total",
			Help: "Total number of rejected " + component + " configuration values",
		}, []string{"field"}),
		FallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: component + "_config_fallbacks_total",
			Help: "Total number of " + component + " configuration fallbacks",
		}, []string{"field", "fallback"}),
		FallbackActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: component + "_config_fallback_active",
			Help: "1 if the " + component + " configuration contains a fallback value, 0 otherwise",
		}),
	}
}

// RecordLoadTimestamp stamps the load time.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a rejected value of field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts a fallback of field; kind is usually "default".
func (m *ConfigMetrics) RecordFallback(field, kind string) {
	m.FallbacksTotal.WithLabelValues(field, kind).Inc()
}

// SetFallbackActive sets the fallback gauge.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}
