package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// ModuleMetrics returns the lazily-initialised metrics registry used to record
// JSON-RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "redbank",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "redbank",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "redbank",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// MarketMetrics wraps gauges tracking per-market lending state.
type MarketMetrics struct {
	utilization *prometheus.GaugeVec
	borrowRate  *prometheus.GaugeVec
	debtTotal   *prometheus.GaugeVec
}

// Markets exposes the metrics registry for market-level instrumentation.
func Markets() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "redbank",
				Subsystem: "market",
				Name:      "utilization",
				Help:      "Ratio of borrowed to total underlying liquidity per market (0-1).",
			}, []string{"asset"}),
			borrowRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "redbank",
				Subsystem: "market",
				Name:      "borrow_rate",
				Help:      "Current per-year borrow rate per market.",
			}, []string{"asset"}),
			debtTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "redbank",
				Subsystem: "market",
				Name:      "debt_total",
				Help:      "Outstanding underlying debt per market in smallest units.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			marketRegistry.utilization,
			marketRegistry.borrowRate,
			marketRegistry.debtTotal,
		)
	})
	return marketRegistry
}

// RecordMarket updates the gauges for one market after a state transition.
func (m *MarketMetrics) RecordMarket(asset string, utilization, borrowRate float64, debtTotal *big.Int) {
	if m == nil {
		return
	}
	label := labelAsset(asset)
	m.utilization.WithLabelValues(label).Set(clampRatio(utilization))
	m.borrowRate.WithLabelValues(label).Set(borrowRate)
	m.debtTotal.WithLabelValues(label).Set(bigToFloat(debtTotal))
}

func clampRatio(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
