// Package metrics exports session counters to prometheus.
package metrics

import (
	"errors"

	"github.com/arloliu/go-stdf/session"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is the metric namespace used when none is given.
const DefaultNamespace = "stdf"

// Collectors returns counter and gauge functions reading m.
func Collectors(namespace string, m *session.Metrics) []prometheus.Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	counter := func(name, help string, fn func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn()) })
	}

	return []prometheus.Collector{
		counter("loads_total", "Total file loads started.", m.LoadCount.Load),
		counter("load_errors_total", "Total file loads that failed.", m.LoadErrCount.Load),
		counter("decodes_total", "Total tests decoded from a stream.", m.DecodeCount.Load),
		counter("decode_errors_total", "Total tests that could not be decoded.", m.DecodeErrCount.Load),
		counter("decode_bytes_total", "Total record bytes read by decodes.", m.DecodeBytes.Load),
		counter("cache_hits_total", "Total test lookups served from the decoded-data cache.", m.CacheHitCount.Load),
		counter("cache_misses_total", "Total test lookups that required a decode.", m.CacheMissCount.Load),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_tests",
			Help:      "Number of tests held in the decoded-data cache.",
		}, func() float64 { return float64(m.CachedTests.Load()) }),
	}
}

// Register registers the collectors of m with reg. Collectors that are already registered are
// skipped.
func Register(reg prometheus.Registerer, namespace string, m *session.Metrics) error {
	var errs []error
	for _, c := range Collectors(namespace, m) {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
