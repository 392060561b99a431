package session

import (
	"sync/atomic"
)

// Metrics contains atomic counters of the sessions of a Manager.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// LoadCount indicates the number of file loads started.
	LoadCount atomic.Uint64
	// LoadErrCount indicates the number of file loads that failed.
	LoadErrCount atomic.Uint64

	// DecodeCount indicates the number of tests decoded from a stream.
	DecodeCount atomic.Uint64
	// DecodeErrCount indicates the number of tests that could not be decoded.
	DecodeErrCount atomic.Uint64
	// DecodeBytes indicates the number of record bytes read by decodes.
	DecodeBytes atomic.Uint64

	// CacheHitCount indicates the number of test lookups served from the decoded-data cache.
	CacheHitCount atomic.Uint64
	// CacheMissCount indicates the number of test lookups that required a decode.
	CacheMissCount atomic.Uint64
	// CachedTests indicates the number of tests held in the cache of the current session.
	CachedTests atomic.Int64
}

func (m *Metrics) incLoadCount() {
	m.LoadCount.Add(1)
}

func (m *Metrics) incLoadErrCount() {
	m.LoadErrCount.Add(1)
}

func (m *Metrics) incDecodeCount(bytes uint64) {
	m.DecodeCount.Add(1)
	m.DecodeBytes.Add(bytes)
}

func (m *Metrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}

func (m *Metrics) incCacheHitCount() {
	m.CacheHitCount.Add(1)
}

func (m *Metrics) incCacheMissCount() {
	m.CacheMissCount.Add(1)
}

func (m *Metrics) addCachedTests(n int64) {
	m.CachedTests.Add(n)
}
