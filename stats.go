package main

// Metric names reported by the METRICS command. key_count is derived from
// the store size at read time and never stored in the registry.
const (
	MetricKeyCount               = "key_count"
	MetricTotalStoreContentsSize = "total_store_contents_size"
	MetricKeysReadCount          = "keys_read_count"
	MetricKeysUpdatedCount       = "keys_updated_count"
	MetricKeysDeletedCount       = "keys_deleted_count"
)

// ServerMetrics is a concurrency-safe counter map. It has its own
// reader/writer lock, separate from the store's, so counter updates never
// contend with store access.
type ServerMetrics struct {
	metrics map[string]int64
	rwLock  *ReaderWriterLock
}

func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		metrics: make(map[string]int64),
		rwLock:  NewReaderWriterLock(),
	}
}

// Increment adds delta to the named counter, initialising an absent
// counter to delta.
func (m *ServerMetrics) Increment(name string, delta int64) {
	m.rwLock.WriteAcquire()
	defer m.rwLock.Release()

	if current, ok := m.metrics[name]; ok {
		m.metrics[name] = current + delta
	} else {
		m.metrics[name] = delta
	}
}

// Decrement subtracts delta from the named counter. An absent counter is
// initialised to +delta, not -delta; callers that need a true negative
// start must Increment first.
func (m *ServerMetrics) Decrement(name string, delta int64) {
	m.rwLock.WriteAcquire()
	defer m.rwLock.Release()

	if current, ok := m.metrics[name]; ok {
		m.metrics[name] = current - delta
	} else {
		m.metrics[name] = delta
	}
}

// Get returns the counter's value and whether it has ever been touched.
func (m *ServerMetrics) Get(name string) (int64, bool) {
	m.rwLock.ReadAcquire()
	defer m.rwLock.Release()

	value, ok := m.metrics[name]
	return value, ok
}
