package main

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerMetricsIncrementDecrement(t *testing.T) {
	m := NewServerMetrics()

	_, ok := m.Get(MetricKeysReadCount)
	assert.False(t, ok, "untouched counter should be absent")

	m.Increment(MetricKeysReadCount, 3)
	value, ok := m.Get(MetricKeysReadCount)
	assert.True(t, ok)
	assert.Equal(t, int64(3), value)

	m.Decrement(MetricKeysReadCount, 1)
	value, _ = m.Get(MetricKeysReadCount)
	assert.Equal(t, int64(2), value)
}

func TestServerMetricsDecrementAbsentName(t *testing.T) {
	m := NewServerMetrics()

	// Decrementing a counter that was never touched initialises it to
	// +delta, not -delta.
	m.Decrement(MetricKeysDeletedCount, 4)
	value, ok := m.Get(MetricKeysDeletedCount)
	assert.True(t, ok)
	assert.Equal(t, int64(4), value)

	m.Decrement(MetricKeysDeletedCount, 4)
	value, _ = m.Get(MetricKeysDeletedCount)
	assert.Equal(t, int64(0), value)
}

func TestServerMetricsConcurrentCounting(t *testing.T) {
	m := NewServerMetrics()

	var wg sync.WaitGroup
	for _i1 := 0; _i1 < 10; _i1++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _i2 := 0; _i2 < 100; _i2++ {
				m.Increment(MetricKeysUpdatedCount, 1)
			}
		}()
	}
	wg.Wait()

	value, ok := m.Get(MetricKeysUpdatedCount)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), value)
}
