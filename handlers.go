package main

import "fmt"

// executeGet collects the values for every present key under one read
// hold. The read counter includes misses: it counts keys requested, not
// keys found.
func (s *MemKVServer) executeGet(cmd *GetCommand) *Response {
	found := s.store.GetBulk(cmd.Keys)
	s.metrics.Increment(MetricKeysReadCount, int64(len(cmd.Keys)))

	kvList := make([]KeyValue, 0, len(found))
	for key, value := range found {
		kvList = append(kvList, KeyValue{Key: key, Value: value})
	}
	return &Response{Status: StatusOK, Message: StatusOK, KVList: kvList}
}

// executeSet upserts the batch and settles the counters afterwards: the
// store size metric moves by the net byte change, not the bytes written.
func (s *MemKVServer) executeSet(cmd *SetCommand) *Response {
	oldBytes := s.store.SetBulk(cmd.KeyValues)

	var newBytes int64
	keyList := make([]string, 0, len(cmd.KeyValues))
	for _, kv := range cmd.KeyValues {
		newBytes += int64(len(kv.Value))
		keyList = append(keyList, kv.Key)
	}

	s.metrics.Increment(MetricKeysUpdatedCount, int64(len(cmd.KeyValues)))
	s.metrics.Increment(MetricTotalStoreContentsSize, newBytes-oldBytes)

	return &Response{Status: StatusOK, Message: StatusOK, KeyList: keyList}
}

// executeDelete removes whatever is present and reports only the keys it
// actually removed; an all-miss batch returns no key list at all.
func (s *MemKVServer) executeDelete(cmd *DeleteCommand) *Response {
	removed, removedBytes := s.store.DeleteBulk(cmd.Keys)

	s.metrics.Increment(MetricKeysDeletedCount, int64(len(removed)))
	s.metrics.Decrement(MetricTotalStoreContentsSize, removedBytes)

	resp := &Response{Status: StatusOK, Message: StatusOK}
	if len(removed) > 0 {
		resp.KeyList = removed
	}
	return resp
}

// executeMetrics reads a snapshot under the store's read hold. key_count
// is derived from the live map; the other counters come from the registry
// and are reported only once touched.
func (s *MemKVServer) executeMetrics(cmd *MetricsCommand) *Response {
	metrics := &MetricsResponse{}

	s.store.rwLock.ReadAcquire()
	defer s.store.rwLock.Release()

	if cmd.KeyCount {
		metrics.KeyCount = int64(len(s.store.keyValues))
		metrics.HasKeyCount = true
	}
	if cmd.TotalStoreContentsSize {
		if value, ok := s.metrics.Get(MetricTotalStoreContentsSize); ok {
			metrics.TotalStoreContentsSize = value
			metrics.HasTotalStoreContentsSize = true
		}
	}
	if cmd.KeysReadCount {
		if value, ok := s.metrics.Get(MetricKeysReadCount); ok {
			metrics.KeysReadCount = value
			metrics.HasKeysReadCount = true
		}
	}
	if cmd.KeysUpdatedCount {
		if value, ok := s.metrics.Get(MetricKeysUpdatedCount); ok {
			metrics.KeysUpdatedCount = value
			metrics.HasKeysUpdatedCount = true
		}
	}
	if cmd.KeysDeletedCount {
		if value, ok := s.metrics.Get(MetricKeysDeletedCount); ok {
			metrics.KeysDeletedCount = value
			metrics.HasKeysDeletedCount = true
		}
	}

	return &Response{Status: StatusOK, Message: StatusOK, Metrics: metrics}
}

// unwrapAndExecute decodes a wrapped payload and runs the matching
// executor. Every failure, decode error and panic alike, becomes an ERROR
// response so the connection stays usable.
func (s *MemKVServer) unwrapAndExecute(mw MessageWrapper) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = &Response{Status: StatusError, Message: fmt.Sprintf("command execution panicked: %v", r)}
		}
	}()

	msg, err := DecodeMessage(mw.Header, mw.Data)
	if err != nil {
		return &Response{Status: StatusError, Message: err.Error()}
	}

	switch cmd := msg.(type) {
	case *GetCommand:
		return s.executeGet(cmd)
	case *SetCommand:
		return s.executeSet(cmd)
	case *DeleteCommand:
		return s.executeDelete(cmd)
	case *MetricsCommand:
		return s.executeMetrics(cmd)
	default:
		return &Response{Status: StatusError, Message: fmt.Sprintf("unexpected message type %T", msg)}
	}
}
