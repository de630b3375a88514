package main

import (
	"encoding/binary"
	"fmt"
)

// Payload schema. Every variable-length field is length-prefixed with a
// big-endian uint32:
//
//	key list:        [count:4][len1:4][key1][len2:4][key2]...
//	key/value list:  [count:4][klen1:4][key1][vlen1:4][val1]...
//	metrics command: [selectors:1] (bit 0 = key_count .. bit 4 = keys_deleted_count)
//	response:        [slen:4][status][mlen:4][message][payload_tag:1][body]
//
// The response payload tag selects at most one body: 0 = none,
// 1 = key/value list, 2 = key list, 3 = metrics. The metrics body is a
// presence bitmask followed by one int64 per present field, in bit order.

// Metrics selector / presence bits, shared by MetricsCommand and
// MetricsResponse encodings.
const (
	metricBitKeyCount = 1 << iota
	metricBitTotalStoreContentsSize
	metricBitKeysReadCount
	metricBitKeysUpdatedCount
	metricBitKeysDeletedCount
)

// Response payload tags
const (
	payloadNone    = 0
	payloadKVList  = 1
	payloadKeyList = 2
	payloadMetrics = 3
)

func encodeKeyList(keys []string) []byte {
	totalLen := 4
	for _, key := range keys {
		totalLen += 4 + len(key)
	}

	result := make([]byte, totalLen)
	binary.BigEndian.PutUint32(result[0:4], uint32(len(keys)))

	offset := 4
	for _, key := range keys {
		binary.BigEndian.PutUint32(result[offset:offset+4], uint32(len(key)))
		offset += 4
		copy(result[offset:], key)
		offset += len(key)
	}

	return result
}

func decodeKeyList(data []byte) ([]string, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: key list shorter than count field", ErrMalformedPayload)
	}

	count := binary.BigEndian.Uint32(data[0:4])
	keys := make([]string, 0, count)
	offset := 4

	for i := uint32(0); i < count; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated key length", ErrMalformedPayload)
		}
		keyLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4

		if offset+keyLen > len(data) {
			return nil, fmt.Errorf("%w: truncated key", ErrMalformedPayload)
		}
		keys = append(keys, string(data[offset:offset+keyLen]))
		offset += keyLen
	}

	return keys, nil
}

func encodeKeyValueList(kvs []KeyValue) []byte {
	totalLen := 4
	for _, kv := range kvs {
		totalLen += 4 + len(kv.Key) + 4 + len(kv.Value)
	}

	result := make([]byte, totalLen)
	binary.BigEndian.PutUint32(result[0:4], uint32(len(kvs)))

	offset := 4
	for _, kv := range kvs {
		binary.BigEndian.PutUint32(result[offset:offset+4], uint32(len(kv.Key)))
		offset += 4
		copy(result[offset:], kv.Key)
		offset += len(kv.Key)

		binary.BigEndian.PutUint32(result[offset:offset+4], uint32(len(kv.Value)))
		offset += 4
		copy(result[offset:], kv.Value)
		offset += len(kv.Value)
	}

	return result
}

func decodeKeyValueList(data []byte) ([]KeyValue, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: key/value list shorter than count field", ErrMalformedPayload)
	}

	count := binary.BigEndian.Uint32(data[0:4])
	kvs := make([]KeyValue, 0, count)
	offset := 4

	for i := uint32(0); i < count; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated key length", ErrMalformedPayload)
		}
		keyLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4

		if offset+keyLen > len(data) {
			return nil, fmt.Errorf("%w: truncated key", ErrMalformedPayload)
		}
		key := string(data[offset : offset+keyLen])
		offset += keyLen

		if offset+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated value length", ErrMalformedPayload)
		}
		valueLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4

		if offset+valueLen > len(data) {
			return nil, fmt.Errorf("%w: truncated value", ErrMalformedPayload)
		}
		// Copy the value out: the payload buffer does not outlive the request.
		value := make([]byte, valueLen)
		copy(value, data[offset:offset+valueLen])
		offset += valueLen

		kvs = append(kvs, KeyValue{Key: key, Value: value})
	}

	return kvs, nil
}

func encodeMetricsCommand(cmd *MetricsCommand) []byte {
	var selectors byte
	if cmd.KeyCount {
		selectors |= metricBitKeyCount
	}
	if cmd.TotalStoreContentsSize {
		selectors |= metricBitTotalStoreContentsSize
	}
	if cmd.KeysReadCount {
		selectors |= metricBitKeysReadCount
	}
	if cmd.KeysUpdatedCount {
		selectors |= metricBitKeysUpdatedCount
	}
	if cmd.KeysDeletedCount {
		selectors |= metricBitKeysDeletedCount
	}
	return []byte{selectors}
}

func decodeMetricsCommand(data []byte) (*MetricsCommand, error) {
	if len(data) != 1 {
		return nil, fmt.Errorf("%w: metrics command is %d bytes, want 1", ErrMalformedPayload, len(data))
	}

	selectors := data[0]
	return &MetricsCommand{
		KeyCount:               selectors&metricBitKeyCount != 0,
		TotalStoreContentsSize: selectors&metricBitTotalStoreContentsSize != 0,
		KeysReadCount:          selectors&metricBitKeysReadCount != 0,
		KeysUpdatedCount:       selectors&metricBitKeysUpdatedCount != 0,
		KeysDeletedCount:       selectors&metricBitKeysDeletedCount != 0,
	}, nil
}

func encodeMetricsResponse(m *MetricsResponse) []byte {
	var present byte
	values := make([]int64, 0, 5)

	if m.HasKeyCount {
		present |= metricBitKeyCount
		values = append(values, m.KeyCount)
	}
	if m.HasTotalStoreContentsSize {
		present |= metricBitTotalStoreContentsSize
		values = append(values, m.TotalStoreContentsSize)
	}
	if m.HasKeysReadCount {
		present |= metricBitKeysReadCount
		values = append(values, m.KeysReadCount)
	}
	if m.HasKeysUpdatedCount {
		present |= metricBitKeysUpdatedCount
		values = append(values, m.KeysUpdatedCount)
	}
	if m.HasKeysDeletedCount {
		present |= metricBitKeysDeletedCount
		values = append(values, m.KeysDeletedCount)
	}

	result := make([]byte, 1+8*len(values))
	result[0] = present
	for i, v := range values {
		binary.BigEndian.PutUint64(result[1+8*i:], uint64(v))
	}
	return result
}

func decodeMetricsResponse(data []byte) (*MetricsResponse, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: metrics response missing presence bits", ErrMalformedPayload)
	}

	present := data[0]
	values := data[1:]

	next := func() (int64, error) {
		if len(values) < 8 {
			return 0, fmt.Errorf("%w: truncated metrics value", ErrMalformedPayload)
		}
		v := int64(binary.BigEndian.Uint64(values[:8]))
		values = values[8:]
		return v, nil
	}

	m := &MetricsResponse{}
	var err error
	if present&metricBitKeyCount != 0 {
		m.HasKeyCount = true
		if m.KeyCount, err = next(); err != nil {
			return nil, err
		}
	}
	if present&metricBitTotalStoreContentsSize != 0 {
		m.HasTotalStoreContentsSize = true
		if m.TotalStoreContentsSize, err = next(); err != nil {
			return nil, err
		}
	}
	if present&metricBitKeysReadCount != 0 {
		m.HasKeysReadCount = true
		if m.KeysReadCount, err = next(); err != nil {
			return nil, err
		}
	}
	if present&metricBitKeysUpdatedCount != 0 {
		m.HasKeysUpdatedCount = true
		if m.KeysUpdatedCount, err = next(); err != nil {
			return nil, err
		}
	}
	if present&metricBitKeysDeletedCount != 0 {
		m.HasKeysDeletedCount = true
		if m.KeysDeletedCount, err = next(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func encodeResponse(r *Response) ([]byte, error) {
	variants := 0
	if r.KVList != nil {
		variants++
	}
	if r.KeyList != nil {
		variants++
	}
	if r.Metrics != nil {
		variants++
	}
	if variants > 1 {
		return nil, fmt.Errorf("%w: response carries %d payload variants", ErrInvalidMessageType, variants)
	}

	var tag byte = payloadNone
	var body []byte
	switch {
	case r.KVList != nil:
		tag = payloadKVList
		body = encodeKeyValueList(r.KVList)
	case r.KeyList != nil:
		tag = payloadKeyList
		body = encodeKeyList(r.KeyList)
	case r.Metrics != nil:
		tag = payloadMetrics
		body = encodeMetricsResponse(r.Metrics)
	}

	totalLen := 4 + len(r.Status) + 4 + len(r.Message) + 1 + len(body)
	result := make([]byte, totalLen)

	offset := 0
	binary.BigEndian.PutUint32(result[offset:], uint32(len(r.Status)))
	offset += 4
	copy(result[offset:], r.Status)
	offset += len(r.Status)

	binary.BigEndian.PutUint32(result[offset:], uint32(len(r.Message)))
	offset += 4
	copy(result[offset:], r.Message)
	offset += len(r.Message)

	result[offset] = tag
	offset++
	copy(result[offset:], body)

	return result, nil
}

func decodeResponse(data []byte) (*Response, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: response shorter than status length", ErrMalformedPayload)
	}

	offset := 0
	statusLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+statusLen > len(data) {
		return nil, fmt.Errorf("%w: truncated status", ErrMalformedPayload)
	}
	status := string(data[offset : offset+statusLen])
	offset += statusLen

	if offset+4 > len(data) {
		return nil, fmt.Errorf("%w: truncated message length", ErrMalformedPayload)
	}
	messageLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if offset+messageLen > len(data) {
		return nil, fmt.Errorf("%w: truncated message", ErrMalformedPayload)
	}
	message := string(data[offset : offset+messageLen])
	offset += messageLen

	if offset+1 > len(data) {
		return nil, fmt.Errorf("%w: response missing payload tag", ErrMalformedPayload)
	}
	tag := data[offset]
	offset++
	body := data[offset:]

	resp := &Response{Status: status, Message: message}
	var err error
	switch tag {
	case payloadNone:
		if len(body) != 0 {
			return nil, fmt.Errorf("%w: trailing bytes after empty payload", ErrMalformedPayload)
		}
	case payloadKVList:
		resp.KVList, err = decodeKeyValueList(body)
	case payloadKeyList:
		resp.KeyList, err = decodeKeyList(body)
	case payloadMetrics:
		resp.Metrics, err = decodeMetricsResponse(body)
	default:
		return nil, fmt.Errorf("%w: unknown response payload tag %d", ErrMalformedPayload, tag)
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}
