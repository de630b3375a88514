package main

// Store is the shared key to value map. All bulk operations run under a
// single acquisition of the store's writer-priority lock, so each batch
// reads or mutates atomically with respect to other batches.
type Store struct {
	keyValues map[string][]byte
	rwLock    *ReaderWriterLock
}

func NewStore() *Store {
	return &Store{
		keyValues: make(map[string][]byte),
		rwLock:    NewReaderWriterLock(),
	}
}

// GetBulk looks up every requested key under one read hold. Missing keys
// are omitted from the result.
func (s *Store) GetBulk(keys []string) map[string][]byte {
	s.rwLock.ReadAcquire()
	defer s.rwLock.Release()

	found := make(map[string][]byte)
	for _, key := range keys {
		if value, ok := s.keyValues[key]; ok {
			found[key] = value
		}
	}
	return found
}

// SetBulk upserts every pair under one write hold and returns the total
// byte length of the values it replaced.
func (s *Store) SetBulk(kvs []KeyValue) (oldBytes int64) {
	s.rwLock.WriteAcquire()
	defer s.rwLock.Release()

	for _, kv := range kvs {
		if old, ok := s.keyValues[kv.Key]; ok {
			oldBytes += int64(len(old))
		}
		s.keyValues[kv.Key] = kv.Value
	}
	return oldBytes
}

// DeleteBulk removes every present key under one write hold, returning
// the keys actually removed and the byte length removed with them.
func (s *Store) DeleteBulk(keys []string) (removed []string, removedBytes int64) {
	s.rwLock.WriteAcquire()
	defer s.rwLock.Release()

	for _, key := range keys {
		if value, ok := s.keyValues[key]; ok {
			removedBytes += int64(len(value))
			removed = append(removed, key)
			delete(s.keyValues, key)
		}
	}
	return removed, removedBytes
}

// Len returns the current number of keys under a read hold.
func (s *Store) Len() int {
	s.rwLock.ReadAcquire()
	defer s.rwLock.Release()

	return len(s.keyValues)
}
