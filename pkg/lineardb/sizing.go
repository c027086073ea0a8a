package lineardb

import "math"

// PerfectTableSize is C8's sizing helper:
// perfect_size(L, N) = max(2, ceil(ceil(N/L) / RECORDS_PER_BUCKET)).
//
// Used both to size the index at bootstrap (spec.md §4.6 step 6) and as the
// standalone helper named in spec.md §4.8/§6.
func PerfectTableSize(maxLoad float64, numRecords uint64) uint64 {
	if numRecords == 0 {
		return 2
	}

	neededSlots := math.Ceil(float64(numRecords) / maxLoad)
	buckets := math.Ceil(neededSlots / float64(recordsPerBucket))

	size := uint64(buckets)
	if size < 2 {
		size = 2
	}

	return size
}

// ShrinkSize reports the table size perfect_size would choose for newNumRecords
// records at this store's current max load factor (spec.md §4.8).
func (s *Store) ShrinkSize(newNumRecords uint64) uint64 {
	return PerfectTableSize(s.index.maxLoad, newNumRecords)
}
