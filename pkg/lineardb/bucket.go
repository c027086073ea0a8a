package lineardb

// recordsPerBucket is the fixed capacity of a fingerprint bucket.
const recordsPerBucket = 8

// fingerprintBucket is a fixed-capacity record of (fingerprint, file index)
// pairs plus a link to the next bucket in its overflow chain.
//
// Buckets are purely in-memory: the index is rebuilt from the data file on
// every [Open], so there is no on-disk bucket format to encode/decode.
// Occupied slots are always a contiguous prefix starting at index 0 (I5);
// the first zero fingerprint terminates the occupied run.
type fingerprintBucket struct {
	fingerprints [recordsPerBucket]uint32
	fileIndices  [recordsPerBucket]uint32

	// overflowIndex is 0 ("no overflow") or an index into the overflow pool.
	overflowIndex uint32
}

// probeResult classifies what a single-bucket probe found.
type probeResult int

const (
	// probeEmpty means an empty slot was found at slot; the bucket (and
	// hence the chain so far) has no record for this fingerprint.
	probeEmpty probeResult = iota
	// probeCandidate means slot holds a matching fingerprint; the caller
	// must still verify the key on disk (fingerprints can collide).
	probeCandidate
	// probeFull means every slot is occupied and none matched; the caller
	// must continue to the overflow chain (or allocate a new link).
	probeFull
)

// probe scans b's slots for fp, per spec.md §4.3.
//
// Returns the classification and, for probeEmpty/probeCandidate, the slot
// index involved (the first empty slot, or the first matching slot).
func (b *fingerprintBucket) probe(fp uint32) (probeResult, int) {
	for i := 0; i < recordsPerBucket; i++ {
		switch b.fingerprints[i] {
		case 0:
			return probeEmpty, i
		case fp:
			return probeCandidate, i
		}
	}

	return probeFull, -1
}

// insertAt writes fp/fileIndex into slot i in b.
func (b *fingerprintBucket) insertAt(i int, fp uint32, fileIndex uint32) {
	b.fingerprints[i] = fp
	b.fileIndices[i] = fileIndex
}

// occupiedCount returns how many leading slots are occupied.
func (b *fingerprintBucket) occupiedCount() int {
	for i := 0; i < recordsPerBucket; i++ {
		if b.fingerprints[i] == 0 {
			return i
		}
	}

	return recordsPerBucket
}

// reset clears b to the all-empty state (used when a bucket is snapshotted
// and cleared during a split step).
func (b *fingerprintBucket) reset() {
	*b = fingerprintBucket{}
}
