package lineardb

import (
	"bytes"
	"fmt"
)

// linearHashIndex is the in-memory Linear Hashing index (C4): a primary
// table whose bin count grows one bin at a time, plus an overflow pool
// shared by every primary bin's chain.
//
// It never touches the data file itself except through the dataFile passed
// into get/put, which use it to verify candidate keys on disk and to append
// or overwrite records. insertReplay and splitStep work on the in-memory
// buckets only.
type linearHashIndex struct {
	primary  pageManager
	overflow pageManager

	// sizeA is the current base size (a prior sizeB at which a full
	// doubling completed); sizeB is the current logical table size.
	// Invariant: sizeA <= sizeB <= 2*sizeA.
	sizeA uint64
	sizeB uint64

	fingerprintMod uint32
	maxLoad        float64
	numRecords     uint32

	// maxOverflowDepth is the deepest overflow chain ever observed,
	// exposed via Store.MaxOverflowDepth (supplemented feature, §12 of
	// SPEC_FULL.md).
	maxOverflowDepth uint32
}

// newLinearHashIndex initializes both page managers with startBuckets
// primary bins and a 2-bucket overflow pool (index 0 reserved, index 1 the
// first real overflow bucket), per spec.md §4.6 step 3.
func newLinearHashIndex(startBuckets uint64, maxLoad float64) *linearHashIndex {
	if startBuckets < 2 {
		startBuckets = 2
	}

	idx := &linearHashIndex{
		sizeA:   startBuckets,
		sizeB:   startBuckets,
		maxLoad: maxLoad,
	}

	for i := uint64(0); i < startBuckets; i++ {
		idx.primary.addBucket()
	}

	idx.overflow.addBucket() // index 0, reserved sentinel
	idx.overflow.addBucket() // index 1, first real overflow bucket

	idx.recomputeFingerprintMod()

	return idx
}

// recomputeFingerprintMod sets fingerprintMod to the largest power-of-two
// multiple of sizeA that fits in 32 bits (spec.md §3 "Fingerprint modulus").
func (idx *linearHashIndex) recomputeFingerprintMod() {
	mod := idx.sizeA
	for mod*2 <= 0xFFFFFFFF {
		mod *= 2
	}

	idx.fingerprintMod = uint32(mod)
}

// splitPoint is the next primary bin index scheduled to split.
func (idx *linearHashIndex) splitPoint() uint64 {
	return idx.sizeB - idx.sizeA
}

// binNumber computes the primary bin for a 64-bit value (a key's hash or its
// fingerprint — both are valid inputs to this formula, per spec.md §4.4).
func (idx *linearHashIndex) binNumber(h uint64) uint64 {
	bin := h % idx.sizeA
	if bin < idx.splitPoint() {
		bin = h % (2 * idx.sizeA)
	}

	return bin
}

// fingerprint derives this index's fingerprint for key's hash.
func (idx *linearHashIndex) fingerprint(h uint64) uint32 {
	return fingerprintFromHash(h, idx.fingerprintMod)
}

// chainEntry is one (fingerprint, file index) pair lifted out of a bucket
// chain, used when snapshotting a bucket during a split.
type chainEntry struct {
	fingerprint uint32
	fileIndex   uint32
}

// get performs C4's Get algorithm: probe the primary bucket for bin, walking
// the overflow chain on a full bucket, verifying any fingerprint candidate
// against the key stored on disk via df.
func (idx *linearHashIndex) get(key []byte, df *dataFile) (value []byte, found bool, err error) {
	h := hashKey(key)
	fp := idx.fingerprint(h)
	bin := idx.binNumber(h)
	bucket := idx.primary.getBucket(uint32(bin))

	recordBuf := make([]byte, df.recordSize)

	cur := bucket
	for {
		occ := cur.occupiedCount()

		for i := 0; i < occ; i++ {
			if cur.fingerprints[i] != fp {
				continue
			}

			fileIndex := cur.fileIndices[i]

			if err := df.readRecordAt(fileIndex, recordBuf); err != nil {
				return nil, false, err
			}

			if bytes.Equal(recordBuf[:df.keySize], key) {
				value := make([]byte, df.valueSize)
				copy(value, recordBuf[df.keySize:])
				return value, true, nil
			}
			// fingerprint collision on a different key; keep scanning.
		}

		if occ < recordsPerBucket || cur.overflowIndex == 0 {
			return nil, false, nil
		}

		cur = idx.overflow.getBucket(cur.overflowIndex)
	}
}

// put performs C4's Put algorithm against a live store: probe for a
// fingerprint+key match to overwrite in place, otherwise append a new
// record at the first empty slot found along the chain (allocating a new
// overflow bucket if the chain is full). Triggers incremental splits after
// insertion if the load threshold is exceeded.
func (idx *linearHashIndex) put(key, value []byte, df *dataFile) error {
	h := hashKey(key)
	fp := idx.fingerprint(h)
	bin := idx.binNumber(h)
	bucket := idx.primary.getBucket(uint32(bin))

	recordBuf := make([]byte, df.recordSize)
	copy(recordBuf, key)
	copy(recordBuf[df.keySize:], value)

	cur := bucket
	depth := uint32(0)

	for {
		occ := cur.occupiedCount()

		for i := 0; i < occ; i++ {
			if cur.fingerprints[i] != fp {
				continue
			}

			fileIndex := cur.fileIndices[i]

			existing := make([]byte, df.recordSize)
			if err := df.readRecordAt(fileIndex, existing); err != nil {
				return err
			}

			if bytes.Equal(existing[:df.keySize], key) {
				if err := df.writeRecordAt(fileIndex, recordBuf); err != nil {
					return err
				}

				return nil
			}
			// collision on a different key; keep scanning this bucket.
		}

		if occ < recordsPerBucket {
			fileIndex := idx.numRecords

			if err := df.appendRecord(fileIndex, recordBuf); err != nil {
				return err
			}

			cur.insertAt(occ, fp, fileIndex)
			idx.numRecords++

			if depth > idx.maxOverflowDepth {
				idx.maxOverflowDepth = depth
			}

			return idx.maybeSplit()
		}

		if cur.overflowIndex == 0 {
			newIdx := idx.overflow.firstEmptyBucketIndex()
			newBucket := idx.overflow.getBucket(newIdx)
			newBucket.reset()
			cur.overflowIndex = newIdx
			cur = newBucket
			depth++
			continue
		}

		cur = idx.overflow.getBucket(cur.overflowIndex)
		depth++
	}
}

// maybeSplit runs incremental split steps until the load factor is at or
// below maxLoad, per spec.md §4.4 "After any Put...".
func (idx *linearHashIndex) maybeSplit() error {
	for {
		threshold := float64(idx.sizeB) * float64(recordsPerBucket) * idx.maxLoad
		if float64(idx.numRecords) <= threshold {
			return nil
		}

		idx.splitStep()
	}
}

// appendToChain inserts (fp, fileIndex) into the first available slot
// reachable from tail (which is already tailDepth overflow-pool hops away
// from the primary bucket; the primary bucket itself is depth 0), allocating
// and linking a fresh overflow bucket from pool when the current tail is
// full. Returns the (possibly new) tail and its depth.
func appendToChain(pool *pageManager, tail *fingerprintBucket, tailDepth uint32, fp, fileIndex uint32) (*fingerprintBucket, uint32) {
	depth := tailDepth

	for {
		occ := tail.occupiedCount()
		if occ < recordsPerBucket {
			tail.insertAt(occ, fp, fileIndex)
			return tail, depth
		}

		if tail.overflowIndex == 0 {
			newIdx := pool.firstEmptyBucketIndex()
			newBucket := pool.getBucket(newIdx)
			newBucket.reset()
			tail.overflowIndex = newIdx
			tail = newBucket
			depth++
			continue
		}

		tail = pool.getBucket(tail.overflowIndex)
		depth++
	}
}

// splitStep performs one incremental split, per spec.md §4.4 "Split step".
func (idx *linearHashIndex) splitStep() {
	s := idx.splitPoint()
	oldBucket := idx.primary.getBucket(uint32(s))

	var snapshot []chainEntry

	var overflowVisited []uint32

	cur := oldBucket

	for {
		occ := cur.occupiedCount()
		for i := 0; i < occ; i++ {
			snapshot = append(snapshot, chainEntry{cur.fingerprints[i], cur.fileIndices[i]})
		}

		next := cur.overflowIndex
		if next == 0 {
			break
		}

		overflowVisited = append(overflowVisited, next)
		cur = idx.overflow.getBucket(next)
	}

	oldBucket.reset()

	for _, ovIdx := range overflowVisited {
		idx.overflow.getBucket(ovIdx).reset()
		idx.overflow.markBucketEmpty(ovIdx)
	}

	newBucketIdx := idx.primary.addBucket()

	if newBucketIdx != idx.sizeB {
		panic(fmt.Sprintf("lineardb: split created bucket %d, expected %d", newBucketIdx, idx.sizeB))
	}

	idx.sizeB++

	newBucket := idx.primary.getBucket(newBucketIdx)

	oldTail := oldBucket
	newTail := newBucket
	oldDepth := uint32(0)
	newDepth := uint32(0)

	for _, e := range snapshot {
		newBin := idx.binNumber(uint64(e.fingerprint))

		var depth uint32

		switch newBin {
		case s:
			oldTail, oldDepth = appendToChain(&idx.overflow, oldTail, oldDepth, e.fingerprint, e.fileIndex)
			depth = oldDepth
		case newBucketIdx:
			newTail, newDepth = appendToChain(&idx.overflow, newTail, newDepth, e.fingerprint, e.fileIndex)
			depth = newDepth
		default:
			panic(fmt.Sprintf("lineardb: split rehash produced bin %d, want %d or %d", newBin, s, newBucketIdx))
		}

		if depth > idx.maxOverflowDepth {
			idx.maxOverflowDepth = depth
		}
	}

	if idx.sizeB == 2*idx.sizeA {
		idx.sizeA = idx.sizeB
	}

	idx.recomputeFingerprintMod()
}

// insertReplay inserts a bootstrap-replayed record into the index without
// ever consulting the data file: every fingerprint match on an already
// occupied slot is treated as a collision (spec.md §4.6 step 7, §9 second
// bullet; resolved against original_source/lineardb3.cpp's
// getOrPut(ignoreDataFile=true)). fileIndex is supplied directly as the
// replay ordinal.
func (idx *linearHashIndex) insertReplay(key []byte, fileIndex uint32) {
	h := hashKey(key)
	fp := idx.fingerprint(h)
	bin := idx.binNumber(h)
	bucket := idx.primary.getBucket(uint32(bin))

	_, depth := appendToChain(&idx.overflow, bucket, 0, fp, fileIndex)
	if depth > idx.maxOverflowDepth {
		idx.maxOverflowDepth = depth
	}

	idx.numRecords++
}
