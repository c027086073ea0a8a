package lineardb

// bucketsPerPage is the fixed allocation unit: a page holds this many
// fingerprint buckets.
const bucketsPerPage = 4096

type bucketPage [bucketsPerPage]fingerprintBucket

// pageManager is the paged bucket allocator (C2). It owns a growable array
// of page handles and hands out buckets by 32-bit index, never by pointer,
// so that growing the page-pointer array never invalidates a reference held
// elsewhere (spec.md §9, "Pointer-graph overflow chains → index-based
// chains").
//
// Index 0 is reserved by callers that use a pageManager as an overflow pool
// (the "no overflow" sentinel); this type itself has no opinion about index
// 0 beyond skipping it in firstEmptyBucketIndex, since the primary table's
// pageManager has no such reservation.
type pageManager struct {
	pages []*bucketPage

	// numBuckets is the live watermark: buckets [0, numBuckets) are valid to
	// address via getBucket.
	numBuckets uint32

	// firstEmptyBucket is an advisory lower bound for the next empty-bucket
	// scan. It is never authoritative; firstEmptyBucketIndex always
	// re-verifies before returning.
	firstEmptyBucket uint32
}

// addBucket grows the live watermark by one bucket, allocating a new page if
// the watermark crosses a page boundary, and doubling the page-pointer slice
// if it runs out of room. Returns the new bucket's index.
func (pm *pageManager) addBucket() uint32 {
	idx := pm.numBuckets
	pageIdx := int(idx / bucketsPerPage)

	if pageIdx >= len(pm.pages) {
		newCap := len(pm.pages) * 2
		if newCap == 0 {
			newCap = 1
		}

		grown := make([]*bucketPage, newCap)
		copy(grown, pm.pages)
		pm.pages = grown
	}

	if pm.pages[pageIdx] == nil {
		pm.pages[pageIdx] = &bucketPage{}
	}

	pm.numBuckets++

	return idx
}

// getBucket resolves index to its bucket. The caller must guarantee
// index < numBuckets; there is no bounds check, matching spec.md §4.2.
func (pm *pageManager) getBucket(index uint32) *fingerprintBucket {
	page := pm.pages[index/bucketsPerPage]
	return &page[index%bucketsPerPage]
}

// firstEmptyBucketIndex returns the index of a bucket whose first slot is
// empty, allocating a fresh bucket if none exists among live buckets.
// Index 0 is always skipped, since overflow pools reserve it as a sentinel
// and the primary table never addresses bucket 0 through this path either.
func (pm *pageManager) firstEmptyBucketIndex() uint32 {
	for pm.numBuckets < 1 {
		pm.addBucket()
	}

	start := pm.firstEmptyBucket
	if start < 1 {
		start = 1
	}

	for i := start; i < pm.numBuckets; i++ {
		if pm.getBucket(i).fingerprints[0] == 0 {
			pm.firstEmptyBucket = i
			return i
		}
	}

	idx := pm.addBucket()
	pm.firstEmptyBucket = idx

	return idx
}

// markBucketEmpty advises the allocator that index may be reusable. This is
// advisory only; firstEmptyBucketIndex always re-verifies the slot before
// handing it out.
func (pm *pageManager) markBucketEmpty(index uint32) {
	if index > 0 && index < pm.firstEmptyBucket {
		pm.firstEmptyBucket = index
	}
}
