package lineardb

// Iterator performs a sequential scan over a [Store]'s data file (C7).
//
// Order is the file's insertion order, stable for a given file but otherwise
// undefined (spec.md §1 Non-goals: "no ordered iteration"). An Iterator
// borrows its Store non-exclusively and shares the Store's file cursor; each
// Next re-seeks through that cursor as needed, so Get/Put calls between
// calls to Next do not disturb the scan. The yielded key/value slices alias
// the Iterator's own buffer.
type Iterator struct {
	df    *dataFile
	next  uint32
	total uint32
	buf   []byte
}

// Iterator returns a new sequential iterator over s's current records.
//
// The total record count is captured at creation time; records appended
// after the Iterator is created are not visited.
func (s *Store) Iterator() *Iterator {
	return &Iterator{
		df:    &s.file,
		total: s.index.numRecords,
		buf:   make([]byte, s.file.recordSize),
	}
}

// Next advances the iterator and reports whether a record was yielded.
// The returned key/value slices are only valid until the next call to Next.
func (it *Iterator) Next() (key, value []byte, ok bool, err error) {
	if it.next >= it.total {
		return nil, nil, false, nil
	}

	if err := it.df.readRecordAt(it.next, it.buf); err != nil {
		return nil, nil, false, err
	}

	it.next++

	return it.buf[:it.df.keySize], it.buf[it.df.keySize:], true, nil
}
