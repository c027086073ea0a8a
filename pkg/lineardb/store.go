// Package lineardb implements a persistent, single-file, fixed-size
// key/value store over an in-memory Linear Hashing index with
// fingerprint-based probing and overflow buckets.
//
// # Basic usage
//
//	store, err := lineardb.Open(lineardb.Options{
//	    Path:      "/tmp/my.db",
//	    KeySize:   16,
//	    ValueSize: 8,
//	})
//	if err != nil {
//	    // header mismatch, or an I/O error
//	}
//	defer store.Close()
//
//	err = store.Put(key, value)
//	value, err := store.Get(key)
//
// # Concurrency
//
// A [Store] is single-threaded: it defines no locking or transactional
// semantics, and must not be used from more than one goroutine at a time
// (spec.md §5). Callers needing concurrent access must serialize it
// themselves.
//
// # Durability
//
// There is no journaling, fsync policy, or atomic batch; a crash mid-append
// leaves at most one torn trailing record, which the next [Open] truncates
// away (see scenario 5 / invariant I9 in spec.md §8).
package lineardb

import (
	"fmt"

	"github.com/calvinalkan/lineardb3/pkg/fs"
)

// DefaultMaxLoad is the initial value of the process-wide default load
// factor that [Open] uses when Options.MaxLoad is zero. [SetDefaultMaxLoad]
// replaces that default (this constant does not change); the new value only
// affects stores opened afterward (spec.md §9 "Global mutable default").
const DefaultMaxLoad = 0.5

var defaultMaxLoad = DefaultMaxLoad

// SetDefaultMaxLoad sets the process-wide default load factor used by
// subsequent calls to [Open] that leave Options.MaxLoad at zero. l must be
// in (0, 1].
func SetDefaultMaxLoad(l float64) {
	if l <= 0 || l > 1 {
		panic("lineardb: SetDefaultMaxLoad: l must be in (0, 1]")
	}

	defaultMaxLoad = l
}

// Options configures [Open].
type Options struct {
	// Path is the filesystem path to the data file. Required.
	Path string

	// KeySize is the fixed size in bytes for all keys. Required, must be >= 1.
	KeySize uint32

	// ValueSize is the fixed size in bytes for all values. May be 0.
	ValueSize uint32

	// StartBuckets is the initial primary table size for a newly created
	// file, or for an existing file shorter than the header. Values below 2
	// are raised to 2. Ignored when opening an existing file that has a
	// header (the table is sized from the file's record count).
	StartBuckets uint64

	// MaxLoad is the load factor that triggers an incremental split.
	// Zero means "use the package default at open time"
	// (see [DefaultMaxLoad] / [SetDefaultMaxLoad]). Must be in (0, 1] if set.
	MaxLoad float64

	// FS is the filesystem implementation to use. Nil means [fs.NewReal].
	FS fs.FS
}

// Store is an open handle to a lineardb data file.
//
// Not safe for concurrent use; see the package doc's Concurrency section.
type Store struct {
	file   dataFile
	index  *linearHashIndex
	closed bool
}

// Close flushes the data file to stable storage and releases the underlying
// file handle. Idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	syncErr := s.file.sync()
	closeErr := s.file.file.Close()

	if syncErr != nil {
		return syncErr
	}

	if closeErr != nil {
		return fmt.Errorf("lineardb: close: %w", closeErr)
	}

	return nil
}

// Get looks up key and returns its value.
//
// Returns [ErrNotFound] on a miss. len(key) must equal the store's KeySize.
func (s *Store) Get(key []byte) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	if uint32(len(key)) != s.file.keySize {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", ErrInvalidOptions, len(key), s.file.keySize)
	}

	value, found, err := s.index.get(key, &s.file)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, ErrNotFound
	}

	return value, nil
}

// Put inserts or overwrites key's value.
//
// len(key) must equal KeySize and len(value) must equal ValueSize. On
// success the record is either newly appended or its value overwritten in
// place (spec.md §4.4 "Put").
func (s *Store) Put(key, value []byte) error {
	if s.closed {
		return ErrClosed
	}

	if uint32(len(key)) != s.file.keySize {
		return fmt.Errorf("%w: key is %d bytes, want %d", ErrInvalidOptions, len(key), s.file.keySize)
	}

	if uint32(len(value)) != s.file.valueSize {
		return fmt.Errorf("%w: value is %d bytes, want %d", ErrInvalidOptions, len(value), s.file.valueSize)
	}

	return s.index.put(key, value, &s.file)
}

// CurrentSize returns the current primary table size (size_B).
func (s *Store) CurrentSize() uint64 {
	return s.index.sizeB
}

// NumRecords returns the number of records ever put (overwrites don't
// increment it).
func (s *Store) NumRecords() uint32 {
	return s.index.numRecords
}

// MaxOverflowDepth returns the deepest overflow chain ever observed by this
// store instance (supplemented feature; see SPEC_FULL.md §12).
func (s *Store) MaxOverflowDepth() uint32 {
	return s.index.maxOverflowDepth
}

// KeySize returns the fixed key size this store was opened with.
func (s *Store) KeySize() uint32 { return s.file.keySize }

// ValueSize returns the fixed value size this store was opened with.
func (s *Store) ValueSize() uint32 { return s.file.valueSize }
