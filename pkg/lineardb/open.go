package lineardb

import (
	"fmt"
	"io"
	"os"

	"github.com/calvinalkan/lineardb3/pkg/fs"
)

// Open creates or loads a data file, per spec.md §4.6.
//
// A fresh file gets a new header and an empty index sized by
// Options.StartBuckets. An existing file is verified against Options'
// KeySize/ValueSize (mismatch is [ErrHeaderMismatch] and leaves the file
// untouched), its torn tail (if any) is truncated via an atomic
// rewrite-then-rename, and the index is rebuilt by replaying every record.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: Path is required", ErrInvalidOptions)
	}

	if opts.KeySize == 0 {
		return nil, fmt.Errorf("%w: KeySize must be >= 1", ErrInvalidOptions)
	}

	if opts.MaxLoad != 0 && (opts.MaxLoad <= 0 || opts.MaxLoad > 1) {
		return nil, fmt.Errorf("%w: MaxLoad must be in (0, 1]", ErrInvalidOptions)
	}

	startBuckets := opts.StartBuckets
	if startBuckets < 2 {
		startBuckets = 2
	}

	maxLoad := opts.MaxLoad
	if maxLoad == 0 {
		maxLoad = defaultMaxLoad
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	existed, err := fsys.Exists(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("lineardb: stat %q: %w", opts.Path, err)
	}

	handle, err := fsys.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lineardb: open %q: %w", opts.Path, err)
	}

	df := dataFile{file: handle}

	if !existed {
		if err := df.writeHeader(opts.KeySize, opts.ValueSize); err != nil {
			handle.Close()
			return nil, err
		}

		return &Store{file: df, index: newLinearHashIndex(startBuckets, maxLoad)}, nil
	}

	info, err := handle.Stat()
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("lineardb: stat open file %q: %w", opts.Path, err)
	}

	if info.Size() < headerSize {
		if err := df.writeHeader(opts.KeySize, opts.ValueSize); err != nil {
			handle.Close()
			return nil, err
		}

		return &Store{file: df, index: newLinearHashIndex(startBuckets, maxLoad)}, nil
	}

	if err := df.readHeader(opts.KeySize, opts.ValueSize); err != nil {
		handle.Close()
		return nil, err
	}

	dataBytes := info.Size() - headerSize
	numRecordsInFile := dataBytes / df.recordSize
	remainder := dataBytes % df.recordSize

	if remainder != 0 {
		truncatedSize := headerSize + numRecordsInFile*df.recordSize

		if err := recoverTornTail(fsys, handle, opts.Path, truncatedSize); err != nil {
			handle.Close()
			return nil, err
		}

		handle.Close()

		reopened, err := fsys.OpenFile(opts.Path, os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("lineardb: reopen %q after torn-tail recovery: %w", opts.Path, err)
		}

		df = dataFile{file: reopened}

		if err := df.readHeader(opts.KeySize, opts.ValueSize); err != nil {
			reopened.Close()
			return nil, err
		}
	}

	tableSize := PerfectTableSize(maxLoad, uint64(numRecordsInFile))
	idx := newLinearHashIndex(tableSize, maxLoad)

	recordBuf := make([]byte, df.recordSize)

	for i := int64(0); i < numRecordsInFile; i++ {
		fileIndex := uint32(i)

		if err := df.readRecordAt(fileIndex, recordBuf); err != nil {
			df.file.Close()
			return nil, err
		}

		idx.insertReplay(recordBuf[:opts.KeySize], fileIndex)
	}

	return &Store{file: df, index: idx}, nil
}

// recoverTornTail rewrites path to contain exactly truncatedSize bytes
// (the header plus every complete record), atomically, per spec.md §4.6
// step 5. This reuses the same temp-file-then-rename discipline the teacher
// uses for any durable file replacement ([fs.AtomicWriter]), just fed a
// length-limited reader of the file's own current contents instead of new
// content from the caller.
func recoverTornTail(fsys fs.FS, openHandle fs.File, path string, truncatedSize int64) error {
	if _, err := openHandle.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("lineardb: seek for torn-tail recovery: %w", err)
	}

	writer := fs.NewAtomicWriter(fsys)

	err := writer.WriteWithDefaults(path, io.LimitReader(openHandle, truncatedSize))
	if err != nil {
		return fmt.Errorf("lineardb: torn-tail rewrite of %q: %w", path, err)
	}

	return nil
}
