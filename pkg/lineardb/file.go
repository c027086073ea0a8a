package lineardb

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/lineardb3/pkg/fs"
)

// headerSize is the fixed on-disk header width (C5).
const headerSize = 11

// magic identifies a lineardb data file.
var magic = [3]byte{'L', 'd', '2'}

// lastFileOp tracks which side of the read/write barrier the file cursor is
// currently on, per spec.md §4.5/§9 ("read/write barrier cache").
type lastFileOp int

const (
	opNone lastFileOp = iota
	opRead
	opWrite
)

// dataFile is the fixed-width header + appended fixed-width records I/O
// layer (C5). Record reads and in-place writes go through seekIfNeeded, and
// appends through appendRecord's seek-to-end check, so record I/O never
// bypasses the (lastOp, cachedOffset) state. writeHeader and readHeader seek
// to offset 0 directly and then set that state themselves.
type dataFile struct {
	file fs.File

	keySize    uint32
	valueSize  uint32
	recordSize int64

	lastOp       lastFileOp
	cachedOffset int64
}

// writeHeader writes the fixed 11-byte header at offset 0 and leaves the
// cursor positioned just past it, ready for a sequential append.
func (df *dataFile) writeHeader(keySize, valueSize uint32) error {
	var buf [headerSize]byte
	copy(buf[0:3], magic[:])
	binary.LittleEndian.PutUint32(buf[3:7], keySize)
	binary.LittleEndian.PutUint32(buf[7:11], valueSize)

	off, err := df.file.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("lineardb: seek to header: %w", err)
	}

	n, err := df.file.Write(buf[:])
	if err != nil {
		return fmt.Errorf("lineardb: write header: %w", err)
	}

	df.keySize = keySize
	df.valueSize = valueSize
	df.recordSize = int64(keySize) + int64(valueSize)
	df.cachedOffset = off + int64(n)
	df.lastOp = opWrite

	return nil
}

// readHeader reads and validates the fixed 11-byte header, returning
// [ErrHeaderMismatch] wrapped with details on any magic/size disagreement.
func (df *dataFile) readHeader(wantKeySize, wantValueSize uint32) error {
	var buf [headerSize]byte

	off, err := df.file.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("lineardb: seek to header: %w", err)
	}

	n, err := io.ReadFull(df.file, buf[:])
	if err != nil {
		return fmt.Errorf("lineardb: read header: %w", err)
	}

	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] {
		return fmt.Errorf("%w: bad magic %q", ErrHeaderMismatch, buf[0:3])
	}

	keySize := binary.LittleEndian.Uint32(buf[3:7])
	valueSize := binary.LittleEndian.Uint32(buf[7:11])

	if keySize != wantKeySize || valueSize != wantValueSize {
		return fmt.Errorf(
			"%w: file has key_size=%d value_size=%d, caller wants key_size=%d value_size=%d",
			ErrHeaderMismatch, keySize, valueSize, wantKeySize, wantValueSize,
		)
	}

	df.keySize = keySize
	df.valueSize = valueSize
	df.recordSize = int64(keySize) + int64(valueSize)
	df.cachedOffset = off + int64(n)
	df.lastOp = opRead

	return nil
}

// recordOffset returns the byte offset of the fileIndex-th record.
func (df *dataFile) recordOffset(fileIndex uint32) int64 {
	return headerSize + int64(fileIndex)*df.recordSize
}

// seekIfNeeded is the single primitive through which every positioned
// record read or in-place record write passes. It elides the seek syscall only when the
// cursor is already at target and the previous op was on the same side of
// the read/write barrier (spec.md §4.5).
func (df *dataFile) seekIfNeeded(target int64, next lastFileOp) error {
	crossesBarrier := (next == opRead && df.lastOp == opWrite) ||
		(next == opWrite && df.lastOp == opRead)

	if crossesBarrier || df.cachedOffset != target {
		off, err := df.file.Seek(target, io.SeekStart)
		if err != nil {
			return fmt.Errorf("lineardb: seek to %d: %w", target, err)
		}

		df.cachedOffset = off
	}

	df.lastOp = next

	return nil
}

// readRecordAt reads the fileIndex-th record into buf (len must be
// recordSize).
func (df *dataFile) readRecordAt(fileIndex uint32, buf []byte) error {
	target := df.recordOffset(fileIndex)

	if err := df.seekIfNeeded(target, opRead); err != nil {
		return err
	}

	n, err := io.ReadFull(df.file, buf)
	if err != nil {
		return fmt.Errorf("lineardb: read record %d: %w", fileIndex, err)
	}

	df.cachedOffset = target + int64(n)

	return nil
}

// writeRecordAt overwrites the fileIndex-th record in place (buf's len must
// be recordSize). Used for Put's overwrite-on-key-match path.
func (df *dataFile) writeRecordAt(fileIndex uint32, buf []byte) error {
	target := df.recordOffset(fileIndex)

	if err := df.seekIfNeeded(target, opWrite); err != nil {
		return err
	}

	n, err := df.file.Write(buf)
	if err != nil {
		return fmt.Errorf("lineardb: write record %d: %w", fileIndex, err)
	}

	df.cachedOffset = target + int64(n)

	return nil
}

// appendRecord appends buf as a new record at the current end of file,
// assigning it fileIndex == numRecordsBefore. Per spec.md §4.5, an append
// always seeks to the platform's notion of "end" when crossing the barrier
// or when the cursor isn't already there, then verifies the resulting
// offset matches the expected target — a mismatch means the file and the
// in-memory record count have diverged, which is an I/O-class error.
func (df *dataFile) appendRecord(numRecordsBefore uint32, buf []byte) error {
	target := df.recordOffset(numRecordsBefore)

	if df.lastOp == opRead || df.cachedOffset != target {
		off, err := df.file.Seek(0, io.SeekEnd)
		if err != nil {
			return fmt.Errorf("lineardb: seek to end for append: %w", err)
		}

		if off != target {
			return fmt.Errorf(
				"lineardb: append target mismatch: file end is at %d, expected %d",
				off, target,
			)
		}

		df.cachedOffset = off
	}

	df.lastOp = opWrite

	n, err := df.file.Write(buf)
	if err != nil {
		return fmt.Errorf("lineardb: append record: %w", err)
	}

	df.cachedOffset = target + int64(n)

	return nil
}

// sync flushes the file to stable storage via a direct fsync syscall
// (golang.org/x/sys/unix.Fsync), the same dependency the teacher's
// mmap-backed stores use for low-level file control, rather than the
// generic fs.File.Sync wrapper.
func (df *dataFile) sync() error {
	if err := unix.Fsync(int(df.file.Fd())); err != nil {
		return fmt.Errorf("lineardb: sync data file: %w", err)
	}

	return nil
}
