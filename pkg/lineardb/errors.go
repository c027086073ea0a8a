package lineardb

import "errors"

// Sentinel errors returned by store operations.
//
// Callers should classify with [errors.Is]; wrapped I/O failures still
// satisfy errors.Is against the underlying *os.PathError / os.ErrNotExist
// etc. because they are wrapped with %w, not replaced.
var (
	// ErrNotFound is returned by [Store.Get] on a miss. Not a failure.
	ErrNotFound = errors.New("lineardb: not found")

	// ErrHeaderMismatch indicates the file's stored key_size/value_size/magic
	// disagrees with the caller-supplied parameters. Open fails; the file is
	// left untouched.
	ErrHeaderMismatch = errors.New("lineardb: header mismatch")

	// ErrClosed indicates an operation was attempted on a closed [Store].
	ErrClosed = errors.New("lineardb: closed")

	// ErrInvalidOptions indicates a caller-supplied [Options] or key/value
	// buffer is out of range (e.g. missing Path, KeySize == 0, MaxLoad
	// outside (0, 1], or a Get/Put buffer whose length disagrees with the
	// store's KeySize/ValueSize).
	ErrInvalidOptions = errors.New("lineardb: invalid options")
)
