package archive

import "errors"

var (
	// ErrNotFound indicates no receipt is archived under the given digest.
	ErrNotFound = errors.New("archive: receipt not found")

	// ErrInvalidDigest indicates the digest is not a 32-byte hash.
	ErrInvalidDigest = errors.New("archive: digest must be 32 bytes")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("archive: I/O failure")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("archive: invalid base directory")

	// ErrCorrupt indicates an archived file does not decode to the receipt
	// its name promises.
	ErrCorrupt = errors.New("archive: corrupt receipt")
)
