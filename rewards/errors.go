package rewards

import "errors"

var (
	// ErrNilParam indicates a required dependency was not provided.
	ErrNilParam = errors.New("rewards: required parameter is nil")

	// ErrNoPledges indicates an issue without pledges cannot be split.
	ErrNoPledges = errors.New("rewards: issue has no pledges")

	// ErrNoArchive indicates the service was built without a receipt archive.
	ErrNoArchive = errors.New("rewards: receipt archive not configured")
)
