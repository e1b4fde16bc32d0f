package store

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("store: required parameter is nil")

	// ErrEmptyIssueID indicates an empty issue identifier.
	ErrEmptyIssueID = errors.New("store: empty issue id")

	// ErrDuplicatePledge indicates a pledge with this ID already exists on the issue.
	ErrDuplicatePledge = errors.New("store: duplicate pledge")

	// ErrSplitExists indicates the issue already has a finalized split.
	ErrSplitExists = errors.New("store: split already finalized")

	// ErrSplitNotFound indicates the issue has no finalized split.
	ErrSplitNotFound = errors.New("store: split not found")

	// ErrPledgesChanged indicates the pledges of an issue changed after its
	// split was computed.
	ErrPledgesChanged = errors.New("store: pledges changed since split was computed")

	// ErrIssueLocked indicates pledges cannot be added after the split is finalized.
	ErrIssueLocked = errors.New("store: issue rewards already split")
)
