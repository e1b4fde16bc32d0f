// Package store persists the pledges listed on each issue and the finalized,
// signed reward split of issues that have been paid out.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bitfsorg/pledgesplit-go/receipt"
	"github.com/bitfsorg/pledgesplit-go/split"
)

// SplitRecord is a finalized split together with its computed payouts.
// PledgeCount and PledgeSum describe the pledges the split was computed
// from; PutSplit refuses the record if the ledger no longer matches.
type SplitRecord struct {
	Receipt     receipt.Receipt `json:"receipt"`
	Payouts     []split.Payout  `json:"payouts"`
	PledgeCount int             `json:"pledge_count"`
	PledgeSum   int64           `json:"pledge_sum"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IssueID returns the issue the record belongs to.
func (r *SplitRecord) IssueID() string { return r.Receipt.Split.IssueID }

// Store persists pledges and finalized splits.
type Store interface {
	// AddPledge lists a pledge on an issue. A pledge without an ID is
	// assigned one. Returns the stored pledge.
	AddPledge(issueID string, p split.Pledge) (split.Pledge, error)

	// ListPledges returns the pledges of an issue in insertion order.
	ListPledges(issueID string) ([]split.Pledge, error)

	// PutSplit stores the finalized split of an issue. An issue can be
	// split once, and only while its pledges still match the record.
	PutSplit(rec *SplitRecord) error

	// GetSplit returns the finalized split of an issue.
	GetSplit(issueID string) (*SplitRecord, error)

	// ListIssues returns every issue with pledges or a split, sorted.
	ListIssues() ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// MemStore is an in-memory implementation of Store for testing.
type MemStore struct {
	mu      sync.RWMutex
	pledges map[string][]split.Pledge
	splits  map[string]*SplitRecord
	nextSeq uint64
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		pledges: make(map[string][]split.Pledge),
		splits:  make(map[string]*SplitRecord),
	}
}

// AddPledge lists a pledge on an issue.
func (s *MemStore) AddPledge(issueID string, p split.Pledge) (split.Pledge, error) {
	if issueID == "" {
		return p, ErrEmptyIssueID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.splits[issueID]; ok {
		return p, fmt.Errorf("%w: %s", ErrIssueLocked, issueID)
	}
	s.nextSeq++
	if p.ID == "" {
		p.ID = pledgeID(s.nextSeq)
	}
	for _, existing := range s.pledges[issueID] {
		if existing.ID == p.ID {
			return p, fmt.Errorf("%w: %s", ErrDuplicatePledge, p.ID)
		}
	}
	s.pledges[issueID] = append(s.pledges[issueID], p)
	return p, nil
}

// ListPledges returns the pledges of an issue in insertion order.
func (s *MemStore) ListPledges(issueID string) ([]split.Pledge, error) {
	if issueID == "" {
		return nil, ErrEmptyIssueID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]split.Pledge, len(s.pledges[issueID]))
	copy(out, s.pledges[issueID])
	return out, nil
}

// PutSplit stores the finalized split of an issue.
func (s *MemStore) PutSplit(rec *SplitRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: split record", ErrNilParam)
	}
	if rec.IssueID() == "" {
		return ErrEmptyIssueID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.splits[rec.IssueID()]; ok {
		return fmt.Errorf("%w: %s", ErrSplitExists, rec.IssueID())
	}
	if err := checkPledges(rec, s.pledges[rec.IssueID()]); err != nil {
		return err
	}
	s.splits[rec.IssueID()] = rec
	return nil
}

// GetSplit returns the finalized split of an issue.
func (s *MemStore) GetSplit(issueID string) (*SplitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.splits[issueID]
	if !ok {
		return nil, ErrSplitNotFound
	}
	return rec, nil
}

// ListIssues returns every known issue, sorted.
func (s *MemStore) ListIssues() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.pledges)+len(s.splits))
	for id := range s.pledges {
		seen[id] = struct{}{}
	}
	for id := range s.splits {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }

// checkPledges reports ErrPledgesChanged when pledges differ from the set
// rec was computed from.
func checkPledges(rec *SplitRecord, pledges []split.Pledge) error {
	sum := split.SumPledges(pledges)
	if len(pledges) != rec.PledgeCount || sum != rec.PledgeSum {
		return fmt.Errorf("%w: %s has %d pledges totalling %d, split saw %d totalling %d",
			ErrPledgesChanged, rec.IssueID(), len(pledges), sum, rec.PledgeCount, rec.PledgeSum)
	}
	return nil
}

func pledgeID(seq uint64) string {
	return fmt.Sprintf("pledge-%d", seq)
}
