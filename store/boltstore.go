package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/pledgesplit-go/split"
)

var (
	bucketPledges = []byte("pledges") // issue id -> nested bucket of seq -> pledge
	bucketSplits  = []byte("splits")  // issue id -> split record
)

// BoltStore persists pledges and splits in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketPledges, bucketSplits} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// seqKey encodes a sequence number as an 8-byte big-endian key for sorted storage.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// AddPledge lists a pledge on an issue. Pledges are keyed by sequence so
// listing preserves insertion order.
func (s *BoltStore) AddPledge(issueID string, p split.Pledge) (split.Pledge, error) {
	if issueID == "" {
		return p, ErrEmptyIssueID
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSplits).Get([]byte(issueID)) != nil {
			return fmt.Errorf("%w: %s", ErrIssueLocked, issueID)
		}

		ib, err := tx.Bucket(bucketPledges).CreateBucketIfNotExists([]byte(issueID))
		if err != nil {
			return fmt.Errorf("boltstore: create issue bucket: %w", err)
		}
		seq, err := ib.NextSequence()
		if err != nil {
			return fmt.Errorf("boltstore: next sequence: %w", err)
		}
		if p.ID == "" {
			p.ID = pledgeID(seq)
		}

		dup := false
		err = ib.ForEach(func(_, v []byte) error {
			var existing split.Pledge
			if err := decodeGob(v, &existing); err != nil {
				return fmt.Errorf("boltstore: decode pledge: %w", err)
			}
			if existing.ID == p.ID {
				dup = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePledge, p.ID)
		}

		data, err := encodeGob(p)
		if err != nil {
			return fmt.Errorf("encode pledge: %w", err)
		}
		if err := ib.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("boltstore: put pledge: %w", err)
		}
		return nil
	})
	return p, err
}

// ListPledges returns the pledges of an issue in insertion order.
func (s *BoltStore) ListPledges(issueID string) ([]split.Pledge, error) {
	if issueID == "" {
		return nil, ErrEmptyIssueID
	}

	pledges := []split.Pledge{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		ib := tx.Bucket(bucketPledges).Bucket([]byte(issueID))
		if ib == nil {
			return nil
		}
		return ib.ForEach(func(_, v []byte) error {
			var p split.Pledge
			if err := decodeGob(v, &p); err != nil {
				return fmt.Errorf("boltstore: decode pledge: %w", err)
			}
			pledges = append(pledges, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pledges, nil
}

// PutSplit stores the finalized split of an issue.
func (s *BoltStore) PutSplit(rec *SplitRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: split record", ErrNilParam)
	}
	if rec.IssueID() == "" {
		return ErrEmptyIssueID
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSplits)
		key := []byte(rec.IssueID())
		if b.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrSplitExists, rec.IssueID())
		}

		// Re-read the pledges in this transaction so a pledge that slipped in
		// after the split was computed cannot end up behind the lock.
		var pledges []split.Pledge
		if ib := tx.Bucket(bucketPledges).Bucket(key); ib != nil {
			if err := ib.ForEach(func(_, v []byte) error {
				var p split.Pledge
				if err := decodeGob(v, &p); err != nil {
					return fmt.Errorf("boltstore: decode pledge: %w", err)
				}
				pledges = append(pledges, p)
				return nil
			}); err != nil {
				return err
			}
		}
		if err := checkPledges(rec, pledges); err != nil {
			return err
		}

		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("encode split: %w", err)
		}
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("boltstore: put split: %w", err)
		}
		return nil
	})
}

// GetSplit returns the finalized split of an issue.
func (s *BoltStore) GetSplit(issueID string) (*SplitRecord, error) {
	var rec SplitRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSplits).Get([]byte(issueID))
		if data == nil {
			return ErrSplitNotFound
		}
		if err := decodeGob(data, &rec); err != nil {
			return fmt.Errorf("boltstore: decode split: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListIssues returns every issue with pledges or a split, sorted.
func (s *BoltStore) ListIssues() ([]string, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketPledges, bucketSplits} {
			if err := tx.Bucket(name).ForEach(func(k, _ []byte) error {
				seen[string(k)] = struct{}{}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list issues: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
