// Package rewards ties the split calculator to the pledge ledger: it previews
// splits, finalizes and signs them, records payouts and announces the result.
package rewards

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.uber.org/zap"

	"github.com/bitfsorg/pledgesplit-go/archive"
	"github.com/bitfsorg/pledgesplit-go/notify"
	"github.com/bitfsorg/pledgesplit-go/receipt"
	"github.com/bitfsorg/pledgesplit-go/split"
	"github.com/bitfsorg/pledgesplit-go/store"
)

// Options configures a Service.
type Options struct {
	Store      store.Store
	SigningKey *ec.PrivateKey
	Fee        split.FeePolicy
	Currency   string          // Default currency for pledges that omit one
	Notifier   notify.Notifier  // Optional
	Archive    *archive.Archive // Optional
	Logger     *zap.Logger      // Optional
}

// Service implements the reward split flows for issues.
type Service struct {
	store    store.Store
	key      *ec.PrivateKey
	fee      split.FeePolicy
	currency string
	notifier notify.Notifier
	archive  *archive.Archive
	logger   *zap.Logger
	now      func() time.Time
	locks    issueLocks
}

// Preview is a calculated split plus any reasons it could not be submitted
// as is.
type Preview struct {
	split.Result
	Warnings []string `json:"warnings"`
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	if opts.SigningKey == nil {
		return nil, fmt.Errorf("%w: signing key", ErrNilParam)
	}
	if opts.Currency == "" {
		opts.Currency = split.DefaultCurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		store:    opts.Store,
		key:      opts.SigningKey,
		fee:      opts.Fee,
		currency: strings.ToUpper(opts.Currency),
		notifier: opts.Notifier,
		archive:  opts.Archive,
		logger:   opts.Logger,
		now:      time.Now,
	}, nil
}

// PublicKey returns the hex compressed key receipts are signed with.
func (s *Service) PublicKey() string {
	return hex.EncodeToString(s.key.PubKey().Compressed())
}

// Fee returns the fee policy in force.
func (s *Service) Fee() split.FeePolicy { return s.fee }

// Preview calculates a split without touching the ledger. It never fails;
// validation problems are reported as warnings.
func (s *Service) Preview(pledges []split.Pledge, shares []split.Share, fee *split.FeePolicy) Preview {
	policy := s.fee
	if fee != nil {
		policy = *fee
	}
	p := Preview{Result: split.Calculate(pledges, shares, policy), Warnings: []string{}}
	if err := split.ValidatePledges(pledges); err != nil {
		p.Warnings = append(p.Warnings, err.Error())
	}
	if err := split.Validate(shares); err != nil {
		p.Warnings = append(p.Warnings, err.Error())
	}
	return p
}

// PreviewIssue calculates a split against the pledges stored for issueID.
func (s *Service) PreviewIssue(issueID string, shares []split.Share) (Preview, error) {
	pledges, err := s.store.ListPledges(issueID)
	if err != nil {
		return Preview{}, err
	}
	return s.Preview(pledges, shares, nil), nil
}

// AddPledge validates and lists a pledge on an issue. All pledges on an
// issue must share a currency.
func (s *Service) AddPledge(issueID string, p split.Pledge) (split.Pledge, error) {
	if p.Currency == "" {
		p.Currency = s.currency
	}
	p.Currency = strings.ToUpper(p.Currency)

	unlock := s.locks.lock(issueID)
	defer unlock()

	existing, err := s.store.ListPledges(issueID)
	if err != nil {
		return p, err
	}
	if err := split.ValidatePledges(append(existing, p)); err != nil {
		return p, err
	}

	stored, err := s.store.AddPledge(issueID, p)
	if err != nil {
		return stored, err
	}
	s.logger.Debug("pledge added",
		zap.String("issue", issueID),
		zap.String("pledge", stored.ID),
		zap.Int64("amount", stored.Amount),
	)
	return stored, nil
}

// ListPledges returns the pledges of an issue.
func (s *Service) ListPledges(issueID string) ([]split.Pledge, error) {
	return s.store.ListPledges(issueID)
}

// SplitIssue finalizes the reward split of an issue: it validates shares,
// computes payouts from the stored pledges, signs and persists the result
// and then notifies. Notification failures are logged, not returned; the
// split is already committed at that point.
func (s *Service) SplitIssue(ctx context.Context, issueID string, shares []split.Share) (*store.SplitRecord, error) {
	unlock := s.locks.lock(issueID)
	defer unlock()

	pledges, err := s.store.ListPledges(issueID)
	if err != nil {
		return nil, err
	}
	if len(pledges) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPledges, issueID)
	}
	if err := split.ValidatePledges(pledges); err != nil {
		return nil, err
	}

	final, err := split.Finalize(issueID, shares)
	if err != nil {
		return nil, err
	}
	result := split.Calculate(pledges, shares, s.fee)
	payouts, err := split.Distribute(result.Pool, final)
	if err != nil {
		return nil, err
	}

	r, err := receipt.Sign(final, result.Pool, result.Currency, s.key)
	if err != nil {
		return nil, err
	}
	rec := &store.SplitRecord{
		Receipt:     *r,
		Payouts:     payouts,
		PledgeCount: len(pledges),
		PledgeSum:   result.PledgeSum,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.PutSplit(rec); err != nil {
		return nil, err
	}

	s.logger.Info("issue rewards split",
		zap.String("issue", issueID),
		zap.Int64("pledge_sum", result.PledgeSum),
		zap.Int64("fee", result.Fee),
		zap.Int64("pool", result.Pool),
		zap.Int("recipients", len(final.Entries)),
	)

	if s.archive != nil {
		if digest, err := s.archive.Put(r); err != nil {
			s.logger.Warn("receipt archive failed", zap.String("issue", issueID), zap.Error(err))
		} else {
			s.logger.Debug("receipt archived", zap.String("issue", issueID), zap.String("digest", hex.EncodeToString(digest)))
		}
	}

	if s.notifier != nil {
		ev := notify.Event{
			IssueID:  issueID,
			Currency: result.Currency,
			Pool:     result.Pool,
			Split:    *final,
			Payouts:  payouts,
		}
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.logger.Warn("split notification failed", zap.String("issue", issueID), zap.Error(err))
		}
	}
	return rec, nil
}

// GetSplit returns the finalized split of an issue.
func (s *Service) GetSplit(issueID string) (*store.SplitRecord, error) {
	return s.store.GetSplit(issueID)
}

// ArchivedReceipt returns the archived receipt whose digest is digestHex.
func (s *Service) ArchivedReceipt(digestHex string) (*receipt.Receipt, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	digest, err := archive.ParseDigest(digestHex)
	if err != nil {
		return nil, err
	}
	return s.archive.Get(digest)
}

// IsValidationError reports whether err comes from caller input rather than
// from the service itself.
func IsValidationError(err error) bool {
	for _, target := range []error{
		split.ErrNoShares, split.ErrEmptyUsername, split.ErrDuplicateRecipient,
		split.ErrShareOutOfRange, split.ErrOverAllocated, split.ErrUnallocatedResidual,
		split.ErrNegativePledge, split.ErrPledgeTooLarge, split.ErrMixedCurrency, split.ErrInvalidShareSpec,
		ErrNoPledges, store.ErrEmptyIssueID, archive.ErrInvalidDigest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
