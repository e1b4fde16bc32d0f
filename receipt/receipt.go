// Package receipt signs finalized splits so a payout service can check that
// the split it receives is the one the platform accepted.
//
// The signed message is SHA256 of the split's canonical binary encoding
// (split.MarshalFinalSplit) followed by the big-endian pool and sign time.
package receipt

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"

	"github.com/bitfsorg/pledgesplit-go/split"
)

// Receipt is a signed, finalized split.
type Receipt struct {
	Split     split.FinalSplit `json:"split"`
	Pool      int64            `json:"pool"`     // Distributable pool in minor units
	Currency  string           `json:"currency"` // ISO 4217 code
	SignedAt  int64            `json:"signed_at"`
	PubKey    string           `json:"pubkey"`    // Hex compressed secp256k1 key
	Signature string           `json:"signature"` // Hex DER signature
}

// LoadSigningKey decodes a hex private key. An empty string yields a fresh
// ephemeral key, which is fine for development but means receipts cannot be
// verified against a known key after restart.
func LoadSigningKey(hexKey string) (*ec.PrivateKey, error) {
	if hexKey == "" {
		key, err := ec.NewPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("receipt: generate key: %w", err)
		}
		return key, nil
	}
	key, err := ec.PrivateKeyFromHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// Sign produces a receipt for final over pool, signed by key.
func Sign(final *split.FinalSplit, pool int64, currency string, key *ec.PrivateKey) (*Receipt, error) {
	return signAt(final, pool, currency, key, time.Now())
}

func signAt(final *split.FinalSplit, pool int64, currency string, key *ec.PrivateKey, at time.Time) (*Receipt, error) {
	if final == nil {
		return nil, fmt.Errorf("%w: split", ErrNilParam)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: key", ErrNilParam)
	}

	r := &Receipt{
		Split:    *final,
		Pool:     pool,
		Currency: currency,
		SignedAt: at.Unix(),
		PubKey:   hex.EncodeToString(key.PubKey().Compressed()),
	}

	digest, err := r.Digest()
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("receipt: sign: %w", err)
	}
	r.Signature = hex.EncodeToString(sig.Serialize())
	return r, nil
}

// Digest returns the 32-byte hash the receipt signature commits to.
func (r *Receipt) Digest() ([]byte, error) {
	body, err := split.MarshalFinalSplit(&r.Split)
	if err != nil {
		return nil, err
	}

	msg := make([]byte, 0, len(body)+16+len(r.Currency))
	msg = append(msg, body...)
	msg = binary.BigEndian.AppendUint64(msg, uint64(r.Pool))
	msg = binary.BigEndian.AppendUint64(msg, uint64(r.SignedAt))
	msg = append(msg, r.Currency...)
	return bsvhash.Sha256(msg), nil
}

// Verify checks the receipt signature against its embedded public key.
func Verify(r *Receipt) error {
	if r == nil {
		return fmt.Errorf("%w: receipt", ErrNilParam)
	}

	pubBytes, err := hex.DecodeString(r.PubKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	pub, err := ec.PublicKeyFromBytes(pubBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	sigBytes, err := hex.DecodeString(r.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig, err := ec.ParseDERSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	digest, err := r.Digest()
	if err != nil {
		return err
	}
	if !sig.Verify(digest, pub) {
		return ErrBadSignature
	}
	return nil
}

// VerifyFrom checks the signature and that the receipt was signed by pubHex.
func VerifyFrom(r *Receipt, pubHex string) error {
	if err := Verify(r); err != nil {
		return err
	}
	if r.PubKey != pubHex {
		return fmt.Errorf("%w: unexpected signer %s", ErrBadSignature, r.PubKey)
	}
	return nil
}
