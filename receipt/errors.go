package receipt

import "errors"

var (
	// ErrNilParam indicates a required argument was nil.
	ErrNilParam = errors.New("receipt: nil parameter")

	// ErrInvalidPublicKey indicates the signer public key cannot be parsed.
	ErrInvalidPublicKey = errors.New("receipt: invalid public key")

	// ErrInvalidSignature indicates the signature is not valid DER.
	ErrInvalidSignature = errors.New("receipt: invalid signature encoding")

	// ErrBadSignature indicates the signature does not match the split.
	ErrBadSignature = errors.New("receipt: signature verification failed")

	// ErrInvalidKey indicates a signing key that cannot be decoded.
	ErrInvalidKey = errors.New("receipt: invalid signing key")
)
