package ethauth

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors below wrap one of these so callers can test
// either level with errors.Is.
var (
	ErrInvalidClaims     = errors.New("ethauth: proof claims are invalid")
	ErrMalformedEncoding = errors.New("ethauth: malformed proof encoding")
	ErrInvalidSignature  = errors.New("ethauth: proof signature is invalid")
	ErrEmptyValidators   = errors.New("ethauth: validators list is empty")
)

// Claims errors.
var (
	ErrEmptyApp        = fmt.Errorf("%w: app is empty", ErrInvalidClaims)
	ErrEmptyVersion    = fmt.Errorf("%w: version is empty", ErrInvalidClaims)
	ErrInvalidIssuedAt = fmt.Errorf("%w: iat is invalid", ErrInvalidClaims)
	ErrExpired         = fmt.Errorf("%w: token has expired", ErrInvalidClaims)
)

// Encoding errors.
var (
	ErrInvalidAddress           = fmt.Errorf("%w: invalid address", ErrMalformedEncoding)
	ErrInvalidSignatureEncoding = fmt.Errorf("%w: invalid signature", ErrMalformedEncoding)
	ErrInvalidExtraEncoding     = fmt.Errorf("%w: invalid extra encoding, expecting hex data", ErrMalformedEncoding)
	ErrMalformedProof           = fmt.Errorf("%w: invalid proof string", ErrMalformedEncoding)
	ErrInvalidPrefix            = fmt.Errorf("%w: not an ethauth proof", ErrMalformedEncoding)
	ErrInvalidClaimsEncoding    = fmt.Errorf("%w: invalid claims encoding", ErrMalformedEncoding)
)

// ErrChainIDUnavailable is returned when a JSON-RPC endpoint does not report
// a usable network id.
var ErrChainIDUnavailable = errors.New("ethauth: unable to get chainId")
