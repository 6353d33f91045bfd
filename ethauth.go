// Package ethauth implements ETHAuth proofs: self-describing bearer tokens
// that bind a set of claims to an Ethereum account through an EIP-712
// signature.
//
// A proof is encoded as
//
//	eth.<address>.<base64url(claims JSON)>.<signature>[.<extra>]
//
// and is accepted when its claims are within their validity window and one
// of the configured validators accepts its signature. Validators run in
// order and the first acceptance wins, so the default EOA check never pays
// for the network round trip of the contract account check.
package ethauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pilacorp/go-ethauth/blockchain"
)

// ETHAuth encodes, decodes and validates proofs. Configure it before
// sharing it between goroutines.
type ETHAuth struct {
	mu         sync.RWMutex
	validators []Validator
	provider   blockchain.Provider
	chainID    *big.Int
	client     rpcClient
	logger     *slog.Logger
}

// rpcClient is a JSON-RPC connection owned by ETHAuth.
type rpcClient interface {
	blockchain.Provider
	NetworkID(ctx context.Context) (*big.Int, error)
	Close()
}

var dialRPC = func(ctx context.Context, rpcURL string) (rpcClient, error) {
	client, err := blockchain.Dial(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// New returns an ETHAuth using DefaultValidators unless WithValidators is
// given.
func New(opts ...Option) (*ETHAuth, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	validators := o.validators
	if !o.validatorsSet {
		validators = DefaultValidators()
	}
	if len(validators) == 0 {
		return nil, ErrEmptyValidators
	}

	return &ETHAuth{
		validators: validators,
		provider:   o.provider,
		chainID:    o.chainID,
		logger:     o.logger,
	}, nil
}

// ConfigValidators replaces the validator list.
func (a *ETHAuth) ConfigValidators(validators ...Validator) error {
	if len(validators) == 0 {
		return ErrEmptyValidators
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.validators = validators
	return nil
}

// ConfigJSONRPCProvider connects to an Ethereum JSON-RPC endpoint and uses
// it for contract account validation. The chain id is read from
// net_version. A connection opened by an earlier call is closed.
func (a *ETHAuth) ConfigJSONRPCProvider(ctx context.Context, rpcURL string) error {
	client, err := dialRPC(ctx, rpcURL)
	if err != nil {
		return err
	}

	chainID, err := client.NetworkID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("%w: %v", ErrChainIDUnavailable, err)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		client.Close()
		return ErrChainIDUnavailable
	}

	a.mu.Lock()
	previous := a.client
	a.client = client
	a.provider = blockchain.NewCodeCache(client)
	a.chainID = chainID
	a.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return nil
}

// Close releases the connection opened by ConfigJSONRPCProvider, if any.
// Contract account validation is disabled afterwards.
func (a *ETHAuth) Close() {
	a.mu.Lock()
	client := a.client
	if client != nil {
		a.client = nil
		a.provider = nil
		a.chainID = nil
	}
	a.mu.Unlock()

	if client != nil {
		client.Close()
	}
}

// Validators returns a copy of the configured validators.
func (a *ETHAuth) Validators() []Validator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Validator(nil), a.validators...)
}

// Provider returns the configured chain access, or nil.
func (a *ETHAuth) Provider() blockchain.Provider {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.provider
}

// ChainID returns the configured chain id, or nil.
func (a *ETHAuth) ChainID() *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.chainID == nil {
		return nil
	}
	return new(big.Int).Set(a.chainID)
}

// EncodeProof validates proof and returns its string form.
func (a *ETHAuth) EncodeProof(ctx context.Context, proof *Proof, opts ...ProofOption) (string, error) {
	if proof == nil {
		return "", fmt.Errorf("%w: proof is nil", ErrMalformedEncoding)
	}
	if len(proof.Address) != 42 || !strings.HasPrefix(proof.Address, "0x") {
		return "", ErrInvalidAddress
	}
	if proof.Signature == "" || !strings.HasPrefix(proof.Signature, "0x") {
		return "", ErrInvalidSignatureEncoding
	}
	if proof.Extra != "" && !strings.HasPrefix(proof.Extra, "0x") {
		return "", ErrInvalidExtraEncoding
	}
	if err := checkClaimsUTF8(proof.Claims); err != nil {
		return "", err
	}

	if _, err := a.ValidateProof(ctx, proof, opts...); err != nil {
		return "", err
	}

	claimsJSON, err := marshalClaims(proof.Claims)
	if err != nil {
		return "", err
	}

	parts := []string{
		ETHAuthPrefix,
		strings.ToLower(proof.Address),
		base64.RawURLEncoding.EncodeToString(claimsJSON),
		proof.Signature,
	}
	if proof.Extra != "" {
		parts = append(parts, proof.Extra)
	}
	return strings.Join(parts, "."), nil
}

// DecodeProof parses and validates a proof string.
func (a *ETHAuth) DecodeProof(ctx context.Context, proofString string, opts ...ProofOption) (*Proof, error) {
	parts := strings.Split(proofString, ".")
	if len(parts) < 4 || len(parts) > 5 {
		return nil, ErrMalformedProof
	}
	if parts[0] != ETHAuthPrefix {
		return nil, ErrInvalidPrefix
	}

	claims, err := unmarshalClaims(parts[2])
	if err != nil {
		return nil, err
	}

	var extra string
	if len(parts) == 5 {
		extra = parts[4]
	}
	proof := NewProofFromParts(parts[1], claims, parts[3], extra)

	if _, err := a.ValidateProof(ctx, proof, opts...); err != nil {
		return nil, err
	}
	return proof, nil
}

// ValidateProof checks the claims of proof and, unless skipped, its
// signature. It returns true or an error, never false without an error.
func (a *ETHAuth) ValidateProof(ctx context.Context, proof *Proof, opts ...ProofOption) (bool, error) {
	if err := a.ValidateProofClaims(proof); err != nil {
		return false, err
	}

	if getProofOptions(opts...).skipSignatureValidation {
		return true, nil
	}
	if !a.ValidateProofSignature(ctx, proof) {
		return false, ErrInvalidSignature
	}
	return true, nil
}

// ValidateProofSignature runs the validators in order and reports whether
// one of them accepted the signature. Validator errors and panics count as
// rejections.
func (a *ETHAuth) ValidateProofSignature(ctx context.Context, proof *Proof) bool {
	if proof == nil {
		return false
	}

	a.mu.RLock()
	validators := a.validators
	provider := a.provider
	chainID := a.chainID
	a.mu.RUnlock()

	for i, v := range validators {
		if ctx.Err() != nil {
			a.logger.DebugContext(ctx, "proof validation cancelled", "address", proof.Address, "error", ctx.Err())
			return false
		}

		result, err := a.runValidator(ctx, v, provider, chainID, proof)
		if err != nil {
			a.logger.DebugContext(ctx, "validator failed", "index", i, "address", proof.Address, "error", err)
			continue
		}
		if result.IsValid {
			return true
		}
	}
	return false
}

func (a *ETHAuth) runValidator(ctx context.Context, v Validator, provider blockchain.Provider, chainID *big.Int, proof *Proof) (result ValidatorResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = ValidatorResult{}, fmt.Errorf("validator panicked: %v", r)
		}
	}()
	return v.ValidateProof(ctx, provider, chainID, proof)
}

// ValidateProofClaims checks the claims of proof.
func (a *ETHAuth) ValidateProofClaims(proof *Proof) error {
	if proof == nil {
		return fmt.Errorf("%w: proof is nil", ErrInvalidClaims)
	}
	return proof.ValidateClaims()
}

// checkClaimsUTF8 rejects string claims that JSON encoding would rewrite,
// since the signature covers the original bytes.
func checkClaimsUTF8(claims Claims) error {
	for _, f := range []struct{ name, value string }{
		{"app", claims.App},
		{"typ", claims.Type},
		{"ogn", claims.Origin},
		{"v", claims.Version},
	} {
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidClaimsEncoding, f.name)
		}
	}
	return nil
}

// marshalClaims encodes claims without HTML escaping, as JSON.stringify
// does, so that tokens from other implementations compare equal.
func marshalClaims(claims Claims) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(claims); err != nil {
		return nil, fmt.Errorf("failed to marshal claims: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func unmarshalClaims(segment string) (Claims, error) {
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidClaimsEncoding, err)
	}

	if err := checkClaimsJSON(payload); err != nil {
		return Claims{}, err
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidClaimsEncoding, err)
	}
	return claims, nil
}
