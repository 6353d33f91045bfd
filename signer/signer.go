// Package signer produces ETHAuth proof signatures from a local key or a
// remote signing service.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-ethauth/blockchain"
)

// SignerProvider is the interface for the signer provider.
type SignerProvider interface {
	Sign(payload []byte) ([]byte, error)
	GetAddress() string
}

// DefaultProvider is the default signer provider.
type DefaultProvider struct {
	priv *ecdsa.PrivateKey
}

// NewDefaultProvider creates a new default signer provider.
//
// privHex is the private key in hex format, with or without 0x.
func NewDefaultProvider(privHex string) (SignerProvider, error) {
	priv, err := blockchain.ParsePrivateKey(privHex)
	if err != nil {
		return nil, err
	}
	return &DefaultProvider{priv: priv}, nil
}

// NewProviderFromKey wraps an already parsed private key.
func NewProviderFromKey(priv *ecdsa.PrivateKey) SignerProvider {
	return &DefaultProvider{priv: priv}
}

// Sign signs a 32 byte hash. The recovery id of the returned signature is
// 0 or 1.
func (s *DefaultProvider) Sign(hashPayload []byte) ([]byte, error) {
	if len(hashPayload) != 32 {
		return nil, fmt.Errorf("payload must be 32 bytes, got %d", len(hashPayload))
	}

	signature, err := crypto.Sign(hashPayload, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != blockchain.SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", blockchain.SignatureLength, len(signature))
	}

	return signature, nil
}

// GetAddress returns the lowercase hex address of the signer.
func (s *DefaultProvider) GetAddress() string {
	return strings.ToLower(crypto.PubkeyToAddress(s.priv.PublicKey).Hex())
}

// PersonalSign signs digest under the "\x19Ethereum Signed Message:\n"
// prefix and returns the 0x hex signature with v set to 27 or 28.
func PersonalSign(p SignerProvider, digest []byte) (string, error) {
	if p == nil {
		return "", fmt.Errorf("signer provider is required")
	}

	raw, err := p.Sign(accounts.TextHash(digest))
	if err != nil {
		return "", err
	}

	signature, err := blockchain.NormalizeSignature(raw)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(signature), nil
}
