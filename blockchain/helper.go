package blockchain

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an r ‖ s ‖ v secp256k1 signature.
const SignatureLength = 65

func ParsePrivateKey(key string) (*ecdsa.PrivateKey, error) {
	key = strings.TrimPrefix(key, "0x")
	if len(key) == 0 || len(key)%2 != 0 {
		return nil, fmt.Errorf("invalid private key: empty or odd length")
	}
	privKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return privKey, nil
}

// NormalizeSignature returns a copy of signature with the recovery id in
// Ethereum format (27 or 28).
func NormalizeSignature(signature []byte) ([]byte, error) {
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(signature))
	}

	out := make([]byte, SignatureLength)
	copy(out, signature)
	if out[64] < 27 {
		out[64] += 27
	}
	return out, nil
}

// RecoverableSignature returns a copy of signature with the recovery id as
// 0 or 1, the form crypto.SigToPub expects.
func RecoverableSignature(signature []byte) ([]byte, error) {
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(signature))
	}

	out := make([]byte, SignatureLength)
	copy(out, signature)
	if out[64] >= 27 {
		out[64] -= 27
	}
	if out[64] > 1 {
		return nil, fmt.Errorf("invalid signature recovery id %d", signature[64])
	}
	return out, nil
}

// RecoverAddress recovers the signer of hash.
func RecoverAddress(hash, signature []byte) (common.Address, error) {
	sig, err := RecoverableSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
