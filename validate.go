package ethauth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/pilacorp/go-ethauth/blockchain"
)

// ValidatorResult is the outcome of one validator.
type ValidatorResult struct {
	IsValid bool
	// Address is the account that signed the proof, set only when IsValid.
	Address string
}

// Validator checks the signature of a proof. A returned error means the
// validator could not decide; ETHAuth treats it as a rejection and moves on
// to the next validator.
type Validator interface {
	ValidateProof(ctx context.Context, provider blockchain.Provider, chainID *big.Int, proof *Proof) (ValidatorResult, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, provider blockchain.Provider, chainID *big.Int, proof *Proof) (ValidatorResult, error)

func (f ValidatorFunc) ValidateProof(ctx context.Context, provider blockchain.Provider, chainID *big.Int, proof *Proof) (ValidatorResult, error) {
	return f(ctx, provider, chainID, proof)
}

// DefaultValidators returns the validators used when none are configured:
// EOA first, then contract accounts.
func DefaultValidators() []Validator {
	return []Validator{
		ValidatorFunc(ValidateEOAProof),
		ValidatorFunc(ValidateContractAccountProof),
	}
}

// ValidateEOAProof verifies a proof signed by a private key. The signer is
// recovered from the personal-sign hash of the message digest and compared
// with proof.Address.
func ValidateEOAProof(_ context.Context, _ blockchain.Provider, _ *big.Int, proof *Proof) (ValidatorResult, error) {
	if !isAddress(proof.Address) {
		return ValidatorResult{}, nil
	}

	digest, err := proof.MessageDigest()
	if err != nil {
		return ValidatorResult{}, err
	}

	signature, err := hexutil.Decode(proof.Signature)
	if err != nil {
		return ValidatorResult{}, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}

	recovered, err := blockchain.RecoverAddress(accounts.TextHash(digest), signature)
	if err != nil {
		return ValidatorResult{}, err
	}

	if strings.ToLower(recovered.Hex()) != strings.ToLower(proof.Address) {
		return ValidatorResult{}, nil
	}
	return ValidatorResult{IsValid: true, Address: strings.ToLower(proof.Address)}, nil
}

// ValidateContractAccountProof verifies a proof signed by a smart contract
// wallet through its ERC-1271 isValidSignature method. The wallet must be
// deployed: an account without code fails with
// blockchain.ErrContractNotDeployed.
func ValidateContractAccountProof(ctx context.Context, provider blockchain.Provider, _ *big.Int, proof *Proof) (ValidatorResult, error) {
	if provider == nil {
		return ValidatorResult{}, nil
	}
	if !isAddress(proof.Address) {
		return ValidatorResult{}, nil
	}
	wallet := common.HexToAddress(proof.Address)

	digest, err := proof.MessageDigest()
	if err != nil {
		return ValidatorResult{}, err
	}

	if err := blockchain.RequireContract(ctx, provider, wallet); err != nil {
		return ValidatorResult{}, err
	}

	signature, err := hexutil.Decode(proof.Signature)
	if err != nil {
		return ValidatorResult{}, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}

	ok, err := blockchain.IsValidSignature(ctx, provider, wallet, common.BytesToHash(digest), signature)
	if err != nil {
		return ValidatorResult{}, err
	}
	if !ok {
		return ValidatorResult{}, nil
	}
	return ValidatorResult{IsValid: true, Address: strings.ToLower(proof.Address)}, nil
}

// isAddress reports whether s is a 0x prefixed 20 byte hex address.
func isAddress(s string) bool {
	return len(s) == 2+2*common.AddressLength && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
