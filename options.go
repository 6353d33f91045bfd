package ethauth

import (
	"log/slog"
	"math/big"

	"github.com/pilacorp/go-ethauth/blockchain"
)

type options struct {
	validators    []Validator
	validatorsSet bool
	provider      blockchain.Provider
	chainID       *big.Int
	logger        *slog.Logger
}

// Option configures an ETHAuth created with New.
type Option func(*options)

// WithValidators replaces the default validators. Validators run in the
// given order.
func WithValidators(validators ...Validator) Option {
	return func(o *options) {
		o.validators = validators
		o.validatorsSet = true
	}
}

// WithProvider sets the chain access used by contract account validation.
func WithProvider(provider blockchain.Provider, chainID *big.Int) Option {
	return func(o *options) {
		o.provider = provider
		o.chainID = chainID
	}
}

// WithLogger sets the logger used to report rejected validators.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type proofOptions struct {
	skipSignatureValidation bool
}

// ProofOption tunes a single encode, decode or validate call.
type ProofOption func(*proofOptions)

// WithSkipSignatureValidation limits validation to the claims. Use it only
// when the signature is checked elsewhere.
func WithSkipSignatureValidation() ProofOption {
	return func(o *proofOptions) { o.skipSignatureValidation = true }
}

func getProofOptions(opts ...ProofOption) *proofOptions {
	o := &proofOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
