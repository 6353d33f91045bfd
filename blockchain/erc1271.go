package blockchain

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed contracts/erc1271_abi.json
var erc1271ABIJSON []byte

const isValidSignatureMethod = "isValidSignature"

// ERC1271MagicValue is returned by isValidSignature(bytes32,bytes) when the
// contract accepts the signature.
var ERC1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// ErrContractNotDeployed is returned when an account expected to be a
// contract has no code.
var ErrContractNotDeployed = errors.New("blockchain: contract is not deployed")

var (
	erc1271ABI   abi.ABI
	parseABIOnce sync.Once
	errParseABI  error
)

// loadABI ensures the ABI is parsed exactly once.
func loadABI() (abi.ABI, error) {
	parseABIOnce.Do(func() {
		type hardhatArtifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		var artifact hardhatArtifact
		if err := json.Unmarshal(erc1271ABIJSON, &artifact); err != nil {
			errParseABI = fmt.Errorf("failed to unmarshal artifact JSON: %w", err)
			return
		}
		erc1271ABI, errParseABI = abi.JSON(strings.NewReader(string(artifact.ABI)))
	})
	return erc1271ABI, errParseABI
}

// RequireContract fails with ErrContractNotDeployed when account has no
// code at the latest block.
func RequireContract(ctx context.Context, p Provider, account common.Address) error {
	code, err := p.CodeAt(ctx, account, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch code of %s: %w", account.Hex(), err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: %s", ErrContractNotDeployed, strings.ToLower(account.Hex()))
	}
	return nil
}

// IsValidSignature calls isValidSignature(digest, signature) on contract
// and reports whether it answered with ERC1271MagicValue.
func IsValidSignature(ctx context.Context, p Provider, contract common.Address, digest common.Hash, signature []byte) (bool, error) {
	parsed, err := loadABI()
	if err != nil {
		return false, err
	}

	input, err := parsed.Pack(isValidSignatureMethod, [32]byte(digest), signature)
	if err != nil {
		return false, fmt.Errorf("failed to pack %s call: %w", isValidSignatureMethod, err)
	}

	output, err := p.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return false, fmt.Errorf("failed to call %s on %s: %w", isValidSignatureMethod, contract.Hex(), err)
	}

	values, err := parsed.Unpack(isValidSignatureMethod, output)
	if err != nil {
		return false, fmt.Errorf("failed to unpack %s result: %w", isValidSignatureMethod, err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("unexpected %s result length %d", isValidSignatureMethod, len(values))
	}

	magic := *abi.ConvertType(values[0], new([4]byte)).(*[4]byte)
	return magic == ERC1271MagicValue, nil
}

// PackMagicValue ABI encodes a bytes4 return value, as a contract would.
func PackMagicValue(value [4]byte) ([]byte, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	return parsed.Methods[isValidSignatureMethod].Outputs.Pack(value)
}
