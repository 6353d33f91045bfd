package blockchain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	code      map[common.Address][]byte
	codeErr   error
	codeCalls atomic.Int32
	codeDelay time.Duration
	result    []byte
	callErr   error
	lastCall  ethereum.CallMsg
}

func (f *fakeProvider) CodeAt(ctx context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	f.codeCalls.Add(1)
	if f.codeDelay > 0 {
		select {
		case <-time.After(f.codeDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.codeErr != nil {
		return nil, f.codeErr
	}
	return f.code[account], nil
}

func (f *fakeProvider) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastCall = call
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.result, nil
}

func TestSignatureHelpers(t *testing.T) {
	privateKey, err := ParsePrivateKey("0x8f49e4492f97ca6334e15117fc6c4c06f4652cac7fb27ed4ecc5ef9ea6ad5820")
	require.NoError(t, err)

	payload, err := hex.DecodeString("190059be1932048f76f9b0e8e5f6accf5fd8d53136dd4352454154455f44494436e4418dafb9d1e5fff7408f5a57981e240c8f8eac4885a9d09229dd2ea233cd385a3171e090790600111111111111111111111111111111111111111111111111111111111111111100000000000000000000000000000000000000000000000000000000693fd29b")
	require.NoError(t, err)

	hash := crypto.Keccak256(payload)
	raw, err := crypto.Sign(hash, privateKey)
	require.NoError(t, err)

	signature, err := NormalizeSignature(raw)
	require.NoError(t, err)
	assert.Equal(t, "3e094f865d21875ed2e72cee73d3524059b5685bd1583ec203acee97bcc69c251d8a5a841787cae95ec40f9a99ab19551ff5bf61220850b56064f8dae2ddf6261b", hex.EncodeToString(signature))
	assert.Less(t, raw[64], byte(27), "input must not be modified")

	recovered, err := RecoverAddress(hash, signature)
	require.NoError(t, err)
	assert.Equal(t, "0x36e4418dafb9d1e5fff7408f5a57981e240c8f8e", strings.ToLower(recovered.Hex()))

	recovered, err = RecoverAddress(hash, raw)
	require.NoError(t, err)
	assert.Equal(t, "0x36e4418dafb9d1e5fff7408f5a57981e240c8f8e", strings.ToLower(recovered.Hex()))
}

func TestSignatureHelpersErrors(t *testing.T) {
	_, err := NormalizeSignature(make([]byte, 64))
	assert.Error(t, err)

	_, err = RecoverableSignature(make([]byte, 66))
	assert.Error(t, err)

	bad := make([]byte, SignatureLength)
	bad[64] = 30
	_, err = RecoverableSignature(bad)
	assert.Error(t, err)

	_, err = ParsePrivateKey("0x")
	assert.Error(t, err)

	_, err = ParsePrivateKey("0xabc")
	assert.Error(t, err)
}

func TestRequireContract(t *testing.T) {
	wallet := common.HexToAddress("0x1111111111111111111111111111111111111111")
	provider := &fakeProvider{code: map[common.Address][]byte{wallet: {0x60, 0x80}}}

	assert.NoError(t, RequireContract(context.Background(), provider, wallet))

	err := RequireContract(context.Background(), provider, common.HexToAddress("0x2222222222222222222222222222222222222222"))
	assert.ErrorIs(t, err, ErrContractNotDeployed)

	provider.codeErr = errors.New("connection refused")
	err = RequireContract(context.Background(), provider, wallet)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrContractNotDeployed)
}

func TestIsValidSignature(t *testing.T) {
	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")
	digest := common.HexToHash("0xd584500cb197a42009398e33df6677a989e224115d9d6c2ebf093f8b5163c191")
	signature := []byte{0x01, 0x02, 0x03}

	magic, err := PackMagicValue(ERC1271MagicValue)
	require.NoError(t, err)
	assert.Equal(t, common.RightPadBytes([]byte{0x16, 0x26, 0xba, 0x7e}, 32), magic)

	rejected, err := PackMagicValue([4]byte{0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)

	tests := []struct {
		name    string
		result  []byte
		callErr error
		want    bool
		wantErr bool
	}{
		{name: "magic value", result: magic, want: true},
		{name: "other value", result: rejected, want: false},
		{name: "call reverted", callErr: errors.New("execution reverted"), wantErr: true},
		{name: "empty result", result: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{result: tt.result, callErr: tt.callErr}

			ok, err := IsValidSignature(context.Background(), provider, contract, digest, signature)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			require.NotNil(t, provider.lastCall.To)
			assert.Equal(t, contract, *provider.lastCall.To)
			// isValidSignature(bytes32,bytes) selector
			assert.Equal(t, []byte{0x16, 0x26, 0xba, 0x7e}, provider.lastCall.Data[:4])
			assert.Equal(t, digest.Bytes(), provider.lastCall.Data[4:36])
		})
	}
}

func TestCodeCache(t *testing.T) {
	deployed := common.HexToAddress("0x1111111111111111111111111111111111111111")
	empty := common.HexToAddress("0x2222222222222222222222222222222222222222")
	provider := &fakeProvider{code: map[common.Address][]byte{deployed: {0x60, 0x80}}}
	cache := NewCodeCache(provider)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := cache.CodeAt(ctx, deployed, nil)
			assert.NoError(t, err)
			assert.Equal(t, []byte{0x60, 0x80}, code)
		}()
	}
	wg.Wait()

	calls := provider.codeCalls.Load()
	_, err := cache.CodeAt(ctx, deployed, nil)
	require.NoError(t, err)
	assert.Equal(t, calls, provider.codeCalls.Load(), "deployed code must be served from cache")

	_, err = cache.CodeAt(ctx, empty, nil)
	require.NoError(t, err)
	_, err = cache.CodeAt(ctx, empty, nil)
	require.NoError(t, err)
	assert.Equal(t, calls+2, provider.codeCalls.Load(), "empty code must not be cached")

	_, err = cache.CodeAt(ctx, deployed, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, calls+3, provider.codeCalls.Load(), "historical lookups bypass the cache")
}

func TestCodeCacheIndependentCallers(t *testing.T) {
	deployed := common.HexToAddress("0x1111111111111111111111111111111111111111")
	provider := &fakeProvider{
		code:      map[common.Address][]byte{deployed: {0x60, 0x80}},
		codeDelay: 200 * time.Millisecond,
	}
	cache := NewCodeCache(provider)

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var (
		wg                sync.WaitGroup
		shortCode, code   []byte
		shortErr, longErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		shortCode, shortErr = cache.CodeAt(shortCtx, deployed, nil)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		code, longErr = cache.CodeAt(context.Background(), deployed, nil)
	}()
	wg.Wait()

	assert.ErrorIs(t, shortErr, context.DeadlineExceeded)
	assert.Nil(t, shortCode)
	require.NoError(t, longErr)
	assert.Equal(t, []byte{0x60, 0x80}, code)
	assert.Equal(t, int32(1), provider.codeCalls.Load())

	// The abandoned lookup still fills the cache.
	code, err := cache.CodeAt(context.Background(), deployed, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)
	assert.Equal(t, int32(1), provider.codeCalls.Load())
}
