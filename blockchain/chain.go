// Package blockchain holds the chain access used to validate proofs signed
// by smart contract accounts, together with the signature helpers shared by
// signers and validators.
package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

// DefaultRPCTimeout bounds every JSON-RPC round trip made through Dial.
const DefaultRPCTimeout = 10 * time.Second

// Provider is the read-only chain access needed to validate contract
// account proofs. *ethclient.Client satisfies it.
type Provider interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to an Ethereum JSON-RPC endpoint. HTTP endpoints go through
// an otelhttp transport with DefaultRPCTimeout.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	httpClient := &http.Client{
		Timeout:   DefaultRPCTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	rpcClient, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	return ethclient.NewClient(rpcClient), nil
}

// CodeCache wraps a Provider and remembers deployed bytecode at the latest
// block. Concurrent lookups of the same account share one request. Empty
// code is never cached, so a counterfactual wallet becomes visible as soon
// as it is deployed.
type CodeCache struct {
	Provider

	group singleflight.Group
	mu    sync.RWMutex
	code  map[common.Address][]byte
}

// NewCodeCache returns a CodeCache in front of p.
func NewCodeCache(p Provider) *CodeCache {
	return &CodeCache{
		Provider: p,
		code:     make(map[common.Address][]byte),
	}
}

// CodeAt returns the code of account. Requests for a specific block bypass
// the cache.
func (c *CodeCache) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if blockNumber != nil {
		return c.Provider.CodeAt(ctx, account, blockNumber)
	}

	c.mu.RLock()
	code, ok := c.code[account]
	c.mu.RUnlock()
	if ok {
		return code, nil
	}

	// The shared lookup outlives any single caller: it runs detached from
	// the first caller's cancellation, bounded by DefaultRPCTimeout, and
	// each caller waits only as long as its own ctx allows.
	ch := c.group.DoChan(account.Hex(), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultRPCTimeout)
		defer cancel()

		code, err := c.Provider.CodeAt(lookupCtx, account, nil)
		if err != nil {
			return nil, err
		}
		if len(code) > 0 {
			c.mu.Lock()
			c.code[account] = code
			c.mu.Unlock()
		}
		return code, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		code, _ = res.Val.([]byte)
		return code, nil
	}
}
