package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	ethauth "github.com/pilacorp/go-ethauth"
	"github.com/pilacorp/go-ethauth/blockchain"
	"github.com/pilacorp/go-ethauth/config"
	"github.com/pilacorp/go-ethauth/signer"
)

type keyPair struct {
	Address    string `yaml:"address"`
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
}

func runKeygen(args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	key := priv.ToECDSA()

	return writeYAML(stdout, keyPair{
		Address:    strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
		PublicKey:  hexutil.Encode(priv.PubKey().SerializeCompressed()),
		PrivateKey: hexutil.Encode(priv.Serialize()),
	})
}

func runEncode(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	cfg := config.Load()

	var (
		key       string
		remoteURL string
		apiKey    string
		address   string
		app       string
		nonce     uint64
		typ       string
		origin    string
		extra     string
	)

	flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	flagSet.StringVar(&key, "key", "", "hex private key of the signing account")
	flagSet.StringVar(&remoteURL, "remote-signer", "", "sign through a remote signer endpoint instead of --key")
	flagSet.StringVar(&apiKey, "api-key", "", "API key sent to the remote signer")
	flagSet.StringVar(&address, "address", "", "account address; required with --remote-signer")
	flagSet.StringVar(&app, "app", cfg.App, "application name claim")
	ttl := flagSet.Duration("ttl", cfg.TokenTTL, "token lifetime")
	flagSet.Uint64Var(&nonce, "nonce", 0, "nonce claim")
	flagSet.StringVar(&typ, "typ", "", "type claim")
	flagSet.StringVar(&origin, "origin", "", "origin claim")
	flagSet.StringVar(&extra, "extra", "", "0x hex data appended to the proof")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	var s signer.SignerProvider
	switch {
	case remoteURL != "":
		remote, err := signer.NewRemoteSigner(remoteURL, apiKey, address)
		if err != nil {
			return err
		}
		s = remote
	case key != "":
		local, err := signer.NewDefaultProvider(key)
		if err != nil {
			return err
		}
		s = local
	default:
		return fmt.Errorf("one of --key or --remote-signer is required")
	}

	proof := ethauth.NewProof()
	proof.Address = address
	proof.Claims.App = app
	proof.Claims.Nonce = nonce
	proof.Claims.Type = typ
	proof.Claims.Origin = origin
	proof.Extra = extra
	proof.SetIssuedAtNow()
	proof.SetExpiryIn(*ttl)

	if err := proof.SignWith(s); err != nil {
		return err
	}

	auth, err := ethauth.New(ethauth.WithLogger(logger))
	if err != nil {
		return err
	}

	encoded, err := auth.EncodeProof(ctx, proof)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, encoded)
	return err
}

func runDecode(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	cfg := config.Load()

	var (
		rpcURL        string
		chainID       int64
		skipSignature bool
	)

	flagSet := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	flagSet.StringVar(&rpcURL, "rpc", cfg.RPC, "JSON-RPC endpoint used to validate contract account proofs")
	flagSet.Int64Var(&chainID, "chain-id", cfg.ChainID, "chain id of --rpc; looked up with net_version when zero")
	flagSet.BoolVar(&skipSignature, "skip-signature", false, "validate the claims only")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("expected exactly one proof argument, got %d", flagSet.NArg())
	}

	auth, err := newAuth(ctx, rpcURL, chainID, logger)
	if err != nil {
		return err
	}
	defer auth.Close()

	var opts []ethauth.ProofOption
	if skipSignature {
		opts = append(opts, ethauth.WithSkipSignatureValidation())
	}

	proof, err := auth.DecodeProof(ctx, strings.TrimSpace(flagSet.Arg(0)), opts...)
	if err != nil {
		return err
	}
	return writeYAML(stdout, proof)
}

func newAuth(ctx context.Context, rpcURL string, chainID int64, logger *slog.Logger) (*ethauth.ETHAuth, error) {
	if rpcURL == "" {
		return ethauth.New(ethauth.WithLogger(logger))
	}

	if chainID > 0 {
		client, err := blockchain.Dial(ctx, rpcURL)
		if err != nil {
			return nil, err
		}
		return ethauth.New(
			ethauth.WithLogger(logger),
			ethauth.WithProvider(blockchain.NewCodeCache(client), big.NewInt(chainID)),
		)
	}

	auth, err := ethauth.New(ethauth.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := auth.ConfigJSONRPCProvider(ctx, rpcURL); err != nil {
		return nil, err
	}
	return auth, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}
