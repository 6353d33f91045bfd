// ethauth creates and inspects ETHAuth proofs from the command line.
//
//	ethauth keygen
//	ethauth encode --key <hex> [--app name] [--ttl 24h] [--nonce n] [--typ t] [--origin o] [--extra 0x..]
//	ethauth decode [--rpc url] [--chain-id id] [--skip-signature] <proof>
//
// Defaults come from ETHAUTH_RPC_URL, ETHAUTH_CHAIN_ID, ETHAUTH_APP and
// ETHAUTH_TOKEN_TTL.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if len(args) == 0 {
		printUsage(stderr)
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout)
	case "encode":
		return runEncode(ctx, args[1:], stdout, logger)
	case "decode":
		return runDecode(ctx, args[1:], stdout, logger)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: ethauth <command> [flags]

Commands:
  keygen   generate a private key and print it with its address
  encode   sign a new proof and print its string form
  decode   validate a proof string and print its contents
`)
}
