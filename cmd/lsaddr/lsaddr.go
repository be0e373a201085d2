package main

import (
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/x/multisig"
)

func main() {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	thresholdFl := fl.Int("threshold", 1, "Number of members that must sign.")
	prefixFl := fl.String("prefix", "cosmos", "Bech32 prefix of the chain.")
	sortFl := fl.Bool("sort", false, "Order keys by member address before deriving.")
	headerFl := fl.Bool("header", true, "Display header")
	fl.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage:
	%s [options] <pubkey> [<pubkey>...]

Print the address of a multisig account and of all its members.

Public keys are compressed secp256k1 keys, hex or base64 encoded. The order
of keys matters: the same keys in a different order give a different
address.

`, os.Args[0])
		fl.PrintDefaults()
	}
	fl.Parse(os.Args[1:])

	if fl.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "At least one public key is required.")
		os.Exit(2)
	}

	pubkeys, err := decodePubKeys(fl.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}
	if err := printAddresses(os.Stdout, pubkeys, *thresholdFl, *prefixFl, *sortFl, *headerFl); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// decodePubKeys accepts hex first, because every hex string of a
// compressed key is also valid base64.
func decodePubKeys(args []string) ([][]byte, error) {
	res := make([][]byte, 0, len(args))
	for i, a := range args {
		if raw, err := hex.DecodeString(a); err == nil {
			res = append(res, raw)
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(a)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidPublicKey, "key %d is neither hex nor base64", i)
		}
		res = append(res, raw)
	}
	return res, nil
}

func printAddresses(out io.Writer, pubkeys [][]byte, threshold int, prefix string, sortKeys, header bool) error {
	if sortKeys {
		sorted, err := multisig.SortPubKeys(pubkeys)
		if err != nil {
			return err
		}
		pubkeys = sorted
	}
	_, address, err := multisig.Derive(pubkeys, threshold, prefix)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
	defer w.Flush()

	if header {
		fmt.Fprintln(w, "index\taddress\tpubkey")
	}
	for i, pk := range pubkeys {
		raw, err := multisig.MemberAddress(pk)
		if err != nil {
			return err
		}
		a, err := raw.Bech32(prefix)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%X\n", i, a, pk)
	}
	fmt.Fprintf(w, "%d/%d\t%s\t\n", threshold, len(pubkeys), address)
	return nil
}
