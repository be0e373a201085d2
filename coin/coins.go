package coin

import (
	"sort"
	"strings"

	"github.com/iov-one/cosign/errors"
)

// Coins is a set of coins, at most one per denomination.
type Coins []Coin

// Validate requires every coin to be valid and every denomination to be
// unique.
func (cs Coins) Validate() error {
	seen := make(map[string]struct{}, len(cs))
	for i, c := range cs {
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "coin %d", i)
		}
		if _, ok := seen[c.Denom]; ok {
			return errors.Wrapf(errors.ErrDuplicate, "denomination %s", c.Denom)
		}
		seen[c.Denom] = struct{}{}
	}
	return nil
}

// Normalize returns a copy with coins of the same denomination combined,
// zero amounts dropped and the result sorted by denomination, which is the
// order the chain requires in a fee.
func (cs Coins) Normalize() (Coins, error) {
	byDenom := make(map[string]Coin, len(cs))
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		prev, ok := byDenom[c.Denom]
		if !ok {
			byDenom[c.Denom] = c
			continue
		}
		sum, err := prev.Add(c)
		if err != nil {
			return nil, err
		}
		byDenom[c.Denom] = sum
	}

	res := make(Coins, 0, len(byDenom))
	for _, c := range byDenom {
		if c.IsZero() {
			continue
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Denom < res[j].Denom })
	return res, nil
}

// Clone returns a copy that shares no memory with cs.
func (cs Coins) Clone() Coins {
	if cs == nil {
		return nil
	}
	res := make(Coins, len(cs))
	copy(res, cs)
	return res
}

// String returns the chain representation, for example 2500uatom,10ustake.
func (cs Coins) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
