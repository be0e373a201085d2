package coin

import (
	"fmt"
	"regexp"

	"github.com/iov-one/cosign/errors"
	"github.com/shopspring/decimal"
)

//-------------- Coin -----------------------

// IsDenom is the RegExp to ensure valid denominations, as accepted by Cosmos
// SDK based chains (uatom, ibc/27394FB0..., factory/osmo1.../token).
var IsDenom = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{2,127}$`).MatchString

// Coin is an amount of a single denomination. The amount is an arbitrary
// precision integer, kept as a string the way the chain encodes it.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// NewCoin creates a new coin object
func NewCoin(amount int64, denom string) Coin {
	return Coin{
		Denom:  denom,
		Amount: decimal.NewFromInt(amount).String(),
	}
}

// ID returns a coin denomination.
func (c Coin) ID() string {
	return c.Denom
}

// Validate ensures that the denomination is well formed and that the amount
// is a non negative integer.
func (c Coin) Validate() error {
	if !IsDenom(c.Denom) {
		return errors.Wrapf(errors.ErrInput, "invalid denomination %q", c.Denom)
	}
	d, err := c.decimal()
	if err != nil {
		return err
	}
	if d.IsNegative() {
		return errors.Wrap(errors.ErrInput, "negative amount")
	}
	return nil
}

// IsZero returns true if the amount is zero.
func (c Coin) IsZero() bool {
	d, err := c.decimal()
	return err == nil && d.IsZero()
}

// IsGTE returns true if c is of the same denomination as o and is at least as
// big.
func (c Coin) IsGTE(o Coin) bool {
	if c.Denom != o.Denom {
		return false
	}
	a, err := c.decimal()
	if err != nil {
		return false
	}
	b, err := o.decimal()
	if err != nil {
		return false
	}
	return a.GreaterThanOrEqual(b)
}

// Add sums two coins of the same denomination.
func (c Coin) Add(o Coin) (Coin, error) {
	if c.Denom != o.Denom {
		return Coin{}, errors.Wrapf(errors.ErrType, "cannot add %s to %s", o.Denom, c.Denom)
	}
	a, err := c.decimal()
	if err != nil {
		return Coin{}, err
	}
	b, err := o.decimal()
	if err != nil {
		return Coin{}, err
	}
	return Coin{Denom: c.Denom, Amount: a.Add(b).String()}, nil
}

func (c Coin) decimal() (decimal.Decimal, error) {
	if c.Amount == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(c.Amount)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrInput, "amount %q", c.Amount)
	}
	if !d.IsInteger() {
		return decimal.Zero, errors.Wrapf(errors.ErrInput, "amount %q must be an integer", c.Amount)
	}
	return d, nil
}

// String returns the chain representation, for example 2500uatom.
func (c Coin) String() string {
	amount := c.Amount
	if amount == "" {
		amount = "0"
	}
	return fmt.Sprintf("%s%s", amount, c.Denom)
}
