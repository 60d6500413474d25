package farm

import (
	"math/big"

	"github.com/holiman/uint256"
)

// q128 is the fixed point scale of the cumulative accumulators (UQ128x128).
var q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

// mulDiv computes floor(x*y/d) with a 512-bit intermediate product.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrOverflow
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func fromBig(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, errCorruptRecord
	}
	return out, nil
}

func zeroAmounts() [NumSeasons]*uint256.Int {
	var out [NumSeasons]*uint256.Int
	for i := range out {
		out[i] = new(uint256.Int)
	}
	return out
}
