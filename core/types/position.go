package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position mirrors the fields of a concentrated-liquidity position NFT that the
// farm relies on. Liquidity is a uint128 quantity carried in a uint256.
type Position struct {
	Token0    common.Address
	Token1    common.Address
	Fee       uint32
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Liquidity != nil {
		clone.Liquidity = new(uint256.Int).Set(p.Liquidity)
	}
	return &clone
}

// HasToken reports whether addr is one side of the pair.
func (p *Position) HasToken(addr common.Address) bool {
	if p == nil {
		return false
	}
	return p.Token0 == addr || p.Token1 == addr
}
