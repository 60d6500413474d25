package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"seasonfarm/core/types"
)

const (
	// TypePositionMinted is emitted whenever a position token is created.
	TypePositionMinted = "position.minted"
)

type PositionMinted struct {
	TokenID  uint64
	Owner    common.Address
	Position *types.Position
}

func (PositionMinted) EventType() string { return TypePositionMinted }

func (e PositionMinted) Event() *types.Event {
	attrs := map[string]string{
		"tokenId": strconv.FormatUint(e.TokenID, 10),
		"owner":   e.Owner.Hex(),
	}
	if pos := e.Position; pos != nil {
		attrs["token0"] = pos.Token0.Hex()
		attrs["token1"] = pos.Token1.Hex()
		attrs["fee"] = strconv.FormatUint(uint64(pos.Fee), 10)
		attrs["tickLower"] = strconv.FormatInt(int64(pos.TickLower), 10)
		attrs["tickUpper"] = strconv.FormatInt(int64(pos.TickUpper), 10)
		if pos.Liquidity != nil {
			attrs["liquidity"] = pos.Liquidity.Dec()
		}
	}
	return &types.Event{Type: TypePositionMinted, Attributes: attrs}
}
