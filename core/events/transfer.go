package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/types"
)

const (
	// TypeTokenTransfer is emitted whenever fungible balances move.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when a fungible allowance is set.
	TypeTokenApproval = "token.approval"
	// TypePositionTransfer is emitted when a position token changes owner.
	TypePositionTransfer = "position.transfer"
	// TypePositionApproval is emitted when an operator is approved for a position.
	TypePositionApproval = "position.approval"
)

type TokenTransfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"token":  e.Token.Hex(),
			"from":   e.From.Hex(),
			"to":     e.To.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

type TokenApproval struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

func (TokenApproval) EventType() string { return TypeTokenApproval }

func (e TokenApproval) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"token":   e.Token.Hex(),
			"owner":   e.Owner.Hex(),
			"spender": e.Spender.Hex(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

type PositionTransfer struct {
	TokenID uint64
	From    common.Address
	To      common.Address
}

func (PositionTransfer) EventType() string { return TypePositionTransfer }

func (e PositionTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypePositionTransfer,
		Attributes: map[string]string{
			"tokenId": strconv.FormatUint(e.TokenID, 10),
			"from":    e.From.Hex(),
			"to":      e.To.Hex(),
		},
	}
}

type PositionApproval struct {
	TokenID  uint64
	Owner    common.Address
	Operator common.Address
}

func (PositionApproval) EventType() string { return TypePositionApproval }

func (e PositionApproval) Event() *types.Event {
	return &types.Event{
		Type: TypePositionApproval,
		Attributes: map[string]string{
			"tokenId":  strconv.FormatUint(e.TokenID, 10),
			"owner":    e.Owner.Hex(),
			"operator": e.Operator.Hex(),
		},
	}
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
