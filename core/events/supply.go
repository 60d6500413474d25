package events

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/types"
)

const (
	// TypeTokenSupply is emitted whenever a token supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonSetBalance identifies supply changes made by balance overrides.
	SupplyReasonSetBalance = "set_balance"
)

// TokenSupply captures a supply change of a fungible token.
type TokenSupply struct {
	Token  common.Address
	Symbol string
	Total  *uint256.Int
	Prev   *uint256.Int
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
// The delta is signed.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{"token": e.Token.Hex()}
	symbol := strings.ToUpper(strings.TrimSpace(e.Symbol))
	if symbol == "" {
		symbol = "UNKNOWN"
	}
	attrs["symbol"] = symbol

	total := new(uint256.Int)
	if e.Total != nil {
		total.Set(e.Total)
	}
	attrs["total"] = total.Dec()

	if e.Prev != nil {
		if total.Lt(e.Prev) {
			attrs["delta"] = "-" + new(uint256.Int).Sub(e.Prev, total).Dec()
		} else {
			attrs["delta"] = new(uint256.Int).Sub(total, e.Prev).Dec()
		}
	}

	if reason := strings.TrimSpace(e.Reason); reason != "" {
		attrs["reason"] = reason
	}

	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
