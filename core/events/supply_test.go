package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/types"
)

var springToken = common.HexToAddress("0x0000000000000000000000000000000000000001")

func TestTokenSupplyEvent(t *testing.T) {
	evt := TokenSupply{
		Token:  springToken,
		Symbol: "spring",
		Total:  uint256.NewInt(5000),
		Prev:   uint256.NewInt(4750),
		Reason: SupplyReasonSetBalance,
	}.Event()
	if evt == nil {
		t.Fatalf("expected event")
	}
	if evt.Type != TypeTokenSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["symbol"] != "SPRING" {
		t.Fatalf("unexpected symbol attr: %s", evt.Attributes["symbol"])
	}
	if evt.Attributes["total"] != "5000" || evt.Attributes["delta"] != "250" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["reason"] != SupplyReasonSetBalance {
		t.Fatalf("unexpected reason: %s", evt.Attributes["reason"])
	}
}

func TestTokenSupplyEventNegativeDelta(t *testing.T) {
	evt := TokenSupply{Token: springToken, Total: uint256.NewInt(10), Prev: uint256.NewInt(60)}.Event()
	if evt.Attributes["delta"] != "-50" {
		t.Fatalf("unexpected delta: %s", evt.Attributes["delta"])
	}
	if evt.Attributes["symbol"] != "UNKNOWN" {
		t.Fatalf("unexpected symbol: %s", evt.Attributes["symbol"])
	}
	if _, ok := evt.Attributes["reason"]; ok {
		t.Fatalf("reason should be omitted")
	}
}

func TestTransferEvents(t *testing.T) {
	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	transfer := TokenTransfer{Token: springToken, From: alice, To: bob}.Event()
	if transfer.Type != TypeTokenTransfer || transfer.Attributes["amount"] != "0" {
		t.Fatalf("unexpected transfer: %+v", transfer)
	}
	if transfer.Attributes["to"] != bob.Hex() {
		t.Fatalf("unexpected recipient: %s", transfer.Attributes["to"])
	}

	moved := PositionTransfer{TokenID: 7, From: alice, To: bob}.Event()
	if moved.Type != TypePositionTransfer || moved.Attributes["tokenId"] != "7" {
		t.Fatalf("unexpected position transfer: %+v", moved)
	}

	minted := PositionMinted{TokenID: 3, Owner: alice, Position: &types.Position{
		Token0:    springToken,
		Token1:    bob,
		Fee:       100,
		TickLower: -887272,
		TickUpper: 887272,
		Liquidity: uint256.NewInt(42),
	}}.Event()
	if minted.Attributes["tickLower"] != "-887272" || minted.Attributes["liquidity"] != "42" {
		t.Fatalf("unexpected mint attrs: %+v", minted.Attributes)
	}
}
