package rpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/native/farm"
)

// SeasonAmounts carries one base-unit amount per season token.
type SeasonAmounts struct {
	Spring string `json:"spring"`
	Summer string `json:"summer"`
	Autumn string `json:"autumn"`
	Winter string `json:"winter"`
}

func seasonAmountsFrom(values [farm.NumSeasons]*uint256.Int) SeasonAmounts {
	dec := func(v *uint256.Int) string {
		if v == nil {
			return "0"
		}
		return v.Dec()
	}
	return SeasonAmounts{
		Spring: dec(values[farm.Spring]),
		Summer: dec(values[farm.Summer]),
		Autumn: dec(values[farm.Autumn]),
		Winter: dec(values[farm.Winter]),
	}
}

// AllocationSizesResult reports the current season weights.
type AllocationSizesResult struct {
	Spring uint64 `json:"spring"`
	Summer uint64 `json:"summer"`
	Autumn uint64 `json:"autumn"`
	Winter uint64 `json:"winter"`
}

// LiquidityTokenResult describes a deposited position.
type LiquidityTokenResult struct {
	TokenID             uint64 `json:"tokenId"`
	Owner               string `json:"owner"`
	TradingPairToken    string `json:"tradingPairToken"`
	Season              string `json:"season"`
	DepositTime         uint64 `json:"depositTime"`
	Liquidity           string `json:"liquidity"`
	NextWithdrawalTime  uint64 `json:"nextWithdrawalTime"`
	WithdrawalAvailable bool   `json:"withdrawalAvailable"`
}

// ConstantsResult exposes the protocol parameters and deployment addresses.
type ConstantsResult struct {
	ReallocationInterval      uint64       `json:"reallocationInterval"`
	WithdrawalUnavailableDays uint64       `json:"withdrawalUnavailableDays"`
	WithdrawalAvailableDays   uint64       `json:"withdrawalAvailableDays"`
	RequiredFee               uint32       `json:"requiredFee"`
	MinTick                   int32        `json:"minTick"`
	MaxTick                   int32        `json:"maxTick"`
	BaseAllocations           [4]uint64    `json:"baseAllocations"`
	StartTime                 uint64       `json:"startTime"`
	Farm                      string       `json:"farm"`
	PositionManager           string       `json:"positionManager"`
	WrappedNative             string       `json:"wrappedNative"`
	SeasonTokens              SeasonTokens `json:"seasonTokens"`
}

// SeasonTokens lists the token address of each season.
type SeasonTokens struct {
	Spring string `json:"spring"`
	Summer string `json:"summer"`
	Autumn string `json:"autumn"`
	Winter string `json:"winter"`
}

// PositionResult mirrors a position held by the position manager.
type PositionResult struct {
	TokenID   uint64 `json:"tokenId"`
	Owner     string `json:"owner"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Fee       uint32 `json:"fee"`
	TickLower int32  `json:"tickLower"`
	TickUpper int32  `json:"tickUpper"`
	Liquidity string `json:"liquidity"`
}

// TxResult acknowledges a committed state change.
type TxResult struct {
	Success bool   `json:"success"`
	Caller  string `json:"caller"`
	Time    uint64 `json:"time"`
}

// MintResult returns the id of a newly minted position.
type MintResult struct {
	TokenID uint64 `json:"tokenId"`
}

func invalidParams(message string) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message}
}

// decodeParams unmarshals the single object parameter of a call.
func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return invalidParams("expected a single params object")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, invalidParams(fmt.Sprintf("%s: invalid address %q", field, raw))
	}
	return common.HexToAddress(trimmed), nil
}

// parseAmount accepts base-unit amounts as decimal or 0x-prefixed hex strings.
func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams(field + " required")
	}
	var (
		value *uint256.Int
		err   error
	)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		value, err = uint256.FromHex(trimmed)
	} else {
		value, err = uint256.FromDecimal(trimmed)
	}
	if err != nil {
		return nil, invalidParams(fmt.Sprintf("%s: invalid amount %q", field, raw))
	}
	return value, nil
}

func requireTokenID(id *uint64) (uint64, error) {
	if id == nil {
		return 0, invalidParams("tokenId required")
	}
	return *id, nil
}
