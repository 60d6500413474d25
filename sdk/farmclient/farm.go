package farmclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"seasonfarm/rpc"
)

type params map[string]interface{}

// write adds the configured caller to the parameters of a state changing call.
func (c *Client) write(p params) params {
	if c.caller != "" {
		p["caller"] = c.caller
	}
	return p
}

// Constants returns the protocol parameters and deployment addresses.
func (c *Client) Constants(ctx context.Context) (*rpc.ConstantsResult, error) {
	var out rpc.ConstantsResult
	if err := c.call(ctx, "farm_constants", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllocationSizes returns the current season weights.
func (c *Client) AllocationSizes(ctx context.Context) (*rpc.AllocationSizesResult, error) {
	var out rpc.AllocationSizesResult
	if err := c.call(ctx, "farm_allocationSizes", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NumberOfReAllocations(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.call(ctx, "farm_numberOfReAllocations", nil, &out)
	return out, err
}

// EffectiveTotalAllocationSize sums the weights of the flagged seasons.
func (c *Client) EffectiveTotalAllocationSize(ctx context.Context, spring, summer, autumn, winter bool) (uint64, error) {
	var out uint64
	err := c.call(ctx, "farm_getEffectiveTotalAllocationSize", params{
		"spring": spring, "summer": summer, "autumn": autumn, "winter": winter,
	}, &out)
	return out, err
}

// CumulativeTokensFarmed returns the Q128 accumulator of a pair and season
// token as a decimal string.
func (c *Client) CumulativeTokensFarmed(ctx context.Context, pairToken, seasonToken common.Address) (string, error) {
	var out string
	err := c.call(ctx, "farm_cumulativeTokensFarmedPerUnitLiquidity", params{
		"pairToken": pairToken.Hex(), "seasonToken": seasonToken.Hex(),
	}, &out)
	return out, err
}

func (c *Client) PayoutSizes(ctx context.Context, tokenID uint64) (*rpc.SeasonAmounts, error) {
	var out rpc.SeasonAmounts
	if err := c.call(ctx, "farm_getPayoutSizes", params{"tokenId": tokenID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LiquidityToken(ctx context.Context, tokenID uint64) (*rpc.LiquidityTokenResult, error) {
	var out rpc.LiquidityTokenResult
	if err := c.call(ctx, "farm_liquidityToken", params{"tokenId": tokenID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NextWithdrawalTime(ctx context.Context, tokenID uint64) (uint64, error) {
	var out uint64
	err := c.call(ctx, "farm_nextWithdrawalTime", params{"tokenId": tokenID}, &out)
	return out, err
}

// BalanceOf returns how many deposited tokens owner holds in the farm.
func (c *Client) BalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	var out uint64
	err := c.call(ctx, "farm_balanceOf", params{"owner": owner.Hex()}, &out)
	return out, err
}

func (c *Client) TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index uint64) (uint64, error) {
	var out uint64
	err := c.call(ctx, "farm_tokenOfOwnerByIndex", params{"owner": owner.Hex(), "index": index}, &out)
	return out, err
}

// TokensOf enumerates every token owner has deposited.
func (c *Client) TokensOf(ctx context.Context, owner common.Address) ([]uint64, error) {
	count, err := c.BalanceOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		id, err := c.TokenOfOwnerByIndex(ctx, owner, i)
		if err != nil {
			return nil, fmt.Errorf("farmclient: token %d of %s: %w", i, owner.Hex(), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Donate sends amount base units of a season token to the farm. The farm
// must have been approved for at least amount.
func (c *Client) Donate(ctx context.Context, token common.Address, amount string) (*rpc.TxResult, error) {
	var out rpc.TxResult
	if err := c.call(ctx, "farm_receiveSeasonalTokens", c.write(params{
		"token": token.Hex(), "amount": amount,
	}), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Harvest(ctx context.Context, tokenID uint64) (*rpc.TxResult, error) {
	var out rpc.TxResult
	if err := c.call(ctx, "farm_harvest", c.write(params{"tokenId": tokenID}), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Withdraw(ctx context.Context, tokenID uint64) (*rpc.TxResult, error) {
	var out rpc.TxResult
	if err := c.call(ctx, "farm_withdraw", c.write(params{"tokenId": tokenID}), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deposit transfers a position token to the farm.
func (c *Client) Deposit(ctx context.Context, farm common.Address, tokenID uint64) (*rpc.TxResult, error) {
	return c.SafeTransferPosition(ctx, farm, tokenID)
}
