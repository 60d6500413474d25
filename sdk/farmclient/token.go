package farmclient

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"seasonfarm/core/types"
	"seasonfarm/rpc"
)

func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (string, error) {
	var out string
	err := c.call(ctx, "token_balanceOf", params{"token": token.Hex(), "owner": owner.Hex()}, &out)
	return out, err
}

func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (string, error) {
	var out string
	err := c.call(ctx, "token_allowance", params{
		"token": token.Hex(), "owner": owner.Hex(), "spender": spender.Hex(),
	}, &out)
	return out, err
}

func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount string) (*rpc.TxResult, error) {
	var out rpc.TxResult
	if err := c.call(ctx, "token_approve", c.write(params{
		"token": token.Hex(), "spender": spender.Hex(), "amount": amount,
	}), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transfer(ctx context.Context, token, to common.Address, amount string) (*rpc.TxResult, error) {
	var out rpc.TxResult
	if err := c.call(ctx, "token_transfer", c.write(params{
		"token": token.Hex(), "to": to.Hex(), "amount": amount,
	}), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Position(ctx context.Context, tokenID uint64) (*rpc.PositionResult, error) {
	var out rpc.PositionResult
	if err := c.call(ctx, "position_get", params{"tokenId": tokenID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	var out string
	if err := c.call(ctx, "position_ownerOf", params{"tokenId": tokenID}, &out); err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(out), nil
}

// SafeTransferPosition moves a position token owned by the caller.
func (c *Client) SafeTransferPosition(ctx context.Context, to common.Address, tokenID uint64) (*rpc.TxResult, error) {
	var out rpc.TxResult
	if err := c.call(ctx, "position_safeTransferFrom", c.write(params{
		"to": to.Hex(), "tokenId": tokenID,
	}), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DevSetBalance overwrites a token balance on a development node.
func (c *Client) DevSetBalance(ctx context.Context, token, owner common.Address, amount string) error {
	return c.call(ctx, "dev_setBalance", params{
		"token": token.Hex(), "owner": owner.Hex(), "amount": amount,
	}, nil)
}

// DevMintPosition creates a position token on a development node.
func (c *Client) DevMintPosition(ctx context.Context, owner common.Address, pos *types.Position) (uint64, error) {
	var out rpc.MintResult
	err := c.call(ctx, "dev_mintPosition", params{
		"owner":     owner.Hex(),
		"token0":    pos.Token0.Hex(),
		"token1":    pos.Token1.Hex(),
		"fee":       pos.Fee,
		"tickLower": pos.TickLower,
		"tickUpper": pos.TickUpper,
		"liquidity": pos.Liquidity.Dec(),
	}, &out)
	return out.TokenID, err
}

// DevIncreaseTime advances the node clock and returns the new block time.
func (c *Client) DevIncreaseTime(ctx context.Context, seconds uint64) (uint64, error) {
	var out uint64
	err := c.call(ctx, "dev_increaseTime", params{"seconds": seconds}, &out)
	return out, err
}

func (c *Client) DevTime(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.call(ctx, "dev_time", nil, &out)
	return out, err
}
