package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/types"
	"seasonfarm/native/farm"
	"seasonfarm/rpc"
	"seasonfarm/sdk/farmclient"
)

func commands() map[string]command {
	return map[string]command{
		"constants":   {usage: "", run: runConstants},
		"allocations": {usage: "", run: runAllocations},
		"position":    {usage: "<tokenId>", run: runPosition},
		"positions":   {usage: "[owner]", run: runPositions},
		"balance":     {usage: "<token> [owner]", run: runBalance},
		"approve":     {usage: "<token> <amount>", run: runApprove},
		"donate":      {usage: "<token> <amount>", run: runDonate},
		"deposit":     {usage: "<tokenId>", run: runDeposit},
		"harvest":     {usage: "<tokenId>", run: runHarvest},
		"withdraw":    {usage: "<tokenId>", run: runWithdraw},
		"dev-fund":    {usage: "<token> <owner> <amount>", run: runDevFund},
		"dev-mint":    {usage: "<season> <liquidity> [owner]", run: runDevMint},
		"dev-advance": {usage: "<duration>", run: runDevAdvance},
		"time":        {usage: "", run: runTime},
	}
}

// resolveToken accepts a season name, "weth" or a token address.
func (e *cliEnv) resolveToken(ctx context.Context, raw string) (common.Address, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if common.IsHexAddress(name) {
		return common.HexToAddress(name), nil
	}
	constants, err := e.client.Constants(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if name == "weth" {
		return common.HexToAddress(constants.WrappedNative), nil
	}
	season, err := farm.ParseSeason(name)
	if err != nil {
		return common.Address{}, fmt.Errorf("unknown token %q", raw)
	}
	return common.HexToAddress(seasonTokenAddress(constants.SeasonTokens, season)), nil
}

func seasonTokenAddress(tokens rpc.SeasonTokens, season farm.Season) string {
	switch season {
	case farm.Spring:
		return tokens.Spring
	case farm.Summer:
		return tokens.Summer
	case farm.Autumn:
		return tokens.Autumn
	default:
		return tokens.Winter
	}
}

func (e *cliEnv) requireCaller() error {
	if e.caller == (common.Address{}) {
		return fmt.Errorf("-from is required for this command")
	}
	return nil
}

func (e *cliEnv) ownerArg(args []string, idx int) (common.Address, error) {
	if len(args) > idx {
		return parseAddress(args[idx])
	}
	if err := e.requireCaller(); err != nil {
		return common.Address{}, err
	}
	return e.caller, nil
}

func parseTokenID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token id %q", raw)
	}
	return id, nil
}

func humanAmounts(in rpc.SeasonAmounts) (rpc.SeasonAmounts, error) {
	out := rpc.SeasonAmounts{}
	fields := []struct {
		src string
		dst *string
	}{
		{in.Spring, &out.Spring},
		{in.Summer, &out.Summer},
		{in.Autumn, &out.Autumn},
		{in.Winter, &out.Winter},
	}
	for _, f := range fields {
		human, err := farmclient.FormatAmount(f.src, farmclient.TokenDecimals)
		if err != nil {
			return out, err
		}
		*f.dst = human
	}
	return out, nil
}

func runConstants(ctx context.Context, env *cliEnv, _ []string) error {
	constants, err := env.client.Constants(ctx)
	if err != nil {
		return err
	}
	return env.print(constants)
}

func runAllocations(ctx context.Context, env *cliEnv, _ []string) error {
	sizes, err := env.client.AllocationSizes(ctx)
	if err != nil {
		return err
	}
	reallocations, err := env.client.NumberOfReAllocations(ctx)
	if err != nil {
		return err
	}
	return env.print(map[string]interface{}{
		"allocationSizes":       sizes,
		"numberOfReAllocations": reallocations,
	})
}

func runPosition(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := parseTokenID(args[0])
	if err != nil {
		return err
	}
	info, err := env.client.LiquidityToken(ctx, id)
	if err != nil {
		return err
	}
	payouts, err := env.client.PayoutSizes(ctx, id)
	if err != nil {
		return err
	}
	human, err := humanAmounts(*payouts)
	if err != nil {
		return err
	}
	return env.print(map[string]interface{}{
		"position": info,
		"payouts":  human,
	})
}

func runPositions(ctx context.Context, env *cliEnv, args []string) error {
	owner, err := env.ownerArg(args, 0)
	if err != nil {
		return err
	}
	ids, err := env.client.TokensOf(ctx, owner)
	if err != nil {
		return err
	}
	return env.print(map[string]interface{}{"owner": owner.Hex(), "tokenIds": ids})
}

func runBalance(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	token, err := env.resolveToken(ctx, args[0])
	if err != nil {
		return err
	}
	owner, err := env.ownerArg(args, 1)
	if err != nil {
		return err
	}
	raw, err := env.client.TokenBalance(ctx, token, owner)
	if err != nil {
		return err
	}
	human, err := farmclient.FormatAmount(raw, farmclient.TokenDecimals)
	if err != nil {
		return err
	}
	return env.print(map[string]string{"token": token.Hex(), "owner": owner.Hex(), "balance": human})
}

func (e *cliEnv) farmAddress(ctx context.Context) (common.Address, error) {
	constants, err := e.client.Constants(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(constants.Farm), nil
}

func runApprove(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := env.requireCaller(); err != nil {
		return err
	}
	token, err := env.resolveToken(ctx, args[0])
	if err != nil {
		return err
	}
	amount, err := farmclient.ParseAmount(args[1], farmclient.TokenDecimals)
	if err != nil {
		return err
	}
	farmAddr, err := env.farmAddress(ctx)
	if err != nil {
		return err
	}
	res, err := env.client.Approve(ctx, token, farmAddr, amount)
	if err != nil {
		return err
	}
	return env.print(res)
}

func runDonate(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := env.requireCaller(); err != nil {
		return err
	}
	token, err := env.resolveToken(ctx, args[0])
	if err != nil {
		return err
	}
	amount, err := farmclient.ParseAmount(args[1], farmclient.TokenDecimals)
	if err != nil {
		return err
	}
	farmAddr, err := env.farmAddress(ctx)
	if err != nil {
		return err
	}
	raw, err := env.client.Allowance(ctx, token, env.caller, farmAddr)
	if err != nil {
		return err
	}
	allowance, err := uint256.FromDecimal(raw)
	if err != nil {
		return fmt.Errorf("parse allowance %q: %w", raw, err)
	}
	want, err := uint256.FromDecimal(amount)
	if err != nil {
		return err
	}
	if allowance.Lt(want) {
		if _, err := env.client.Approve(ctx, token, farmAddr, amount); err != nil {
			return fmt.Errorf("approve: %w", err)
		}
	}
	res, err := env.client.Donate(ctx, token, amount)
	if err != nil {
		return err
	}
	return env.print(res)
}

func runDeposit(ctx context.Context, env *cliEnv, args []string) error {
	return runTokenTx(ctx, env, args, func(ctx context.Context, id uint64) (*rpc.TxResult, error) {
		farmAddr, err := env.farmAddress(ctx)
		if err != nil {
			return nil, err
		}
		return env.client.Deposit(ctx, farmAddr, id)
	})
}

func runHarvest(ctx context.Context, env *cliEnv, args []string) error {
	return runTokenTx(ctx, env, args, env.client.Harvest)
}

func runWithdraw(ctx context.Context, env *cliEnv, args []string) error {
	return runTokenTx(ctx, env, args, env.client.Withdraw)
}

func runTokenTx(ctx context.Context, env *cliEnv, args []string, fn func(context.Context, uint64) (*rpc.TxResult, error)) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := env.requireCaller(); err != nil {
		return err
	}
	id, err := parseTokenID(args[0])
	if err != nil {
		return err
	}
	res, err := fn(ctx, id)
	if err != nil {
		return err
	}
	return env.print(res)
}

func runDevFund(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	token, err := env.resolveToken(ctx, args[0])
	if err != nil {
		return err
	}
	owner, err := parseAddress(args[1])
	if err != nil {
		return err
	}
	amount, err := farmclient.ParseAmount(args[2], farmclient.TokenDecimals)
	if err != nil {
		return err
	}
	if err := env.client.DevSetBalance(ctx, token, owner, amount); err != nil {
		return err
	}
	return env.print(map[string]string{"token": token.Hex(), "owner": owner.Hex(), "balance": args[2]})
}

func runDevMint(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	constants, err := env.client.Constants(ctx)
	if err != nil {
		return err
	}
	season, err := farm.ParseSeason(strings.ToLower(strings.TrimSpace(args[0])))
	if err != nil {
		return err
	}
	liquidity, err := uint256.FromDecimal(strings.TrimSpace(args[1]))
	if err != nil {
		return fmt.Errorf("invalid liquidity %q: %w", args[1], err)
	}
	owner, err := env.ownerArg(args, 2)
	if err != nil {
		return err
	}
	id, err := env.client.DevMintPosition(ctx, owner, &types.Position{
		Token0:    common.HexToAddress(constants.WrappedNative),
		Token1:    common.HexToAddress(seasonTokenAddress(constants.SeasonTokens, season)),
		Fee:       constants.RequiredFee,
		TickLower: constants.MinTick,
		TickUpper: constants.MaxTick,
		Liquidity: liquidity,
	})
	if err != nil {
		return err
	}
	return env.print(map[string]interface{}{"owner": owner.Hex(), "tokenId": id})
}

func runDevAdvance(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	d, err := time.ParseDuration(strings.TrimSpace(args[0]))
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid duration %q", args[0])
	}
	now, err := env.client.DevIncreaseTime(ctx, uint64(d/time.Second))
	if err != nil {
		return err
	}
	return env.print(map[string]interface{}{"time": now, "utc": time.Unix(int64(now), 0).UTC().Format(time.RFC3339)})
}

func runTime(ctx context.Context, env *cliEnv, _ []string) error {
	now, err := env.client.DevTime(ctx)
	if err != nil {
		return err
	}
	return env.print(map[string]interface{}{"time": now, "utc": time.Unix(int64(now), 0).UTC().Format(time.RFC3339)})
}
