package farm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/runtime"
)

// ReceiveSeasonalTokens accepts a donation of a season token and credits it
// to every trading pair holding liquidity, weighted by the current
// allocation sizes. The donor must be the caller and must have approved the
// farm for amount; either failure is ErrNotTokenOwner.
//
// Rounding dust remains in the farm balance. A donation that would leave any
// credited accumulator unchanged fails with ErrDonationTooSmall.
func (e *Engine) ReceiveSeasonalTokens(ctx *runtime.Context, donor, tokenAddr common.Address, amount *uint256.Int) error {
	if err := e.checkSelf(ctx); err != nil {
		return err
	}
	season, ok := e.cfg.SeasonOf(tokenAddr)
	if !ok {
		return ErrNotSeasonalToken
	}
	if ctx.Caller != donor {
		return ErrNotTokenOwner
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}

	st := e.store(ctx)
	var (
		liquidity [NumSeasons]*uint256.Int
		flags     [NumSeasons]bool
	)
	for i := range liquidity {
		total, err := st.totalLiquidity(Season(i))
		if err != nil {
			return err
		}
		liquidity[i] = total
		flags[i] = !total.IsZero()
	}
	sizes := e.AllocationSizes(ctx)
	effective := EffectiveTotalAllocationSize(sizes, flags)
	if effective == 0 {
		return ErrNoEligibleLiquidity
	}
	allowance, err := e.tokens[season].Allowance(ctx, donor, ctx.Self)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return ErrNotTokenOwner
	}

	credited := zeroAmounts()
	for i := range liquidity {
		if !flags[i] {
			continue
		}
		pair := Season(i)
		share, err := mul(amount, uint256.NewInt(sizes[i]))
		if err != nil {
			return err
		}
		denominator, err := mul(uint256.NewInt(effective), liquidity[i])
		if err != nil {
			return err
		}
		increment, err := mulDiv(share, q128, denominator)
		if err != nil {
			return err
		}
		// Every credited accumulator must strictly increase.
		if increment.IsZero() {
			return ErrDonationTooSmall
		}
		current, err := st.cumulative(pair, season)
		if err != nil {
			return err
		}
		next, err := add(current, increment)
		if err != nil {
			return err
		}
		if err := st.putCumulative(pair, season, next); err != nil {
			return err
		}
		credited[i] = new(uint256.Int).Div(share, uint256.NewInt(effective))
	}

	token := e.tokens[season]
	err = ctx.Call(token.Address(), func(inner *runtime.Context) error {
		return token.TransferFrom(inner, donor, ctx.Self, amount)
	})
	if err != nil {
		return err
	}
	ctx.Emit(DonationReceivedEvent(donor, season, amount, credited))
	return nil
}
