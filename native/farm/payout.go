package farm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/runtime"
)

// GetPayoutSizes returns the rewards owed to a deposited token in each season
// token since its last deposit or harvest.
func (e *Engine) GetPayoutSizes(ctx *runtime.Context, tokenID uint64) ([NumSeasons]*uint256.Int, error) {
	st := e.store(ctx)
	token, ok, err := st.liquidityToken(tokenID)
	if err != nil {
		return zeroAmounts(), err
	}
	if !ok {
		return zeroAmounts(), ErrPositionNotFound
	}
	return e.payoutSizes(st, token)
}

func (e *Engine) payoutSizes(st *store, token *LiquidityToken) ([NumSeasons]*uint256.Int, error) {
	payouts := zeroAmounts()
	current, err := st.pairAccumulators(token.Season)
	if err != nil {
		return payouts, err
	}
	for i := range payouts {
		snapshot := token.Snapshot[i]
		if current[i].Lt(snapshot) {
			return payouts, errCorruptRecord
		}
		delta := new(uint256.Int).Sub(current[i], snapshot)
		if delta.IsZero() || token.Liquidity.IsZero() {
			continue
		}
		if payouts[i], err = mulDiv(delta, token.Liquidity, q128); err != nil {
			return payouts, err
		}
	}
	return payouts, nil
}

// Harvest pays the owner every reward owed to the token and resets its
// snapshot to the current accumulators.
func (e *Engine) Harvest(ctx *runtime.Context, tokenID uint64) error {
	if err := e.checkSelf(ctx); err != nil {
		return err
	}
	st := e.store(ctx)
	token, ok, err := st.liquidityToken(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPositionNotFound
	}
	if token.Owner != ctx.Caller {
		return ErrNotOwner
	}
	payouts, err := e.payoutSizes(st, token)
	if err != nil {
		return err
	}
	if token.Snapshot, err = st.pairAccumulators(token.Season); err != nil {
		return err
	}
	if err := st.putLiquidityToken(tokenID, token); err != nil {
		return err
	}
	return e.payOut(ctx, tokenID, token.Owner, payouts)
}

func (e *Engine) payOut(ctx *runtime.Context, tokenID uint64, owner common.Address, payouts [NumSeasons]*uint256.Int) error {
	paid := false
	for i, amount := range payouts {
		if amount.IsZero() {
			continue
		}
		if err := e.transferToken(ctx, Season(i), owner, amount); err != nil {
			return err
		}
		paid = true
	}
	if paid {
		ctx.Emit(RewardsHarvestedEvent(tokenID, owner, payouts))
	}
	return nil
}
