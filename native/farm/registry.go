package farm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/runtime"
	"seasonfarm/core/types"
)

const (
	// RequiredFee is the only accepted pool fee tier (0.01%).
	RequiredFee uint32 = 100
	MinTick     int32  = -887272
	MaxTick     int32  = 887272
)

// tradingPair classifies a position by its season token. Exactly one side
// must be the wrapped native token and the other a season token.
func (e *Engine) tradingPair(pos *types.Position) (Season, common.Address, error) {
	var other common.Address
	switch {
	case pos.Token0 == e.cfg.WrappedNative && pos.Token1 != e.cfg.WrappedNative:
		other = pos.Token1
	case pos.Token1 == e.cfg.WrappedNative && pos.Token0 != e.cfg.WrappedNative:
		other = pos.Token0
	default:
		return 0, common.Address{}, ErrInvalidTradingPair
	}
	season, ok := e.cfg.SeasonOf(other)
	if !ok {
		return 0, common.Address{}, ErrInvalidTradingPair
	}
	return season, other, nil
}

// OnERC721Received deposits a position transferred to the farm. It runs as
// the receiver hook of the position manager, so the caller is the manager
// and from is the depositor.
func (e *Engine) OnERC721Received(ctx *runtime.Context, _ common.Address, from common.Address, tokenID uint64, _ []byte) error {
	if err := e.checkSelf(ctx); err != nil {
		return err
	}
	if ctx.Caller != e.cfg.PositionManager {
		return ErrNotUniswapToken
	}
	var pos *types.Position
	err := ctx.Call(e.positions.Address(), func(inner *runtime.Context) error {
		var err error
		pos, err = e.positions.Positions(inner, tokenID)
		return err
	})
	if err != nil {
		return err
	}
	season, pairToken, err := e.tradingPair(pos)
	if err != nil {
		return err
	}
	if pos.Fee != RequiredFee {
		return ErrWrongFeeTier
	}
	if pos.TickLower != MinTick || pos.TickUpper != MaxTick {
		return ErrNotFullRange
	}
	liquidity := pos.Liquidity
	if liquidity == nil {
		liquidity = new(uint256.Int)
	}

	st := e.store(ctx)
	snapshot, err := st.pairAccumulators(season)
	if err != nil {
		return err
	}
	index, err := st.appendOwned(from, tokenID)
	if err != nil {
		return err
	}
	token := &LiquidityToken{
		Owner:            from,
		TradingPairToken: pairToken,
		Season:           season,
		DepositTime:      ctx.Time,
		Liquidity:        new(uint256.Int).Set(liquidity),
		Snapshot:         snapshot,
		OwnerIndex:       index,
	}
	if err := st.putLiquidityToken(tokenID, token); err != nil {
		return err
	}
	total, err := st.totalLiquidity(season)
	if err != nil {
		return err
	}
	if total, err = add(total, liquidity); err != nil {
		return err
	}
	if err := st.putTotalLiquidity(season, total); err != nil {
		return err
	}
	ctx.Emit(PositionDepositedEvent(tokenID, from, season, liquidity))
	return nil
}

// Withdraw returns a deposited position to its owner once its withdrawal
// window is open. Outstanding rewards are paid out first.
func (e *Engine) Withdraw(ctx *runtime.Context, tokenID uint64) error {
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
	if !WithdrawalAvailable(token.DepositTime, ctx.Time) {
		return ErrWithdrawalUnavailable
	}
	payouts, err := e.payoutSizes(st, token)
	if err != nil {
		return err
	}

	if err := st.deleteLiquidityToken(tokenID); err != nil {
		return err
	}
	if err := st.removeOwned(token.Owner, token.OwnerIndex); err != nil {
		return err
	}
	total, err := st.totalLiquidity(token.Season)
	if err != nil {
		return err
	}
	if total.Lt(token.Liquidity) {
		return errCorruptRecord
	}
	if err := st.putTotalLiquidity(token.Season, new(uint256.Int).Sub(total, token.Liquidity)); err != nil {
		return err
	}

	if err := e.payOut(ctx, tokenID, token.Owner, payouts); err != nil {
		return err
	}
	err = ctx.Call(e.positions.Address(), func(inner *runtime.Context) error {
		return e.positions.SafeTransferFrom(inner, ctx.Self, token.Owner, tokenID, nil)
	})
	if err != nil {
		return err
	}
	ctx.Emit(PositionWithdrawnEvent(tokenID, token.Owner, token.Season, token.Liquidity))
	return nil
}
