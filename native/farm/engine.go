package farm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/runtime"
	"seasonfarm/core/types"
)

// FungibleToken is the token capability the farm needs from each season token.
type FungibleToken interface {
	Address() common.Address
	BalanceOf(ctx *runtime.Context, owner common.Address) (*uint256.Int, error)
	Allowance(ctx *runtime.Context, owner, spender common.Address) (*uint256.Int, error)
	Transfer(ctx *runtime.Context, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx *runtime.Context, from, to common.Address, amount *uint256.Int) error
}

// PositionManager is the liquidity position oracle and NFT ledger.
type PositionManager interface {
	Address() common.Address
	Positions(ctx *runtime.Context, id uint64) (*types.Position, error)
	SafeTransferFrom(ctx *runtime.Context, from, to common.Address, id uint64, data []byte) error
}

// Engine implements the seasonal token farm: a registry of deposited
// liquidity positions, a rotating allocation schedule, cumulative per unit
// liquidity accumulators funded by donations and a time gated withdrawal.
//
// All state lives in the runtime so each entry point is atomic. Ledger
// effects are written before any token or position transfer is made.
type Engine struct {
	cfg       Config
	tokens    [NumSeasons]FungibleToken
	positions PositionManager
}

// NewEngine wires a farm to its season tokens and position manager. The
// capabilities must sit at the addresses named in cfg.
func NewEngine(cfg Config, tokens [NumSeasons]FungibleToken, positions PositionManager) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if positions == nil || positions.Address() != cfg.PositionManager {
		return nil, fmt.Errorf("%w: position manager address mismatch", errInvalidConfig)
	}
	for i, token := range tokens {
		if token == nil || token.Address() != cfg.SeasonTokens[i] {
			return nil, fmt.Errorf("%w: %s token address mismatch", errInvalidConfig, Season(i))
		}
	}
	return &Engine{cfg: cfg, tokens: tokens, positions: positions}, nil
}

// Address returns the farm contract address.
func (e *Engine) Address() common.Address { return e.cfg.Address }

// Config returns the immutable deployment parameters.
func (e *Engine) Config() Config { return e.cfg }

// Constants reports the fixed protocol parameters.
func (e *Engine) Constants() Constants {
	return Constants{
		ReallocationInterval:      ReallocationInterval,
		WithdrawalUnavailableDays: WithdrawalUnavailableDays,
		WithdrawalAvailableDays:   WithdrawalAvailableDays,
		RequiredFee:               RequiredFee,
		MinTick:                   MinTick,
		MaxTick:                   MaxTick,
		BaseAllocations:           baseAllocations,
		StartTime:                 e.cfg.StartTime,
	}
}

func (e *Engine) checkSelf(ctx *runtime.Context) error {
	if ctx.Self != e.cfg.Address {
		return errWrongContract
	}
	return nil
}

// NumberOfReAllocations returns the number of completed reallocation
// intervals at the block time.
func (e *Engine) NumberOfReAllocations(ctx *runtime.Context) uint64 {
	return NumberOfReallocations(e.cfg.StartTime, ctx.Time)
}

// AllocationSizes returns the current weights of all four seasons.
func (e *Engine) AllocationSizes(ctx *runtime.Context) [NumSeasons]uint64 {
	return AllocationSizes(e.cfg.StartTime, ctx.Time)
}

func (e *Engine) SpringAllocationSize(ctx *runtime.Context) uint64 { return e.AllocationSizes(ctx)[Spring] }
func (e *Engine) SummerAllocationSize(ctx *runtime.Context) uint64 { return e.AllocationSizes(ctx)[Summer] }
func (e *Engine) AutumnAllocationSize(ctx *runtime.Context) uint64 { return e.AllocationSizes(ctx)[Autumn] }
func (e *Engine) WinterAllocationSize(ctx *runtime.Context) uint64 { return e.AllocationSizes(ctx)[Winter] }

// GetEffectiveTotalAllocationSize sums the current weights of the flagged
// seasons.
func (e *Engine) GetEffectiveTotalAllocationSize(ctx *runtime.Context, spring, summer, autumn, winter bool) uint64 {
	return EffectiveTotalAllocationSize(e.AllocationSizes(ctx), [NumSeasons]bool{spring, summer, autumn, winter})
}

// CumulativeTokensFarmedPerUnitLiquidity returns the Q128 accumulator of
// season token rewards credited to the trading pair. Unknown tokens read as
// zero.
func (e *Engine) CumulativeTokensFarmedPerUnitLiquidity(ctx *runtime.Context, pairToken, seasonToken common.Address) (*uint256.Int, error) {
	pair, ok := e.cfg.SeasonOf(pairToken)
	if !ok {
		return new(uint256.Int), nil
	}
	season, ok := e.cfg.SeasonOf(seasonToken)
	if !ok {
		return new(uint256.Int), nil
	}
	return e.store(ctx).cumulative(pair, season)
}

// TotalLiquidity returns the liquidity deposited in the trading pair.
func (e *Engine) TotalLiquidity(ctx *runtime.Context, pair Season) (*uint256.Int, error) {
	if !pair.Valid() {
		return new(uint256.Int), nil
	}
	return e.store(ctx).totalLiquidity(pair)
}

// LiquidityTokens returns the registry record of a deposited token.
func (e *Engine) LiquidityTokens(ctx *runtime.Context, id uint64) (*LiquidityToken, error) {
	token, ok, err := e.store(ctx).liquidityToken(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPositionNotFound
	}
	return token, nil
}

// BalanceOf returns how many liquidity tokens owner has deposited.
func (e *Engine) BalanceOf(ctx *runtime.Context, owner common.Address) (uint64, error) {
	return e.store(ctx).ownerCount(owner)
}

// TokenOfOwnerByIndex enumerates the deposited tokens of owner.
func (e *Engine) TokenOfOwnerByIndex(ctx *runtime.Context, owner common.Address, index uint64) (uint64, error) {
	id, ok, err := e.store(ctx).ownerSlot(owner, index)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrIndexOutOfRange
	}
	return id, nil
}

// NextWithdrawalTime returns when the next withdrawal window of the token
// opens.
func (e *Engine) NextWithdrawalTime(ctx *runtime.Context, id uint64) (uint64, error) {
	token, err := e.LiquidityTokens(ctx, id)
	if err != nil {
		return 0, err
	}
	return NextWithdrawalTime(token.DepositTime, ctx.Time), nil
}

// transferToken pays amount of the season token from the farm to recipient.
func (e *Engine) transferToken(ctx *runtime.Context, season Season, to common.Address, amount *uint256.Int) error {
	token := e.tokens[season]
	return ctx.Call(token.Address(), func(inner *runtime.Context) error {
		return token.Transfer(inner, to, amount)
	})
}
