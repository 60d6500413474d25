package token

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/events"
	"seasonfarm/core/runtime"
)

var (
	ErrInsufficientBalance   = errors.New("token: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrZeroAddress           = errors.New("token: zero address")
	errNilAmount             = errors.New("token: amount required")
	errSupplyOverflow        = errors.New("token: supply overflow")
)

const (
	EventTypeTransfer = events.TypeTokenTransfer
	EventTypeApproval = events.TypeTokenApproval
	EventTypeSupply   = events.TypeTokenSupply
)

var maxAllowance = new(uint256.Int).SetAllOne()

// Token is a fungible token ledger living in the shared runtime state. The
// immediate caller of each frame is treated as msg.sender.
type Token struct {
	address  common.Address
	symbol   string
	decimals uint8
}

// New constructs a token bound to the supplied contract address.
func New(addr common.Address, symbol string, decimals uint8) *Token {
	return &Token{address: addr, symbol: symbol, decimals: decimals}
}

// Address returns the contract address of the token.
func (t *Token) Address() common.Address { return t.address }

// Symbol returns the ticker of the token.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the number of decimals used for display.
func (t *Token) Decimals() uint8 { return t.decimals }

func (t *Token) balanceKey(owner common.Address) []byte {
	return append(append([]byte("token/balance/"), t.address.Bytes()...), owner.Bytes()...)
}

func (t *Token) allowanceKey(owner, spender common.Address) []byte {
	key := append([]byte("token/allowance/"), t.address.Bytes()...)
	key = append(key, owner.Bytes()...)
	return append(key, spender.Bytes()...)
}

func (t *Token) supplyKey() []byte {
	return append([]byte("token/supply/"), t.address.Bytes()...)
}

func loadAmount(ctx *runtime.Context, key []byte) (*uint256.Int, error) {
	stored := new(big.Int)
	ok, err := ctx.State().KVGet(key, stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	value, overflow := uint256.FromBig(stored)
	if overflow {
		return nil, errSupplyOverflow
	}
	return value, nil
}

func storeAmount(ctx *runtime.Context, key []byte, amount *uint256.Int) error {
	if amount.IsZero() {
		return ctx.State().KVDelete(key)
	}
	return ctx.State().KVPut(key, amount.ToBig())
}

// BalanceOf returns the balance held by owner.
func (t *Token) BalanceOf(ctx *runtime.Context, owner common.Address) (*uint256.Int, error) {
	return loadAmount(ctx, t.balanceKey(owner))
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Token) Allowance(ctx *runtime.Context, owner, spender common.Address) (*uint256.Int, error) {
	return loadAmount(ctx, t.allowanceKey(owner, spender))
}

// TotalSupply returns the sum of all balances.
func (t *Token) TotalSupply(ctx *runtime.Context) (*uint256.Int, error) {
	return loadAmount(ctx, t.supplyKey())
}

// Transfer moves amount from the caller to the recipient.
func (t *Token) Transfer(ctx *runtime.Context, to common.Address, amount *uint256.Int) error {
	return t.move(ctx, ctx.Caller, to, amount)
}

// TransferFrom moves amount from owner to the recipient, spending the caller's
// allowance unless the caller is the owner or holds an unlimited allowance.
func (t *Token) TransferFrom(ctx *runtime.Context, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return errNilAmount
	}
	spender := ctx.Caller
	if spender != from {
		allowance, err := t.Allowance(ctx, from, spender)
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return ErrInsufficientAllowance
		}
		if !allowance.Eq(maxAllowance) {
			remaining := new(uint256.Int).Sub(allowance, amount)
			if err := storeAmount(ctx, t.allowanceKey(from, spender), remaining); err != nil {
				return err
			}
		}
	}
	return t.move(ctx, from, to, amount)
}

// Approve sets the allowance of spender over the caller's tokens.
func (t *Token) Approve(ctx *runtime.Context, spender common.Address, amount *uint256.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := storeAmount(ctx, t.allowanceKey(ctx.Caller, spender), amount); err != nil {
		return err
	}
	ctx.Emit(events.TokenApproval{
		Token:   t.address,
		Owner:   ctx.Caller,
		Spender: spender,
		Amount:  amount,
	}.Event())
	return nil
}

// SetBalance overwrites the balance of owner and adjusts the total supply.
// Only development tooling and tests use it.
func (t *Token) SetBalance(ctx *runtime.Context, owner common.Address, amount *uint256.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if owner == (common.Address{}) {
		return ErrZeroAddress
	}
	current, err := t.BalanceOf(ctx, owner)
	if err != nil {
		return err
	}
	supply, err := t.TotalSupply(ctx)
	if err != nil {
		return err
	}
	supply = new(uint256.Int).Sub(supply, current)
	next, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return errSupplyOverflow
	}
	if err := storeAmount(ctx, t.supplyKey(), next); err != nil {
		return err
	}
	if err := storeAmount(ctx, t.balanceKey(owner), amount); err != nil {
		return err
	}
	ctx.Emit(events.TokenSupply{
		Token:  t.address,
		Symbol: t.symbol,
		Total:  next,
		Prev:   new(uint256.Int).Add(supply, current),
		Reason: events.SupplyReasonSetBalance,
	}.Event())
	return nil
}

func (t *Token) move(ctx *runtime.Context, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBalance, err := t.BalanceOf(ctx, from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if err := storeAmount(ctx, t.balanceKey(from), new(uint256.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := t.BalanceOf(ctx, to)
	if err != nil {
		return err
	}
	if err := storeAmount(ctx, t.balanceKey(to), new(uint256.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	ctx.Emit(events.TokenTransfer{
		Token:  t.address,
		From:   from,
		To:     to,
		Amount: amount,
	}.Event())
	return nil
}
