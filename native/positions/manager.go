package positions

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/events"
	"seasonfarm/core/runtime"
	"seasonfarm/core/types"
)

var (
	ErrTokenNotFound = errors.New("positions: token does not exist")
	ErrNotApproved   = errors.New("positions: caller is not owner nor approved")
	ErrWrongOwner    = errors.New("positions: transfer from incorrect owner")
	ErrZeroAddress   = errors.New("positions: zero address")
	ErrNonReceiver   = errors.New("positions: transfer to non ERC721Receiver implementer")
	errNilLiquidity  = errors.New("positions: liquidity required")
	errInvalidRecord = errors.New("positions: stored position corrupted")
)

const (
	EventTypeMinted   = events.TypePositionMinted
	EventTypeTransfer = events.TypePositionTransfer
	EventTypeApproval = events.TypePositionApproval
)

// Receiver is implemented by contracts that accept position tokens through
// SafeTransferFrom. Returning an error rejects the transfer.
type Receiver interface {
	OnERC721Received(ctx *runtime.Context, operator, from common.Address, tokenID uint64, data []byte) error
}

// Manager is a non-fungible position manager holding full range style
// liquidity positions. It reports the immutable shape of each position and
// enforces receiver hooks on safe transfers.
type Manager struct {
	address common.Address
}

// NewManager binds a position manager to its contract address.
func NewManager(addr common.Address) *Manager {
	return &Manager{address: addr}
}

// Address returns the contract address of the manager.
func (m *Manager) Address() common.Address { return m.address }

type storedPosition struct {
	Owner     common.Address
	Approved  common.Address
	Token0    common.Address
	Token1    common.Address
	Fee       uint32
	TickLower uint32
	TickUpper uint32
	Liquidity *big.Int
}

func (m *Manager) prefix(label string) []byte {
	return append([]byte("positions/"+label+"/"), m.address.Bytes()...)
}

func (m *Manager) positionKey(id uint64) []byte {
	return append(m.prefix("token"), []byte(strconv.FormatUint(id, 10))...)
}

func (m *Manager) countKey() []byte { return m.prefix("count") }

func (m *Manager) balanceKey(owner common.Address) []byte {
	return append(m.prefix("balance"), owner.Bytes()...)
}

func (m *Manager) load(ctx *runtime.Context, id uint64) (*storedPosition, error) {
	var stored storedPosition
	ok, err := ctx.State().KVGet(m.positionKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}
	if stored.Liquidity == nil {
		return nil, errInvalidRecord
	}
	return &stored, nil
}

func (m *Manager) loadUint(ctx *runtime.Context, key []byte) (uint64, error) {
	var value uint64
	if _, err := ctx.State().KVGet(key, &value); err != nil {
		return 0, err
	}
	return value, nil
}

// NumberOfTokens returns how many positions were ever minted. Token ids are
// assigned sequentially from zero.
func (m *Manager) NumberOfTokens(ctx *runtime.Context) (uint64, error) {
	return m.loadUint(ctx, m.countKey())
}

// Mint creates a new position owned by owner and returns its id.
func (m *Manager) Mint(ctx *runtime.Context, owner common.Address, pos *types.Position) (uint64, error) {
	if owner == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if pos == nil || pos.Liquidity == nil {
		return 0, errNilLiquidity
	}
	id, err := m.NumberOfTokens(ctx)
	if err != nil {
		return 0, err
	}
	stored := &storedPosition{
		Owner:     owner,
		Token0:    pos.Token0,
		Token1:    pos.Token1,
		Fee:       pos.Fee,
		TickLower: uint32(pos.TickLower),
		TickUpper: uint32(pos.TickUpper),
		Liquidity: pos.Liquidity.ToBig(),
	}
	if err := ctx.State().KVPut(m.positionKey(id), stored); err != nil {
		return 0, err
	}
	if err := ctx.State().KVPut(m.countKey(), id+1); err != nil {
		return 0, err
	}
	if err := m.adjustBalance(ctx, owner, 1); err != nil {
		return 0, err
	}
	ctx.Emit(events.PositionMinted{TokenID: id, Owner: owner, Position: pos}.Event())
	return id, nil
}

// Positions returns the shape of the position.
func (m *Manager) Positions(ctx *runtime.Context, id uint64) (*types.Position, error) {
	stored, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	liquidity, overflow := uint256.FromBig(stored.Liquidity)
	if overflow {
		return nil, errInvalidRecord
	}
	return &types.Position{
		Token0:    stored.Token0,
		Token1:    stored.Token1,
		Fee:       stored.Fee,
		TickLower: int32(stored.TickLower),
		TickUpper: int32(stored.TickUpper),
		Liquidity: liquidity,
	}, nil
}

// OwnerOf returns the current owner of the position token.
func (m *Manager) OwnerOf(ctx *runtime.Context, id uint64) (common.Address, error) {
	stored, err := m.load(ctx, id)
	if err != nil {
		return common.Address{}, err
	}
	return stored.Owner, nil
}

// BalanceOf returns the number of position tokens held by owner.
func (m *Manager) BalanceOf(ctx *runtime.Context, owner common.Address) (uint64, error) {
	return m.loadUint(ctx, m.balanceKey(owner))
}

// GetApproved returns the operator approved for the token, if any.
func (m *Manager) GetApproved(ctx *runtime.Context, id uint64) (common.Address, error) {
	stored, err := m.load(ctx, id)
	if err != nil {
		return common.Address{}, err
	}
	return stored.Approved, nil
}

// Approve lets operator transfer the caller's token.
func (m *Manager) Approve(ctx *runtime.Context, operator common.Address, id uint64) error {
	stored, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if stored.Owner != ctx.Caller {
		return ErrNotApproved
	}
	stored.Approved = operator
	if err := ctx.State().KVPut(m.positionKey(id), stored); err != nil {
		return err
	}
	ctx.Emit(events.PositionApproval{TokenID: id, Owner: stored.Owner, Operator: operator}.Event())
	return nil
}

// SafeTransferFrom moves the token and, when the recipient is a registered
// contract, invokes its receiver hook in a nested call. A rejected hook
// reverts the transfer.
func (m *Manager) SafeTransferFrom(ctx *runtime.Context, from, to common.Address, id uint64, data []byte) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	stored, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if stored.Owner != from {
		return ErrWrongOwner
	}
	operator := ctx.Caller
	if operator != from && stored.Approved != operator {
		return ErrNotApproved
	}
	stored.Owner = to
	stored.Approved = common.Address{}
	if err := ctx.State().KVPut(m.positionKey(id), stored); err != nil {
		return err
	}
	if err := m.adjustBalance(ctx, from, -1); err != nil {
		return err
	}
	if err := m.adjustBalance(ctx, to, 1); err != nil {
		return err
	}
	ctx.Emit(events.PositionTransfer{TokenID: id, From: from, To: to}.Event())

	contract, ok := ctx.Contract(to)
	if !ok {
		return nil
	}
	receiver, ok := contract.(Receiver)
	if !ok {
		return ErrNonReceiver
	}
	return ctx.Call(to, func(inner *runtime.Context) error {
		return receiver.OnERC721Received(inner, operator, from, id, data)
	})
}

func (m *Manager) adjustBalance(ctx *runtime.Context, owner common.Address, delta int) error {
	current, err := m.BalanceOf(ctx, owner)
	if err != nil {
		return err
	}
	switch {
	case delta > 0:
		current += uint64(delta)
	case uint64(-delta) > current:
		return fmt.Errorf("positions: balance underflow for %s", owner.Hex())
	default:
		current -= uint64(-delta)
	}
	if current == 0 {
		return ctx.State().KVDelete(m.balanceKey(owner))
	}
	return ctx.State().KVPut(m.balanceKey(owner), current)
}
