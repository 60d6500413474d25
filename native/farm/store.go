package farm

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/runtime"
)

var (
	cumulativePrefix     = []byte("farm/cumulative/")
	totalLiquidityPrefix = []byte("farm/liquidity/")
	liquidityTokenPrefix = []byte("farm/token/")
	ownerCountPrefix     = []byte("farm/owner/count/")
	ownerSlotPrefix      = []byte("farm/owner/slot/")
	genesisPrefix        = []byte("farm/genesis/")
)

// store is the typed view of farm state within a call frame.
type store struct {
	ctx  *runtime.Context
	farm common.Address
}

func (e *Engine) store(ctx *runtime.Context) *store {
	return &store{ctx: ctx, farm: e.cfg.Address}
}

func (s *store) key(prefix []byte, parts ...[]byte) []byte {
	key := append(append([]byte{}, prefix...), s.farm.Bytes()...)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

func u64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func (s *store) getAmount(key []byte) (*uint256.Int, error) {
	stored := new(big.Int)
	ok, err := s.ctx.State().KVGet(key, stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return fromBig(stored)
}

func (s *store) putAmount(key []byte, amount *uint256.Int) error {
	if amount.IsZero() {
		return s.ctx.State().KVDelete(key)
	}
	return s.ctx.State().KVPut(key, amount.ToBig())
}

func (s *store) getUint(key []byte) (uint64, bool, error) {
	var value uint64
	ok, err := s.ctx.State().KVGet(key, &value)
	return value, ok, err
}

func (s *store) cumulative(pair, season Season) (*uint256.Int, error) {
	return s.getAmount(s.key(cumulativePrefix, []byte{byte(pair), byte(season)}))
}

func (s *store) putCumulative(pair, season Season, value *uint256.Int) error {
	return s.putAmount(s.key(cumulativePrefix, []byte{byte(pair), byte(season)}), value)
}

// pairAccumulators returns every season's accumulator for a trading pair.
func (s *store) pairAccumulators(pair Season) ([NumSeasons]*uint256.Int, error) {
	var out [NumSeasons]*uint256.Int
	for i := range out {
		value, err := s.cumulative(pair, Season(i))
		if err != nil {
			return out, err
		}
		out[i] = value
	}
	return out, nil
}

func (s *store) totalLiquidity(pair Season) (*uint256.Int, error) {
	return s.getAmount(s.key(totalLiquidityPrefix, []byte{byte(pair)}))
}

func (s *store) putTotalLiquidity(pair Season, value *uint256.Int) error {
	return s.putAmount(s.key(totalLiquidityPrefix, []byte{byte(pair)}), value)
}

func (s *store) liquidityToken(id uint64) (*LiquidityToken, bool, error) {
	var stored storedLiquidityToken
	ok, err := s.ctx.State().KVGet(s.key(liquidityTokenPrefix, u64(id)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	token, err := stored.toLiquidityToken()
	if err != nil {
		return nil, false, err
	}
	return token, true, nil
}

func (s *store) putLiquidityToken(id uint64, token *LiquidityToken) error {
	return s.ctx.State().KVPut(s.key(liquidityTokenPrefix, u64(id)), token.toStored())
}

func (s *store) deleteLiquidityToken(id uint64) error {
	return s.ctx.State().KVDelete(s.key(liquidityTokenPrefix, u64(id)))
}

func (s *store) ownerCount(owner common.Address) (uint64, error) {
	count, _, err := s.getUint(s.key(ownerCountPrefix, owner.Bytes()))
	return count, err
}

func (s *store) ownerSlot(owner common.Address, index uint64) (uint64, bool, error) {
	return s.getUint(s.key(ownerSlotPrefix, owner.Bytes(), u64(index)))
}

// appendOwned adds id to the end of the owner's enumeration and returns its
// slot.
func (s *store) appendOwned(owner common.Address, id uint64) (uint64, error) {
	count, err := s.ownerCount(owner)
	if err != nil {
		return 0, err
	}
	if err := s.ctx.State().KVPut(s.key(ownerSlotPrefix, owner.Bytes(), u64(count)), id); err != nil {
		return 0, err
	}
	if err := s.ctx.State().KVPut(s.key(ownerCountPrefix, owner.Bytes()), count+1); err != nil {
		return 0, err
	}
	return count, nil
}

// removeOwned drops the token in the given slot by moving the last token of
// the enumeration into it.
func (s *store) removeOwned(owner common.Address, index uint64) error {
	count, err := s.ownerCount(owner)
	if err != nil {
		return err
	}
	if index >= count {
		return errCorruptRecord
	}
	last := count - 1
	if index != last {
		movedID, ok, err := s.ownerSlot(owner, last)
		if err != nil {
			return err
		}
		if !ok {
			return errCorruptRecord
		}
		moved, ok, err := s.liquidityToken(movedID)
		if err != nil {
			return err
		}
		if !ok {
			return errCorruptRecord
		}
		moved.OwnerIndex = index
		if err := s.putLiquidityToken(movedID, moved); err != nil {
			return err
		}
		if err := s.ctx.State().KVPut(s.key(ownerSlotPrefix, owner.Bytes(), u64(index)), movedID); err != nil {
			return err
		}
	}
	if err := s.ctx.State().KVDelete(s.key(ownerSlotPrefix, owner.Bytes(), u64(last))); err != nil {
		return err
	}
	if last == 0 {
		return s.ctx.State().KVDelete(s.key(ownerCountPrefix, owner.Bytes()))
	}
	return s.ctx.State().KVPut(s.key(ownerCountPrefix, owner.Bytes()), last)
}
