package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Season identifies one of the four reward tokens. It doubles as the trading
// pair category of a deposited position.
type Season uint8

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

// NumSeasons is the number of season tokens distributed by the farm.
const NumSeasons = 4

var seasonNames = [NumSeasons]string{"spring", "summer", "autumn", "winter"}

func (s Season) String() string {
	if int(s) < NumSeasons {
		return seasonNames[s]
	}
	return fmt.Sprintf("season(%d)", uint8(s))
}

// Valid reports whether s names a known season.
func (s Season) Valid() bool { return int(s) < NumSeasons }

// ParseSeason resolves a season by name.
func ParseSeason(name string) (Season, error) {
	for i, candidate := range seasonNames {
		if candidate == name {
			return Season(i), nil
		}
	}
	return 0, fmt.Errorf("farm: unknown season %q", name)
}

// Config holds the immutable deployment parameters of a farm.
type Config struct {
	Address         common.Address
	PositionManager common.Address
	SeasonTokens    [NumSeasons]common.Address
	WrappedNative   common.Address
	StartTime       uint64
}

// Validate ensures every address is set and the token set is distinct.
func (c Config) Validate() error {
	zero := common.Address{}
	if c.Address == zero || c.PositionManager == zero || c.WrappedNative == zero {
		return fmt.Errorf("%w: farm, position manager and wrapped native addresses required", errInvalidConfig)
	}
	seen := map[common.Address]bool{c.WrappedNative: true}
	for i, token := range c.SeasonTokens {
		if token == zero {
			return fmt.Errorf("%w: %s token address required", errInvalidConfig, Season(i))
		}
		if seen[token] {
			return fmt.Errorf("%w: duplicate token %s", errInvalidConfig, token.Hex())
		}
		seen[token] = true
	}
	return nil
}

// SeasonOf returns the season whose token is addr.
func (c Config) SeasonOf(addr common.Address) (Season, bool) {
	for i, token := range c.SeasonTokens {
		if token == addr {
			return Season(i), true
		}
	}
	return 0, false
}

// LiquidityToken is the registry record of a deposited position.
type LiquidityToken struct {
	Owner            common.Address
	TradingPairToken common.Address
	Season           Season
	DepositTime      uint64
	Liquidity        *uint256.Int
	// Snapshot holds the pair's accumulators at the last deposit or harvest.
	Snapshot [NumSeasons]*uint256.Int
	// OwnerIndex is the slot of the token in its owner's enumeration.
	OwnerIndex uint64
}

type storedLiquidityToken struct {
	Owner            common.Address
	TradingPairToken common.Address
	Season           uint8
	DepositTime      uint64
	Liquidity        *big.Int
	Snapshot         []*big.Int
	OwnerIndex       uint64
}

func (t *LiquidityToken) toStored() *storedLiquidityToken {
	snapshot := make([]*big.Int, NumSeasons)
	for i := range snapshot {
		snapshot[i] = toBig(t.Snapshot[i])
	}
	return &storedLiquidityToken{
		Owner:            t.Owner,
		TradingPairToken: t.TradingPairToken,
		Season:           uint8(t.Season),
		DepositTime:      t.DepositTime,
		Liquidity:        toBig(t.Liquidity),
		Snapshot:         snapshot,
		OwnerIndex:       t.OwnerIndex,
	}
}

func (s *storedLiquidityToken) toLiquidityToken() (*LiquidityToken, error) {
	if !Season(s.Season).Valid() || len(s.Snapshot) != NumSeasons {
		return nil, errCorruptRecord
	}
	liquidity, err := fromBig(s.Liquidity)
	if err != nil {
		return nil, err
	}
	out := &LiquidityToken{
		Owner:            s.Owner,
		TradingPairToken: s.TradingPairToken,
		Season:           Season(s.Season),
		DepositTime:      s.DepositTime,
		Liquidity:        liquidity,
		OwnerIndex:       s.OwnerIndex,
	}
	for i, value := range s.Snapshot {
		if out.Snapshot[i], err = fromBig(value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Constants reports the fixed protocol parameters.
type Constants struct {
	ReallocationInterval      uint64
	WithdrawalUnavailableDays uint64
	WithdrawalAvailableDays   uint64
	RequiredFee               uint32
	MinTick                   int32
	MaxTick                   int32
	BaseAllocations           [NumSeasons]uint64
	StartTime                 uint64
}
