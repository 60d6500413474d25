package farm

import "errors"

var (
	ErrInvalidTradingPair    = errors.New("farm engine: invalid trading pair")
	ErrWrongFeeTier          = errors.New("farm engine: fee tier must be 0.01%")
	ErrNotFullRange          = errors.New("farm engine: liquidity must cover full price range")
	ErrNotUniswapToken       = errors.New("farm engine: token not issued by the position manager")
	ErrNotSeasonalToken      = errors.New("farm engine: only seasonal tokens can be donated")
	ErrNotTokenOwner         = errors.New("farm engine: donor must be the caller and approve the farm")
	ErrNoEligibleLiquidity   = errors.New("farm engine: no liquidity in farm")
	ErrNotOwner              = errors.New("farm engine: caller does not own liquidity token")
	ErrWithdrawalUnavailable = errors.New("farm engine: withdrawal window closed")

	ErrPositionNotFound = errors.New("farm engine: liquidity token not deposited")
	ErrIndexOutOfRange  = errors.New("farm engine: owner index out of range")
	ErrInvalidAmount    = errors.New("farm engine: amount must be positive")
	ErrDonationTooSmall = errors.New("farm engine: donation too small to credit liquidity")
	ErrOverflow         = errors.New("farm engine: arithmetic overflow")
	ErrGenesisMismatch  = errors.New("farm engine: stored genesis does not match configuration")

	errWrongContract = errors.New("farm engine: call not addressed to the farm")
	errInvalidConfig = errors.New("farm engine: invalid configuration")
	errCorruptRecord = errors.New("farm engine: stored record corrupted")
)

// revertReasons maps sentinels to the revert strings of the deployed contract.
var revertReasons = map[error]string{
	ErrInvalidTradingPair:  "Invalid trading pair",
	ErrWrongFeeTier:        "Fee tier must be 0.01%",
	ErrNotFullRange:        "Liquidity must cover full range of prices",
	ErrNotUniswapToken:     "Only Uniswap v3 liquidity tokens can be deposited",
	ErrNotSeasonalToken:    "Only Seasonal Tokens can be donated",
	ErrNotTokenOwner:       "Tokens must be donated by the address that owns them.",
	ErrNoEligibleLiquidity: "No liquidity in farm",
}

// RevertReason returns the contract revert string for err, or the error text
// when the error has no contract counterpart.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	for sentinel, reason := range revertReasons {
		if errors.Is(err, sentinel) {
			return reason
		}
	}
	return err.Error()
}
