package farm

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/types"
)

const (
	// EventTypePositionDeposited is emitted when a liquidity token enters the farm.
	EventTypePositionDeposited = "farm.position.deposited"
	// EventTypePositionWithdrawn is emitted when a liquidity token is returned.
	EventTypePositionWithdrawn = "farm.position.withdrawn"
	// EventTypeDonationReceived is emitted when season tokens are donated.
	EventTypeDonationReceived = "farm.donation.received"
	// EventTypeRewardsHarvested is emitted when rewards are paid to an owner.
	EventTypeRewardsHarvested = "farm.rewards.harvested"
)

// PositionDepositedEvent returns the payload announcing a deposit.
func PositionDepositedEvent(tokenID uint64, owner common.Address, season Season, liquidity *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypePositionDeposited,
		Attributes: map[string]string{
			"tokenId":   strconv.FormatUint(tokenID, 10),
			"owner":     owner.Hex(),
			"pair":      season.String(),
			"liquidity": liquidity.Dec(),
		},
	}
}

// PositionWithdrawnEvent returns the payload announcing a withdrawal.
func PositionWithdrawnEvent(tokenID uint64, owner common.Address, season Season, liquidity *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypePositionWithdrawn,
		Attributes: map[string]string{
			"tokenId":   strconv.FormatUint(tokenID, 10),
			"owner":     owner.Hex(),
			"pair":      season.String(),
			"liquidity": liquidity.Dec(),
		},
	}
}

// DonationReceivedEvent returns the payload describing a donation and the
// amount routed to each trading pair.
func DonationReceivedEvent(donor common.Address, season Season, amount *uint256.Int, credited [NumSeasons]*uint256.Int) *types.Event {
	attrs := map[string]string{
		"donor":  donor.Hex(),
		"season": season.String(),
		"amount": amount.Dec(),
	}
	for i, value := range credited {
		if value != nil && !value.IsZero() {
			attrs["credited."+Season(i).String()] = value.Dec()
		}
	}
	return &types.Event{Type: EventTypeDonationReceived, Attributes: attrs}
}

// RewardsHarvestedEvent returns the payload describing paid rewards.
func RewardsHarvestedEvent(tokenID uint64, owner common.Address, payouts [NumSeasons]*uint256.Int) *types.Event {
	attrs := map[string]string{
		"tokenId": strconv.FormatUint(tokenID, 10),
		"owner":   owner.Hex(),
	}
	for i, value := range payouts {
		if value != nil && !value.IsZero() {
			attrs[Season(i).String()] = value.Dec()
		}
	}
	return &types.Event{Type: EventTypeRewardsHarvested, Attributes: attrs}
}
