package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"seasonfarm/core/events"
	"seasonfarm/native/farm"
)

func TestFarmMetricsFollowEvents(t *testing.T) {
	m := Farm()
	owner := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	liquidity := uint256.NewInt(10)
	oneAndHalf := uint256.MustFromDecimal("1500000000000000000")

	before := testutil.ToFloat64(m.positions.WithLabelValues("winter"))
	m.Emit(events.Wrap(farm.PositionDepositedEvent(1, owner, farm.Winter, liquidity)))
	m.Emit(events.Wrap(farm.PositionDepositedEvent(2, owner, farm.Winter, liquidity)))
	m.Emit(events.Wrap(farm.PositionWithdrawnEvent(1, owner, farm.Winter, liquidity)))
	require.Equal(t, before+1, testutil.ToFloat64(m.positions.WithLabelValues("winter")))

	donatedBefore := testutil.ToFloat64(m.donated.WithLabelValues("winter"))
	credited := [farm.NumSeasons]*uint256.Int{}
	m.Emit(events.Wrap(farm.DonationReceivedEvent(owner, farm.Winter, oneAndHalf, credited)))
	require.InDelta(t, donatedBefore+1.5, testutil.ToFloat64(m.donated.WithLabelValues("winter")), 1e-9)

	harvestedBefore := testutil.ToFloat64(m.harvested.WithLabelValues("spring"))
	payouts := [farm.NumSeasons]*uint256.Int{oneAndHalf, nil, nil, nil}
	m.Emit(events.Wrap(farm.RewardsHarvestedEvent(2, owner, payouts)))
	require.InDelta(t, harvestedBefore+1.5, testutil.ToFloat64(m.harvested.WithLabelValues("spring")), 1e-9)
}

func TestObserveRequestOutcomes(t *testing.T) {
	m := Farm()
	ok := testutil.ToFloat64(m.rpcRequests.WithLabelValues("farm_harvest", "ok"))
	failed := testutil.ToFloat64(m.rpcRequests.WithLabelValues("farm_harvest", "error"))
	m.ObserveRequest("farm_harvest", nil, time.Millisecond)
	m.ObserveRequest("farm_harvest", errors.New("boom"), time.Millisecond)
	require.Equal(t, ok+1, testutil.ToFloat64(m.rpcRequests.WithLabelValues("farm_harvest", "ok")))
	require.Equal(t, failed+1, testutil.ToFloat64(m.rpcRequests.WithLabelValues("farm_harvest", "error")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *FarmMetrics
	m.Emit(nil)
	m.ObserveRequest("x", nil, 0)
	m.RecordThrottle("x")
	m.RecordDropped(3)
}

func TestWholeTokens(t *testing.T) {
	require.Equal(t, 0.0, wholeTokens("garbage"))
	require.Equal(t, 2.0, wholeTokens("2000000000000000000"))
}
