package rpc

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/runtime"
	"seasonfarm/native/farm"
)

type effectiveTotalParams struct {
	Spring bool `json:"spring"`
	Summer bool `json:"summer"`
	Autumn bool `json:"autumn"`
	Winter bool `json:"winter"`
}

type cumulativeParams struct {
	PairToken   string `json:"pairToken"`
	SeasonToken string `json:"seasonToken"`
}

type tokenIDParams struct {
	TokenID *uint64 `json:"tokenId"`
	Caller  string  `json:"caller,omitempty"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

type ownerIndexParams struct {
	Owner string  `json:"owner"`
	Index *uint64 `json:"index"`
}

type donationParams struct {
	Caller string `json:"caller,omitempty"`
	// Donor defaults to the caller.
	Donor  string `json:"donor,omitempty"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (s *Server) handleEffectiveTotalAllocationSize(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params effectiveTotalParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	var total uint64
	err := s.rt.View(func(ctx *runtime.Context) error {
		total = s.farm.GetEffectiveTotalAllocationSize(ctx, params.Spring, params.Summer, params.Autumn, params.Winter)
		return nil
	})
	return total, err
}

func (s *Server) handleNumberOfReAllocations(_ *http.Request, _ *RPCRequest) (interface{}, error) {
	var n uint64
	err := s.rt.View(func(ctx *runtime.Context) error {
		n = s.farm.NumberOfReAllocations(ctx)
		return nil
	})
	return n, err
}

func (s *Server) handleAllocationSizes(_ *http.Request, _ *RPCRequest) (interface{}, error) {
	var sizes [farm.NumSeasons]uint64
	err := s.rt.View(func(ctx *runtime.Context) error {
		sizes = s.farm.AllocationSizes(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return AllocationSizesResult{
		Spring: sizes[farm.Spring],
		Summer: sizes[farm.Summer],
		Autumn: sizes[farm.Autumn],
		Winter: sizes[farm.Winter],
	}, nil
}

func (s *Server) handleCumulativeTokensFarmed(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params cumulativeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	pair, err := parseAddress("pairToken", params.PairToken)
	if err != nil {
		return nil, err
	}
	season, err := parseAddress("seasonToken", params.SeasonToken)
	if err != nil {
		return nil, err
	}
	var value *uint256.Int
	err = s.rt.View(func(ctx *runtime.Context) error {
		var viewErr error
		value, viewErr = s.farm.CumulativeTokensFarmedPerUnitLiquidity(ctx, pair, season)
		return viewErr
	})
	if err != nil {
		return nil, err
	}
	return value.Dec(), nil
}

func (s *Server) handleGetPayoutSizes(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := requireTokenID(params.TokenID)
	if err != nil {
		return nil, err
	}
	var payouts [farm.NumSeasons]*uint256.Int
	err = s.rt.View(func(ctx *runtime.Context) error {
		var viewErr error
		payouts, viewErr = s.farm.GetPayoutSizes(ctx, id)
		return viewErr
	})
	if err != nil {
		return nil, err
	}
	return seasonAmountsFrom(payouts), nil
}

func (s *Server) handleLiquidityToken(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := requireTokenID(params.TokenID)
	if err != nil {
		return nil, err
	}
	var result LiquidityTokenResult
	err = s.rt.View(func(ctx *runtime.Context) error {
		record, viewErr := s.farm.LiquidityTokens(ctx, id)
		if viewErr != nil {
			return viewErr
		}
		result = LiquidityTokenResult{
			TokenID:             id,
			Owner:               record.Owner.Hex(),
			TradingPairToken:    record.TradingPairToken.Hex(),
			Season:              record.Season.String(),
			DepositTime:         record.DepositTime,
			Liquidity:           record.Liquidity.Dec(),
			NextWithdrawalTime:  farm.NextWithdrawalTime(record.DepositTime, ctx.Time),
			WithdrawalAvailable: farm.WithdrawalAvailable(record.DepositTime, ctx.Time),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) handleNextWithdrawalTime(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := requireTokenID(params.TokenID)
	if err != nil {
		return nil, err
	}
	var next uint64
	err = s.rt.View(func(ctx *runtime.Context) error {
		var viewErr error
		next, viewErr = s.farm.NextWithdrawalTime(ctx, id)
		return viewErr
	})
	return next, err
}

func (s *Server) handleFarmBalanceOf(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params ownerParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	var balance uint64
	err = s.rt.View(func(ctx *runtime.Context) error {
		var viewErr error
		balance, viewErr = s.farm.BalanceOf(ctx, owner)
		return viewErr
	})
	return balance, err
}

func (s *Server) handleTokenOfOwnerByIndex(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params ownerIndexParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	if params.Index == nil {
		return nil, invalidParams("index required")
	}
	var id uint64
	err = s.rt.View(func(ctx *runtime.Context) error {
		var viewErr error
		id, viewErr = s.farm.TokenOfOwnerByIndex(ctx, owner, *params.Index)
		return viewErr
	})
	return id, err
}

func (s *Server) handleConstants(_ *http.Request, _ *RPCRequest) (interface{}, error) {
	constants := s.farm.Constants()
	cfg := s.farm.Config()
	return ConstantsResult{
		ReallocationInterval:      constants.ReallocationInterval,
		WithdrawalUnavailableDays: constants.WithdrawalUnavailableDays,
		WithdrawalAvailableDays:   constants.WithdrawalAvailableDays,
		RequiredFee:               constants.RequiredFee,
		MinTick:                   constants.MinTick,
		MaxTick:                   constants.MaxTick,
		BaseAllocations:           constants.BaseAllocations,
		StartTime:                 constants.StartTime,
		Farm:                      cfg.Address.Hex(),
		PositionManager:           cfg.PositionManager.Hex(),
		WrappedNative:             cfg.WrappedNative.Hex(),
		SeasonTokens: SeasonTokens{
			Spring: cfg.SeasonTokens[farm.Spring].Hex(),
			Summer: cfg.SeasonTokens[farm.Summer].Hex(),
			Autumn: cfg.SeasonTokens[farm.Autumn].Hex(),
			Winter: cfg.SeasonTokens[farm.Winter].Hex(),
		},
	}, nil
}

func (s *Server) handleReceiveSeasonalTokens(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params donationParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	caller, err := s.resolveCaller(r, params.Caller)
	if err != nil {
		return nil, err
	}
	donor := caller
	if params.Donor != "" {
		if donor, err = parseAddress("donor", params.Donor); err != nil {
			return nil, err
		}
	}
	tokenAddr, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	return s.execute(caller, s.farm.Address(), func(ctx *runtime.Context) error {
		return s.farm.ReceiveSeasonalTokens(ctx, donor, tokenAddr, amount)
	})
}

func (s *Server) handleHarvest(r *http.Request, req *RPCRequest) (interface{}, error) {
	return s.farmTokenCall(r, req, s.farm.Harvest)
}

func (s *Server) handleWithdraw(r *http.Request, req *RPCRequest) (interface{}, error) {
	return s.farmTokenCall(r, req, s.farm.Withdraw)
}

func (s *Server) farmTokenCall(r *http.Request, req *RPCRequest, call func(*runtime.Context, uint64) error) (interface{}, error) {
	var params tokenIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := requireTokenID(params.TokenID)
	if err != nil {
		return nil, err
	}
	caller, err := s.resolveCaller(r, params.Caller)
	if err != nil {
		return nil, err
	}
	return s.execute(caller, s.farm.Address(), func(ctx *runtime.Context) error {
		return call(ctx, id)
	})
}

// execute runs a top-level call and acknowledges it once committed.
func (s *Server) execute(caller, target common.Address, fn func(*runtime.Context) error) (interface{}, error) {
	var at uint64
	err := s.rt.Execute(caller, target, func(ctx *runtime.Context) error {
		at = ctx.Time
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}
	return TxResult{Success: true, Caller: caller.Hex(), Time: at}, nil
}
