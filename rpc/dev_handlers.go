package rpc

import (
	"net/http"

	"github.com/holiman/uint256"

	"seasonfarm/core/runtime"
	"seasonfarm/core/types"
)

type devSetBalanceParams struct {
	Token  string `json:"token"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type devMintParams struct {
	Owner     string `json:"owner"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Fee       uint32 `json:"fee"`
	TickLower int32  `json:"tickLower"`
	TickUpper int32  `json:"tickUpper"`
	Liquidity string `json:"liquidity"`
}

type devIncreaseTimeParams struct {
	Seconds uint64 `json:"seconds"`
}

func (s *Server) handleDevSetBalance(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params devSetBalanceParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	tok, err := s.lookupToken(params.Token)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	return s.execute(owner, tok.Address(), func(ctx *runtime.Context) error {
		return tok.SetBalance(ctx, owner, amount)
	})
}

func (s *Server) handleDevMintPosition(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params devMintParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	token0, err := parseAddress("token0", params.Token0)
	if err != nil {
		return nil, err
	}
	token1, err := parseAddress("token1", params.Token1)
	if err != nil {
		return nil, err
	}
	liquidity, err := parseAmount("liquidity", params.Liquidity)
	if err != nil {
		return nil, err
	}
	if liquidity.Cmp(new(uint256.Int).Lsh(uint256.NewInt(1), 128)) >= 0 {
		return nil, invalidParams("liquidity exceeds uint128")
	}
	pos := &types.Position{
		Token0:    token0,
		Token1:    token1,
		Fee:       params.Fee,
		TickLower: params.TickLower,
		TickUpper: params.TickUpper,
		Liquidity: liquidity,
	}
	var id uint64
	err = s.rt.Execute(owner, s.positions.Address(), func(ctx *runtime.Context) error {
		var mintErr error
		id, mintErr = s.positions.Mint(ctx, owner, pos)
		return mintErr
	})
	if err != nil {
		return nil, err
	}
	return MintResult{TokenID: id}, nil
}

func (s *Server) handleDevIncreaseTime(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params devIncreaseTimeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	now := s.rt.IncreaseTime(params.Seconds)
	s.logger.Info("block time advanced", "seconds", params.Seconds, "now", now)
	return now, nil
}

func (s *Server) handleDevTime(_ *http.Request, _ *RPCRequest) (interface{}, error) {
	return s.rt.Now(), nil
}
