package rpc

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/core/runtime"
	"seasonfarm/native/token"
)

type tokenBalanceParams struct {
	Token string `json:"token"`
	Owner string `json:"owner"`
}

type tokenAllowanceParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type tokenApproveParams struct {
	Caller  string `json:"caller,omitempty"`
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type tokenTransferParams struct {
	Caller string `json:"caller,omitempty"`
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type positionTransferParams struct {
	Caller  string  `json:"caller,omitempty"`
	// From defaults to the caller.
	From    string  `json:"from,omitempty"`
	To      string  `json:"to"`
	TokenID *uint64 `json:"tokenId"`
}

func (s *Server) lookupToken(raw string) (*token.Token, error) {
	addr, err := parseAddress("token", raw)
	if err != nil {
		return nil, err
	}
	tok, ok := s.tokens[addr]
	if !ok {
		return nil, invalidParams(fmt.Sprintf("unknown token %s", addr.Hex()))
	}
	return tok, nil
}

func (s *Server) handleTokenBalanceOf(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenBalanceParams
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
	var balance *uint256.Int
	err = s.rt.View(func(ctx *runtime.Context) error {
		var viewErr error
		balance, viewErr = tok.BalanceOf(ctx, owner)
		return viewErr
	})
	if err != nil {
		return nil, err
	}
	return balance.Dec(), nil
}

func (s *Server) handleTokenAllowance(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenAllowanceParams
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
	spender, err := parseAddress("spender", params.Spender)
	if err != nil {
		return nil, err
	}
	var allowance *uint256.Int
	err = s.rt.View(func(ctx *runtime.Context) error {
		var viewErr error
		allowance, viewErr = tok.Allowance(ctx, owner, spender)
		return viewErr
	})
	if err != nil {
		return nil, err
	}
	return allowance.Dec(), nil
}

func (s *Server) handleTokenApprove(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenApproveParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	caller, err := s.resolveCaller(r, params.Caller)
	if err != nil {
		return nil, err
	}
	tok, err := s.lookupToken(params.Token)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", params.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	return s.execute(caller, tok.Address(), func(ctx *runtime.Context) error {
		return tok.Approve(ctx, spender, amount)
	})
}

func (s *Server) handleTokenTransfer(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenTransferParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	caller, err := s.resolveCaller(r, params.Caller)
	if err != nil {
		return nil, err
	}
	tok, err := s.lookupToken(params.Token)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	return s.execute(caller, tok.Address(), func(ctx *runtime.Context) error {
		return tok.Transfer(ctx, to, amount)
	})
}

func (s *Server) handlePositionGet(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := requireTokenID(params.TokenID)
	if err != nil {
		return nil, err
	}
	var result PositionResult
	err = s.rt.View(func(ctx *runtime.Context) error {
		pos, viewErr := s.positions.Positions(ctx, id)
		if viewErr != nil {
			return viewErr
		}
		owner, viewErr := s.positions.OwnerOf(ctx, id)
		if viewErr != nil {
			return viewErr
		}
		result = PositionResult{
			TokenID:   id,
			Owner:     owner.Hex(),
			Token0:    pos.Token0.Hex(),
			Token1:    pos.Token1.Hex(),
			Fee:       pos.Fee,
			TickLower: pos.TickLower,
			TickUpper: pos.TickUpper,
			Liquidity: pos.Liquidity.Dec(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) handlePositionOwnerOf(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params tokenIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	id, err := requireTokenID(params.TokenID)
	if err != nil {
		return nil, err
	}
	var owner common.Address
	err = s.rt.View(func(ctx *runtime.Context) error {
		var viewErr error
		owner, viewErr = s.positions.OwnerOf(ctx, id)
		return viewErr
	})
	if err != nil {
		return nil, err
	}
	return owner.Hex(), nil
}

// handlePositionSafeTransfer moves a position token. Sending it to the farm
// deposits it.
func (s *Server) handlePositionSafeTransfer(r *http.Request, req *RPCRequest) (interface{}, error) {
	var params positionTransferParams
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
	from := caller
	if params.From != "" {
		if from, err = parseAddress("from", params.From); err != nil {
			return nil, err
		}
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		return nil, err
	}
	return s.execute(caller, s.positions.Address(), func(ctx *runtime.Context) error {
		return s.positions.SafeTransferFrom(ctx, from, to, id, nil)
	})
}
