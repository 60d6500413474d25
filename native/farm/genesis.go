package farm

import (
	"github.com/ethereum/go-ethereum/common"

	"seasonfarm/core/runtime"
)

type storedGenesis struct {
	PositionManager common.Address
	SeasonTokens    []common.Address
	WrappedNative   common.Address
	StartTime       uint64
}

func genesisFromConfig(cfg Config) *storedGenesis {
	return &storedGenesis{
		PositionManager: cfg.PositionManager,
		SeasonTokens:    append([]common.Address{}, cfg.SeasonTokens[:]...),
		WrappedNative:   cfg.WrappedNative,
		StartTime:       cfg.StartTime,
	}
}

func (g *storedGenesis) equal(other *storedGenesis) bool {
	if g.PositionManager != other.PositionManager || g.WrappedNative != other.WrappedNative || g.StartTime != other.StartTime {
		return false
	}
	if len(g.SeasonTokens) != len(other.SeasonTokens) {
		return false
	}
	for i := range g.SeasonTokens {
		if g.SeasonTokens[i] != other.SeasonTokens[i] {
			return false
		}
	}
	return true
}

// InitGenesis records the deployment parameters on first start and rejects
// a different configuration on later starts. It reports whether the genesis
// was written by this call.
func (e *Engine) InitGenesis(ctx *runtime.Context) (bool, error) {
	st := e.store(ctx)
	key := st.key(genesisPrefix)
	want := genesisFromConfig(e.cfg)
	var existing storedGenesis
	ok, err := ctx.State().KVGet(key, &existing)
	if err != nil {
		return false, err
	}
	if ok {
		if !existing.equal(want) {
			return false, ErrGenesisMismatch
		}
		return false, nil
	}
	if err := ctx.State().KVPut(key, want); err != nil {
		return false, err
	}
	return true, nil
}
