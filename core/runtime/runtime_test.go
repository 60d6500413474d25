package runtime

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"seasonfarm/core/events"
	"seasonfarm/core/types"
	"seasonfarm/storage"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	contract = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	other    = common.HexToAddress("0x00000000000000000000000000000000000007e4")
)

func newTestRuntime(t *testing.T) (*Runtime, *recorder, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	rec := &recorder{}
	now := uint64(1_000)
	rt := New(db, WithClock(func() uint64 { return now }), WithEmitter(rec))
	return rt, rec, db
}

func readCounter(t *testing.T, rt *Runtime) uint64 {
	t.Helper()
	var value uint64
	require.NoError(t, rt.View(func(ctx *Context) error {
		_, err := ctx.State().KVGet([]byte("counter"), &value)
		return err
	}))
	return value
}

func TestExecuteCommitsWritesAndEvents(t *testing.T) {
	rt, rec, db := newTestRuntime(t)
	err := rt.Execute(alice, contract, func(ctx *Context) error {
		require.Equal(t, alice, ctx.Caller)
		require.Equal(t, contract, ctx.Self)
		require.Equal(t, uint64(1_000), ctx.Time)
		ctx.Emit(&types.Event{Type: "counter.set"})
		return ctx.State().KVPut([]byte("counter"), uint64(5))
	})
	require.NoError(t, err)
	require.Equal(t, uint64(5), readCounter(t, rt))
	require.Equal(t, 1, db.Len())
	require.Len(t, rec.events, 1)
	require.Equal(t, contract.Hex(), rec.events[0].Event().Contract)
	require.Equal(t, uint64(1_000), rec.events[0].Event().Time)
}

func TestExecuteRevertsOnError(t *testing.T) {
	rt, rec, db := newTestRuntime(t)
	boom := errors.New("boom")
	err := rt.Execute(alice, contract, func(ctx *Context) error {
		ctx.Emit(&types.Event{Type: "counter.set"})
		if err := ctx.State().KVPut([]byte("counter"), uint64(5)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, readCounter(t, rt))
	require.Zero(t, db.Len())
	require.Empty(t, rec.events)
}

func TestNestedCallRevertsOnlyItsFrame(t *testing.T) {
	rt, rec, _ := newTestRuntime(t)
	err := rt.Execute(alice, contract, func(ctx *Context) error {
		if err := ctx.State().KVPut([]byte("counter"), uint64(1)); err != nil {
			return err
		}
		nested := ctx.Call(other, func(inner *Context) error {
			require.Equal(t, contract, inner.Caller)
			require.Equal(t, other, inner.Self)
			require.Equal(t, alice, inner.Origin)
			inner.Emit(&types.Event{Type: "inner"})
			if err := inner.State().KVPut([]byte("counter"), uint64(2)); err != nil {
				return err
			}
			return errors.New("inner failure")
		})
		require.Error(t, nested)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), readCounter(t, rt))
	require.Empty(t, rec.events)
}

func TestPanicBecomesError(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	err := rt.Execute(alice, contract, func(ctx *Context) error {
		_ = ctx.State().KVPut([]byte("counter"), uint64(3))
		panic("unexpected")
	})
	require.ErrorIs(t, err, ErrPanic)
	require.Zero(t, readCounter(t, rt))
}

func TestCallDepthIsBounded(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	var recurse func(ctx *Context) error
	recurse = func(ctx *Context) error {
		return ctx.Call(contract, recurse)
	}
	err := rt.Execute(alice, contract, recurse)
	require.ErrorIs(t, err, ErrCallDepth)
}

func TestViewDiscardsWrites(t *testing.T) {
	rt, _, db := newTestRuntime(t)
	require.NoError(t, rt.View(func(ctx *Context) error {
		return ctx.State().KVPut([]byte("counter"), uint64(9))
	}))
	require.Zero(t, readCounter(t, rt))
	require.Zero(t, db.Len())
}

func TestIncreaseTimeAdvancesBlockTimestamp(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	require.Equal(t, uint64(1_000), rt.Now())
	require.Equal(t, uint64(1_060), rt.IncreaseTime(60))
	require.NoError(t, rt.Execute(alice, contract, func(ctx *Context) error {
		require.Equal(t, uint64(1_060), ctx.Time)
		return nil
	}))
}

func TestRegisteredContractsResolve(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	rt.Register(other, "impl")
	require.NoError(t, rt.Execute(alice, contract, func(ctx *Context) error {
		impl, ok := ctx.Contract(other)
		require.True(t, ok)
		require.Equal(t, "impl", impl)
		_, ok = ctx.Contract(alice)
		require.False(t, ok)
		return nil
	}))
}
