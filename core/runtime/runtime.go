package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"seasonfarm/core/events"
	"seasonfarm/core/state"
	"seasonfarm/core/types"
	"seasonfarm/storage"
)

// MaxCallDepth bounds nested contract calls within a single transaction.
const MaxCallDepth = 64

var (
	ErrCallDepth = errors.New("runtime: max call depth exceeded")
	ErrPanic     = errors.New("runtime: call panicked")
)

// Runtime executes contract calls one at a time against a journaled state.
// Each top-level call either commits every write and event it produced or
// none of them.
type Runtime struct {
	mu        sync.Mutex
	state     *state.Manager
	clock     func() uint64
	offset    uint64
	contracts map[common.Address]interface{}
	emitter   events.Emitter
	pending   []events.Event
	logger    *slog.Logger
}

// Option customises a runtime at construction time.
type Option func(*Runtime)

// WithClock overrides the block timestamp source.
func WithClock(clock func() uint64) Option {
	return func(r *Runtime) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithEmitter sets the emitter receiving events of committed calls.
func WithEmitter(emitter events.Emitter) Option {
	return func(r *Runtime) {
		if emitter != nil {
			r.emitter = emitter
		}
	}
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a runtime backed by the provided database.
func New(db storage.Database, opts ...Option) *Runtime {
	r := &Runtime{
		state:     state.NewManager(db),
		clock:     func() uint64 { return uint64(time.Now().Unix()) },
		contracts: make(map[common.Address]interface{}),
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a contract implementation to an address so other contracts
// can locate it (e.g. to invoke a receiver hook).
func (r *Runtime) Register(addr common.Address, contract interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[addr] = contract
}

// Now returns the current block timestamp.
func (r *Runtime) Now() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now()
}

func (r *Runtime) now() uint64 {
	return r.clock() + r.offset
}

// IncreaseTime advances the block timestamp by the supplied number of seconds
// and returns the new timestamp.
func (r *Runtime) IncreaseTime(seconds uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset += seconds
	return r.now()
}

// Execute runs fn as a top-level call from the sender to the target contract.
func (r *Runtime) Execute(from, to common.Address, fn func(*Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := &Context{
		Caller: from,
		Self:   to,
		Origin: from,
		Time:   r.now(),
		rt:     r,
	}
	if err := r.frame(ctx, fn); err != nil {
		r.abort()
		r.logger.Debug("call reverted",
			slog.String("from", from.Hex()),
			slog.String("to", to.Hex()),
			slog.String("error", err.Error()))
		return err
	}
	if err := r.state.Commit(); err != nil {
		r.abort()
		return err
	}
	committed := r.pending
	r.pending = nil
	for _, evt := range committed {
		r.emitter.Emit(evt)
	}
	return nil
}

// View runs fn as a read-only call. Any writes are discarded.
func (r *Runtime) View(fn func(*Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx := &Context{Time: r.now(), rt: r}
	err := r.frame(ctx, fn)
	r.abort()
	return err
}

func (r *Runtime) abort() {
	r.state.Discard()
	r.pending = nil
}

func (r *Runtime) frame(ctx *Context, fn func(*Context) error) (err error) {
	if ctx.Depth > MaxCallDepth {
		return ErrCallDepth
	}
	snapshot := r.state.Snapshot()
	emitted := len(r.pending)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
		if err != nil {
			r.state.RevertToSnapshot(snapshot)
			r.pending = r.pending[:emitted]
		}
	}()
	return fn(ctx)
}

// Context describes the executing call frame.
type Context struct {
	// Caller is the immediate sender of the call (msg.sender).
	Caller common.Address
	// Self is the address of the contract executing the frame.
	Self common.Address
	// Origin is the externally owned account that started the transaction.
	Origin common.Address
	// Time is the block timestamp in unix seconds.
	Time  uint64
	Depth int

	rt *Runtime
}

// State exposes the journaled state of the running transaction.
func (c *Context) State() *state.Manager {
	return c.rt.state
}

// Emit buffers an event. It is published only if the transaction commits and
// dropped if the emitting frame reverts.
func (c *Context) Emit(evt *types.Event) {
	if c == nil || evt == nil {
		return
	}
	evt.Contract = c.Self.Hex()
	evt.Time = c.Time
	c.rt.pending = append(c.rt.pending, events.Wrap(evt))
}

// Call runs fn as a nested frame in which the current contract is the caller
// and target is the executing contract. A failing frame reverts only its own
// writes; the error is returned to the parent.
func (c *Context) Call(target common.Address, fn func(*Context) error) error {
	child := &Context{
		Caller: c.Self,
		Self:   target,
		Origin: c.Origin,
		Time:   c.Time,
		Depth:  c.Depth + 1,
		rt:     c.rt,
	}
	return c.rt.frame(child, fn)
}

// Contract resolves a registered contract implementation.
func (c *Context) Contract(addr common.Address) (interface{}, bool) {
	contract, ok := c.rt.contracts[addr]
	return contract, ok
}
