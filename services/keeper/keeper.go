package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"seasonfarm/native/farm"
	"seasonfarm/observability/metrics"
	"seasonfarm/rpc"
	"seasonfarm/sdk/farmclient"
)

// Donation outcomes reported to metrics.
const (
	outcomeOK          = "ok"
	outcomeNoLiquidity = "no_liquidity"
	outcomeFailed      = "failed"
)

// Donor is the subset of the farm client the keeper drives.
type Donor interface {
	Constants(ctx context.Context) (*rpc.ConstantsResult, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (string, error)
	Approve(ctx context.Context, token, spender common.Address, amount string) (*rpc.TxResult, error)
	Donate(ctx context.Context, token common.Address, amount string) (*rpc.TxResult, error)
}

// Schedule is a resolved recurring donation.
type Schedule struct {
	Name     string
	Token    common.Address
	Amount   string
	Interval time.Duration

	next time.Time
}

// Keeper donates season tokens to the farm on fixed schedules.
type Keeper struct {
	donor   Donor
	owner   common.Address
	tick    time.Duration
	metrics *metrics.KeeperMetrics
	logger  *slog.Logger
	now     func() time.Time
	cursors Cursors

	mu        sync.Mutex
	farm      common.Address
	schedules []*Schedule
}

// Option customises the keeper.
type Option func(*Keeper)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) {
		if now != nil {
			k.now = now
		}
	}
}

// WithMetrics attaches the metrics recorder.
func WithMetrics(m *metrics.KeeperMetrics) Option {
	return func(k *Keeper) { k.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Keeper) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithCursors persists schedule progress across restarts.
func WithCursors(c Cursors) Option {
	return func(k *Keeper) { k.cursors = c }
}

// WithTick sets how often Run checks for due schedules.
func WithTick(d time.Duration) Option {
	return func(k *Keeper) {
		if d > 0 {
			k.tick = d
		}
	}
}

// New constructs a keeper for owner. Schedules are resolved on Start.
func New(donor Donor, owner common.Address, opts ...Option) (*Keeper, error) {
	if donor == nil {
		return nil, errors.New("keeper: donor required")
	}
	if owner == (common.Address{}) {
		return nil, errors.New("keeper: owner required")
	}
	k := &Keeper{
		donor:  donor,
		owner:  owner,
		tick:   30 * time.Second,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	return k, nil
}

// Start fetches the farm deployment and resolves the configured schedules.
// A schedule resumes from its stored cursor; one without a cursor is due
// immediately.
func (k *Keeper) Start(ctx context.Context, configs []ScheduleConfig) error {
	constants, err := k.donor.Constants(ctx)
	if err != nil {
		return fmt.Errorf("keeper: fetch constants: %w", err)
	}
	if !common.IsHexAddress(constants.Farm) {
		return fmt.Errorf("keeper: node reported invalid farm address %q", constants.Farm)
	}
	schedules := make([]*Schedule, 0, len(configs))
	now := k.now()
	for _, cfg := range configs {
		token, err := resolveToken(cfg.Token, constants.SeasonTokens)
		if err != nil {
			return fmt.Errorf("keeper: schedule %q: %w", cfg.Name, err)
		}
		amount, err := farmclient.ParseAmount(cfg.Amount, farmclient.TokenDecimals)
		if err != nil {
			return fmt.Errorf("keeper: schedule %q: %w", cfg.Name, err)
		}
		if amount == "0" {
			return fmt.Errorf("keeper: schedule %q: amount must be positive", cfg.Name)
		}
		next, err := k.resume(cfg.Name, token, now)
		if err != nil {
			return fmt.Errorf("keeper: schedule %q: load cursor: %w", cfg.Name, err)
		}
		schedules = append(schedules, &Schedule{
			Name:     cfg.Name,
			Token:    token,
			Amount:   amount,
			Interval: cfg.Interval.Duration,
			next:     next,
		})
	}
	k.mu.Lock()
	k.farm = common.HexToAddress(constants.Farm)
	k.schedules = schedules
	k.mu.Unlock()
	return nil
}

// resume returns the stored due time of a schedule, or now when none is
// stored for this token.
func (k *Keeper) resume(name string, token common.Address, now time.Time) (time.Time, error) {
	if k.cursors == nil {
		return now, nil
	}
	cursor, ok, err := k.cursors.Load(name)
	if err != nil {
		return time.Time{}, err
	}
	if !ok || cursor.Token != token || cursor.Next.IsZero() {
		return now, nil
	}
	return cursor.Next, nil
}

// advance moves a schedule to its next due time and persists it.
func (k *Keeper) advance(sched *Schedule, now time.Time, outcome string) error {
	sched.next = now.Add(sched.Interval)
	if k.cursors == nil {
		return nil
	}
	return k.cursors.Save(sched.Name, Cursor{
		Token:       sched.Token,
		Next:        sched.next,
		LastOutcome: outcome,
		UpdatedAt:   now,
	})
}

// resolveToken accepts a season name or a season token address.
func resolveToken(raw string, tokens rpc.SeasonTokens) (common.Address, error) {
	addrs := [farm.NumSeasons]string{tokens.Spring, tokens.Summer, tokens.Autumn, tokens.Winter}
	raw = strings.TrimSpace(raw)
	if season, err := farm.ParseSeason(strings.ToLower(raw)); err == nil {
		return common.HexToAddress(addrs[season]), nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("token %q is neither a season nor an address", raw)
	}
	addr := common.HexToAddress(raw)
	for _, candidate := range addrs {
		if common.HexToAddress(candidate) == addr {
			return addr, nil
		}
	}
	return common.Address{}, fmt.Errorf("token %s is not a season token", addr.Hex())
}

// Schedules returns a snapshot of the resolved schedules with their next due time.
func (k *Keeper) Schedules() map[string]time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[string]time.Time, len(k.schedules))
	for _, s := range k.schedules {
		out[s.Name] = s.next
	}
	return out
}

// RunOnce donates every due schedule. A donation rejected because the farm
// holds no liquidity is skipped until the next interval. Other failures leave
// the schedule due so it is retried on the next tick.
func (k *Keeper) RunOnce(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	var errs []error
	for _, sched := range k.schedules {
		if now.Before(sched.next) {
			continue
		}
		err := k.donate(ctx, sched)
		switch {
		case err == nil:
			k.metrics.RecordDonation(sched.Name, outcomeOK, sched.Amount, now.Unix())
			k.logger.Info("donated season tokens",
				slog.String("schedule", sched.Name),
				slog.String("token", sched.Token.Hex()),
				slog.String("amount", sched.Amount))
			if err := k.advance(sched, now, outcomeOK); err != nil {
				errs = append(errs, fmt.Errorf("schedule %s: save cursor: %w", sched.Name, err))
			}
		case farmclient.IsRevert(err, farmclient.ReasonNoLiquidity):
			k.metrics.RecordDonation(sched.Name, outcomeNoLiquidity, sched.Amount, now.Unix())
			k.logger.Warn("farm has no liquidity, skipping donation",
				slog.String("schedule", sched.Name))
			if err := k.advance(sched, now, outcomeNoLiquidity); err != nil {
				errs = append(errs, fmt.Errorf("schedule %s: save cursor: %w", sched.Name, err))
			}
		default:
			k.metrics.RecordDonation(sched.Name, outcomeFailed, sched.Amount, now.Unix())
			k.logger.Error("donation failed",
				slog.String("schedule", sched.Name),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("schedule %s: %w", sched.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (k *Keeper) donate(ctx context.Context, sched *Schedule) error {
	raw, err := k.donor.Allowance(ctx, sched.Token, k.owner, k.farm)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	allowance, err := uint256.FromDecimal(raw)
	if err != nil {
		return fmt.Errorf("parse allowance %q: %w", raw, err)
	}
	amount, err := uint256.FromDecimal(sched.Amount)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", sched.Amount, err)
	}
	if allowance.Lt(amount) {
		if _, err := k.donor.Approve(ctx, sched.Token, k.farm, sched.Amount); err != nil {
			return fmt.Errorf("approve: %w", err)
		}
	}
	if _, err := k.donor.Donate(ctx, sched.Token, sched.Amount); err != nil {
		return err
	}
	return nil
}

// Run calls RunOnce on every tick until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.tick)
	defer ticker.Stop()
	for {
		if err := k.RunOnce(ctx); err != nil && ctx.Err() == nil {
			k.logger.Warn("keeper round incomplete", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
