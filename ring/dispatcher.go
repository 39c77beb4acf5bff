package ring

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Group is the half-open index range [Start, End) of the ring handled by one worker.
type Group struct {
	ID    int
	Start int
	End   int
}

// Groups splits n wallets into ceil(n/size) consecutive groups.
func Groups(n, size int) []Group {
	if n <= 0 || size <= 0 {
		return nil
	}
	groups := make([]Group, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		groups = append(groups, Group{ID: len(groups) + 1, Start: start, End: end})
	}
	return groups
}

// Successor returns the ring neighbour wallet i sends to.
func Successor(i, n int) int {
	return (i + 1) % n
}

// TransferRunner runs one transfer-and-confirm cycle for a wallet.
type TransferRunner interface {
	Transfer(ctx context.Context, index int, logger log.Logger) Result
}

type DispatcherConfig struct {
	GroupSize        int
	MinTransferPause time.Duration
	MaxTransferPause time.Duration
	CyclePause       time.Duration
	Cycles           int // 0 runs until ctx is done
}

// Dispatcher drives the ring: one worker per group per cycle, cycles
// separated by a pause.
type Dispatcher struct {
	cfg      DispatcherConfig
	wallets  int
	transfer TransferRunner
	rnd      *Random
	stats    *Stats
	log      log.Logger
}

func NewDispatcher(cfg DispatcherConfig, wallets int, transfer TransferRunner, rnd *Random, stats *Stats, logger log.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		wallets:  wallets,
		transfer: transfer,
		rnd:      rnd,
		stats:    stats,
		log:      logger,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run repeats cycles until ctx is done or the configured number of cycles has
// completed. It returns ctx.Err() when stopped by ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.wallets < 1 {
		return errors.New("no wallets to dispatch")
	}
	for cycle := 1; d.cfg.Cycles == 0 || cycle <= d.cfg.Cycles; cycle++ {
		l := d.log.New("cycle", cycle, "id", uuid.New())
		l.Info("Starting cycle", "wallets", d.wallets, "groups", len(Groups(d.wallets, d.cfg.GroupSize)))

		before := d.stats.Snapshot()
		err := d.RunCycle(ctx, l)
		after := d.stats.Snapshot()
		l.Info("Cycle finished", after.Since(before).LogCtx()...)
		l.Info("Run totals", after.LogCtx()...)
		if err != nil {
			return err
		}
		if d.cfg.Cycles != 0 && cycle == d.cfg.Cycles {
			break
		}

		l.Info("Next cycle after pause", "pause", d.cfg.CyclePause)
		if err := sleep(ctx, d.cfg.CyclePause); err != nil {
			return err
		}
	}
	return nil
}

// RunCycle runs every group concurrently and waits for all of them.
func (d *Dispatcher) RunCycle(ctx context.Context, logger log.Logger) error {
	groups := Groups(d.wallets, d.cfg.GroupSize)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(groups))
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			return d.runGroup(gctx, grp, logger.New("group", grp.ID))
		})
	}
	return g.Wait()
}

func (d *Dispatcher) runGroup(ctx context.Context, grp Group, l log.Logger) error {
	l.Info("Processing wallets", "first", grp.Start+1, "last", grp.End)
	for i := grp.Start; i < grp.End; i++ {
		if i > grp.Start {
			if err := sleep(ctx, d.rnd.Duration(d.cfg.MinTransferPause, d.cfg.MaxTransferPause)); err != nil {
				return err
			}
		}
		res := d.transfer.Transfer(ctx, i, l)
		d.stats.Record(res)
		if res.Outcome == OutcomeCanceled {
			return ctx.Err()
		}
	}
	return nil
}
