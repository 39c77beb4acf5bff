package ring

import (
	"context"
	"errors"
	"math/big"
	"time"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/VasiyaPuPk1N/monad-trans-andryuha/utils"
)

// ErrTimeoutReached is returned when the deadline passes before the condition is met.
var ErrTimeoutReached = errors.New("timeout has been reached")

// ConditionFunc is polled until it reports done or fails.
type ConditionFunc func(ctx context.Context) (done bool, err error)

// Poll checks condition immediately and then on every interval until it
// succeeds, fails, the deadline expires or ctx is done.
func Poll(ctx context.Context, interval, deadline time.Duration, condition ConditionFunc) error {
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		ok, err := condition(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return ErrTimeoutReached
		case <-tick.C:
		}
	}
}

// Poller watches a balance for the arrival of funds.
type Poller struct {
	backend  Backend
	interval time.Duration
	timeout  time.Duration
	explorer string
}

func NewPoller(backend Backend, interval, timeout time.Duration, explorerURL string) *Poller {
	return &Poller{
		backend:  backend,
		interval: interval,
		timeout:  timeout,
		explorer: explorerURL,
	}
}

// WaitForIncrease polls account until its balance exceeds baseline and returns
// the new balance. Failed balance reads are logged and count as "not yet".
func (p *Poller) WaitForIncrease(ctx context.Context, account ethcmn.Address, baseline *big.Int, logger log.Logger) (*big.Int, error) {
	link := utils.ExplorerLink(p.explorer, account.Hex())
	var current *big.Int
	err := Poll(ctx, p.interval, p.timeout, func(ctx context.Context) (bool, error) {
		balance, err := p.backend.BalanceAt(ctx, account, nil)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			logger.Warn("Failed to query recipient balance", "address", account, "err", err)
			return false, nil
		}
		logger.Info("Checking recipient", "address", account, "balance", utils.WeiToEther(balance), "explorer", link)
		if balance.Cmp(baseline) > 0 {
			current = balance
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}
