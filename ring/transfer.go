package ring

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/VasiyaPuPk1N/monad-trans-andryuha/utils"
)

// Outcome classifies one transfer-and-confirm cycle.
type Outcome int

const (
	OutcomeConfirmed Outcome = iota
	OutcomeRetryConfirmed
	OutcomeUnconfirmed
	OutcomeRetryInsufficientFunds
	OutcomeInsufficientBalance
	OutcomeInsufficientGas
	OutcomeSendFailed
	OutcomeQueryFailed
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRetryConfirmed:
		return "retry-confirmed"
	case OutcomeUnconfirmed:
		return "unconfirmed"
	case OutcomeRetryInsufficientFunds:
		return "retry-insufficient-funds"
	case OutcomeInsufficientBalance:
		return "insufficient-balance"
	case OutcomeInsufficientGas:
		return "insufficient-gas"
	case OutcomeSendFailed:
		return "send-failed"
	case OutcomeQueryFailed:
		return "query-failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is what one transfer-and-confirm cycle produced. Submissions holds
// every transaction the endpoint accepted, first attempt first.
type Result struct {
	Outcome     Outcome
	Submissions []*Submission
	Err         error
}

// TransferConfig sets how much is sent and at what gas price.
type TransferConfig struct {
	MinSendPercent     float64
	MaxSendPercent     float64
	BaseGasPriceGwei   float64
	GasPriceJitterGwei float64
	ExplorerURL        string
}

// Transferrer moves funds from a wallet to its ring successor and confirms
// arrival, retrying once at double gas price when the first attempt times out.
type Transferrer struct {
	chain  Backend
	keys   *utils.KeyRing
	exec   *Executor
	poller *Poller
	rnd    *Random
	cfg    TransferConfig
}

var _ TransferRunner = (*Transferrer)(nil)

func NewTransferrer(chain Backend, keys *utils.KeyRing, exec *Executor, poller *Poller, rnd *Random, cfg TransferConfig) *Transferrer {
	return &Transferrer{
		chain:  chain,
		keys:   keys,
		exec:   exec,
		poller: poller,
		rnd:    rnd,
		cfg:    cfg,
	}
}

func sendOutcome(ctx context.Context, err error) Outcome {
	switch {
	case ctx.Err() != nil:
		return OutcomeCanceled
	case errors.Is(err, ErrInsufficientBalance):
		return OutcomeInsufficientBalance
	case errors.Is(err, ErrInsufficientGas):
		return OutcomeInsufficientGas
	default:
		return OutcomeSendFailed
	}
}

func pollFailed(ctx context.Context, err error) Result {
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeCanceled, Err: err}
	}
	return Result{Outcome: OutcomeQueryFailed, Err: err}
}

// Transfer runs one cycle for wallet index.
func (t *Transferrer) Transfer(ctx context.Context, index int, logger log.Logger) (res Result) {
	n := t.keys.Len()
	from := t.keys.Addresses[index]
	to := t.keys.Addresses[Successor(index, n)]
	l := logger.New("from", from, "to", to)
	link := utils.ExplorerLink(t.cfg.ExplorerURL, to.Hex())
	defer func() {
		if res.Err != nil && res.Outcome != OutcomeCanceled {
			l.Warn("Transfer did not complete", "outcome", res.Outcome, "err", res.Err, "explorer", link)
		}
	}()

	balance, err := t.chain.BalanceAt(ctx, from, nil)
	if err != nil {
		return pollFailed(ctx, err)
	}
	amount := utils.ScaleWei(balance, t.rnd.Between(t.cfg.MinSendPercent, t.cfg.MaxSendPercent))
	gasPrice := utils.GweiToWei(t.rnd.Between(t.cfg.BaseGasPriceGwei, t.cfg.BaseGasPriceGwei+t.cfg.GasPriceJitterGwei))

	baseline, err := t.chain.BalanceAt(ctx, to, nil)
	if err != nil {
		return pollFailed(ctx, err)
	}

	req := Request{From: from, To: to, Key: t.keys.Keys[index], Amount: amount, GasPrice: gasPrice}
	sub, err := t.exec.Send(ctx, req)
	if err != nil {
		return Result{Outcome: sendOutcome(ctx, err), Err: err}
	}
	res.Submissions = append(res.Submissions, sub)

	_, err = t.poller.WaitForIncrease(ctx, to, baseline, l)
	switch {
	case err == nil:
		l.Info("Funds received", "hash", sub.Hash, "explorer", link)
		res.Outcome = OutcomeConfirmed
		return res
	case !errors.Is(err, ErrTimeoutReached):
		r := pollFailed(ctx, err)
		r.Submissions = res.Submissions
		return r
	}

	l.Warn("Confirmation timed out", "hash", sub.Hash, "timeout", t.poller.timeout)
	current, err := t.chain.BalanceAt(ctx, from, nil)
	if err != nil {
		r := pollFailed(ctx, err)
		r.Submissions = res.Submissions
		return r
	}
	if current.Cmp(amount) <= 0 {
		res.Outcome = OutcomeRetryInsufficientFunds
		res.Err = ErrInsufficientBalance
		return res
	}

	req.GasPrice = new(big.Int).Mul(gasPrice, big.NewInt(2))
	l.Info("Resending with doubled gas price", "gasPrice", utils.WeiToGwei(req.GasPrice)+" gwei")
	retry, err := t.exec.Send(ctx, req)
	if err != nil {
		res.Outcome = sendOutcome(ctx, err)
		res.Err = err
		return res
	}
	res.Submissions = append(res.Submissions, retry)

	_, err = t.poller.WaitForIncrease(ctx, to, baseline, l)
	switch {
	case err == nil:
		l.Info("Retry transaction confirmed", "hash", retry.Hash, "explorer", link)
		res.Outcome = OutcomeRetryConfirmed
	case errors.Is(err, ErrTimeoutReached):
		l.Error("Retry transaction unconfirmed", "hash", retry.Hash, "explorer", link)
		res.Outcome = OutcomeUnconfirmed
	default:
		r := pollFailed(ctx, err)
		r.Submissions = res.Submissions
		return r
	}
	return res
}
