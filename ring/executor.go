package ring

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/VasiyaPuPk1N/monad-trans-andryuha/utils"
)

var (
	// ErrInsufficientBalance means the balance does not exceed the amount itself.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientGas means the balance covers the amount but not amount plus gas.
	ErrInsufficientGas = errors.New("insufficient balance for gas")
	// ErrAmountOverflow means amount + gas cost does not fit in 256 bits.
	ErrAmountOverflow = errors.New("amount overflows 256 bits")
)

// Backend is the subset of an Ethereum client the ring needs.
type Backend interface {
	BalanceAt(ctx context.Context, account ethcmn.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account ethcmn.Address, blockNumber *big.Int) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Request describes one native transfer.
type Request struct {
	From     ethcmn.Address
	To       ethcmn.Address
	Key      *ecdsa.PrivateKey
	Amount   *big.Int // wei
	GasPrice *big.Int // wei per gas
}

// Submission is a transaction accepted by the endpoint.
type Submission struct {
	Hash     ethcmn.Hash
	Nonce    uint64
	Amount   *big.Int
	GasPrice *big.Int
}

// Executor checks funds, then builds, signs and submits transfers. It never retries.
type Executor struct {
	backend Backend
	signer  types.Signer
	hashes  *utils.TxHashRecorder
	log     log.Logger
}

// NewExecutor signs for chainID. hashes may be nil.
func NewExecutor(backend Backend, chainID *big.Int, hashes *utils.TxHashRecorder, logger log.Logger) *Executor {
	return &Executor{
		backend: backend,
		signer:  types.NewLondonSigner(chainID),
		hashes:  hashes,
		log:     logger,
	}
}

// RequiredFunds returns the gas cost of a transfer at gasPrice and the total a
// sender must strictly exceed to afford it.
func RequiredFunds(amount, gasPrice *big.Int) (gasCost, required *big.Int, err error) {
	if amount.Sign() < 0 || gasPrice.Sign() < 0 {
		return nil, nil, fmt.Errorf("negative amount %s or gas price %s", amount, gasPrice)
	}
	amt, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	price, overflow := uint256.FromBig(gasPrice)
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	cost, overflow := new(uint256.Int).MulOverflow(price, uint256.NewInt(utils.GasLimitTransfer))
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	total, overflow := new(uint256.Int).AddOverflow(amt, cost)
	if overflow {
		return nil, nil, ErrAmountOverflow
	}
	return cost.ToBig(), total.ToBig(), nil
}

// Send submits req once. It returns ErrInsufficientBalance or ErrInsufficientGas
// without touching the network further when the sender cannot afford the
// transfer; any other error comes from the endpoint or the signer.
func (e *Executor) Send(ctx context.Context, req Request) (*Submission, error) {
	l := e.log.New("from", req.From, "to", req.To)

	balance, err := e.backend.BalanceAt(ctx, req.From, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}
	l.Info("Sender balance", "balance", utils.WeiToEther(balance))

	gasCost, required, err := RequiredFunds(req.Amount, req.GasPrice)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(req.Amount) <= 0 {
		return nil, fmt.Errorf("%w: have %s, sending %s", ErrInsufficientBalance,
			utils.WeiToEther(balance), utils.WeiToEther(req.Amount))
	}
	l.Info("Gas cost", "cost", utils.WeiToEther(gasCost), "gasPrice", utils.WeiToGwei(req.GasPrice)+" gwei")
	if balance.Cmp(required) <= 0 {
		return nil, fmt.Errorf("%w: have %s, need more than %s", ErrInsufficientGas,
			utils.WeiToEther(balance), utils.WeiToEther(required))
	}

	nonce, err := e.backend.NonceAt(ctx, req.From, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query nonce: %w", err)
	}

	unsignedTx := types.NewTransaction(nonce, req.To, req.Amount, utils.GasLimitTransfer, req.GasPrice, nil)
	signedTx, err := types.SignTx(unsignedTx, e.signer, req.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := e.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send tx: %w", err)
	}

	hash := signedTx.Hash()
	e.hashes.Record(hash.Hex())
	l.Info("Transaction sent", "hash", hash, "nonce", nonce,
		"amount", utils.WeiToEther(req.Amount), "gasPrice", utils.WeiToGwei(req.GasPrice)+" gwei")

	return &Submission{
		Hash:     hash,
		Nonce:    nonce,
		Amount:   new(big.Int).Set(req.Amount),
		GasPrice: new(big.Int).Set(req.GasPrice),
	}, nil
}
