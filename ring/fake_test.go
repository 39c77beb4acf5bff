package ring

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/VasiyaPuPk1N/monad-trans-andryuha/utils"
)

var testChainID = big.NewInt(10143)

func discardLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether))
}

// fakeChain is an in-memory Backend. Accepted transactions are applied to
// balances only when deliver returns true for them.
type fakeChain struct {
	mu       sync.Mutex
	signer   types.Signer
	balances map[ethcmn.Address]*big.Int
	nonces   map[ethcmn.Address]uint64
	sent     []*types.Transaction

	deliver    func(n int, tx *types.Transaction) bool // n is the 1-based count of accepted txs
	onSend     func(f *fakeChain, tx *types.Transaction)
	sendErr    error
	balanceErr map[ethcmn.Address]error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		signer:     types.NewLondonSigner(testChainID),
		balances:   make(map[ethcmn.Address]*big.Int),
		nonces:     make(map[ethcmn.Address]uint64),
		deliver:    func(int, *types.Transaction) bool { return true },
		balanceErr: make(map[ethcmn.Address]error),
	}
}

func (f *fakeChain) setBalance(addr ethcmn.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = new(big.Int).Set(wei)
}

// setBalanceLocked is for use from onSend, which runs with mu held.
func (f *fakeChain) setBalanceLocked(addr ethcmn.Address, wei *big.Int) {
	f.balances[addr] = new(big.Int).Set(wei)
}

func (f *fakeChain) balance(addr ethcmn.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (f *fakeChain) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func (f *fakeChain) BalanceAt(ctx context.Context, account ethcmn.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.balanceErr[account]; err != nil {
		return nil, err
	}
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeChain) NonceAt(ctx context.Context, account ethcmn.Address, blockNumber *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	from, err := types.Sender(f.signer, tx)
	if err != nil {
		return err
	}
	if tx.Nonce() != f.nonces[from] {
		return errors.New("nonce too low")
	}
	f.sent = append(f.sent, tx)
	if f.onSend != nil {
		f.onSend(f, tx)
	}
	if !f.deliver(len(f.sent), tx) {
		return nil
	}
	cost := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))
	cost.Add(cost, tx.Value())
	bal := f.balances[from]
	if bal == nil {
		bal = new(big.Int)
	}
	f.balances[from] = new(big.Int).Sub(bal, cost)
	to := *tx.To()
	recv := f.balances[to]
	if recv == nil {
		recv = new(big.Int)
	}
	f.balances[to] = new(big.Int).Add(recv, tx.Value())
	f.nonces[from]++
	return nil
}

func newTestKeyRing(t *testing.T, n int) *utils.KeyRing {
	t.Helper()
	ring := &utils.KeyRing{}
	for i := 0; i < n; i++ {
		pk, err := crypto.GenerateKey()
		require.NoError(t, err)
		ring.Keys = append(ring.Keys, pk)
		ring.Addresses = append(ring.Addresses, crypto.PubkeyToAddress(pk.PublicKey))
	}
	return ring
}

func senderOf(t *testing.T, tx *types.Transaction) ethcmn.Address {
	t.Helper()
	from, err := types.Sender(types.NewLondonSigner(testChainID), tx)
	require.NoError(t, err)
	return from
}

func requireWei(t *testing.T, want, got *big.Int) {
	t.Helper()
	require.NotNil(t, got)
	require.Zerof(t, want.Cmp(got), "want %s, got %s", want, got)
}
