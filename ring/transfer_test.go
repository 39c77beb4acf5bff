package ring

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/VasiyaPuPk1N/monad-trans-andryuha/utils"
)

var testTransferConfig = TransferConfig{
	MinSendPercent:     0.05,
	MaxSendPercent:     0.05,
	BaseGasPriceGwei:   50,
	GasPriceJitterGwei: 0,
	ExplorerURL:        "https://explorer.test/address/{address}",
}

func newTestTransferrer(chain *fakeChain, keys *utils.KeyRing) *Transferrer {
	exec := NewExecutor(chain, testChainID, nil, discardLogger())
	poller := NewPoller(chain, time.Millisecond, 20*time.Millisecond, testTransferConfig.ExplorerURL)
	return NewTransferrer(chain, keys, exec, poller, NewRandom(1), testTransferConfig)
}

func fundAll(chain *fakeChain, keys *utils.KeyRing, wei *big.Int) {
	for _, addr := range keys.Addresses {
		chain.setBalance(addr, wei)
	}
}

func TestTransferConfirmedWithoutRetry(t *testing.T) {
	keys := newTestKeyRing(t, 3)
	chain := newFakeChain()
	fundAll(chain, keys, ether(1))

	res := newTestTransferrer(chain, keys).Transfer(context.Background(), 1, discardLogger())
	require.Equal(t, OutcomeConfirmed, res.Outcome)
	require.NoError(t, res.Err)
	require.Len(t, res.Submissions, 1)

	txs := chain.sentTxs()
	require.Len(t, txs, 1)
	require.Equal(t, keys.Addresses[1], senderOf(t, txs[0]))
	require.Equal(t, keys.Addresses[2], *txs[0].To())
	// 5% of one ether at 50 gwei
	requireWei(t, new(big.Int).Div(ether(1), big.NewInt(20)), txs[0].Value())
	requireWei(t, utils.GweiToWei(50), txs[0].GasPrice())
}

func TestTransferLastWalletWrapsToFirst(t *testing.T) {
	keys := newTestKeyRing(t, 3)
	chain := newFakeChain()
	fundAll(chain, keys, ether(1))

	res := newTestTransferrer(chain, keys).Transfer(context.Background(), 2, discardLogger())
	require.Equal(t, OutcomeConfirmed, res.Outcome)
	require.Equal(t, keys.Addresses[0], *chain.sentTxs()[0].To())
}

func TestTransferUnconfirmedAfterOneRetry(t *testing.T) {
	keys := newTestKeyRing(t, 2)
	chain := newFakeChain()
	chain.deliver = func(int, *types.Transaction) bool { return false }
	fundAll(chain, keys, ether(1))

	res := newTestTransferrer(chain, keys).Transfer(context.Background(), 0, discardLogger())
	require.Equal(t, OutcomeUnconfirmed, res.Outcome)
	require.Len(t, res.Submissions, 2)

	txs := chain.sentTxs()
	require.Len(t, txs, 2)
	requireWei(t, new(big.Int).Mul(txs[0].GasPrice(), big.NewInt(2)), txs[1].GasPrice())
	require.Equal(t, txs[0].Nonce(), txs[1].Nonce())
	requireWei(t, txs[0].Value(), txs[1].Value())
	require.Equal(t, *txs[0].To(), *txs[1].To())
}

func TestTransferRetryConfirmed(t *testing.T) {
	keys := newTestKeyRing(t, 2)
	chain := newFakeChain()
	chain.deliver = func(n int, _ *types.Transaction) bool { return n == 2 }
	fundAll(chain, keys, ether(1))

	res := newTestTransferrer(chain, keys).Transfer(context.Background(), 0, discardLogger())
	require.Equal(t, OutcomeRetryConfirmed, res.Outcome)
	require.Len(t, res.Submissions, 2)
	requireWei(t, utils.GweiToWei(100), res.Submissions[1].GasPrice)
}

func TestTransferRetryInsufficientFunds(t *testing.T) {
	keys := newTestKeyRing(t, 2)
	chain := newFakeChain()
	chain.deliver = func(int, *types.Transaction) bool { return false }
	chain.onSend = func(f *fakeChain, tx *types.Transaction) {
		f.setBalanceLocked(keys.Addresses[0], tx.Value())
	}
	fundAll(chain, keys, ether(1))

	res := newTestTransferrer(chain, keys).Transfer(context.Background(), 0, discardLogger())
	require.Equal(t, OutcomeRetryInsufficientFunds, res.Outcome)
	require.Len(t, res.Submissions, 1)
	require.Len(t, chain.sentTxs(), 1)
}

func TestTransferRetrySendFails(t *testing.T) {
	keys := newTestKeyRing(t, 2)
	chain := newFakeChain()
	chain.deliver = func(int, *types.Transaction) bool { return false }
	errUnderpriced := errors.New("replacement transaction underpriced")
	chain.onSend = func(f *fakeChain, _ *types.Transaction) {
		f.sendErr = errUnderpriced
	}
	fundAll(chain, keys, ether(1))

	res := newTestTransferrer(chain, keys).Transfer(context.Background(), 0, discardLogger())
	require.Equal(t, OutcomeSendFailed, res.Outcome)
	require.ErrorIs(t, res.Err, errUnderpriced)
	require.Len(t, res.Submissions, 1)
	require.Len(t, chain.sentTxs(), 1)
}

func TestTransferSkipsWhenBalanceTooLow(t *testing.T) {
	keys := newTestKeyRing(t, 2)

	t.Run("empty wallet", func(t *testing.T) {
		chain := newFakeChain()
		res := newTestTransferrer(chain, keys).Transfer(context.Background(), 0, discardLogger())
		require.Equal(t, OutcomeInsufficientBalance, res.Outcome)
		require.ErrorIs(t, res.Err, ErrInsufficientBalance)
		require.Empty(t, chain.sentTxs())
	})

	t.Run("dust wallet", func(t *testing.T) {
		chain := newFakeChain()
		// 5% of 1 gwei cannot pay 21000 gas at 50 gwei
		chain.setBalance(keys.Addresses[0], big.NewInt(1e9))
		res := newTestTransferrer(chain, keys).Transfer(context.Background(), 0, discardLogger())
		require.Equal(t, OutcomeInsufficientGas, res.Outcome)
		require.Empty(t, chain.sentTxs())
	})
}

func TestTransferCanceled(t *testing.T) {
	keys := newTestKeyRing(t, 2)
	chain := newFakeChain()
	chain.deliver = func(int, *types.Transaction) bool { return false }
	fundAll(chain, keys, ether(1))

	ctx, cancel := context.WithCancel(context.Background())
	chain.onSend = func(*fakeChain, *types.Transaction) { cancel() }

	res := newTestTransferrer(chain, keys).Transfer(ctx, 0, discardLogger())
	require.Equal(t, OutcomeCanceled, res.Outcome)
	require.Len(t, res.Submissions, 1)
}

func TestOutcomeString(t *testing.T) {
	for o := OutcomeConfirmed; o <= OutcomeCanceled; o++ {
		require.NotEqual(t, "unknown", o.String())
	}
	require.Equal(t, "unknown", Outcome(99).String())
}
