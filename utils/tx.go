package utils

import (
	"fmt"
	"math"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
)

// GasLimitTransfer is the intrinsic gas of a plain value transfer.
const GasLimitTransfer uint64 = 21000

// GweiToWei converts a fractional gwei amount to wei, truncating below one wei.
func GweiToWei(gwei float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(gwei), new(big.Float).SetUint64(params.GWei))
	wei, _ := f.Int(nil)
	return wei
}

// WeiToGwei renders wei as a decimal gwei string.
func WeiToGwei(wei *big.Int) string {
	return formatUnits(wei, params.GWei, 3)
}

// WeiToEther renders wei as a decimal ether string.
func WeiToEther(wei *big.Int) string {
	return formatUnits(wei, params.Ether, 6)
}

func formatUnits(wei *big.Int, unit uint64, prec int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetUint64(unit))
	return f.Text('f', prec)
}

// ScaleWei returns floor(wei * fraction) with fraction rounded to parts per million.
func ScaleWei(wei *big.Int, fraction float64) *big.Int {
	ppm := big.NewInt(int64(math.Round(fraction * 1e6)))
	out := new(big.Int).Mul(wei, ppm)
	return out.Div(out, big.NewInt(1_000_000))
}

// ExplorerLink fills the {address} placeholder of tpl, or appends the address
// when the template has no placeholder.
func ExplorerLink(tpl, address string) string {
	if tpl == "" {
		return ""
	}
	if strings.Contains(tpl, "{address}") {
		return strings.ReplaceAll(tpl, "{address}", address)
	}
	return tpl + address
}

// TxHashRecorder appends submitted transaction hashes to a file from a
// background goroutine. Record never blocks; hashes are dropped when the
// buffer is full. A nil recorder is valid and records nothing.
type TxHashRecorder struct {
	ch     chan string
	file   *os.File
	wg     sync.WaitGroup
	once   sync.Once
	logger log.Logger
}

// NewTxHashRecorder truncates path and starts the writer goroutine.
func NewTxHashRecorder(path string, buffer int, logger log.Logger) (*TxHashRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open tx hash file: %w", err)
	}
	if buffer < 1 {
		buffer = 1
	}
	r := &TxHashRecorder{
		ch:     make(chan string, buffer),
		file:   f,
		logger: logger,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for hash := range r.ch {
			if _, err := r.file.WriteString(hash + "\n"); err != nil {
				r.logger.Warn("Failed to write tx hash", "hash", hash, "err", err)
			}
		}
	}()
	logger.Info("TxHash writer enabled", "path", path)
	return r, nil
}

// Record queues hash for writing.
func (r *TxHashRecorder) Record(hash string) {
	if r == nil {
		return
	}
	select {
	case r.ch <- hash:
	default:
		r.logger.Warn("TxHash buffer full, dropping hash", "hash", hash)
	}
}

// Close flushes queued hashes and closes the file. Record must not be called afterwards.
func (r *TxHashRecorder) Close() error {
	if r == nil {
		return nil
	}
	var err error
	r.once.Do(func() {
		close(r.ch)
		r.wg.Wait()
		err = r.file.Close()
	})
	return err
}
