package utils

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

var (
	// ErrNoReachableEndpoint is returned by Connect when no endpoint passes the liveness check.
	ErrNoReachableEndpoint = errors.New("no reachable rpc endpoint")
	// ErrChainIDMismatch is returned when an endpoint serves a different chain than configured.
	ErrChainIDMismatch = errors.New("chain id mismatch")
)

// EthClient wraps the ethereum client with rate limiting and a fixed chain id.
// Every call that reaches the endpoint waits on the limiter first.
type EthClient struct {
	cli       *ethclient.Client
	rpcClient *rpc.Client
	limiter   *rate.Limiter
	chainID   *big.Int
	url       string
}

// DialOptions tunes NewEthClient and Connect.
type DialOptions struct {
	// ChainID, when non-zero, must match the endpoint's eth_chainId.
	ChainID uint64
	// RateLimit caps requests per second across all users of the client; 0 disables it.
	RateLimit float64
	// HTTPClient overrides the pooled default.
	HTTPClient *http.Client
}

func (o DialOptions) limiter() *rate.Limiter {
	if o.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(o.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.RateLimit), burst)
}

// createHTTPClient creates an HTTP client with connection reuse for a handful of
// long-lived workers.
func createHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// NewEthClient dials url and queries eth_chainId as the liveness check.
func NewEthClient(ctx context.Context, url string, opts DialOptions) (*EthClient, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = createHTTPClient()
	}
	rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rpc client: %w", err)
	}

	e := &EthClient{
		cli:       ethclient.NewClient(rpcClient),
		rpcClient: rpcClient,
		limiter:   opts.limiter(),
		url:       url,
	}

	chainID, err := e.queryChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("liveness check failed: %w", err)
	}
	if opts.ChainID != 0 && chainID.Uint64() != opts.ChainID {
		rpcClient.Close()
		return nil, fmt.Errorf("%w: endpoint reports %s, expected %d", ErrChainIDMismatch, chainID, opts.ChainID)
	}
	e.chainID = chainID
	return e, nil
}

// Connect tries each url in order and adopts the first one that answers.
func Connect(ctx context.Context, urls []string, opts DialOptions, logger log.Logger) (*EthClient, error) {
	for _, url := range urls {
		cli, err := NewEthClient(ctx, url, opts)
		if err != nil {
			logger.Error("Failed to connect to endpoint", "url", url, "err", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		logger.Info("Connected to endpoint", "url", url, "chainId", cli.ChainID())
		return cli, nil
	}
	return nil, ErrNoReachableEndpoint
}

func (e *EthClient) queryChainID(ctx context.Context) (*big.Int, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.cli.ChainID(ctx)
}

// ChainID returns the chain id observed when the client was created.
func (e *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

// URL returns the endpoint this client is connected to.
func (e *EthClient) URL() string {
	return e.url
}

// BalanceAt returns the wei balance of account at blockNumber (nil for latest).
func (e *EthClient) BalanceAt(ctx context.Context, account ethcmn.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.cli.BalanceAt(ctx, account, blockNumber)
}

// NonceAt returns the account nonce at blockNumber (nil for latest).
func (e *EthClient) NonceAt(ctx context.Context, account ethcmn.Address, blockNumber *big.Int) (uint64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return e.cli.NonceAt(ctx, account, blockNumber)
}

// SendTransaction submits a signed transaction.
func (e *EthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	return e.cli.SendTransaction(ctx, tx)
}

// Close releases the underlying rpc connection.
func (e *EthClient) Close() {
	e.rpcClient.Close()
}
