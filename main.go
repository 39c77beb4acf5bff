package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"

	"github.com/VasiyaPuPk1N/monad-trans-andryuha/ring"
	"github.com/VasiyaPuPk1N/monad-trans-andryuha/utils"
)

const (
	FlagConfigFile = "config-file"
)

var (
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ring-transfer",
		Short: "Round-robin native token transfers between test wallets",
		Long: `Cycles native token transfers around a fixed ring of wallets to simulate
transaction activity on a test network. Each wallet sends a random share of its
balance to the next wallet in the ring and waits for the funds to arrive.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, FlagConfigFile, "f", "", "Path to the configuration file (JSON, YAML or TOML)")

	rootCmd.AddCommand(
		runCmd(),
		keysCmd(),
		balancesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger every command starts from.
func setup() (utils.Config, log.Logger, error) {
	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := utils.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogColor)
	if err != nil {
		return cfg, nil, fmt.Errorf("invalid logLevel %q: %w", cfg.LogLevel, err)
	}
	log.SetDefault(logger)
	return cfg, logger, nil
}

func dialOptions(cfg utils.Config) utils.DialOptions {
	return utils.DialOptions{ChainID: cfg.ChainID, RateLimit: cfg.RpcRateLimit}
}

// checkWalletCount reports whether a run may start with n loaded wallets.
// A zero ExpectedWallets accepts any non-empty ring.
func checkWalletCount(cfg utils.Config, n int, logger log.Logger) bool {
	if cfg.ExpectedWallets != 0 && n != cfg.ExpectedWallets {
		logger.Error("Unexpected wallet count, not starting", "expected", cfg.ExpectedWallets, "found", n)
		return false
	}
	if n == 0 {
		logger.Error("No valid wallets, not starting")
		return false
	}
	return true
}

// interrupted turns a signal-driven cancellation into a clean exit.
func interrupted(err error, logger log.Logger) error {
	if errors.Is(err, context.Canceled) {
		logger.Info("Terminating gracefully")
		return nil
	}
	return err
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the transfer ring until interrupted",
		Long: `Load keys, connect to the first reachable endpoint and cycle transfers
around the ring. Stops cleanly on SIGINT or SIGTERM.

Example:
  ring-transfer run -f ./config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			keys, err := utils.LoadKeyRing(cfg.KeysFilePath, logger)
			if err != nil {
				return err
			}
			if !checkWalletCount(cfg, keys.Len(), logger) {
				return nil
			}

			cli, err := utils.Connect(ctx, cfg.Rpc, dialOptions(cfg), logger)
			if err != nil {
				return interrupted(err, logger)
			}
			defer cli.Close()

			var hashes *utils.TxHashRecorder
			if cfg.SaveTxHashes {
				hashes, err = utils.NewTxHashRecorder(cfg.TxHashFile, 1024, logger)
				if err != nil {
					return err
				}
				defer hashes.Close()
			}

			rnd := ring.NewRandom(time.Now().UnixNano())
			exec := ring.NewExecutor(cli, cli.ChainID(), hashes, logger)
			poller := ring.NewPoller(cli, cfg.PollInterval, cfg.ConfirmTimeout, cfg.ExplorerURL)
			transferrer := ring.NewTransferrer(cli, keys, exec, poller, rnd, ring.TransferConfig{
				MinSendPercent:     cfg.MinSendPercent,
				MaxSendPercent:     cfg.MaxSendPercent,
				BaseGasPriceGwei:   cfg.BaseGasPriceGwei,
				GasPriceJitterGwei: cfg.GasPriceJitterGwei,
				ExplorerURL:        cfg.ExplorerURL,
			})
			dispatcher := ring.NewDispatcher(ring.DispatcherConfig{
				GroupSize:        cfg.GroupSize,
				MinTransferPause: cfg.MinTransferPause,
				MaxTransferPause: cfg.MaxTransferPause,
				CyclePause:       cfg.CyclePause,
				Cycles:           cfg.Cycles,
			}, keys.Len(), transferrer, rnd, ring.NewStats(), logger)

			logger.Info("Starting transfer ring", "wallets", keys.Len(),
				"groups", len(ring.Groups(keys.Len(), cfg.GroupSize)), "groupSize", cfg.GroupSize)
			return interrupted(dispatcher.Run(ctx), logger)
		},
	}
}

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Validate the key file and print the ring plan",
		Long: `Load the key file without touching the network, print every derived
address with its ring successor, and the group each wallet is processed in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			keys, err := utils.LoadKeyRing(cfg.KeysFilePath, logger)
			if err != nil {
				return err
			}
			if keys.Len() == 0 {
				return errors.New("no valid keys found")
			}
			n := keys.Len()
			for _, g := range ring.Groups(n, cfg.GroupSize) {
				for i := g.Start; i < g.End; i++ {
					fmt.Printf("group %d  #%d %s -> #%d %s\n", g.ID, i, keys.Addresses[i], ring.Successor(i, n), keys.Addresses[ring.Successor(i, n)])
				}
			}
			if cfg.ExpectedWallets != 0 && n != cfg.ExpectedWallets {
				return fmt.Errorf("expected %d wallets, found %d", cfg.ExpectedWallets, n)
			}
			return nil
		},
	}
}

func balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Print the live balance of every wallet in the ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			keys, err := utils.LoadKeyRing(cfg.KeysFilePath, logger)
			if err != nil {
				return err
			}
			cli, err := utils.Connect(ctx, cfg.Rpc, dialOptions(cfg), logger)
			if err != nil {
				return interrupted(err, logger)
			}
			defer cli.Close()

			for i, addr := range keys.Addresses {
				balance, err := cli.BalanceAt(ctx, addr, nil)
				if err != nil {
					return interrupted(fmt.Errorf("failed to query balance of %s: %w", addr, err), logger)
				}
				fmt.Printf("#%d %s %s  %s\n", i, addr, utils.WeiToEther(balance), utils.ExplorerLink(cfg.ExplorerURL, addr.Hex()))
			}
			return nil
		},
	}
}
