package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. RING_GROUPSIZE.
const EnvPrefix = "RING"

type Config struct {
	Rpc             []string `mapstructure:"rpc"`
	KeysFilePath    string   `mapstructure:"keysFilePath"`
	ExpectedWallets int      `mapstructure:"expectedWallets"` // 0 disables the wallet count check
	ChainID         uint64   `mapstructure:"chainId"`         // 0 accepts whatever the endpoint reports
	GroupSize       int      `mapstructure:"groupSize"`

	PollInterval   time.Duration `mapstructure:"pollInterval"`
	ConfirmTimeout time.Duration `mapstructure:"confirmTimeout"`

	BaseGasPriceGwei   float64 `mapstructure:"baseGasPriceGwei"`
	GasPriceJitterGwei float64 `mapstructure:"gasPriceJitterGwei"`
	MinSendPercent     float64 `mapstructure:"minSendPercent"`
	MaxSendPercent     float64 `mapstructure:"maxSendPercent"`

	MinTransferPause time.Duration `mapstructure:"minTransferPause"`
	MaxTransferPause time.Duration `mapstructure:"maxTransferPause"`
	CyclePause       time.Duration `mapstructure:"cyclePause"`
	Cycles           int           `mapstructure:"cycles"` // 0 means run until interrupted

	ExplorerURL  string  `mapstructure:"explorerURL"`
	RpcRateLimit float64 `mapstructure:"rpcRateLimit"` // requests per second, 0 means no limit
	SaveTxHashes bool    `mapstructure:"saveTxHashes"`
	TxHashFile   string  `mapstructure:"txHashFile"`
	LogLevel     string  `mapstructure:"logLevel"`
	LogColor     bool    `mapstructure:"logColor"`
}

// DefaultConfig returns the settings of the Monad testnet deployment.
func DefaultConfig() Config {
	return Config{
		Rpc:                []string{"https://testnet-rpc.monad.xyz"},
		KeysFilePath:       "private.txt",
		ExpectedWallets:    10,
		ChainID:            10143,
		GroupSize:          2,
		PollInterval:       10 * time.Second,
		ConfirmTimeout:     180 * time.Second,
		BaseGasPriceGwei:   50,
		GasPriceJitterGwei: 5,
		MinSendPercent:     0.03,
		MaxSendPercent:     0.08,
		MinTransferPause:   3 * time.Second,
		MaxTransferPause:   7 * time.Second,
		CyclePause:         30 * time.Second,
		ExplorerURL:        "https://testnet.monadexplorer.com/address/{address}",
		TxHashFile:         "txhashes.log",
		LogLevel:           "info",
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("rpc", d.Rpc)
	v.SetDefault("keysFilePath", d.KeysFilePath)
	v.SetDefault("expectedWallets", d.ExpectedWallets)
	v.SetDefault("chainId", d.ChainID)
	v.SetDefault("groupSize", d.GroupSize)
	v.SetDefault("pollInterval", d.PollInterval)
	v.SetDefault("confirmTimeout", d.ConfirmTimeout)
	v.SetDefault("baseGasPriceGwei", d.BaseGasPriceGwei)
	v.SetDefault("gasPriceJitterGwei", d.GasPriceJitterGwei)
	v.SetDefault("minSendPercent", d.MinSendPercent)
	v.SetDefault("maxSendPercent", d.MaxSendPercent)
	v.SetDefault("minTransferPause", d.MinTransferPause)
	v.SetDefault("maxTransferPause", d.MaxTransferPause)
	v.SetDefault("cyclePause", d.CyclePause)
	v.SetDefault("cycles", d.Cycles)
	v.SetDefault("explorerURL", d.ExplorerURL)
	v.SetDefault("rpcRateLimit", d.RpcRateLimit)
	v.SetDefault("saveTxHashes", d.SaveTxHashes)
	v.SetDefault("txHashFile", d.TxHashFile)
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logColor", d.LogColor)
}

// LoadConfig reads the configuration file at path (any format viper understands)
// on top of the defaults and applies RING_* environment overrides. An empty path
// loads defaults and environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.Rpc) == 0 {
		errs = append(errs, errors.New("rpc: at least one endpoint is required"))
	}
	if c.KeysFilePath == "" {
		errs = append(errs, errors.New("keysFilePath must be set"))
	}
	if c.ExpectedWallets < 0 {
		errs = append(errs, errors.New("expectedWallets must not be negative"))
	}
	if c.GroupSize < 1 {
		errs = append(errs, errors.New("groupSize must be at least 1"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("pollInterval must be positive"))
	}
	if c.ConfirmTimeout < c.PollInterval {
		errs = append(errs, errors.New("confirmTimeout must not be shorter than pollInterval"))
	}
	if c.BaseGasPriceGwei <= 0 || c.GasPriceJitterGwei < 0 {
		errs = append(errs, errors.New("baseGasPriceGwei must be positive and gasPriceJitterGwei non-negative"))
	}
	if c.MinSendPercent <= 0 || c.MaxSendPercent < c.MinSendPercent || c.MaxSendPercent >= 1 {
		errs = append(errs, errors.New("send percent range must satisfy 0 < minSendPercent <= maxSendPercent < 1"))
	}
	if c.MinTransferPause < 0 || c.MaxTransferPause < c.MinTransferPause {
		errs = append(errs, errors.New("transfer pause range must satisfy 0 <= minTransferPause <= maxTransferPause"))
	}
	if c.CyclePause < 0 {
		errs = append(errs, errors.New("cyclePause must not be negative"))
	}
	if c.Cycles < 0 {
		errs = append(errs, errors.New("cycles must not be negative"))
	}
	if c.RpcRateLimit < 0 {
		errs = append(errs, errors.New("rpcRateLimit must not be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("logLevel: %w", err))
	}
	if c.SaveTxHashes && c.TxHashFile == "" {
		errs = append(errs, errors.New("txHashFile must be set when saveTxHashes is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
