package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"monadmarket/internal/provider"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL             string
	NFTAddress         string
	MarketplaceAddress string

	ChainID           uint64
	ChainName         string
	CurrencyName      string
	CurrencySymbol    string
	CurrencyDecimals  uint8
	NetworkRPCURLs    []string
	BlockExplorerURLs []string

	MetadataTimeout time.Duration
	PollInterval    time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration

	Out      string
	PGDSN    string
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Monad testnet defaults.
	v.SetDefault("chain-id", uint64(10143))
	v.SetDefault("chain-name", "Monad Testnet")
	v.SetDefault("currency-name", "ETH")
	v.SetDefault("currency-symbol", "ETH")
	v.SetDefault("currency-decimals", 18)
	v.SetDefault("network-rpc-urls", []string{"https://testnet-rpc.monad.xyz"})
	v.SetDefault("explorer-urls", []string{"https://testnet-explorer.monad.xyz"})

	v.SetDefault("metadata-timeout", 10*time.Second)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		NFTAddress:         v.GetString("nft-address"),
		MarketplaceAddress: v.GetString("marketplace-address"),
		ChainID:            v.GetUint64("chain-id"),
		ChainName:          v.GetString("chain-name"),
		CurrencyName:       v.GetString("currency-name"),
		CurrencySymbol:     v.GetString("currency-symbol"),
		CurrencyDecimals:   uint8(v.GetUint("currency-decimals")),
		NetworkRPCURLs:     getStringSlice(v, "network-rpc-urls"),
		BlockExplorerURLs:  getStringSlice(v, "explorer-urls"),
		MetadataTimeout:    v.GetDuration("metadata-timeout"),
		PollInterval:       v.GetDuration("poll-interval"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		Out:                v.GetString("out"),
		PGDSN:              v.GetString("pg-dsn"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, nil
}

// Network builds the wallet-facing network descriptor.
func (c Config) Network() provider.Network {
	return provider.Network{
		ChainID:           c.ChainID,
		ChainIDHex:        fmt.Sprintf("0x%X", c.ChainID),
		Name:              c.ChainName,
		CurrencyName:      c.CurrencyName,
		CurrencySymbol:    c.CurrencySymbol,
		CurrencyDecimals:  c.CurrencyDecimals,
		RPCURLs:           c.NetworkRPCURLs,
		BlockExplorerURLs: c.BlockExplorerURLs,
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
