package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "market",
		Short:        "NFT marketplace wallet client",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "wallet/node RPC URL")
	root.PersistentFlags().String("nft-address", "", "NFT registry contract address")
	root.PersistentFlags().String("marketplace-address", "", "marketplace contract address")
	root.PersistentFlags().Uint64("chain-id", 10143, "required chain id")
	root.PersistentFlags().Duration("poll-interval", 2*time.Second, "receipt poll interval")
	root.PersistentFlags().Duration("metadata-timeout", 10*time.Second, "metadata fetch timeout")
	root.PersistentFlags().Int("max-retries", 3, "maximum read retry attempts")
	root.PersistentFlags().Duration("retry-backoff", 500*time.Millisecond, "initial read retry backoff")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Connect and show session, balance, earnings, and fee",
		RunE:  runStatus,
	}
	root.AddCommand(statusCmd)

	mintCmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an NFT from a metadata URI",
		RunE:  runMint,
	}
	mintCmd.Flags().String("token-uri", "", "metadata URI for the new token")
	mintCmd.Flags().Bool("preview", false, "fetch and show the metadata before minting")
	root.AddCommand(mintCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List an owned token for sale (approves the marketplace first when needed)",
		RunE:  runList,
	}
	listCmd.Flags().Uint64("token-id", 0, "token id to list")
	listCmd.Flags().String("price", "", "sale price in ether units")
	root.AddCommand(listCmd)

	buyCmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy an active listing at its cached price",
		RunE:  runBuy,
	}
	buyCmd.Flags().Uint64("listing-id", 0, "listing id to buy")
	root.AddCommand(buyCmd)

	delistCmd := &cobra.Command{
		Use:   "delist",
		Short: "Remove one of your own listings",
		RunE:  runDelist,
	}
	delistCmd.Flags().Uint64("listing-id", 0, "listing id to remove")
	root.AddCommand(delistCmd)

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw accumulated sale proceeds",
		RunE:  runWithdraw,
	}
	root.AddCommand(withdrawCmd)

	listingsCmd := &cobra.Command{
		Use:   "listings",
		Short: "Sweep and print the active listings",
		RunE:  runListings,
	}
	listingsCmd.Flags().String("search", "", "filter by token id, seller, or name")
	listingsCmd.Flags().String("sort", "", "sort order (price-asc, price-desc)")
	listingsCmd.Flags().String("out", "", "append the sweep snapshot to a JSONL file")
	listingsCmd.Flags().String("pg-dsn", "", "upsert the sweep snapshot into Postgres")
	root.AddCommand(listingsCmd)

	holdingsCmd := &cobra.Command{
		Use:   "holdings",
		Short: "Sweep and print the connected account's tokens",
		RunE:  runHoldings,
	}
	holdingsCmd.Flags().String("out", "", "append the sweep snapshot to a JSONL file")
	holdingsCmd.Flags().String("pg-dsn", "", "upsert the sweep snapshot into Postgres")
	root.AddCommand(holdingsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
