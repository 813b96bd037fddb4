package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"monadmarket/internal/cache"
	"monadmarket/internal/config"
	"monadmarket/internal/contracts"
	"monadmarket/internal/market"
	"monadmarket/internal/model"
	"monadmarket/internal/provider"
	"monadmarket/internal/session"
	"monadmarket/internal/storage"
	"monadmarket/internal/storage/postgres"
	"monadmarket/internal/txtrack"
)

// client bundles the wired components behind one CLI invocation.
type client struct {
	cfg          config.Config
	logger       *zap.Logger
	rpc          *provider.RPCProvider
	listings     *cache.ListingCache
	orchestrator *market.Orchestrator
	gateway      *contracts.Gateway
}

func newClient(ctx context.Context, cmd *cobra.Command) (*client, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.NFTAddress) {
		return nil, fmt.Errorf("nft contract address is required")
	}
	if !common.IsHexAddress(cfg.MarketplaceAddress) {
		return nil, fmt.Errorf("marketplace contract address is required")
	}

	rpcProvider, err := provider.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	sess := session.New(rpcProvider, cfg.Network(), logger)
	gateway := contracts.New(contracts.Config{
		NFTAddress:         common.HexToAddress(cfg.NFTAddress),
		MarketplaceAddress: common.HexToAddress(cfg.MarketplaceAddress),
		MaxRetries:         cfg.MaxRetries,
		RetryBackoff:       cfg.RetryBackoff,
	}, rpcProvider, sess, logger)
	tracker := txtrack.New(rpcProvider, cfg.PollInterval, logger)
	metadata := cache.NewMetadataFetcher(cfg.MetadataTimeout, logger)
	listings := cache.New(gateway, metadata, logger)

	orchestrator := market.New(sess, gateway, tracker, listings, logger)
	orchestrator.OnNotice(func(level, message string) {
		fmt.Printf("[%s] %s\n", level, message)
	})

	return &client{
		cfg:          cfg,
		logger:       logger,
		rpc:          rpcProvider,
		listings:     listings,
		orchestrator: orchestrator,
		gateway:      gateway,
	}, nil
}

func (c *client) close() {
	c.rpc.Close()
	_ = c.logger.Sync()
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext()
	defer stop()

	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.close()

	sess, err := c.orchestrator.Connect(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("account:  %s\n", sess.Account.Hex())
	fmt.Printf("chain id: %d\n", sess.ChainID)

	if balance, err := c.orchestrator.Balance(ctx); err == nil {
		fmt.Printf("balance:  %s %s\n", model.FormatEtherFixed(balance, 4), c.cfg.CurrencySymbol)
	}
	if earnings, err := c.orchestrator.Earnings(ctx); err == nil {
		fmt.Printf("earnings: %s %s\n", model.FormatEther(earnings), c.cfg.CurrencySymbol)
	}
	if fee, err := c.gateway.MarketplaceFee(ctx); err == nil {
		fmt.Printf("fee:      %s\n", fee)
	}
	return nil
}

func runMint(cmd *cobra.Command, _ []string) error {
	tokenURI, _ := cmd.Flags().GetString("token-uri")
	if tokenURI == "" {
		return fmt.Errorf("token-uri is required")
	}

	ctx, stop := commandContext()
	defer stop()

	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.close()

	// The preview is informational; a bad URI warns but does not block the mint.
	if preview, _ := cmd.Flags().GetBool("preview"); preview {
		if meta, err := c.orchestrator.Preview(ctx, tokenURI); err == nil {
			fmt.Printf("preview: %q %s\n", meta.Name, meta.Description)
			if meta.Image != "" {
				fmt.Printf("image:   %s\n", meta.Image)
			}
		}
	}

	if _, err := c.orchestrator.Connect(ctx); err != nil {
		return err
	}

	tokenID, err := c.orchestrator.Mint(ctx, tokenURI)
	if err != nil {
		return err
	}
	fmt.Printf("minted token %d\n", tokenID)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	tokenID, _ := cmd.Flags().GetUint64("token-id")
	price, _ := cmd.Flags().GetString("price")
	if tokenID == 0 {
		return fmt.Errorf("token-id is required")
	}
	if price == "" {
		return fmt.Errorf("price is required")
	}

	ctx, stop := commandContext()
	defer stop()

	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.orchestrator.Connect(ctx); err != nil {
		return err
	}
	return c.orchestrator.List(ctx, tokenID, price)
}

func runBuy(cmd *cobra.Command, _ []string) error {
	listingID, _ := cmd.Flags().GetUint64("listing-id")
	if listingID == 0 {
		return fmt.Errorf("listing-id is required")
	}

	ctx, stop := commandContext()
	defer stop()

	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.orchestrator.Connect(ctx); err != nil {
		return err
	}
	return c.orchestrator.Buy(ctx, listingID)
}

func runDelist(cmd *cobra.Command, _ []string) error {
	listingID, _ := cmd.Flags().GetUint64("listing-id")
	if listingID == 0 {
		return fmt.Errorf("listing-id is required")
	}

	ctx, stop := commandContext()
	defer stop()

	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.orchestrator.Connect(ctx); err != nil {
		return err
	}
	return c.orchestrator.Delist(ctx, listingID)
}

func runWithdraw(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext()
	defer stop()

	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.orchestrator.Connect(ctx); err != nil {
		return err
	}

	amount, err := c.orchestrator.Withdraw(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("withdrew %s %s\n", model.FormatEther(amount), c.cfg.CurrencySymbol)
	return nil
}

func runListings(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext()
	defer stop()

	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.close()

	sess, err := c.orchestrator.Connect(ctx)
	if err != nil {
		return err
	}

	listings := c.listings.Listings()
	if term, _ := cmd.Flags().GetString("search"); term != "" {
		listings = c.listings.Search(term)
	}
	switch order, _ := cmd.Flags().GetString("sort"); order {
	case "price-asc":
		listings = c.listings.SortedByPrice(true)
	case "price-desc":
		listings = c.listings.SortedByPrice(false)
	case "":
	default:
		return fmt.Errorf("unknown sort order %q", order)
	}

	for _, listing := range listings {
		fmt.Printf("#%d token %d %q by %s for %s %s\n",
			listing.ListingID, listing.TokenID, listing.Metadata.Name,
			listing.Seller, model.FormatEther(listing.PriceWei), c.cfg.CurrencySymbol)
	}
	fmt.Printf("%d active listings\n", len(listings))

	return persistSnapshot(ctx, cmd, model.MarketSnapshot{
		ChainID:  sess.ChainID,
		Account:  sess.Account.Hex(),
		Listings: c.listings.Listings(),
		SweptAt:  time.Now().UTC(),
	})
}

func runHoldings(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext()
	defer stop()

	c, err := newClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.close()

	sess, err := c.orchestrator.Connect(ctx)
	if err != nil {
		return err
	}

	holdings := c.listings.Holdings()
	for _, token := range holdings {
		state := ""
		if token.Listed {
			state = " (listed)"
		}
		fmt.Printf("token %d %q%s\n", token.TokenID, token.Metadata.Name, state)
	}
	fmt.Printf("%d tokens owned\n", len(holdings))

	return persistSnapshot(ctx, cmd, model.MarketSnapshot{
		ChainID:  sess.ChainID,
		Account:  sess.Account.Hex(),
		Holdings: holdings,
		SweptAt:  time.Now().UTC(),
	})
}

// persistSnapshot writes the sweep result to the configured sinks, if any.
func persistSnapshot(ctx context.Context, cmd *cobra.Command, snapshot model.MarketSnapshot) error {
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		sink := storage.NewJsonlStorage(out)
		if err := sink.PutSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if dsn, _ := cmd.Flags().GetString("pg-dsn"); dsn != "" {
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.PutSnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}
	}
	return nil
}
