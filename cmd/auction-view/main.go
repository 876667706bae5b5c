// Command auction-view keeps a reconciled view of an auction program and serves it over HTTP.
//
// Public state is read from the explorer APIs. Private state comes from a JSON export of the
// wallet's decrypted records (wallet.records_file). Market actions are prepared against the
// reconciled state and queued for signing; nothing is broadcast.
//
// Usage:
//
//	auction-view --config auctionview.yaml
//	auction-view --once --export snapshot.cbor
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/cloudx-io/auctionview/config"
	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/dispatch"
	"github.com/cloudx-io/auctionview/explorer"
	"github.com/cloudx-io/auctionview/ledgerapi"
	"github.com/cloudx-io/auctionview/market"
	"github.com/cloudx-io/auctionview/metadata"
	"github.com/cloudx-io/auctionview/reconcile"
	"github.com/cloudx-io/auctionview/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		listen     string
		once       bool
		exportPath string
	)
	flagSet := pflag.NewFlagSet("auction-view", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (default: $AUCTIONVIEW_CONFIG)")
	flagSet.StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	flagSet.BoolVar(&once, "once", false, "refresh once, print auctions as JSON and exit")
	flagSet.StringVar(&exportPath, "export", "", "write a CBOR snapshot of the state to this file after --once")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.store.Close()

	if once {
		return runOnce(ctx, app, exportPath)
	}
	return serve(ctx, cfg, app, logger)
}

// app holds the wired components.
type app struct {
	store   *store.Store
	private bool
	api     *api
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	client, err := explorer.NewClient(explorer.ClientConfig{
		NodeURL:    cfg.NodeURL,
		ListingURL: cfg.ListingURL,
		Network:    cfg.Network,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	cache, err := metadata.NewCache(metadata.Options{Fetcher: client, Size: cfg.MetadataCacheSize, Logger: logger})
	if err != nil {
		return nil, err
	}
	public, err := reconcile.NewPublicReducer(reconcile.PublicOptions{
		Source:      client,
		ProgramID:   cfg.ProgramID,
		Concurrency: cfg.QueryConcurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	var wallet ledgerapi.Wallet
	if cfg.Wallet.RecordsFile != "" {
		records := &ledgerapi.RecordFile{Path: cfg.Wallet.RecordsFile}
		if err := records.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to open wallet records: %w", err)
		}
		wallet = records
	}

	s, err := store.New(store.Options{
		ProgramID: cfg.ProgramID,
		Public:    public,
		Wallet:    wallet,
		Metadata:  cache,
		Session:   cfg.Wallet.Session,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	box := &outbox{logger: logger}
	svc, err := market.New(market.Options{
		Store:      s,
		Dispatcher: dispatch.New(dispatch.Options{Events: box, Direct: box, Network: cfg.Network, Logger: logger}),
		ProgramID:  cfg.ProgramID,
		WalletKind: cfg.WalletKind(),
		Logger:     logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	return &app{
		store:   s,
		private: wallet != nil,
		api:     &api{store: s, market: svc, outbox: box, logger: logger},
	}, nil
}

func runOnce(ctx context.Context, a *app, exportPath string) error {
	if err := a.store.Refresh(ctx, a.private); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.store.Auctions()); err != nil {
		return err
	}
	if exportPath == "" {
		return nil
	}
	data, err := core.EncodeState(a.store.Snapshot())
	if err != nil {
		return err
	}
	return os.WriteFile(exportPath, data, 0o644)
}

func serve(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger) error {
	interval, _ := cfg.Interval()
	if interval > 0 {
		go refreshLoop(ctx, a, interval, logger)
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(a.api),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving auction view", "addr", cfg.Listen, "program", cfg.ProgramID, "network", cfg.Network)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

// refreshLoop refreshes immediately and then every interval until ctx is done.
func refreshLoop(ctx context.Context, a *app, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := a.store.Refresh(ctx, a.private); err != nil && ctx.Err() == nil {
			logger.Warn("periodic refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
