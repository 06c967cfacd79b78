package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/openshelf/shelf-sync-node/api"
	"github.com/openshelf/shelf-sync-node/config"
	"github.com/openshelf/shelf-sync-node/constant"
	"github.com/openshelf/shelf-sync-node/db"
	"github.com/openshelf/shelf-sync-node/engine"
	"github.com/openshelf/shelf-sync-node/keys"
	"github.com/openshelf/shelf-sync-node/ledger"
	"github.com/openshelf/shelf-sync-node/logger"
	"github.com/openshelf/shelf-sync-node/wallet"
)

// Environment variables consumed at startup. The secret and wallet key are
// never written to the config file.
const (
	envIdentifier = "SHELF_IDENTIFIER"
	envSecret     = "SHELF_SECRET"
	envWalletKey  = "SHELF_WALLET_KEY"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := cmd.Flags().GetString("home")
			if err != nil {
				return err
			}
			return runStart(home)
		},
	}
}

func runStart(home string) error {
	cfg, err := config.Load(home)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

	identifier := os.Getenv(envIdentifier)
	secret := os.Getenv(envSecret)
	walletKey := os.Getenv(envWalletKey)
	if identifier == "" || secret == "" {
		return fmt.Errorf("%s and %s must be set", envIdentifier, envSecret)
	}
	if walletKey == "" {
		return fmt.Errorf("%s must be set", envWalletKey)
	}

	creds := keys.DeriveCredentials(identifier, secret, cfg.PBKDF2Iterations)

	database, err := db.OpenFileDB(
		filepath.Join(home, constant.DatabasesSubdir), constant.DatabaseFileName, true)
	if err != nil {
		// Storage unavailable is fatal: reconciliation depends on a durable
		// local store and there is no degraded mode.
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer database.Close()

	walletClient, err := wallet.NewEVMClient(cfg.EVMRPCURL, walletKey, cfg.EVMChainID, log)
	if err != nil {
		return fmt.Errorf("failed to create wallet client: %w", err)
	}

	ledgerClient := ledger.NewHTTPClient(
		cfg.BundlerURL, cfg.FastIndexURL, cfg.CanonicalURL, cfg.Gateways, cfg.Token, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(cfg, database, ledgerClient, walletClient, creds, nil, clock.New(), log)
	eng.Start(ctx)
	defer eng.Stop()

	server := api.NewServer(eng, log, cfg.QueryServerPort)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}

	log.Info().
		Str("home", home).
		Int("port", cfg.QueryServerPort).
		Msg("shelfsyncd running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown failed")
	}
	return nil
}
