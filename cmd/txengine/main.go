// Command txengine runs the transaction engine's HTTP server: it wires
// config, the ambient stack (logging, metrics, auth), the in-memory
// ledger store, the external HTTP collaborators, and the six §4
// services behind the public HTTP API, then serves until signaled to
// shut down gracefully.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/example/txengine/internal/auth"
	"github.com/example/txengine/internal/clients"
	"github.com/example/txengine/internal/config"
	"github.com/example/txengine/internal/handlers"
	"github.com/example/txengine/internal/metrics"
	"github.com/example/txengine/internal/middleware"
	"github.com/example/txengine/internal/models"
	"github.com/example/txengine/internal/repo"
	"github.com/example/txengine/internal/services/blockchain"
	"github.com/example/txengine/internal/services/classifier"
	"github.com/example/txengine/internal/services/composer"
	"github.com/example/txengine/internal/services/converter"
	"github.com/example/txengine/internal/services/system"
	"github.com/example/txengine/internal/services/transactions"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	store := repo.NewStore()
	accountsRepo := repo.NewAccountsRepo(store)
	transactionsRepo := repo.NewTransactionsRepo(store)
	pendingRepo := repo.NewPendingRepo(store)
	chainTxRepo := repo.NewChainTxRepo(store)

	exchangeClient := clients.NewHTTPExchangeClient(cfg.Exchange.URL, cfg.Exchange.UserToken, cfg.Exchange.SystemToken, m)
	keysClient := clients.NewHTTPKeysClient(cfg.Exchange.URL, cfg.Exchange.UserToken)
	blockchainClient := clients.NewHTTPBlockchainClient(cfg.Exchange.URL, cfg.Exchange.UserToken)

	systemSvc := system.New(system.AccountIDs{
		LiquidityCr: map[models.Currency]int64{
			models.BTC: cfg.Accounts.BTCLiquidityCrAccountID,
			models.ETH: cfg.Accounts.ETHLiquidityCrAccountID,
			models.STQ: cfg.Accounts.STQLiquidityCrAccountID,
		},
		FeesCr: map[models.Currency]int64{
			models.BTC: cfg.Accounts.BTCFeesCrAccountID,
			models.ETH: cfg.Accounts.ETHFeesCrAccountID,
			models.STQ: cfg.Accounts.STQFeesCrAccountID,
		},
		TransferCr: map[models.Currency]int64{
			models.BTC: cfg.Accounts.BTCTransferCrAccountID,
			models.ETH: cfg.Accounts.ETHTransferCrAccountID,
			models.STQ: cfg.Accounts.STQTransferCrAccountID,
		},
	}, accountsRepo)

	blockchainSvc := blockchain.New(
		exchangeClient, keysClient, blockchainClient,
		pendingRepo, store, systemSvc,
		blockchain.FeesOptions{
			FeeUpside:          cfg.Fees.FeeUpside,
			BTCTransactionSize: cfg.Fees.BTCTransactionSize,
			ETHGasLimit:        cfg.Fees.ETHGasLimit,
			STQGasLimit:        cfg.Fees.STQGasLimit,
		},
		bitcoinParams(cfg.Bitcoin.Network),
		logger,
		m,
	)

	classifierSvc := classifier.New(accountsRepo, transactionsRepo)
	composerSvc := composer.New(transactionsRepo, systemSvc, blockchainSvc, exchangeClient, logger, m)
	converterSvc := converter.New(accountsRepo, pendingRepo, chainTxRepo)

	authSvc := auth.New(cfg.JWT.Secret)

	txSvc := transactions.New(
		authSvc, classifierSvc, composerSvc, converterSvc,
		store, transactionsRepo, accountsRepo, exchangeClient, logger,
	)

	h := handlers.New(txSvc)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := middleware.Chain(mux,
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.Metrics(m),
		middleware.CORS(cfg.CORS),
		middleware.RateLimit(cfg.RateLimit),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out zerolog.ConsoleWriter
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func bitcoinParams(network string) *chaincfg.Params {
	switch network {
	case "testnet3":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
