package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"redbank/bank"
	"redbank/config"
	"redbank/crypto"
	"redbank/events"
	"redbank/observability/logging"
	"redbank/rpc"
	"redbank/rpc/modules"
	"redbank/storage"
)

// logEmitter mirrors bank events onto the structured log so operators can
// follow state transitions without a dedicated indexer.
type logEmitter struct {
	log *slog.Logger
}

func (e logEmitter) Emit(ev events.Event) {
	e.log.Info("bank event", "type", ev.EventType(), "event", ev)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memDB := flag.Bool("memdb", false, "DEV ONLY: keep all state in memory instead of on disk")
	flag.Parse()

	env := os.Getenv("REDBANK_ENV")
	logger := logging.Setup("redbankd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	owner, err := crypto.DecodeAddress(cfg.Owner)
	if err != nil {
		logger.Error("invalid owner address", "error", err)
		os.Exit(1)
	}
	collector, err := crypto.DecodeAddress(cfg.RewardsCollector)
	if err != nil {
		logger.Error("invalid rewards collector address", "error", err)
		os.Exit(1)
	}
	closeFactor, err := bank.DecFromString(cfg.CloseFactor)
	if err != nil {
		logger.Error("invalid close factor", "error", err)
		os.Exit(1)
	}

	var db storage.Database
	if *memDB {
		db = storage.NewMemDB()
	} else {
		path := filepath.Join(cfg.DataDir, "redbank")
		leveldb, err := storage.NewLevelDB(path)
		if err != nil {
			logger.Error("failed to open database", "path", path, "error", err)
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	engine := bank.NewEngine(owner, collector, closeFactor)
	engine.SetState(bank.NewStore(db))
	book := bank.NewBook(db)
	engine.SetLedger(book)
	engine.SetEmitter(logEmitter{log: logger})

	bankModule := modules.NewBankModule(engine, book)
	server := rpc.NewServer(bankModule)

	rpcSrv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting JSON-RPC server", "address", cfg.ListenAddress)
		if err := rpcSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("starting metrics server", "address", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rpcSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("rpc shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown", "error", err)
	}
}
