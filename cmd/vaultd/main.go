package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"stellavault/config"
	"stellavault/core"
	"stellavault/observability/logging"
	"stellavault/rpc"
	"stellavault/state"
	"stellavault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memDB := flag.Bool("memdb", false, "DEV ONLY: run against an in-memory database")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SVT_ENV"))
	logger := logging.Setup("vaultd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Env
	}
	logger.Info("configuration loaded",
		slog.String("network", cfg.NetworkName),
		logging.MaskField("admin", cfg.AdminAddress),
		logging.MaskField("fee_collector", cfg.LegacyFeeCollector),
		logging.MaskField("keystore", cfg.KeystorePath))

	var db storage.Database
	if *memDB {
		logger.Warn("using in-memory database, state will not survive restarts")
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			panic(fmt.Sprintf("Failed to open database: %v", err))
		}
		db = leveldb
	}
	defer db.Close()

	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("Invalid admin address", slog.Any("error", err))
		os.Exit(1)
	}

	node := core.NewNode(state.NewManager(db), logger)
	if collector, ok, err := cfg.Collector(); err != nil {
		logger.Error("Invalid legacy fee collector", slog.Any("error", err))
		os.Exit(1)
	} else if ok {
		node.SetLegacyFeeCollector(collector)
	}

	if err := node.Bootstrap(admin); err != nil {
		logger.Error("Failed to bootstrap platform state", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(node)
	logger.Info("starting JSON-RPC server",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName),
		slog.String("env", env))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
