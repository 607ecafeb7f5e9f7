package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/lummalabs/lumma-core/internal/admin"
	"github.com/lummalabs/lumma-core/internal/api"
	"github.com/lummalabs/lumma-core/internal/chain"
	"github.com/lummalabs/lumma-core/internal/config"
	"github.com/lummalabs/lumma-core/internal/leaderboard"
	"github.com/lummalabs/lumma-core/internal/ledger"
	"github.com/lummalabs/lumma-core/internal/nft"
	"github.com/lummalabs/lumma-core/internal/quest"
	"github.com/lummalabs/lumma-core/internal/referral"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/internal/store/memory"
	"github.com/lummalabs/lumma-core/internal/store/postgres"
	"github.com/lummalabs/lumma-core/internal/swap"
	"github.com/lummalabs/lumma-core/internal/users"
	"github.com/lummalabs/lumma-core/internal/vault"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLevel(logger.INFO)
	if err := logger.EnableFileLogging(cfg.LogDir); err != nil {
		log.Fatalf("Failed to enable file logging: %v", err)
	}

	logger.Info("Lumma core starting...")

	var backing store.Store
	if cfg.DatabaseConfigured() {
		pg, err := postgres.Open(cfg.DSN())
		if err != nil {
			logger.Fatal("Failed to initialize database: %v", err)
		}
		backing = pg
		logger.Info("Using PostgreSQL store %s/%s", cfg.DBHost, cfg.DBName)
	} else {
		backing = memory.New()
		logger.Warn("No database configured, using in-memory store")
	}
	defer backing.Close()

	graph := referral.NewGraph(backing)
	registry := nft.NewRegistry(backing)
	l := ledger.New(backing, graph, registry)
	accrual := vault.NewAccrual(backing, graph)
	quoter := swap.NewQuoter(backing, graph)
	quests := quest.NewEngine(backing, l, graph)
	board := leaderboard.NewAggregator(backing)
	directory := users.NewDirectory(backing)
	adm := admin.New(backing, cfg.AdminAPIToken)
	intents := chain.NewBuilder(cfg.ChainID, cfg.Contracts)

	handler := api.NewHandler(directory, l, graph, accrual, quoter, registry, quests, board, adm, intents)
	r := api.SetupRouter(handler)

	logger.Info("Listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("Failed to run server: %v", err)
	}
}
