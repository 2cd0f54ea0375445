package main

import (
	"context"
	"flag"

	"github.com/Fi44er/aura_cards/config"
	"github.com/Fi44er/aura_cards/db"
	"github.com/Fi44er/aura_cards/internal/repository"
	"github.com/Fi44er/aura_cards/internal/service"
	"github.com/Fi44er/aura_cards/utils"
)

func main() {
	envFile := flag.String("env", ".env", "path to the env file")
	migrate := flag.Bool("migrate", true, "apply schema migrations on start")
	flag.Parse()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		utils.InitLogger("info").Fatal("Failed to load config: ", err)
	}

	logger := utils.InitLogger(cfg.LogLevel)

	database, err := db.ConnectDb(cfg.DatabaseURL, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}

	if err := db.Migrate(database, *migrate, logger); err != nil {
		logger.Fatal(err)
	}

	repo, err := repository.NewRepository(database, logger, cfg.KeyCacheSize)
	if err != nil {
		logger.Fatal("Failed to create repository: ", err)
	}

	svc := service.NewService(repo, utils.NewAccessKeyGenerator(), &cfg, logger)

	ctx := context.Background()
	summaries, err := svc.ListCollectionSummaries(ctx)
	if err != nil {
		logger.Fatal(err)
	}
	airdrops, err := svc.ListActiveAirdrops(ctx)
	if err != nil {
		logger.Fatal(err)
	}

	logger.Infof("✅ Card store ready: %d collections, %d active airdrops", len(summaries), len(airdrops))
	for _, airdrop := range airdrops {
		stats, err := svc.GetAirdropStats(ctx, airdrop.ID)
		if err != nil {
			logger.Warnf("airdrop %d: %v", airdrop.ID, err)
			continue
		}
		logger.Infof("airdrop %q: %d of %d cards left", airdrop.Name, stats.Available, stats.Total)
	}
}
