package main

import (
	"context"
	"log"
	"os"

	"github.com/M7mdkimoo/myrockai/internal/api"
	"github.com/M7mdkimoo/myrockai/internal/config"
	"github.com/M7mdkimoo/myrockai/internal/redis"
	"github.com/M7mdkimoo/myrockai/internal/service/expert"
	"github.com/M7mdkimoo/myrockai/internal/state"
	"github.com/M7mdkimoo/myrockai/internal/storage"
	"github.com/M7mdkimoo/myrockai/internal/toast"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("MYROCKAI_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("MYROCKAI_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// The cache is optional: estimates just skip caching without it.
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, continuing without cache: %v", err)
		rdb = nil
	}
	defer rdb.Close()

	store, err := state.New(context.Background(), storage.NewRecordStore(db))
	if err != nil {
		log.Fatalf("init state: %v", err)
	}

	toasts := toast.NewService(toast.DefaultTTL)
	defer toasts.Close()

	experts := expert.NewManager(expert.DefaultConfig())
	defer experts.CloseAll()

	handlers := api.NewHandler(store, toasts, experts, cfg.Models, rdb)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
