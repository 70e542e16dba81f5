package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := &notify.Service{Sender: notify.LogSender{}}

	// Redis dedup
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	svc.Dedup = redisx.Deduper{R: rdb, Service: cfg.NotifierGroup}

	// Recipient lookup; without postgres notifications address user ids.
	if cfg.Store != "memory" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		svc.Users = postgres.NewStore(db)
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, shop.AllTopics, cfg.NotifierWorkers)
	log.Printf("notifier started: group=%s topics=%v workers=%d", cfg.NotifierGroup, shop.AllTopics, cfg.NotifierWorkers)
	if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
		log.Fatalf("consumer exit: %v", err)
	}
	log.Println("notifier stopped")
}
