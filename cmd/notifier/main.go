package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cardshop/go-card-shop/internal/config"
	kafkax "github.com/cardshop/go-card-shop/internal/kafka"
	"github.com/cardshop/go-card-shop/internal/notifier"
	"github.com/cardshop/go-card-shop/internal/redisx"
	"github.com/cardshop/go-card-shop/internal/shop"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notifier.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")

	// one consumer per topic
	cSettled := kafkax.NewConsumer(cfg.KafkaBrokers, group, shop.TopicOrderSettled, workers)
	cShortfall := kafkax.NewConsumer(cfg.KafkaBrokers, group, shop.TopicAllocationShortfall, workers)

	go func() {
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, shop.TopicOrderSettled, workers)
		if err := cSettled.Start(ctx, svc.HandleOrderSettled); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()
	go func() {
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, shop.TopicAllocationShortfall, workers)
		if err := cShortfall.Start(ctx, svc.HandleShortfall); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumers...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
