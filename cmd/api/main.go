package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cardshop/go-card-shop/internal/config"
	"github.com/cardshop/go-card-shop/internal/httpx"
	kafkax "github.com/cardshop/go-card-shop/internal/kafka"
	"github.com/cardshop/go-card-shop/internal/metrics"
	"github.com/cardshop/go-card-shop/internal/payment"
	"github.com/cardshop/go-card-shop/internal/postgres"
	"github.com/cardshop/go-card-shop/internal/redisx"
	"github.com/cardshop/go-card-shop/internal/shop"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: settled & shortfall (two topics)
	pSettled := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderSettled, 1024)
	pSettled.Start(ctx)
	pShortfall := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicAllocationShortfall, 1024)
	pShortfall.Start(ctx)

	shopMetrics := metrics.NewShop("api")

	// Repos & processor
	reservations := &shop.ReservationRepo{DB: db}
	orders := &shop.OrderRepo{DB: db}
	cards := &shop.CardRepo{DB: db}
	products := &shop.ProductRepo{DB: db}

	processor := &payment.Processor{
		Reservations:      reservations,
		Orders:            orders,
		Cards:             cards,
		Products:          products,
		SettledProducer:   pSettled,
		ShortfallProducer: pShortfall,
		Metrics:           shopMetrics,
		ServiceName:       cfg.ServiceName,
	}

	router := httpx.NewRouter()
	wh := &httpx.WebhookHandler{
		Processor: processor,
		Redis:     rdb,
		Metrics:   shopMetrics,
	}
	wh.Register(router)
	sh := &httpx.ShopHandler{
		Products:       products,
		Reservations:   reservations,
		Orders:         orders,
		Cards:          cards,
		Redis:          rdb,
		ReservationTTL: cfg.ReservationTTL,
	}
	sh.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pSettled.Close() // close inbox -> flush & close writer
	pShortfall.Close()
	cancel() // stop producer loops
	pSettled.WaitClosed()
	pShortfall.WaitClosed()
}
