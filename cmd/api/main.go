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

	"github.com/sojourn-travel/sojourn-payments/internal/catalog"
	"github.com/sojourn-travel/sojourn-payments/internal/clients"
	"github.com/sojourn-travel/sojourn-payments/internal/config"
	"github.com/sojourn-travel/sojourn-payments/internal/httpx"
	"github.com/sojourn-travel/sojourn-payments/internal/kafkax"
	"github.com/sojourn-travel/sojourn-payments/internal/lotus"
	"github.com/sojourn-travel/sojourn-payments/internal/payments"
	"github.com/sojourn-travel/sojourn-payments/internal/postgres"
	"github.com/sojourn-travel/sojourn-payments/internal/redisx"
	"github.com/sojourn-travel/sojourn-payments/internal/transactions"
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

	// Kafka producers, one topic each
	prodSettled := kafkax.NewProducer(cfg.KafkaBrokers, payments.TopicPaymentSettled, 1024)
	prodSettled.Start(ctx)
	prodFailed := kafkax.NewProducer(cfg.KafkaBrokers, payments.TopicPaymentFailed, 1024)
	prodFailed.Start(ctx)

	// Gateway + domain wiring
	gateway := lotus.New(lotus.Config{
		BaseURL:   cfg.LotusBaseURL,
		PublicKey: cfg.LotusPublicKey,
		SecretKey: cfg.LotusSecretKey,
		WalletID:  cfg.LotusWalletID,
	})
	catalogRepo := &catalog.Repo{DB: db}
	txSvc := &transactions.Service{
		Store:    &transactions.Repo{DB: db},
		Packages: catalogRepo,
	}
	orch := &payments.Orchestrator{
		Gateway:         gateway,
		Txns:            txSvc,
		Packages:        catalogRepo,
		ProducerSettled: prodSettled,
		ProducerFailed:  prodFailed,
		Redis:           rdb,
		ServiceName:     cfg.ServiceName,
		Currency:        cfg.Currency,
	}

	router := httpx.NewRouter()
	ph := &httpx.PaymentsHandler{
		Flow:          orch,
		Packages:      catalogRepo,
		Redis:         rdb,
		Auth:          httpx.APIKeyAuth(&clients.Repo{DB: db}),
		WebhookSecret: cfg.LotusSecretKey,
	}
	ph.Register(router)

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
	prodSettled.Close()
	prodFailed.Close()
	cancel()
	prodSettled.WaitClosed()
	prodFailed.WaitClosed()
}
