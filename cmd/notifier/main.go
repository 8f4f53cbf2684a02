package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sojourn-travel/sojourn-payments/internal/config"
	"github.com/sojourn-travel/sojourn-payments/internal/kafkax"
	"github.com/sojourn-travel/sojourn-payments/internal/notify"
	"github.com/sojourn-travel/sojourn-payments/internal/payments"
	"github.com/sojourn-travel/sojourn-payments/internal/postgres"
	"github.com/sojourn-travel/sojourn-payments/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Repo:        &notify.Repo{DB: db},
		Redis:       rdb,
		ServiceName: "payment-notifier",
	}

	settled := kafkax.NewConsumer(cfg.KafkaBrokers, "payment-notifier", payments.TopicPaymentSettled, 4)
	failed := kafkax.NewConsumer(cfg.KafkaBrokers, "payment-notifier", payments.TopicPaymentFailed, 4)

	errCh := make(chan error, 2)
	go func() { errCh <- settled.Start(ctx, svc.HandleSettlement) }()
	go func() { errCh <- failed.Start(ctx, svc.HandleSettlement) }()
	log.Printf("notifier consuming %s, %s", payments.TopicPaymentSettled, payments.TopicPaymentFailed)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("signal %v, shutting down...", s)
		cancel()
		<-errCh
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Fatalf("consumer: %v", err)
		}
		cancel()
		<-errCh
	}
}
