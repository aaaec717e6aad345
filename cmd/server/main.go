package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/api"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/config"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/handler"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/kafka"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/redis"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/observability"
	core "github.com/Mattiaborrelli4/swapunina-sub000/internal/repository/postgres"
	service "github.com/Mattiaborrelli4/swapunina-sub000/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	shutdown, _ := observability.Setup("wallet-service")
	defer shutdown(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(context.Background()); err != nil {
		log.Fatalf("Failed to ping Postgres: %v", err)
	}

	accountRepo := core.NewPostgresAccountRepository(db)
	ledgerRepo := core.NewPostgresLedgerRepository(db)
	settlementRepo := core.NewPostgresSettlementRepository(db, accountRepo, ledgerRepo)
	codeRepo := core.NewPostgresCodeRepository(db)
	catalogRepo := core.NewPostgresCatalogRepository(db)
	userRepo := core.NewPostgresUserRepository(db)

	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()
	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	walletSvc := service.NewWalletService(accountRepo, ledgerRepo, settlementRepo, redisClient, producer)
	confirmationSvc := service.NewConfirmationService(codeRepo, catalogRepo, redisClient, producer, cfg.CodeTTL, cfg.CodeMaxAttempts)
	checkoutSvc := service.NewCheckoutService(walletSvc, accountRepo, catalogRepo, confirmationSvc)
	userSvc := service.NewUserService(userRepo, redisClient, producer, cfg.JWTSecret)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, "settlements", "wallet-service-group", redisClient)
	go consumer.Consume(consumerCtx)
	defer consumer.Close()
	defer stopConsumer()

	// Expired codes are swept hourly; each verify also fails them closed.
	purgeTicker := time.NewTicker(time.Hour)
	defer purgeTicker.Stop()
	go func() {
		for range purgeTicker.C {
			if _, err := confirmationSvc.PurgeExpired(context.Background()); err != nil {
				slog.Error("periodic code purge failed", "error", err)
			}
		}
	}()

	h := handler.NewHandler(walletSvc, checkoutSvc, confirmationSvc, userSvc)
	router := api.SetupRouter(h, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
