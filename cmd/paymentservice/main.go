package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/config"
	"github.com/shopxindia/intermessage/internal/middleware"
	"github.com/shopxindia/intermessage/internal/payment"
)

func main() {

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration file", slog.Any("error", err))
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	conn := broker.NewConnection(cfg.AMQPURL(), logger)
	defer conn.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.RedisAddress,
		Password: cfg.RedisConfig.RedisPassword,
		DB:       cfg.RedisConfig.RedisDB,
	})
	defer rdb.Close()

	store := payment.NewMemoryStore()
	codes := payment.NewRedisCodeStore(rdb)
	qr := payment.NewQRService(store, codes, cfg.PaymentCodeTTL(), payment.MailLinks{
		Receipt: cfg.LinkConfig.ReceiptLink,
		Retry:   cfg.LinkConfig.RetryLink,
		Support: cfg.LinkConfig.SupportLink,
	}, logger)

	pub := broker.NewPublisher(conn, logger)
	messenger := payment.NewMessenger(conn, pub, qr, logger)
	qr.SetMessenger(messenger)

	go func() {
		if err := messenger.Run(ctx); err != nil {
			logger.Error("Payment initiation consumer stopped", slog.Any("error", err))
		}
	}()

	middlewares := middleware.CreateStack(
		middleware.Logging(logger),
	)
	handler := payment.NewHandler(qr, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.AppConfig.Address, cfg.AppConfig.Port),
		Handler: middlewares(handler.Routes()),
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
		close(errCh)
	}()

	logger.Info("payment service running",
		slog.String("address", cfg.AppConfig.Address),
		slog.Int("port", cfg.AppConfig.Port),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", slog.Any("error", err))
		}
	}

	sCtx, sCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer sCancel()
	srv.Shutdown(sCtx)
}
