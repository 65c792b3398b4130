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

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/config"
	"github.com/shopxindia/intermessage/internal/middleware"
	"github.com/shopxindia/intermessage/internal/order"
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

	store := order.NewMemoryStore()
	rpc := broker.NewRPC(conn, cfg.RequestTimeout(), logger)
	pub := broker.NewPublisher(conn, logger)
	messenger := order.NewMessenger(conn, rpc, pub, store, cfg.LinkConfig.OrderLink, logger)
	service := order.NewService(store, messenger, logger)

	go func() {
		if err := messenger.Run(ctx); err != nil {
			logger.Error("Payment status consumer stopped", slog.Any("error", err))
		}
	}()

	middlewares := middleware.CreateStack(
		middleware.Logging(logger),
	)
	handler := order.NewHandler(service, logger)

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

	logger.Info("order service running",
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
