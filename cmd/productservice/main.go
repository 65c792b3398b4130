package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/config"
	"github.com/shopxindia/intermessage/internal/product"
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

	rpc := broker.NewRPC(conn, cfg.RequestTimeout(), logger)
	pub := broker.NewPublisher(conn, logger)
	catalog := product.NewMemoryLookup()
	messenger := product.NewMessenger(rpc, pub, catalog, logger)

	logger.Info("product service running")
	if err := messenger.Serve(ctx); err != nil {
		logger.Error("Product request server stopped", slog.Any("error", err))
	}
}
