package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/shopxindia/intermessage/internal/broker"
	"github.com/shopxindia/intermessage/internal/config"
	"github.com/shopxindia/intermessage/internal/seller"
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

	orders := seller.NewMemoryOrders()
	messenger := seller.NewMessenger(conn, orders, logger)

	logger.Info("seller service running")
	if err := messenger.Run(ctx); err != nil {
		logger.Error("Seller ack consumer stopped", slog.Any("error", err))
	}
}
