package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-meatshop-orders/internal/bootstrap"
	"github.com/ariefcatur/go-meatshop-orders/internal/config"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/logx"
	"github.com/ariefcatur/go-meatshop-orders/internal/notify"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logx.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service", cfg.ServiceName+"-notifier"))

	decimal.MarshalJSONWithoutQuotes = true

	if cfg.EventTransport == config.TransportMemory {
		logger.Fatal("notifier needs a broker transport; set EVENT_TRANSPORT=kafka or amqp")
	}
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("memory store is private to this process; users and notifications will not be shared with the api")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer closeStore()

	cache, closeCache, err := bootstrap.OpenCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer closeCache()

	dispatcher := notify.NewDispatcher(repos, cache, logger,
		notify.NewMockSender(domain.ChannelSMS, cfg.Gateways.SMSSuccessRate, cfg.Gateways.Delay),
		notify.NewMockSender(domain.ChannelEmail, cfg.Gateways.EmailSuccessRate, cfg.Gateways.Delay),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := bootstrap.Consume(ctx, cfg, logger, dispatcher.HandleEvent); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
}
