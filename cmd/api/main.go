package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/bootstrap"
	"github.com/ariefcatur/go-meatshop-orders/internal/config"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/events"
	"github.com/ariefcatur/go-meatshop-orders/internal/httpx"
	"github.com/ariefcatur/go-meatshop-orders/internal/inventory"
	"github.com/ariefcatur/go-meatshop-orders/internal/logx"
	"github.com/ariefcatur/go-meatshop-orders/internal/notify"
	"github.com/ariefcatur/go-meatshop-orders/internal/orders"
	"github.com/ariefcatur/go-meatshop-orders/internal/payments"
	"github.com/ariefcatur/go-meatshop-orders/internal/seed"
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

	// money travels as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer closeStore()

	if cfg.SeedDemoData {
		if err := seed.Load(ctx, repos, logger); err != nil {
			logger.Fatal("seed", zap.Error(err))
		}
	}

	cache, closeCache, err := bootstrap.OpenCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer closeCache()

	dispatcher := notify.NewDispatcher(repos, cache, logger,
		notify.NewMockSender(domain.ChannelSMS, cfg.Gateways.SMSSuccessRate, cfg.Gateways.Delay),
		notify.NewMockSender(domain.ChannelEmail, cfg.Gateways.EmailSuccessRate, cfg.Gateways.Delay),
	)

	// memory transport delivers in-process; brokers hand off to cmd/notifier
	var (
		pub      events.Publisher
		closePub func()
	)
	if cfg.EventTransport == config.TransportMemory {
		bus := events.NewBus(cfg.EventQueueSize, cfg.NotifierWorkers, logger)
		bus.Start(ctx, dispatcher.HandleEvent)
		pub, closePub = bus, bus.Close
	} else {
		pub, closePub, err = bootstrap.OpenPublisher(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("event transport", zap.Error(err))
		}
	}

	emitter := notify.NewEmitter(pub, cfg.ServiceName, logger)
	stock := inventory.NewService(repos, emitter, logger)
	orderSvc := orders.NewService(repos, stock, emitter, cache, orders.Config{
		VATRate:                cfg.Pricing.VATRate,
		DefaultDeliveryFee:     cfg.Pricing.DefaultDeliveryFee,
		DefaultDeliveryMinutes: cfg.Pricing.DefaultDeliveryMinutes,
	}, logger)
	gateway := payments.NewMockGateway(cfg.Gateways.PaymentSuccessRate, cfg.Gateways.RefundSuccessRate, cfg.Gateways.Delay, logger)
	paySvc := payments.NewService(repos, orderSvc, gateway, emitter, logger)
	orderSvc.SetPaymentCapturer(paySvc)

	router := httpx.NewRouter(logger)
	(&httpx.OrdersHandler{Orders: orderSvc, Idempotency: cache, Logger: logger}).Register(router)
	(&httpx.PaymentsHandler{Payments: paySvc, Logger: logger}).Register(router)
	(&httpx.StockHandler{Stock: stock, Logger: logger}).Register(router)
	(&httpx.CatalogHandler{Repos: repos, Dispatcher: dispatcher, Logger: logger}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreDriver),
			zap.String("transport", cfg.EventTransport))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		// late handlers get events.ErrClosed from the publisher
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	closePub() // drain queued events before the store closes
	cancel()
}
