package main

import (
	"context"
	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/ariefcatur/go-hotel-booking/internal/checkout"
	"github.com/ariefcatur/go-hotel-booking/internal/config"
	"github.com/ariefcatur/go-hotel-booking/internal/httpx"
	kafkax "github.com/ariefcatur/go-hotel-booking/internal/kafka"
	"github.com/ariefcatur/go-hotel-booking/internal/postgres"
	"github.com/ariefcatur/go-hotel-booking/internal/redisx"
	"github.com/joho/godotenv"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := cfg.NewLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("db migrate")
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer: reservation lifecycle events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicReservations, 1024)
	prod.Log = log
	prod.Start(ctx)

	// Domain
	cache := &redisx.StatusCache{Redis: rdb, Log: log}
	svc := &booking.Service{
		Store:   &booking.PGStore{DB: db},
		Events:  &kafkax.Emitter{Producer: prod, Service: cfg.ServiceName},
		Cache:   cache,
		Log:     log,
		HoldTTL: cfg.ReservationTTL,
	}
	broker := &checkout.Broker{
		Reservations: svc,
		Provider:     newProvider(cfg),
		Currency:     cfg.Currency,
		Timeout:      cfg.PaymentTimeout,
		SuccessURL:   cfg.CheckoutSuccessURL,
		CancelURL:    cfg.CheckoutCancelURL,
		Dedup:        &redisx.Dedup{Redis: rdb, Service: "checkout"},
		Log:          log,
	}

	// Router & handlers
	router := httpx.NewRouter(log)
	(&httpx.CatalogHandler{Service: svc, Log: log}).Register(router)
	(&httpx.BookingsHandler{Service: svc, Cache: cache, Log: log}).Register(router)
	(&httpx.CheckoutHandler{
		Service:       svc,
		Broker:        broker,
		Idem:          &redisx.Idempotency{Redis: rdb},
		WebhookSecret: cfg.PaymentWebhookSecret,
		Log:           log,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}

// newProvider picks the hosted provider when configured, the placeholder otherwise.
func newProvider(cfg config.Config) checkout.Provider {
	if cfg.PaymentProviderURL == "" {
		return &checkout.PlaceholderProvider{BaseURL: cfg.PlaceholderPayURL}
	}
	return checkout.NewHTTPProvider(cfg.PaymentProviderURL, cfg.PaymentAPIKey, cfg.PaymentTimeout)
}
