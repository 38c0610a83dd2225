package main

import (
	"context"
	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/ariefcatur/go-hotel-booking/internal/checkout"
	"github.com/ariefcatur/go-hotel-booking/internal/config"
	kafkax "github.com/ariefcatur/go-hotel-booking/internal/kafka"
	"github.com/ariefcatur/go-hotel-booking/internal/payments"
	"github.com/ariefcatur/go-hotel-booking/internal/postgres"
	"github.com/ariefcatur/go-hotel-booking/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"os/signal"
	"syscall"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer: transisi dari worker (confirmed / abandoned) ikut dipublish.
	// Context sendiri supaya producer baru berhenti setelah consumer & sweeper selesai.
	pctx, pcancel := context.WithCancel(context.Background())
	defer pcancel()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicReservations, 1024)
	prod.Log = log
	prod.Start(pctx)

	svc := &booking.Service{
		Store:   &booking.PGStore{DB: db},
		Events:  &kafkax.Emitter{Producer: prod, Service: cfg.ServiceName + "-worker"},
		Cache:   &redisx.StatusCache{Redis: rdb, Log: log},
		Log:     log,
		HoldTTL: cfg.ReservationTTL,
	}
	relay := &payments.Service{
		Broker: &checkout.Broker{
			Reservations: svc,
			Timeout:      cfg.PaymentTimeout,
			Dedup:        &redisx.Dedup{Redis: rdb, Service: "checkout"},
			Log:          log,
		},
		Log: log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, booking.TopicPaymentEvents, cfg.WorkerCount)
	cons.Log = log

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"group": cfg.WorkerGroup, "topic": booking.TopicPaymentEvents, "workers": cfg.WorkerCount,
		}).Info("payment consumer started")
		return cons.Start(gctx, relay.HandlePaymentEvent)
	})
	g.Go(func() error {
		log.WithFields(logrus.Fields{"interval": cfg.SweepInterval, "batch": cfg.SweepBatch}).Info("expiry sweeper started")
		return svc.RunSweeper(gctx, cfg.SweepInterval, cfg.SweepBatch)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("worker exit")
	}
	log.Info("shutting down worker...")
	prod.Close()
	pcancel()
	prod.WaitClosed()
}
