package kafka

import (
	"context"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

// reader is the part of kafka.Reader the consumer drives.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultBackoff    = 200 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
)

// Consumer pins every partition to one worker, so offsets of a partition are
// handled and committed in order. A failing message is retried with capped
// backoff and holds back the rest of its partition until it succeeds.
type Consumer struct {
	r          reader
	workers    int
	Backoff    time.Duration
	MaxBackoff time.Duration
	Log        logrus.FieldLogger
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:          r,
		workers:    workers,
		Backoff:    defaultBackoff,
		MaxBackoff: defaultMaxBackoff,
		Log:        logrus.StandardLogger(),
	}
}

// Start blocks until ctx is done or the reader fails, and returns only after
// every worker has finished its current message.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()
	var wg sync.WaitGroup
	defer wg.Wait()
	// reader gagal: hentikan retry worker supaya wg.Wait tidak menggantung
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := c.workers
	if workers <= 0 {
		workers = 1
	}
	jobs := make([]chan kafka.Message, workers)

	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			c.work(ctx, id, in, h)
		}(i, jobs[i])
	}
	closeAll := func() {
		for _, ch := range jobs {
			close(ch)
		}
	}

	// dispatcher: partisi yang sama selalu ke worker yang sama
	for {
		// FetchMessage: ReadMessage dengan GroupID auto-commit, padahal commit harus setelah handler sukses
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			closeAll()
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%workers] <- m:
		case <-ctx.Done():
			closeAll()
			return nil
		}
	}
}

func (c *Consumer) work(ctx context.Context, id int, in <-chan kafka.Message, h Handler) {
	log := c.log().WithField("worker", id)
	for m := range in {
		if !c.handle(ctx, log, m, h) {
			// shutdown: offset ini dan sesudahnya tidak di-commit, akan dikirim ulang
			return
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"partition": m.Partition, "offset": m.Offset,
			}).Warn("commit failed")
		}
	}
}

// handle runs h until it succeeds. It returns false when ctx ends first.
func (c *Consumer) handle(ctx context.Context, log logrus.FieldLogger, m kafka.Message, h Handler) bool {
	wait := c.Backoff
	if wait <= 0 {
		wait = defaultBackoff
	}
	ceiling := c.MaxBackoff
	if ceiling < wait {
		ceiling = wait
	}
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		err := h(ctx, m)
		if err == nil {
			return true
		}
		log.WithError(err).WithFields(logrus.Fields{
			"topic": m.Topic, "partition": m.Partition, "offset": m.Offset, "attempt": attempt,
		}).Warn("handler failed, retrying")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		if wait *= 2; wait > ceiling {
			wait = ceiling
		}
	}
}

func (c *Consumer) log() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}
