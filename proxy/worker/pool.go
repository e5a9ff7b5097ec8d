// Package worker provides an asynchronous worker pool for recording chat
// exchanges with the provided storage.Driver and announcing them on the
// provided eventstream.Publisher.
//
// The pool decouples storage operations from the proxy's HTTP hot path so that
// recording never delays a reply.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/exchange"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Exchange *exchange.Exchange
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting exchanges.
	Driver storage.Driver

	// Publisher is the optional event stream publisher. Events are published
	// only after the exchange has been stored.
	Publisher eventstream.Publisher

	// Source identifies this relay in published events.
	Source eventstream.EventSource

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided logger
	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Exchange == nil {
		p.logger.Error("job not queued, missing exchange")
		return false
	}

	select {
	case p.queue <- job:
		logger.ForExchange(p.logger, job.Exchange.ID).Debug("job queued")
		return true
	default:
		logger.ForExchange(p.logger, job.Exchange.ID).Error("job not queued, queue full, job dropped")
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
	})
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the job's exchange and then publishes it. A failed
// publish is logged but does not undo the stored exchange.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	ex := job.Exchange
	log := logger.ForExchange(p.logger, ex.ID)

	if err := p.config.Driver.Put(ctx, ex); err != nil {
		log.Error("exchange storage failed", "error", err)
		return
	}

	log.Info("exchange stored",
		"source", ex.Source,
		"failed", ex.Failed(),
	)

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewExchangeRecordedEvent(ex, p.config.Source)
	if err := p.config.Publisher.PublishExchange(ctx, event); err != nil {
		log.Warn("failed to publish exchange event",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	log.Debug("exchange event published", "event_id", event.EventID)
}
