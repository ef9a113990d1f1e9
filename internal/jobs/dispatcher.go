package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Kamar-Folarin/github-yearly/internal/config"
)

var (
	ErrQueueFull         = errors.New("job queue is full")
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
)

// Job is a unit of background work
type Job interface {
	ID() string
	Run(ctx context.Context) error
}

// Stats is a snapshot of the dispatcher counters
type Stats struct {
	Workers        int       `json:"workers"`
	Queued         int       `json:"queued"`
	Running        int       `json:"running"`
	Completed      int       `json:"completed"`
	Failed         int       `json:"failed"`
	LastJobID      string    `json:"last_job_id,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// Dispatcher runs submitted jobs on a fixed pool of workers
type Dispatcher struct {
	config *config.WorkerConfig
	logger *logrus.Logger
	queue  chan Job

	mu      sync.RWMutex
	started bool
	stopped bool
	group   *errgroup.Group

	statsMu sync.Mutex
	stats   Stats
}

// NewDispatcher creates a dispatcher; call Start before submitting jobs
func NewDispatcher(cfg *config.WorkerConfig, logger *logrus.Logger) *Dispatcher {
	if cfg == nil {
		cfg = config.DefaultWorkerConfig()
	}
	return &Dispatcher{
		config: cfg,
		logger: logger,
		queue:  make(chan Job, cfg.QueueSize),
		stats:  Stats{Workers: cfg.Workers},
	}
}

// Start launches the workers. Jobs run under ctx, each bounded by JobTimeout.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	d.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < d.config.Workers; i++ {
		worker := i
		d.group.Go(func() error {
			d.work(ctx, worker)
			return nil
		})
	}

	d.logger.WithFields(logrus.Fields{
		"workers":    d.config.Workers,
		"queue_size": d.config.QueueSize,
	}).Info("Job dispatcher started")
}

// Submit enqueues a job without blocking
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	d.updateStats(func(s *Stats) { s.Queued++ })
	select {
	case d.queue <- job:
		d.logger.WithField("job_id", job.ID()).Debug("Job queued")
		return nil
	default:
		d.updateStats(func(s *Stats) { s.Queued-- })
		return ErrQueueFull
	}
}

// Stop rejects new jobs, lets the workers drain the queue and waits for them
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	group := d.group
	d.mu.Unlock()

	if group == nil {
		return nil
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("workers stopped with error: %w", err)
	}
	d.logger.Info("Job dispatcher stopped")
	return nil
}

// Stats returns a snapshot of the dispatcher counters
func (d *Dispatcher) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for job := range d.queue {
		d.updateStats(func(s *Stats) {
			s.Queued--
			s.Running++
		})

		err := d.run(ctx, job)

		d.updateStats(func(s *Stats) {
			s.Running--
			s.LastJobID = job.ID()
			if err != nil {
				s.Failed++
				s.LastError = err.Error()
			} else {
				s.Completed++
			}
		})

		logger := d.logger.WithFields(logrus.Fields{
			"job_id": job.ID(),
			"worker": worker,
		})
		if err != nil {
			logger.WithError(err).Error("Job failed")
		} else {
			logger.Info("Job completed")
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, job Job) (err error) {
	jobCtx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return job.Run(jobCtx)
}

func (d *Dispatcher) updateStats(fn func(*Stats)) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	fn(&d.stats)
	d.stats.LastUpdateTime = time.Now()
}
