package docstore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// AsyncUpdater applies entries to an Updater on a pool of workers so that
// persisting a bean does not wait on the document store
type AsyncUpdater struct {
	target      Updater
	logger      *zap.Logger
	entries     chan Entry
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	shutdown    bool

	// Update holds the read lock across its send so Shutdown cannot close
	// entries under it
	mu sync.RWMutex
}

// AsyncOption configures an AsyncUpdater
type AsyncOption func(*AsyncUpdater)

// WithLogger sets the logger for failed updates
func WithLogger(logger *zap.Logger) AsyncOption {
	return func(a *AsyncUpdater) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAsyncUpdater creates an updater with workerCount workers delivering to target
func NewAsyncUpdater(target Updater, workerCount int, opts ...AsyncOption) *AsyncUpdater {
	if workerCount <= 0 {
		workerCount = 4
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &AsyncUpdater{
		target:      target,
		logger:      zap.NewNop(),
		entries:     make(chan Entry, 100),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start starts the workers
func (a *AsyncUpdater) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return
	}
	for i := 0; i < a.workerCount; i++ {
		a.wg.Add(1)
		go a.worker(i)
	}
	a.started = true
}

func (a *AsyncUpdater) worker(id int) {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case e, ok := <-a.entries:
			if !ok {
				return
			}
			a.apply(id, e)
		}
	}
}

func (a *AsyncUpdater) apply(worker int, e Entry) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("doc store update panicked",
				zap.Int("worker", worker),
				zap.String("bean", e.BeanType),
				zap.Any("id", e.ID),
				zap.Any("panic", r),
			)
		}
	}()

	if err := a.target.Update(a.ctx, e); err != nil {
		a.logger.Warn("doc store update failed",
			zap.Int("worker", worker),
			zap.String("bean", e.BeanType),
			zap.Any("id", e.ID),
			zap.Error(err),
		)
	}
}

// Update hands the entry to a worker
func (a *AsyncUpdater) Update(ctx context.Context, e Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.started {
		return fmt.Errorf("async updater not started")
	}
	if a.shutdown {
		return ErrQueueClosed
	}

	select {
	case a.entries <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.ctx.Done():
		return ErrQueueClosed
	}
}

// Shutdown stops accepting entries and waits for pending ones to be applied
func (a *AsyncUpdater) Shutdown() {
	a.mu.Lock()
	if !a.started || a.shutdown {
		a.mu.Unlock()
		return
	}
	a.shutdown = true
	close(a.entries)
	a.mu.Unlock()

	a.wg.Wait()
}

// Stop stops the workers without applying pending entries
func (a *AsyncUpdater) Stop() {
	a.cancel()
	a.wg.Wait()
}
