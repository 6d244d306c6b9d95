package refresh

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/sunwatch/internal/infrastructure/logging"
	"github.com/nerrad567/sunwatch/internal/telemetry"
)

// Default scheduler timings.
const (
	DefaultInterval        = 60 * time.Second
	DefaultRetryDelay      = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Source is the store the cache reads from.
type Source interface {
	// QueryLatest returns the annotated CSV of the latest field values.
	QueryLatest(ctx context.Context) (string, error)

	// TestConnection reports whether the store answers a minimal query.
	TestConnection(ctx context.Context) bool
}

// Outcome classifies a finished refresh cycle.
type Outcome string

// Cycle outcomes.
const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFetchError     Outcome = "fetch_error"
	OutcomeEmpty          Outcome = "empty"
	OutcomeTransformError Outcome = "transform_error"
	OutcomePanic          Outcome = "panic"
)

// Observer receives one call per finished cycle. Implementations must be
// cheap and safe for concurrent use.
type Observer interface {
	ObserveCycle(outcome Outcome, duration time.Duration, fields int)
}

// Options configures a Cache. Zero values fall back to the defaults.
type Options struct {
	Interval        time.Duration
	RetryDelay      time.Duration
	ShutdownTimeout time.Duration

	// Categories limits the views built per snapshot; empty builds all.
	Categories []telemetry.Category

	Logger   *logging.Logger
	Observer Observer

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// state is the published, immutable cache content.
type state struct {
	snapshot   *telemetry.Snapshot
	lastUpdate time.Time
}

// Cache holds the latest telemetry snapshot and refreshes it in the background.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Readers never block on an in-flight refresh.
type Cache struct {
	source     Source
	interval   time.Duration
	retryDelay time.Duration
	shutdown   time.Duration
	categories []telemetry.Category
	logger     *logging.Logger
	observer   Observer
	now        func() time.Time

	current atomic.Pointer[state]

	// cycleMu serialises refresh cycles.
	cycleMu sync.Mutex

	failures atomic.Int64
	lastErr  atomic.Pointer[string]

	listenersMu sync.RWMutex
	listeners   []func(*telemetry.Snapshot)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Cache in the Empty state. Call Start to begin refreshing.
func New(source Source, opts Options) *Cache {
	c := &Cache{
		source:     source,
		interval:   opts.Interval,
		retryDelay: opts.RetryDelay,
		shutdown:   opts.ShutdownTimeout,
		categories: opts.Categories,
		logger:     opts.Logger,
		observer:   opts.Observer,
		now:        opts.Now,
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.retryDelay >= c.interval {
		c.retryDelay = c.interval / 2
	}
	if c.shutdown <= 0 {
		c.shutdown = DefaultShutdownTimeout
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	c.logger = c.logger.With("component", "refresh")
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Start launches the background scheduler. The first cycle runs immediately.
//
// The scheduler stops when ctx is cancelled or Close is called.
func (c *Cache) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go c.loop(runCtx)

	c.logger.Info("refresh scheduler started",
		"interval", c.interval.String(),
		"retry_delay", c.retryDelay.String(),
	)
	return nil
}

// Close stops the scheduler and waits for an in-flight cycle to return,
// at most the configured shutdown timeout.
func (c *Cache) Close() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("refresh scheduler stopped")
		return nil
	case <-time.After(c.shutdown):
		c.logger.Warn("refresh scheduler did not stop in time", "timeout", c.shutdown.String())
		return ErrShutdownTimeout
	}
}

// newRetryBackOff starts at the retry delay and grows towards the
// interval while cycles keep failing.
func (c *Cache) newRetryBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.MaxInterval = c.interval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// loop runs refresh cycles until ctx is cancelled.
func (c *Cache) loop(ctx context.Context) {
	defer c.wg.Done()

	bo := c.newRetryBackOff()

	for {
		delay := c.interval
		if _, err := c.ForceRefresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = bo.NextBackOff()
			c.logger.Warn("refresh cycle failed, keeping previous snapshot",
				"error", err,
				"consecutive_failures", c.failures.Load(),
				"retry_in", delay.String(),
			)
		} else {
			bo.Reset()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// ForceRefresh runs one cycle synchronously and publishes its snapshot.
//
// On failure the previous snapshot stays published and the error wraps
// one of ErrFetchFailed, ErrEmptyResult, ErrTransformFailed or ErrCycleAborted.
//
// Subscribers are notified before the next cycle may start, so they see
// snapshots in publish order.
func (c *Cache) ForceRefresh(ctx context.Context) (*telemetry.Snapshot, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	snap, err := c.runCycle(ctx)
	if err != nil {
		c.failures.Add(1)
		msg := err.Error()
		c.lastErr.Store(&msg)
		return nil, err
	}

	c.failures.Store(0)
	c.lastErr.Store(nil)
	c.notify(snap)
	return snap, nil
}

// runCycle queries, parses, transforms and publishes. Panics are converted
// to ErrCycleAborted. The caller holds cycleMu.
func (c *Cache) runCycle(ctx context.Context) (snap *telemetry.Snapshot, err error) {
	start := time.Now()
	outcome := OutcomeSuccess

	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = fmt.Errorf("%w: %v", ErrCycleAborted, r)
			outcome = OutcomePanic
			c.logger.Error("refresh cycle panicked", "panic", r, "stack", string(debug.Stack()))
		}
		if c.observer != nil {
			c.observer.ObserveCycle(outcome, time.Since(start), snap.FieldCount())
		}
	}()

	text, err := c.source.QueryLatest(ctx)
	if err != nil {
		outcome = OutcomeFetchError
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	raw := telemetry.ParseCSV(text)
	if len(raw) == 0 {
		outcome = OutcomeEmpty
		return nil, ErrEmptyResult
	}

	at := c.now()
	snap, err = telemetry.Build(raw, at, c.categories...)
	if err != nil {
		outcome = OutcomeTransformError
		return nil, fmt.Errorf("%w: %w", ErrTransformFailed, err)
	}

	c.current.Store(&state{snapshot: snap, lastUpdate: at})
	c.logger.Debug("snapshot published", "fields", snap.FieldCount(), "duration", time.Since(start).String())
	return snap, nil
}

// Current returns the published snapshot without blocking. The second
// result is false while the cache is Empty. The snapshot must not be modified.
func (c *Cache) Current() (*telemetry.Snapshot, bool) {
	st := c.current.Load()
	if st == nil {
		return nil, false
	}
	return st.snapshot, true
}

// CurrentOrRefresh returns the published snapshot, running a synchronous
// cycle only if nothing has been published yet.
func (c *Cache) CurrentOrRefresh(ctx context.Context) (*telemetry.Snapshot, error) {
	if snap, ok := c.Current(); ok {
		return snap, nil
	}
	snap, err := c.ForceRefresh(ctx)
	if err == nil {
		return snap, nil
	}
	// A concurrent cycle may have published while this one failed.
	if snap, ok := c.Current(); ok {
		return snap, nil
	}
	return nil, err
}

// Subscribe registers fn to be called with every newly published snapshot.
// Callbacks run on the refreshing goroutine and must not block or call
// ForceRefresh.
func (c *Cache) Subscribe(fn func(*telemetry.Snapshot)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Cache) notify(snap *telemetry.Snapshot) {
	c.listenersMu.RLock()
	listeners := make([]func(*telemetry.Snapshot), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenersMu.RUnlock()

	for _, fn := range listeners {
		c.safeCall(fn, snap)
	}
}

// safeCall isolates the scheduler from a misbehaving subscriber.
func (c *Cache) safeCall(fn func(*telemetry.Snapshot), snap *telemetry.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("snapshot subscriber panicked", "panic", r)
		}
	}()
	fn(snap)
}

// TestConnection probes the store independently of the cached state.
func (c *Cache) TestConnection(ctx context.Context) bool {
	return c.source.TestConnection(ctx)
}

// Interval returns the normal refresh interval.
func (c *Cache) Interval() time.Duration {
	return c.interval
}

// LastError returns the error of the most recent failed cycle, or "" after a success.
func (c *Cache) LastError() string {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return ""
}

// IsRefreshError reports whether err came from a refresh cycle.
func IsRefreshError(err error) bool {
	return errors.Is(err, ErrFetchFailed) ||
		errors.Is(err, ErrEmptyResult) ||
		errors.Is(err, ErrTransformFailed) ||
		errors.Is(err, ErrCycleAborted)
}
