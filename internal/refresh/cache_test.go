package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/sunwatch/internal/infrastructure/logging"
	"github.com/nerrad567/sunwatch/internal/telemetry"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func csvWithProduction(watts string) string {
	return ",result,table,_start,_stop,_time,_measurement,device,Power.Production.Total,Inverter.State\n" +
		",_result,0,s,e,t,m,d," + watts + ",running\n"
}

type fakeSource struct {
	mu        sync.Mutex
	text      string
	err       error
	panicWith any
	block     chan struct{}
	calls     int
	connected bool
}

func (f *fakeSource) QueryLatest(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	text, err, p, block := f.text, f.err, f.panicWith, f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if p != nil {
		panic(p)
	}
	return text, err
}

func (f *fakeSource) TestConnection(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSource) set(text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text, f.err, f.panicWith = text, err, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingObserver) ObserveCycle(outcome Outcome, _ time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingObserver) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func newTestCache(src Source, opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return New(src, opts)
}

// =============================================================================
// State Tests
// =============================================================================

func TestCache_StartsEmpty(t *testing.T) {
	c := newTestCache(&fakeSource{}, Options{})

	snap, ok := c.Current()
	assert.False(t, ok)
	assert.Nil(t, snap)

	h := c.Health()
	assert.False(t, h.Healthy)
	assert.Equal(t, StateEmpty, h.State)
	assert.Nil(t, h.LastUpdate)
	assert.Equal(t, 60, h.IntervalSeconds)
}

func TestCache_ForceRefreshPublishes(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	c := newTestCache(src, Options{Now: clock.Now})

	snap, err := c.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.FieldCount())
	assert.Equal(t, clock.Now(), snap.Timestamp)

	power, ok := snap.Category(telemetry.CategoryPower)
	require.True(t, ok)
	assert.Equal(t, 1.5, power["production_total"])

	current, ok := c.Current()
	require.True(t, ok)
	assert.Same(t, snap, current)

	h := c.Health()
	assert.True(t, h.Healthy)
	assert.Equal(t, StateFresh, h.State)
	require.NotNil(t, h.LastUpdate)
	assert.Equal(t, clock.Now(), *h.LastUpdate)
}

func TestCache_FailureKeepsPreviousSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*fakeSource)
		wantErr error
	}{
		{
			name:    "fetch error",
			prepare: func(f *fakeSource) { f.set("", errors.New("connection refused")) },
			wantErr: ErrFetchFailed,
		},
		{
			name:    "empty result",
			prepare: func(f *fakeSource) { f.set("#datatype,string\n", nil) },
			wantErr: ErrEmptyResult,
		},
		{
			name:    "unparseable body",
			prepare: func(f *fakeSource) { f.set(`{"code":"unauthorized"}`, nil) },
			wantErr: ErrEmptyResult,
		},
		{
			name: "panic",
			prepare: func(f *fakeSource) {
				f.mu.Lock()
				f.panicWith = "boom"
				f.mu.Unlock()
			},
			wantErr: ErrCycleAborted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{text: csvWithProduction("1500")}
			c := newTestCache(src, Options{})

			first, err := c.ForceRefresh(context.Background())
			require.NoError(t, err)

			tt.prepare(src)
			snap, err := c.ForceRefresh(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsRefreshError(err))
			assert.Nil(t, snap)

			current, ok := c.Current()
			require.True(t, ok)
			assert.Same(t, first, current)
			assert.NotEmpty(t, c.LastError())
			assert.Equal(t, int64(1), c.Health().ConsecutiveFailures)
		})
	}
}

func TestCache_SuccessClearsFailures(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	c := newTestCache(src, Options{})

	_, err := c.ForceRefresh(context.Background())
	require.Error(t, err)
	_, err = c.ForceRefresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(2), c.Health().ConsecutiveFailures)

	src.set(csvWithProduction("100"), nil)
	_, err = c.ForceRefresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), c.Health().ConsecutiveFailures)
	assert.Empty(t, c.LastError())
}

func TestCache_BecomesStaleAfterInterval(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	c := newTestCache(src, Options{Interval: time.Minute, Now: clock.Now})

	_, err := c.ForceRefresh(context.Background())
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	assert.Equal(t, StateFresh, c.Health().State)

	src.set("", errors.New("down"))
	for i := 0; i < 3; i++ {
		_, _ = c.ForceRefresh(context.Background())
	}
	clock.Advance(45 * time.Second)

	h := c.Health()
	assert.True(t, h.Healthy, "a stale snapshot is still served")
	assert.True(t, h.Stale)
	assert.Equal(t, StateStale, h.State)
	assert.InDelta(t, 75.0, h.AgeSeconds, 0.001)

	src.set(csvWithProduction("2000"), nil)
	_, err = c.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFresh, c.Health().State)
}

func TestCache_Status(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500"), connected: true}
	c := newTestCache(src, Options{})

	st := c.Status(context.Background())
	assert.True(t, st.Connected)
	assert.False(t, st.CachedDataAvailable)
	assert.Equal(t, 0, st.TotalFields)

	_, err := c.ForceRefresh(context.Background())
	require.NoError(t, err)

	st = c.Status(context.Background())
	assert.True(t, st.CachedDataAvailable)
	assert.Equal(t, 2, st.TotalFields)
	assert.Equal(t, StateFresh, st.State)
}

// =============================================================================
// Reader Tests
// =============================================================================

func TestCache_CurrentOrRefresh(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	c := newTestCache(src, Options{})

	snap, err := c.CurrentOrRefresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, src.callCount())

	again, err := c.CurrentOrRefresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, 1, src.callCount(), "populated cache must not query")
}

func TestCache_CurrentOrRefreshFailsWhenEmpty(t *testing.T) {
	c := newTestCache(&fakeSource{err: errors.New("down")}, Options{})

	snap, err := c.CurrentOrRefresh(context.Background())
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Nil(t, snap)
}

func TestCache_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1000")}
	c := newTestCache(src, Options{})
	_, err := c.ForceRefresh(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, ok := c.Current()
				if !assert.True(t, ok) {
					return
				}
				power := snap.Categories[telemetry.CategoryPower]
				flow := snap.Categories[telemetry.CategoryEnergyFlow]
				// Both views come from the same raw map.
				if !assert.Equal(t, power["production_total"], flow["pv_power"]) {
					return
				}
			}
		}()
	}

	for _, w := range []string{"2000", "3000", "4000", "5000"} {
		src.set(csvWithProduction(w), nil)
		_, err := c.ForceRefresh(context.Background())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestCache_SubscribersReceivePublishedSnapshots(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	c := newTestCache(src, Options{})

	var got []*telemetry.Snapshot
	c.Subscribe(func(*telemetry.Snapshot) { panic("bad subscriber") })
	c.Subscribe(func(s *telemetry.Snapshot) { got = append(got, s) })

	snap, err := c.ForceRefresh(context.Background())
	require.NoError(t, err)

	src.set("", errors.New("down"))
	_, _ = c.ForceRefresh(context.Background())

	require.Len(t, got, 1, "only successful cycles notify")
	assert.Same(t, snap, got[0])
}

func TestCache_SubscribersSeePublishOrder(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	c := newTestCache(src, Options{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu  sync.Mutex
		got []*telemetry.Snapshot
	)
	c.Subscribe(func(s *telemetry.Snapshot) {
		mu.Lock()
		got = append(got, s)
		first := len(got) == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
	})

	firstDone := make(chan *telemetry.Snapshot, 1)
	go func() {
		snap, _ := c.ForceRefresh(context.Background())
		firstDone <- snap
	}()
	<-entered

	src.set(csvWithProduction("1600"), nil)
	secondDone := make(chan *telemetry.Snapshot, 1)
	go func() {
		snap, _ := c.ForceRefresh(context.Background())
		secondDone <- snap
	}()

	// The second cycle must not publish while the first is still notifying.
	time.Sleep(50 * time.Millisecond)
	current, ok := c.Current()
	require.True(t, ok)
	power, _ := current.Category(telemetry.CategoryPower)
	assert.Equal(t, 1.5, power["production_total"])

	close(release)
	first := <-firstDone
	second := <-secondDone
	require.NotNil(t, first)
	require.NotNil(t, second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Same(t, first, got[0])
	assert.Same(t, second, got[1])
}

func TestCache_ObserverSeesOutcomes(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	obs := &recordingObserver{}
	c := newTestCache(src, Options{Observer: obs})

	_, _ = c.ForceRefresh(context.Background())
	src.set("", errors.New("down"))
	_, _ = c.ForceRefresh(context.Background())
	src.set("", nil)
	_, _ = c.ForceRefresh(context.Background())
	src.mu.Lock()
	src.panicWith = "boom"
	src.mu.Unlock()
	_, _ = c.ForceRefresh(context.Background())

	assert.Equal(t, []Outcome{OutcomeSuccess, OutcomeFetchError, OutcomeEmpty, OutcomePanic}, obs.all())
}

func TestCache_UnknownCategoryIsTransformError(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	c := newTestCache(src, Options{Categories: []telemetry.Category{"wind"}})

	_, err := c.ForceRefresh(context.Background())
	assert.ErrorIs(t, err, ErrTransformFailed)
	assert.ErrorIs(t, err, telemetry.ErrUnknownCategory)
}

// =============================================================================
// Scheduler Tests
// =============================================================================

func TestCache_StartRunsFirstCycleImmediately(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	c := newTestCache(src, Options{Interval: time.Hour, RetryDelay: time.Second})

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	require.Eventually(t, func() bool {
		_, ok := c.Current()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
}

func TestCache_RetriesWithBackOffAfterFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	c := newTestCache(src, Options{Interval: time.Hour, RetryDelay: 20 * time.Millisecond})

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	// With an hour-long interval, repeated attempts can only come from the retry path.
	require.Eventually(t, func() bool {
		return src.callCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	src.set(csvWithProduction("1500"), nil)
	require.Eventually(t, func() bool {
		_, ok := c.Current()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	calls := src.callCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, src.callCount(), "success restores the normal interval")
}

func TestCache_RetryBackOffStartsAtRetryDelay(t *testing.T) {
	c := newTestCache(&fakeSource{}, Options{Interval: time.Minute, RetryDelay: 10 * time.Second})
	bo := c.newRetryBackOff()

	assert.Equal(t, 10*time.Second, bo.NextBackOff())
	assert.Equal(t, 15*time.Second, bo.NextBackOff())
	for i := 0; i < 10; i++ {
		assert.LessOrEqual(t, bo.NextBackOff(), time.Minute)
	}

	bo.Reset()
	assert.Equal(t, 10*time.Second, bo.NextBackOff())
}

func TestCache_CloseStopsScheduler(t *testing.T) {
	src := &fakeSource{text: csvWithProduction("1500")}
	c := newTestCache(src, Options{Interval: time.Hour})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return src.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close is a no-op")
}

func TestCache_CloseTimesOutOnStuckCycle(t *testing.T) {
	block := make(chan struct{})
	src := &fakeSource{text: csvWithProduction("1500"), block: block}
	c := newTestCache(src, Options{ShutdownTimeout: 50 * time.Millisecond})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return src.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	err := c.Close()
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, time.Since(start), time.Second)

	close(block)
}

func TestNew_Defaults(t *testing.T) {
	c := newTestCache(&fakeSource{}, Options{Interval: 4 * time.Second, RetryDelay: 10 * time.Second})

	assert.Equal(t, 4*time.Second, c.Interval())
	assert.Equal(t, 2*time.Second, c.retryDelay, "retry delay stays below the interval")
	assert.Equal(t, DefaultShutdownTimeout, c.shutdown)
}
