package synccache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycelian/contacts-service/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeFetcher struct {
	mu       sync.Mutex
	snapshot []model.Contact
	err      error
	calls    atomic.Int32
	gate     chan struct{}
}

func (f *fakeFetcher) FetchAll(ctx context.Context, _ int) ([]model.Contact, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Contact(nil), f.snapshot...), nil
}

func (f *fakeFetcher) set(snapshot []model.Contact, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot, f.err = snapshot, err
}

func at(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func remoteAt(sec int64) string { return at(sec).Format(time.RFC3339) }

func contact(id, status string, editedSec int64) model.Contact {
	return model.Contact{ID: id, Name: "Contact " + id, Status: status, RemoteLastEditedAt: remoteAt(editedSec)}
}

func newTestCache(t *testing.T, f Fetcher, opts ...Option) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: at(0)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(f, opts...), clock
}

func TestReconcileConflictResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteEdit int64
		want       string
		keepsEdit  bool
	}{
		{name: "local edit newer than remote", remoteEdit: 50, want: "contacted", keepsEdit: true},
		{name: "remote edit newer than local", remoteEdit: 150, want: "queued", keepsEdit: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, clock := newTestCache(t, &fakeFetcher{})
			c.Reconcile([]model.Contact{contact("A", "queued", 10)})

			clock.Set(at(100))
			local := contact("A", "contacted", 10)
			c.ApplyLocalUpdate("A", local)

			c.Reconcile([]model.Contact{contact("A", "queued", tt.remoteEdit)})

			got, ok := c.Get("A")
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Status)

			_, pending := c.LocalEditAt("A")
			assert.Equal(t, tt.keepsEdit, pending)
		})
	}
}

func TestReconcileLocalWinsWithoutRemoteTimestamp(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(t, &fakeFetcher{})
	c.Reconcile([]model.Contact{contact("A", "queued", 10)})
	clock.Set(at(100))
	c.ApplyLocalUpdate("A", contact("A", "contacted", 10))

	missing := contact("A", "queued", 0)
	missing.RemoteLastEditedAt = ""
	c.Reconcile([]model.Contact{missing})
	got, _ := c.Get("A")
	assert.Equal(t, "contacted", got.Status)

	garbled := contact("A", "queued", 0)
	garbled.RemoteLastEditedAt = "yesterday-ish"
	c.Reconcile([]model.Contact{garbled})
	got, _ = c.Get("A")
	assert.Equal(t, "contacted", got.Status)
}

func TestReconcileRemoteIsExistenceAuthority(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(t, &fakeFetcher{})
	c.Reconcile([]model.Contact{contact("A", "queued", 10), contact("B", "queued", 10)})

	clock.Set(at(100))
	c.ApplyLocalUpdate("B", contact("B", "contacted", 10))
	c.ApplyLocalCreate(contact("C", "queued", 100))

	c.Reconcile([]model.Contact{contact("A", "queued", 10)})

	_, ok := c.Get("B")
	assert.False(t, ok, "B vanished remotely so the local edit cannot keep it")
	_, ok = c.Get("C")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	_, pending := c.LocalEditAt("B")
	assert.False(t, pending)
	_, pending = c.LocalEditAt("C")
	assert.False(t, pending)
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(t, &fakeFetcher{})
	c.Reconcile([]model.Contact{contact("A", "queued", 10), contact("B", "queued", 10)})
	clock.Set(at(100))
	c.ApplyLocalUpdate("A", contact("A", "contacted", 10))
	c.ApplyLocalUpdate("B", contact("B", "contacted", 10))

	snapshot := []model.Contact{contact("A", "queued", 50), contact("B", "queued", 150), contact("D", "queued", 1)}
	c.Reconcile(snapshot)
	first := c.List()
	c.Reconcile(snapshot)
	second := c.List()

	assert.Equal(t, first, second)
	require.Len(t, second, 3)
	assert.Equal(t, "contacted", second[0].Status)
	assert.Equal(t, "queued", second[1].Status)
	assert.Equal(t, "D", second[2].ID)
}

func TestReconcileKeepsSnapshotOrderAndDropsDuplicates(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, &fakeFetcher{})
	c.Reconcile([]model.Contact{
		contact("C", "queued", 1),
		contact("A", "queued", 1),
		contact("C", "contacted", 2),
		{Name: "no id"},
		contact("B", "queued", 1),
	})

	ids := []string{}
	for _, ct := range c.List() {
		ids = append(ids, ct.ID)
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)
	got, _ := c.Get("C")
	assert.Equal(t, "queued", got.Status)
}

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{snapshot: []model.Contact{contact("A", "queued", 1)}}
	c, clock := newTestCache(t, f, WithTTL(time.Minute))
	ctx := context.Background()

	assert.Equal(t, StateEmpty, c.State())

	_, err := c.Load(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, StateFresh, c.State())
	assert.EqualValues(t, 1, f.calls.Load())

	clock.Advance(59 * time.Second)
	_, err = c.Load(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load(), "fresh reads do no I/O")

	clock.Advance(time.Second)
	assert.Equal(t, StateStale, c.State())
	_, err = c.Load(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
	assert.Equal(t, StateFresh, c.State())

	_, err = c.Load(ctx, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.calls.Load(), "force always refreshes")

	c.Invalidate()
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 1, c.Len(), "invalidate keeps entries")
	_, err = c.Load(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 4, f.calls.Load())
}

func TestInvalidateKeepsLocalEdits(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(t, &fakeFetcher{})
	c.Reconcile([]model.Contact{contact("A", "queued", 10)})
	clock.Set(at(100))
	c.ApplyLocalUpdate("A", contact("A", "contacted", 10))

	c.Invalidate()

	editedAt, ok := c.LocalEditAt("A")
	require.True(t, ok)
	assert.Equal(t, at(100), editedAt)
	got, _ := c.Get("A")
	assert.Equal(t, "contacted", got.Status)
}

func TestLoadFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("remote unavailable")
	f := &fakeFetcher{err: boom}
	c, clock := newTestCache(t, f)
	ctx := context.Background()

	_, err := c.Load(ctx, false)
	require.ErrorIs(t, err, boom, "nothing loaded yet so the failure surfaces")
	assert.Equal(t, StateEmpty, c.State())

	f.set([]model.Contact{contact("A", "queued", 1)}, nil)
	got, err := c.Load(ctx, false)
	require.NoError(t, err)
	require.Len(t, got, 1)

	clock.Advance(2 * DefaultTTL)
	f.set(nil, boom)
	got, err = c.Load(ctx, false)
	require.NoError(t, err, "stale data beats an error")
	require.Len(t, got, 1)
	assert.Equal(t, StateStale, c.State())

	assert.Error(t, c.Refresh(ctx, true))
}

func TestLocalWrites(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(t, &fakeFetcher{})
	c.Reconcile([]model.Contact{contact("A", "queued", 1), contact("B", "queued", 1), contact("C", "queued", 1)})

	clock.Set(at(20))
	c.ApplyLocalCreate(contact("D", "queued", 20))
	assert.Equal(t, 4, c.Len())
	editedAt, ok := c.LocalEditAt("D")
	require.True(t, ok)
	assert.Equal(t, at(20), editedAt)

	c.ApplyLocalUpdate("B", model.Contact{Name: "Renamed"})
	got, ok := c.Get("B")
	require.True(t, ok)
	assert.Equal(t, "B", got.ID)
	assert.Equal(t, "Renamed", got.Name)

	c.ApplyLocalDelete("B")
	_, ok = c.Get("B")
	assert.False(t, ok)
	_, ok = c.LocalEditAt("B")
	assert.False(t, ok)

	ids := []string{}
	for _, ct := range c.List() {
		ids = append(ids, ct.ID)
	}
	assert.Equal(t, []string{"A", "C", "D"}, ids)
	got, ok = c.Get("D")
	require.True(t, ok)
	assert.Equal(t, "D", got.ID)

	c.ApplyLocalDelete("missing")
	assert.Equal(t, 3, c.Len())
}

func TestListReturnsCopies(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t, &fakeFetcher{})
	c.Reconcile([]model.Contact{contact("A", "queued", 1)})

	list := c.List()
	list[0].Status = "mutated"

	got, _ := c.Get("A")
	assert.Equal(t, "queued", got.Status)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		snapshot: []model.Contact{contact("A", "queued", 1)},
		gate:     make(chan struct{}),
	}
	c, _ := newTestCache(t, f)

	const readers = 8
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for n := 0; n < readers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Load(context.Background(), false)
			if err == nil && len(got) != 1 {
				err = errors.New("unexpected snapshot size")
			}
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return f.calls.Load() >= 1 }, time.Second, time.Millisecond)
	// Give the other readers time to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestRefreshOutlivesCancelledCaller(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		snapshot: []model.Contact{contact("A", "queued", 1)},
		gate:     make(chan struct{}),
	}
	c, _ := newTestCache(t, f)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Load(first, false)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := c.Load(context.Background(), false)
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(f.gate)
	require.NoError(t, <-second)
	assert.Equal(t, StateFresh, c.State())
	assert.Equal(t, 1, c.Len())
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestRefreshTimeout(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{gate: make(chan struct{})}
	c, _ := newTestCache(t, f, WithRefreshTimeout(10*time.Millisecond))

	_, err := c.Load(context.Background(), false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateEmpty, c.State())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{snapshot: []model.Contact{contact("A", "queued", 1), contact("B", "queued", 1)}}
	c := New(f, WithTTL(time.Nanosecond))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				_, _ = c.Load(context.Background(), i%2 == 0)
				_, _ = c.Get("A")
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				c.ApplyLocalUpdate("A", contact("A", "contacted", 1))
				c.Invalidate()
			}
		}()
	}
	wg.Wait()

	_, ok := c.Get("A")
	assert.True(t, ok)
}
