// Package synccache keeps an in-memory copy of every contact and reconciles
// fresh remote snapshots with edits made through this service.
package synccache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mycelian/contacts-service/internal/model"
)

// State of the cache-wide watermark.
type State int

const (
	StateEmpty State = iota
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	}
	return "empty"
}

const (
	DefaultTTL            = 60 * time.Second
	DefaultPageSize       = 100
	DefaultRefreshTimeout = 2 * time.Minute
)

// Fetcher returns the full remote snapshot.
type Fetcher interface {
	FetchAll(ctx context.Context, pageSize int) ([]model.Contact, error)
}

// Entry is one cached record.
type Entry struct {
	Contact   model.Contact
	FetchedAt time.Time
}

// Cache is safe for concurrent use. One mutex guards entries, the watermark
// and localEdits; remote fetches run outside it.
type Cache struct {
	fetcher        Fetcher
	ttl            time.Duration
	pageSize       int
	refreshTimeout time.Duration
	now            func() time.Time
	log            zerolog.Logger

	mu         sync.Mutex
	entries    []Entry
	index      map[string]int
	fetchedAt  time.Time
	loaded     bool
	localEdits map[string]time.Time

	refreshes singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

func WithTTL(ttl time.Duration) Option { return func(c *Cache) { c.ttl = ttl } }

func WithPageSize(n int) Option { return func(c *Cache) { c.pageSize = n } }

// WithRefreshTimeout bounds one shared remote fetch. The fetch does not
// inherit the cancellation of the caller that started it.
func WithRefreshTimeout(d time.Duration) Option { return func(c *Cache) { c.refreshTimeout = d } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func WithLogger(log zerolog.Logger) Option { return func(c *Cache) { c.log = log } }

// New returns an empty cache that loads from fetcher on demand.
func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:        fetcher,
		ttl:            DefaultTTL,
		pageSize:       DefaultPageSize,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
		log:            zerolog.Nop(),
		index:          map[string]int{},
		localEdits:     map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the watermark state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Cache) stateLocked() State {
	switch {
	case c.fetchedAt.IsZero():
		return StateEmpty
	case c.now().Sub(c.fetchedAt) >= c.ttl:
		return StateStale
	}
	return StateFresh
}

// FetchedAt returns the watermark; zero when empty.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}

// Get looks up id without any I/O.
func (c *Cache) Get(id string) (model.Contact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return model.Contact{}, false
	}
	return c.entries[i].Contact, true
}

// List returns every cached record in order without any I/O.
func (c *Cache) List() []model.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Contact, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Contact
	}
	return out
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// LocalEditAt returns the last local write time recorded for id.
func (c *Cache) LocalEditAt(id string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.localEdits[id]
	return t, ok
}

// Load returns all records, refreshing first when the cache is empty, stale
// or force is set. A failed refresh is only reported when nothing was ever
// loaded; otherwise the previous snapshot is served.
func (c *Cache) Load(ctx context.Context, force bool) ([]model.Contact, error) {
	if !force && c.State() == StateFresh {
		hitsTotal.Inc()
		return c.List(), nil
	}
	if err := c.Refresh(ctx, force); err != nil {
		c.mu.Lock()
		loaded := c.loaded
		c.mu.Unlock()
		if !loaded {
			return nil, err
		}
		c.log.Warn().Err(err).Msg("refresh failed, serving previous snapshot")
	}
	return c.List(), nil
}

// Refresh fetches a snapshot and reconciles it. Concurrent calls share one
// fetch, which keeps running when the caller that started it goes away; each
// caller stops waiting when its own ctx is done. Without force, a cache that
// became fresh meanwhile is left alone.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	key := "refresh"
	if force {
		key = "refresh-force"
	}
	ch := c.refreshes.DoChan(key, func() (any, error) {
		if !force && c.State() == StateFresh {
			return nil, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return nil, c.fetchAndReconcile(fetchCtx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			c.log.Debug().Msg("joined in-flight refresh")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) fetchAndReconcile(ctx context.Context) error {
	started := c.now()
	snapshot, err := c.fetcher.FetchAll(ctx, c.pageSize)
	if err != nil {
		refreshesTotal.WithLabelValues("error").Inc()
		return err
	}

	c.mu.Lock()
	c.reconcileLocked(snapshot)
	size := len(c.entries)
	c.mu.Unlock()

	refreshesTotal.WithLabelValues("ok").Inc()
	entriesGauge.Set(float64(size))
	c.log.Debug().
		Int("records", size).
		Dur("took", c.now().Sub(started)).
		Msg("cache refreshed")
	return nil
}

// Reconcile merges snapshot into the cache and marks it fresh.
func (c *Cache) Reconcile(snapshot []model.Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconcileLocked(snapshot)
}

// reconcileLocked keeps a cached local version only when the id still exists
// remotely and its local edit is newer than the remote edit time (or that time
// is missing or unreadable). Every other record comes from the snapshot.
func (c *Cache) reconcileLocked(snapshot []model.Contact) {
	at := c.now()
	next := make([]Entry, 0, len(snapshot))
	index := make(map[string]int, len(snapshot))

	for _, remote := range snapshot {
		if _, dup := index[remote.ID]; dup || remote.ID == "" {
			continue
		}
		record := remote
		if editedAt, ok := c.localEdits[remote.ID]; ok {
			i, cached := c.index[remote.ID]
			if cached && c.localWins(remote, editedAt) {
				record = c.entries[i].Contact
				localWinsTotal.Inc()
			} else {
				delete(c.localEdits, remote.ID)
			}
		}
		index[remote.ID] = len(next)
		next = append(next, Entry{Contact: record, FetchedAt: at})
	}

	for id := range c.localEdits {
		if _, ok := index[id]; !ok {
			delete(c.localEdits, id)
		}
	}

	c.entries = next
	c.index = index
	c.fetchedAt = at
	c.loaded = true
}

func (c *Cache) localWins(remote model.Contact, editedAt time.Time) bool {
	if remote.RemoteLastEditedAt == "" {
		return true
	}
	remoteAt, err := time.Parse(time.RFC3339Nano, remote.RemoteLastEditedAt)
	if err != nil {
		c.log.Warn().
			Str("id", remote.ID).
			Str("last_edited_time", remote.RemoteLastEditedAt).
			Msg("unreadable remote edit time, keeping local version")
		return true
	}
	return editedAt.After(remoteAt)
}

// ApplyLocalCreate adds ct and records the local edit. Call it only after the
// remote create succeeded.
func (c *Cache) ApplyLocalCreate(ct model.Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(ct)
}

// ApplyLocalUpdate replaces id with ct and records the local edit. Call it
// only after the remote update succeeded.
func (c *Cache) ApplyLocalUpdate(id string, ct model.Contact) {
	ct.ID = id
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(ct)
}

// ApplyLocalDelete drops id and its local edit. Call it only after the remote
// archive succeeded.
func (c *Cache) ApplyLocalDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.localEdits, id)
	i, ok := c.index[id]
	if !ok {
		return
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.entries); j++ {
		c.index[c.entries[j].Contact.ID] = j
	}
}

func (c *Cache) putLocked(ct model.Contact) {
	if ct.ID == "" {
		return
	}
	now := c.now()
	e := Entry{Contact: ct, FetchedAt: now}
	if i, ok := c.index[ct.ID]; ok {
		c.entries[i] = e
	} else {
		c.index[ct.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	c.localEdits[ct.ID] = now
}

// Invalidate marks the cache empty so the next read refreshes. Entries and
// local edits are kept.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
