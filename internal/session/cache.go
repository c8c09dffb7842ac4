// Package session holds live conversation state in memory and writes it
// through to the durable conversation store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nkov/supportbot/internal/storage"
)

// ErrSessionNotFound is returned when a session id is unknown to both the
// cache and the store. It is a typed absence, not a connectivity failure.
var ErrSessionNotFound = errors.New("session not found")

// Session is one ongoing conversation. History alternates user and bot
// messages in insertion order; after any completed turn its length is even.
type Session struct {
	ID        string
	CreatedAt time.Time
	History   []string
}

// Store defines the durable operations the cache needs.
// Implemented by storage.Store.
type Store interface {
	InsertSession(ctx context.Context, rec storage.SessionRecord) error
	GetSession(ctx context.Context, id string) (storage.SessionRecord, error)
	ListSessions(ctx context.Context, activeSince time.Time) ([]storage.SessionRecord, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeleteSession(ctx context.Context, id string) error
	InsertEntry(ctx context.Context, e storage.Entry) error
	ListEntries(ctx context.Context, sessionID string) ([]storage.Entry, error)
	DeleteEntries(ctx context.Context, sessionID string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Cache is an in-memory session map with write-through persistence.
//
// The cache mutex guards only the map and the in-memory histories; store
// I/O happens outside it so a slow write never blocks unrelated sessions.
// Per-session write locks serialize store writes for one session, keeping
// entry order aligned with in-memory turn order.
type Cache struct {
	store  Store
	clock  Clock
	window time.Duration // expiration window; <= 0 disables expiration

	mu       sync.Mutex
	sessions map[string]*Session
	writeMu  map[string]*sync.Mutex

	rehydrate singleflight.Group
}

// New creates a Cache over store with the given expiration window.
func New(store Store, window time.Duration) *Cache {
	return NewWithClock(store, window, realClock{})
}

// NewWithClock creates a Cache with a custom clock (for testing).
func NewWithClock(store Store, window time.Duration, clock Clock) *Cache {
	return &Cache{
		store:    store,
		clock:    clock,
		window:   window,
		sessions: make(map[string]*Session),
		writeMu:  make(map[string]*sync.Mutex),
	}
}

// Create allocates a new session, inserts it into the cache, and persists
// it. A store failure here is fatal: the cache entry is rolled back and the
// error surfaces to the caller.
func (c *Cache) Create(ctx context.Context) (Session, error) {
	id := uuid.New().String()
	now := c.clock.Now().UTC()
	s := &Session{ID: id, CreatedAt: now}

	c.mu.Lock()
	c.sessions[id] = s
	c.mu.Unlock()

	rec := storage.SessionRecord{ID: id, CreatedAt: now, LastActiveAt: now}
	if err := c.store.InsertSession(ctx, rec); err != nil {
		c.mu.Lock()
		delete(c.sessions, id)
		c.mu.Unlock()
		return Session{}, fmt.Errorf("persisting new session: %w", err)
	}

	return copyOf(s), nil
}

// Get returns the session for id, rehydrating from the store on a cache
// miss. Expired sessions are evicted and reported as absent.
func (c *Cache) Get(ctx context.Context, id string) (Session, error) {
	c.mu.Lock()
	if s, ok := c.sessions[id]; ok {
		if c.expired(s.CreatedAt) {
			delete(c.sessions, id)
			c.mu.Unlock()
			return Session{}, ErrSessionNotFound
		}
		out := copyOf(s)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	// Collapse concurrent misses for the same id into one store read.
	v, err, _ := c.rehydrate.Do(id, func() (any, error) {
		return c.load(ctx, id)
	})
	if err != nil {
		return Session{}, err
	}

	s := v.(*Session)
	c.mu.Lock()
	out := copyOf(s)
	c.mu.Unlock()
	return out, nil
}

// load reads a session and its entries from the store and repopulates the
// cache. Connectivity failures degrade to absence: a read that cannot reach
// the store behaves like a miss.
func (c *Cache) load(ctx context.Context, id string) (*Session, error) {
	rec, err := c.store.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		slog.Warn("session store read failed, treating as absent", "session_id", id, "error", err)
		return nil, ErrSessionNotFound
	}
	if c.expired(rec.CreatedAt) {
		return nil, ErrSessionNotFound
	}

	entries, err := c.store.ListEntries(ctx, id)
	if err != nil {
		slog.Warn("conversation read failed, treating as absent", "session_id", id, "error", err)
		return nil, ErrSessionNotFound
	}

	history := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		history = append(history, e.UserQuery, e.BotResponse)
	}

	s := &Session{ID: rec.ID, CreatedAt: rec.CreatedAt, History: history}

	c.mu.Lock()
	// Another goroutine may have raced a turn in while we were reading;
	// its copy is more current, so keep it.
	if existing, ok := c.sessions[id]; ok {
		s = existing
	} else {
		c.sessions[id] = s
	}
	c.mu.Unlock()

	return s, nil
}

// AddTurn appends a completed turn (user query and bot response) to the
// session history and writes one conversation entry through to the store.
func (c *Cache) AddTurn(ctx context.Context, id, userQuery, botResponse string) error {
	c.mu.Lock()
	_, resident := c.sessions[id]
	c.mu.Unlock()

	if !resident {
		if _, err := c.Get(ctx, id); err != nil {
			return err
		}
	}

	// Serialize turns for this session: in-memory append order and store
	// write order must agree.
	wmu := c.sessionWriteLock(id)
	wmu.Lock()
	defer wmu.Unlock()

	c.mu.Lock()
	s, ok := c.sessions[id]
	if !ok {
		// Evicted or deleted between the reload and now.
		c.mu.Unlock()
		return ErrSessionNotFound
	}
	s.History = append(s.History, userQuery, botResponse)
	c.mu.Unlock()

	now := c.clock.Now().UTC()
	entry := storage.Entry{
		ID:          uuid.New().String(),
		SessionID:   id,
		UserQuery:   userQuery,
		BotResponse: botResponse,
		Timestamp:   now,
	}
	if err := c.store.InsertEntry(ctx, entry); err != nil {
		return fmt.Errorf("persisting turn: %w", err)
	}
	if err := c.store.TouchSession(ctx, id, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("updating session activity failed", "session_id", id, "error", err)
	}

	return nil
}

// List returns the union of cache-resident sessions and store sessions
// active within the expiration window, deduplicated by id. The cached copy
// wins on conflict since it is more current.
func (c *Cache) List(ctx context.Context) ([]Session, error) {
	c.mu.Lock()
	cached := make([]Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		if c.expired(s.CreatedAt) {
			continue
		}
		cached = append(cached, copyOf(s))
	}
	c.mu.Unlock()

	sort.Slice(cached, func(i, j int) bool {
		return cached[i].CreatedAt.Before(cached[j].CreatedAt)
	})

	activeSince := time.Time{}
	if c.window > 0 {
		activeSince = c.clock.Now().UTC().Add(-c.window)
	}
	records, err := c.store.ListSessions(ctx, activeSince)
	if err != nil {
		// Degrade to cache-only listing on store trouble.
		slog.Warn("session store list failed, returning cached sessions only", "error", err)
		return cached, nil
	}

	seen := make(map[string]bool, len(cached))
	for _, s := range cached {
		seen[s.ID] = true
	}
	out := cached
	for _, rec := range records {
		if seen[rec.ID] {
			continue
		}
		out = append(out, Session{ID: rec.ID, CreatedAt: rec.CreatedAt})
	}
	return out, nil
}

// Delete removes a session from the cache and the store, including all of
// its conversation entries. Deleting an absent session is a no-op.
func (c *Cache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	delete(c.sessions, id)
	delete(c.writeMu, id)
	c.mu.Unlock()

	if err := c.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if err := c.store.DeleteEntries(ctx, id); err != nil {
		return fmt.Errorf("deleting conversation entries: %w", err)
	}
	return nil
}

// Evict drops a session from the cache without touching the store. The next
// Get rehydrates it from durable state.
func (c *Cache) Evict(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

func (c *Cache) sessionWriteLock(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.writeMu[id]
	if !ok {
		m = &sync.Mutex{}
		c.writeMu[id] = m
	}
	return m
}

func (c *Cache) expired(createdAt time.Time) bool {
	if c.window <= 0 {
		return false
	}
	return c.clock.Now().UTC().Sub(createdAt) > c.window
}

func copyOf(s *Session) Session {
	out := Session{ID: s.ID, CreatedAt: s.CreatedAt}
	if len(s.History) > 0 {
		out.History = append([]string(nil), s.History...)
	}
	return out
}
