package memory

import (
	"sync"
	"time"

	"smart-support-bot/pkg/store"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache

	// Per-key locks. mu only guards the map and the ref counts.
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionRepository creates the in-memory session table. A zero idleTTL
// keeps sessions for the lifetime of the process.
func NewSessionRepository(idleTTL time.Duration) *SessionRepository {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if idleTTL > 0 {
		expiration = idleTTL
		cleanup = idleTTL / 6
		if cleanup < time.Minute {
			cleanup = time.Minute
		}
	}
	return &SessionRepository{
		cache: cache.New(expiration, cleanup),
		locks: make(map[string]*keyLock),
	}
}

// Lock serializes work on a single key. Callers must call the returned func
// exactly once.
func (r *SessionRepository) Lock(key store.Key) (unlock func()) {
	k := key.String()

	r.mu.Lock()
	l, ok := r.locks[k]
	if !ok {
		l = &keyLock{}
		r.locks[k] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			r.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(r.locks, k)
			}
			r.mu.Unlock()
		})
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.Key.String(), session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(key store.Key) (*store.Session, bool) {
	if x, found := r.cache.Get(key.String()); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(key store.Key) {
	r.cache.Delete(key.String())
}

// Count returns the number of live sessions.
func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// Flush drops every session, used on shutdown.
func (r *SessionRepository) Flush() {
	r.cache.Flush()
}

func (r *SessionRepository) pendingLocks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
