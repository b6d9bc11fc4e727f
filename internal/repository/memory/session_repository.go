package memory

import (
	"sync"
	"time"

	"pdf-chat-be/internal/entity"
	"pdf-chat-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

type sessionEntry struct {
	mu    sync.Mutex
	turns []entity.Turn
	// cleared is set once the entry has left the cache; appenders holding it
	// must fetch a fresh one.
	cleared bool
}

// SessionRepository keeps conversation turns per session id. Each entry has
// its own lock; the cache only guards the id -> entry map.
type SessionRepository struct {
	cache *cache.Cache
	// create serializes lookups that write to the cache with Clear, so a
	// cleared entry is never stored back.
	create sync.Mutex
}

var _ contract.SessionStore = &SessionRepository{}

// NewSessionRepository builds the store. ttl <= 0 keeps sessions until they
// are cleared or the process exits; otherwise idle sessions expire after ttl.
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
		if cleanup < time.Minute {
			cleanup = time.Minute
		}
	}

	return &SessionRepository{
		cache: cache.New(expiration, cleanup),
	}
}

func (r *SessionRepository) GetHistory(sessionID string) []entity.Turn {
	entry, ok := r.get(sessionID)
	if !ok {
		return []entity.Turn{}
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	out := make([]entity.Turn, len(entry.turns))
	copy(out, entry.turns)
	return out
}

func (r *SessionRepository) AppendTurn(sessionID string, turn entity.Turn) {
	r.appendTurns(sessionID, turn)
}

func (r *SessionRepository) AppendExchange(sessionID, question, answer string) {
	r.appendTurns(sessionID,
		entity.Turn{Role: entity.RoleUser, Content: question},
		entity.Turn{Role: entity.RoleAssistant, Content: answer},
	)
}

func (r *SessionRepository) Clear(sessionID string) {
	r.create.Lock()
	defer r.create.Unlock()

	entry, ok := r.get(sessionID)
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.cleared = true
	entry.mu.Unlock()
	r.cache.Delete(sessionID)
}

// appendTurns adds turns as one unit. An entry cleared after lookup is
// dropped and the append lands on a new session.
func (r *SessionRepository) appendTurns(sessionID string, turns ...entity.Turn) {
	for {
		entry := r.getOrCreate(sessionID)

		entry.mu.Lock()
		if entry.cleared {
			entry.mu.Unlock()
			continue
		}
		entry.turns = append(entry.turns, turns...)
		entry.mu.Unlock()
		return
	}
}

func (r *SessionRepository) get(sessionID string) (*sessionEntry, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*sessionEntry), true
	}
	return nil, false
}

func (r *SessionRepository) getOrCreate(sessionID string) *sessionEntry {
	r.create.Lock()
	defer r.create.Unlock()

	entry, ok := r.get(sessionID)
	if !ok {
		entry = &sessionEntry{}
	}
	// Also refreshes the idle timer of an existing entry.
	r.cache.SetDefault(sessionID, entry)
	return entry
}
