// Package session provides the keyed, time-bounded container of fill
// sessions. Commit is the only sanctioned mutation path and serializes
// writers per session id.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docfill/backend/internal/models"
)

var (
	// ErrNotFound is returned when a session id is unknown or expired.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicateID is returned on a generated-id collision.
	ErrDuplicateID = errors.New("session id collision")
)

// ReleasedResources references the file resources a removed session owned.
// The store performs no file I/O itself; the caller releases them.
type ReleasedResources struct {
	SessionID     string
	UploadPath    string
	CompletedPath string
}

type entry struct {
	// mu serializes commits for this id and guards the snapshot pointer.
	mu           sync.Mutex
	sess         *models.Session
	lastActivity time.Time
}

// Store is an in-memory session container with per-id commit serialization
// and an expiry sweep.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Create stores a new session under a freshly generated id and returns it.
func (st *Store) Create(sess *models.Session) (string, error) {
	id := uuid.New().String()

	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.entries[id]; exists {
		return "", ErrDuplicateID
	}

	snap := sess.Clone()
	snap.ID = id
	st.entries[id] = &entry{sess: snap, lastActivity: time.Now()}
	return id, nil
}

// Get returns a consistent snapshot of the session, or ErrNotFound.
func (st *Store) Get(id string) (*models.Session, error) {
	st.mu.RLock()
	e, ok := st.entries[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	snap := e.sess
	e.mu.Unlock()

	// Snapshots are never mutated after commit, so cloning outside the
	// lock is safe.
	return snap.Clone(), nil
}

// Commit applies fn to a clone of the stored session and, if fn succeeds,
// swaps the returned snapshot in. At most one commit runs per id at a
// time; a failed fn leaves the stored session untouched.
func (st *Store) Commit(id string, fn func(*models.Session) (*models.Session, error)) (*models.Session, error) {
	st.mu.RLock()
	e, ok := st.entries[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.sess.Clone())
	if err != nil {
		return nil, err
	}
	e.sess = next
	e.lastActivity = time.Now()
	return next.Clone(), nil
}

// Remove deletes the session and returns references to its owned file
// resources. If a commit is in flight for the id, Remove waits for it to
// finish before reporting the final resource set.
func (st *Store) Remove(id string) (*ReleasedResources, error) {
	st.mu.Lock()
	e, ok := st.entries[id]
	if ok {
		delete(st.entries, id)
	}
	st.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return &ReleasedResources{
		SessionID:     id,
		UploadPath:    e.sess.Filepath,
		CompletedPath: e.sess.CompletedDocument,
	}, nil
}

// SweepExpired removes sessions idle for longer than ttl and returns their
// owned resources for cleanup. Activity is refreshed on every commit, so a
// conversation in progress is never purged; a session that was never
// committed expires ttl after creation. Each candidate's commit lock is
// taken before it is unlinked, so a session is never removed mid-mutation.
func (st *Store) SweepExpired(now time.Time, ttl time.Duration) []ReleasedResources {
	cutoff := now.Add(-ttl)

	st.mu.RLock()
	candidates := make([]string, 0)
	for id, e := range st.entries {
		if e.lastActivity.Before(cutoff) {
			candidates = append(candidates, id)
		}
	}
	st.mu.RUnlock()

	var released []ReleasedResources
	for _, id := range candidates {
		st.mu.Lock()
		e, ok := st.entries[id]
		if !ok {
			st.mu.Unlock()
			continue
		}
		e.mu.Lock()
		// A commit may have landed between the scan and here.
		if !e.lastActivity.Before(cutoff) {
			e.mu.Unlock()
			st.mu.Unlock()
			continue
		}
		delete(st.entries, id)
		released = append(released, ReleasedResources{
			SessionID:     id,
			UploadPath:    e.sess.Filepath,
			CompletedPath: e.sess.CompletedDocument,
		})
		e.mu.Unlock()
		st.mu.Unlock()
	}
	return released
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}
