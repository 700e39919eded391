// Package session holds the in-memory conversational state of each user.
//
// The Store keeps at most one live Session per user and offers a per-user
// lock so that events for the same user are handled one at a time. Idle
// sessions expire after a TTL: lazily when read and in bulk by Sweep, which
// Run calls on a ticker.
//
// This type is process-local. A horizontally scaled deployment needs sticky
// routing by user id or an external store.
package session

import (
	"context"
	"sync"
	"time"
)

// State is the position of a user in the conversational workflow.
type State int

const (
	StateIdle State = iota
	StateCategorySelected
	StateCollectingDocuments
	StateSubmitting
	StateAwaitingKeyword
	StateAwaitingPostLimit
	StateAwaitingTrackingCode
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateCategorySelected:     "category_selected",
	StateCollectingDocuments:  "collecting_documents",
	StateSubmitting:           "submitting",
	StateAwaitingKeyword:      "awaiting_keyword",
	StateAwaitingPostLimit:    "awaiting_post_limit",
	StateAwaitingTrackingCode: "awaiting_tracking_code",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// MessageRef identifies a raw inbound message so it can be forwarded later.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// Session is one user's workflow state. Drafts and Refs keep arrival order.
type Session struct {
	UserID       int64
	State        State
	CategoryID   uint
	ServiceID    uint
	ServiceTitle string
	Drafts       []string
	Refs         []MessageRef
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// clone returns a deep copy so callers never share slices with the store.
func (s *Session) clone() *Session {
	c := *s
	c.Drafts = append([]string(nil), s.Drafts...)
	c.Refs = append([]MessageRef(nil), s.Refs...)
	return &c
}

type entry struct {
	mu      sync.Mutex // serializes event handling for one user
	holders int        // goroutines holding or waiting for mu; guarded by Store.mu
	sess    *Session
}

// Store is a concurrency-safe map of user id to Session.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
	ttl     time.Duration
	now     func() time.Time
}

// New returns a Store whose sessions expire after ttl of inactivity.
// A nil clock defaults to time.Now.
func New(ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries: make(map[int64]*entry),
		ttl:     ttl,
		now:     now,
	}
}

// Lock acquires the per-user lock and returns the function releasing it.
// Every inbound event for userID must be handled between Lock and unlock.
func (st *Store) Lock(userID int64) (unlock func()) {
	st.mu.Lock()
	e := st.entries[userID]
	if e == nil {
		e = &entry{}
		st.entries[userID] = e
	}
	e.holders++
	st.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			st.mu.Lock()
			e.holders--
			if e.holders == 0 && e.sess == nil {
				delete(st.entries, userID)
			}
			st.mu.Unlock()
		})
	}
}

// Get returns a copy of the user's live session. Expired sessions are
// dropped and reported as absent.
func (st *Store) Get(userID int64) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e := st.entries[userID]
	if e == nil || e.sess == nil {
		return nil, false
	}
	if st.expired(e.sess) {
		st.dropLocked(userID, e)
		return nil, false
	}
	return e.sess.clone(), true
}

// Put stores s as the user's only session, replacing any previous one.
func (st *Store) Put(s *Session) {
	now := st.now()
	c := s.clone()
	if c.StartedAt.IsZero() {
		c.StartedAt = now
	}
	c.UpdatedAt = now

	st.mu.Lock()
	defer st.mu.Unlock()
	e := st.entries[c.UserID]
	if e == nil {
		e = &entry{}
		st.entries[c.UserID] = e
	}
	e.sess = c
}

// Delete destroys the user's session, if any.
func (st *Store) Delete(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if e := st.entries[userID]; e != nil {
		st.dropLocked(userID, e)
	}
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for _, e := range st.entries {
		if e.sess != nil {
			n++
		}
	}
	return n
}

// Sweep removes every expired session and returns how many were removed.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, e := range st.entries {
		if e.sess != nil && st.expired(e.sess) {
			st.dropLocked(id, e)
			n++
		}
	}
	return n
}

// Run sweeps expired sessions every interval until ctx is cancelled.
// onSweep, when non-nil, receives the number of sessions removed per tick.
func (st *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n := st.Sweep()
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (st *Store) expired(s *Session) bool {
	return st.ttl > 0 && st.now().Sub(s.UpdatedAt) >= st.ttl
}

// dropLocked clears the session and forgets the entry when nobody holds its lock.
func (st *Store) dropLocked(userID int64, e *entry) {
	e.sess = nil
	if e.holders == 0 {
		delete(st.entries, userID)
	}
}
