package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock { return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestStore_PutGetDelete_ReturnsCopies(t *testing.T) {
	clk := newClock()
	st := New(time.Hour, clk.Now)

	st.Put(&Session{UserID: 1, State: StateCollectingDocuments, Drafts: []string{"a"}})
	s, ok := st.Get(1)
	if !ok || s.State != StateCollectingDocuments || len(s.Drafts) != 1 {
		t.Fatalf("Get = %+v ok=%v", s, ok)
	}
	if s.StartedAt.IsZero() || !s.UpdatedAt.Equal(clk.Now()) {
		t.Fatalf("timestamps not stamped: %+v", s)
	}

	s.Drafts = append(s.Drafts, "b")
	again, _ := st.Get(1)
	if len(again.Drafts) != 1 {
		t.Fatalf("mutating a returned session must not leak into the store")
	}

	st.Delete(1)
	if _, ok := st.Get(1); ok {
		t.Fatalf("session should be gone after Delete")
	}
	if st.Len() != 0 {
		t.Fatalf("Len = %d; want 0", st.Len())
	}
}

func TestStore_PutOverwritesPreviousFlow(t *testing.T) {
	st := New(time.Hour, nil)
	st.Put(&Session{UserID: 1, ServiceID: 1, Drafts: []string{"old"}})
	st.Put(&Session{UserID: 1, ServiceID: 2})
	s, _ := st.Get(1)
	if s.ServiceID != 2 || len(s.Drafts) != 0 || st.Len() != 1 {
		t.Fatalf("re-entry should replace the session: %+v len=%d", s, st.Len())
	}
}

func TestStore_ExpiryLazyAndSweep(t *testing.T) {
	clk := newClock()
	st := New(10*time.Minute, clk.Now)
	st.Put(&Session{UserID: 1})
	st.Put(&Session{UserID: 2})

	clk.Advance(5 * time.Minute)
	st.Put(&Session{UserID: 2}) // refresh

	clk.Advance(6 * time.Minute)
	if _, ok := st.Get(1); ok {
		t.Fatalf("session 1 should have expired on read")
	}
	if _, ok := st.Get(2); !ok {
		t.Fatalf("session 2 was refreshed and should be live")
	}

	clk.Advance(10 * time.Minute)
	if n := st.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d; want 1", n)
	}
	if st.Len() != 0 {
		t.Fatalf("Len = %d after sweep; want 0", st.Len())
	}
}

func TestStore_LockSerializesPerUser(t *testing.T) {
	st := New(time.Hour, nil)
	st.Put(&Session{UserID: 7})

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			unlock := st.Lock(7)
			defer unlock()
			s, _ := st.Get(7)
			s.Drafts = append(s.Drafts, "doc")
			st.Put(s)
		}()
	}
	wg.Wait()

	s, _ := st.Get(7)
	if len(s.Drafts) != workers {
		t.Fatalf("lost updates: got %d drafts, want %d", len(s.Drafts), workers)
	}
}

func TestStore_UnlockIsIdempotentAndReleasesEntry(t *testing.T) {
	st := New(time.Hour, nil)
	unlock := st.Lock(3)
	unlock()
	unlock()

	st.mu.Lock()
	_, present := st.entries[3]
	st.mu.Unlock()
	if present {
		t.Fatalf("entry without session should be released after unlock")
	}

	done := make(chan struct{})
	go func() {
		u := st.Lock(3)
		u()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("lock was not released")
	}
}

func TestStore_RunSweepsUntilCancelled(t *testing.T) {
	clk := newClock()
	st := New(time.Minute, clk.Now)
	st.Put(&Session{UserID: 1})
	clk.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 16)
	finished := make(chan struct{})
	go func() {
		st.Run(ctx, 5*time.Millisecond, func(n int) {
			select {
			case swept <- n:
			default:
			}
		})
		close(finished)
	}()

	total := 0
	deadline := time.After(2 * time.Second)
	for total == 0 {
		select {
		case n := <-swept:
			total += n
		case <-deadline:
			t.Fatalf("sweeper never removed the expired session")
		}
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}

func TestState_String(t *testing.T) {
	if StateCollectingDocuments.String() != "collecting_documents" || State(99).String() != "unknown" {
		t.Fatalf("State.String mismatch")
	}
}
