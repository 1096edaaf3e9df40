// README: Tests for the in-memory document store: transactions, increments, queries and watches.
package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newber/internal/apperr"
)

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "users", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(ErrNotFound, apperr.ErrNotFound) {
		t.Fatal("ErrNotFound should carry the not-found kind")
	}

	if err := m.Put(ctx, "users", "u1", Record{"username": "alice", "balance": 100}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Update(ctx, "users", "u1", Record{"balance": Inc(-25), "phone": "7805551234"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, err := m.Get(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Int64("balance") != 75 {
		t.Errorf("balance = %d, want 75", rec.Int64("balance"))
	}
	if rec.String("phone") != "7805551234" {
		t.Errorf("phone = %q", rec.String("phone"))
	}

	rec["username"] = "mutated"
	again, _ := m.Get(ctx, "users", "u1")
	if again.String("username") != "alice" {
		t.Fatal("Get must return a copy")
	}

	if err := m.Update(ctx, "users", "missing", Record{"x": 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: expected ErrNotFound, got %v", err)
	}

	if err := m.Delete(ctx, "users", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, "users", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemory_Query(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, "rideRequests", "b", Record{"status": "PENDING"})
	_ = m.Put(ctx, "rideRequests", "a", Record{"status": "PENDING"})
	_ = m.Put(ctx, "rideRequests", "c", Record{"status": "OFFERED"})

	got, err := m.Query(ctx, "rideRequests", Eq("status", "PENDING"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected result: %+v", got)
	}

	got, _ = m.Query(ctx, "rideRequests", NotEq("status", "PENDING"))
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("unexpected != result: %+v", got)
	}
}

func TestMemory_TransactionAbortsOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, "users", "u1", Record{"balance": int64(10)})

	boom := errors.New("boom")
	err := m.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Get("users", "u1"); err != nil {
			return err
		}
		_ = tx.Update("users", "u1", Record{"balance": Inc(5)})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	rec, _ := m.Get(ctx, "users", "u1")
	if rec.Int64("balance") != 10 {
		t.Fatalf("aborted transaction leaked a write: %d", rec.Int64("balance"))
	}
}

func TestMemory_TransactionIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, "users", "u1", Record{"balance": int64(10)})

	err := m.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		_ = tx.Update("users", "u1", Record{"balance": Inc(5)})
		return tx.Update("users", "ghost", Record{"balance": Inc(5)})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rec, _ := m.Get(ctx, "users", "u1")
	if rec.Int64("balance") != 10 {
		t.Fatalf("partial commit: %d", rec.Int64("balance"))
	}
}

func TestMemory_ReadAfterWrite(t *testing.T) {
	m := NewMemory()
	err := m.RunTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
		_ = tx.Set("users", "u1", Record{})
		_, err := tx.Get("users", "u1")
		return err
	})
	if !errors.Is(err, ErrReadAfterWrite) {
		t.Fatalf("expected ErrReadAfterWrite, got %v", err)
	}
}

func TestMemory_ConcurrentConditionalWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, "rideRequests", "r1", Record{"status": "PENDING"})

	errConflict := errors.New("conflict")
	const attempts = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- m.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
				rec, err := tx.Get("rideRequests", "r1")
				if err != nil {
					return err
				}
				if rec.String("status") != "PENDING" {
					return errConflict
				}
				return tx.Update("rideRequests", "r1", Record{"status": "OFFERED"})
			})
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, errConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestMemory_Watch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, "rideRequests", "r1", Record{"status": "PENDING"})

	got := make(chan Snapshot, 8)
	h, err := m.Watch(ctx, "rideRequests", "r1", func(s Snapshot) { got <- s })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	_ = m.Update(ctx, "rideRequests", "r1", Record{"status": "OFFERED"})
	_ = m.Delete(ctx, "rideRequests", "r1")

	want := []struct {
		status string
		exists bool
	}{{"PENDING", true}, {"OFFERED", true}, {"", false}}
	for i, w := range want {
		select {
		case s := <-got:
			if s.Exists != w.exists || s.Data.String("status") != w.status {
				t.Fatalf("delivery %d = %+v, want %+v", i, s, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}

	h.Cancel()
	_ = m.Put(ctx, "rideRequests", "r1", Record{"status": "PENDING"})
	select {
	case s := <-got:
		t.Fatalf("delivery after cancel: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_WatchDropsQueuedChangesOnCancel(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var mu sync.Mutex
	calls := 0
	entered := make(chan struct{})
	release := make(chan struct{})
	h, err := m.Watch(ctx, "rideRequests", "r1", func(Snapshot) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	<-entered

	// queued behind the blocked first callback
	for i := 0; i < 5; i++ {
		_ = m.Put(ctx, "rideRequests", "r1", Record{"n": int64(i)})
	}
	h.Cancel()
	close(release)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("callbacks = %d, want only the one running at cancel", calls)
	}
}

func TestMemory_WatchStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()

	got := make(chan Snapshot, 8)
	if _, err := m.Watch(ctx, "rideRequests", "r1", func(s Snapshot) { got <- s }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	<-got // initial "missing" snapshot
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		m.mu.Lock()
		n := len(m.watchers)
		m.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher not removed after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
