package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"saldo/internal/cache"
	"saldo/internal/core"
)

// fakeStore is an in-memory Store that can be slowed down or made to fail.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string]core.Ledger
	delay   time.Duration
	saveErr error
	loads   atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]core.Ledger{}}
}

func (f *fakeStore) Load(_ context.Context, userID string) (core.Ledger, error) {
	f.loads.Add(1)
	// Ignores the context on purpose to exercise the timeout wrapper.
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.data[userID]
	if !ok {
		return core.Ledger{}, Wrap(OpLoad, "fake", userID, ErrNotFound)
	}
	return l, nil
}

func (f *fakeStore) Save(_ context.Context, userID string, l core.Ledger) error {
	time.Sleep(f.delay)
	if f.saveErr != nil {
		return Wrap(OpSave, "fake", userID, f.saveErr)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[userID] = l
	return nil
}

func sampleLedger(t *testing.T) core.Ledger {
	t.Helper()
	l, err := core.NewLedger().SetIncome("1500")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range [][2]string{{"Rent", "800"}, {"Food", "200.25"}, {"Food", "200.25"}} {
		if l, err = l.AddExpense(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func TestDocumentRoundTripKeepsOrderAndDuplicates(t *testing.T) {
	want := sampleLedger(t)
	data, err := MarshalLedger(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"income":1500,"expenses":[{"name":"Rent","amount":800},{"name":"Food","amount":200.25},{"name":"Food","amount":200.25}]}` {
		t.Fatalf("unexpected document %s", data)
	}
	got, err := UnmarshalLedger(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("round trip mismatch: %+v", got.Expenses())
	}
}

func TestUnmarshalLedger(t *testing.T) {
	cases := []struct {
		name string
		in   string
		ok   bool
	}{
		{"empty object", `{}`, true},
		{"no expenses", `{"income": 12.5}`, true},
		{"high precision", `{"income": 0.1, "expenses": [{"name": "a", "amount": 0.2}]}`, true},
		{"not json", `nope`, false},
		{"string income", `{"income": "a lot"}`, false},
		{"negative income", `{"income": -1}`, false},
		{"empty name", `{"expenses": [{"name": "", "amount": 1}]}`, false},
		{"negative amount", `{"expenses": [{"name": "x", "amount": -3}]}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalLedger([]byte(tc.in))
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrBadPayload) {
				t.Fatalf("expected ErrBadPayload, got %v", err)
			}
		})
	}
}

func TestWrapDoesNotDoubleWrap(t *testing.T) {
	err := Wrap(OpLoad, "a", "u", ErrNotFound)
	if again := Wrap(OpSave, "b", "u", err); again != err {
		t.Fatalf("expected the same error back, got %v", again)
	}
	if Wrap(OpLoad, "a", "u", nil) != nil {
		t.Fatal("nil should stay nil")
	}
	if got := err.Error(); got != `a load ledger for "u": ledger not found` {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestLoadOrEmpty(t *testing.T) {
	s := newFakeStore()
	l, err := LoadOrEmpty(context.Background(), s, "nobody")
	if err != nil || !l.Equal(core.NewLedger()) {
		t.Fatalf("expected empty ledger, got %+v, %v", l, err)
	}
}

func TestFutureAwait(t *testing.T) {
	f := Go(context.Background(), func(context.Context) (int, error) { return 42, nil })
	<-f.Done()
	for i := 0; i < 2; i++ {
		v, err := f.Await(context.Background())
		if err != nil || v != 42 {
			t.Fatalf("await %d: %d, %v", i, v, err)
		}
	}

	block := make(chan struct{})
	defer close(block)
	slow := Go(context.Background(), func(context.Context) (int, error) { <-block; return 0, nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := slow.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestSaveAsyncThenLoadAsync(t *testing.T) {
	s := newFakeStore()
	ctx := context.Background()
	want := sampleLedger(t)
	if _, err := SaveAsync(ctx, s, "u1", want).Await(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadAsync(ctx, s, "u1").Await(ctx)
	if err != nil || !got.Equal(want) {
		t.Fatalf("load: %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	s := newFakeStore()
	s.delay = 200 * time.Millisecond
	bounded := WithTimeout(s, "fake", 20*time.Millisecond)

	start := time.Now()
	_, err := bounded.Load(context.Background(), "u1")
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("timeout not enforced, waited %s", elapsed)
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != OpLoad || pe.Backend != "fake" {
		t.Fatalf("unexpected error shape %#v", err)
	}

	if err := bounded.Save(context.Background(), "u1", core.NewLedger()); !IsTimeout(err) {
		t.Fatalf("expected save timeout, got %v", err)
	}
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	s := newFakeStore()
	if WithTimeout(s, "fake", 0) != Store(s) {
		t.Fatal("non-positive limit should return the store unchanged")
	}
	bounded := WithTimeout(s, "fake", time.Second)
	if _, err := bounded.Load(context.Background(), "u1"); !IsNotFound(err) || IsTimeout(err) {
		t.Fatalf("expected plain not found, got %v", err)
	}
}

func TestCachedDeduplicatesLoads(t *testing.T) {
	s := newFakeStore()
	s.data["u1"] = sampleLedger(t)
	s.delay = 30 * time.Millisecond
	c := NewCached(s, cache.NewLRUCache[core.Ledger](10, time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Load(context.Background(), "u1"); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}
	wg.Wait()
	if _, err := c.Load(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if n := s.loads.Load(); n != 1 {
		t.Fatalf("expected one backend load, got %d", n)
	}
}

func TestCachedSaveFailureInvalidates(t *testing.T) {
	s := newFakeStore()
	s.data["u1"] = sampleLedger(t)
	c := NewCached(s, cache.NewLRUCache[core.Ledger](10, time.Minute))
	ctx := context.Background()

	if _, err := c.Load(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	s.saveErr = errors.New("disk full")
	if err := c.Save(ctx, "u1", core.NewLedger()); err == nil {
		t.Fatal("expected save error")
	}
	if _, err := c.Load(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if n := s.loads.Load(); n != 2 {
		t.Fatalf("expected reload after failed save, got %d loads", n)
	}

	s.saveErr = nil
	next := sampleLedger(t)
	if err := c.Save(ctx, "u1", next); err != nil {
		t.Fatal(err)
	}
	got, _ := c.Load(ctx, "u1")
	if !got.Equal(next) || s.loads.Load() != 2 {
		t.Fatal("expected cached ledger after successful save")
	}
}

func TestCachedNotFoundIsNotCached(t *testing.T) {
	s := newFakeStore()
	c := NewCached(s, cache.NewLRUCache[core.Ledger](10, time.Minute))
	for i := 0; i < 2; i++ {
		if _, err := c.Load(context.Background(), "ghost"); !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if s.loads.Load() != 2 {
		t.Fatal("not-found results must not be cached")
	}
}

// gatedStore holds a load after it has read the backend until release is
// closed.
type gatedStore struct {
	*fakeStore
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Load(ctx context.Context, userID string) (core.Ledger, error) {
	l, err := g.fakeStore.Load(ctx, userID)
	g.once.Do(func() {
		close(g.read)
		<-g.release
	})
	return l, err
}

func TestCachedLoadDoesNotOverwriteNewerSave(t *testing.T) {
	ctx := context.Background()
	s := &gatedStore{fakeStore: newFakeStore(), read: make(chan struct{}), release: make(chan struct{})}
	s.data["u1"] = core.NewLedger()
	c := NewCached(s, cache.NewLRUCache[core.Ledger](10, time.Minute))

	done := make(chan core.Ledger, 1)
	go func() {
		l, _ := c.Load(ctx, "u1")
		done <- l
	}()
	<-s.read

	next := sampleLedger(t)
	if err := c.Save(ctx, "u1", next); err != nil {
		t.Fatal(err)
	}
	close(s.release)
	if old := <-done; old.Len() != 0 {
		t.Fatalf("in-flight load should return what it read, got %d expenses", old.Len())
	}

	got, err := c.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(next) {
		t.Fatalf("stale ledger served after save: %d expenses, want %d", got.Len(), next.Len())
	}
}

func TestReadThroughSaveDropsEntry(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	c := NewReadThrough(s, cache.NewLRUCache[core.Ledger](10, time.Minute))

	if err := c.Save(ctx, "u1", sampleLedger(t)); err != nil {
		t.Fatal(err)
	}
	// The backend keeps a different ledger than the one it was given.
	kept, _ := core.NewLedger().SetIncome("1")
	s.data["u1"] = kept

	for i := 0; i < 2; i++ {
		got, err := c.Load(ctx, "u1")
		if err != nil || !got.Equal(kept) {
			t.Fatalf("load %d: expected backend ledger, got %v", i, err)
		}
	}
	if n := s.loads.Load(); n != 1 {
		t.Fatalf("expected one backend load, got %d", n)
	}
}

func TestCachedInvalidate(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore()
	s.data["u1"] = sampleLedger(t)
	c := NewCached(s, cache.NewLRUCache[core.Ledger](10, time.Minute))

	_, _ = c.Load(ctx, "u1")
	c.Invalidate("u1")
	_, _ = c.Load(ctx, "u1")
	if n := s.loads.Load(); n != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", n)
	}
}

func TestWithTimeoutWrapsCancellation(t *testing.T) {
	s := newFakeStore()
	s.delay = 50 * time.Millisecond
	bounded := WithTimeout(s, "fake", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bounded.Load(ctx, "u1")
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Backend != "fake" || pe.Op != OpLoad {
		t.Fatalf("expected persistence error, got %#v", err)
	}
	if !errors.Is(err, context.Canceled) || IsTimeout(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if err := bounded.Save(ctx, "u1", core.NewLedger()); !errors.Is(err, context.Canceled) || !errors.As(err, &pe) {
		t.Fatalf("expected wrapped cancellation on save, got %v", err)
	}
}
