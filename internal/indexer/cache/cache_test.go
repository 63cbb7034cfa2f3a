package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/resilience"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := s.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		s.data[key] = string(v)
	case string:
		s.data[key] = v
	}
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			n++
		}
	}
	return n, nil
}

func opts(workers int) config.IndexerConfig {
	return config.IndexerConfig{Workers: workers, Unindexable: config.UnindexableSkip}
}

func TestKeyDependsOnDocumentAndOptions(t *testing.T) {
	doc := []byte("the cat sat\n")
	base := Key(doc, opts(2))
	if base != Key([]byte("the cat sat\n"), opts(2)) {
		t.Error("key is not deterministic")
	}
	strip := opts(2)
	strip.StripPunctuation = true
	for name, other := range map[string]string{
		"document": Key([]byte("the cat sat.\n"), opts(2)),
		"workers":  Key(doc, opts(3)),
		"strip":    Key(doc, strip),
	} {
		if other == base {
			t.Errorf("key does not change with %s", name)
		}
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemStore(), config.RedisConfig{CacheTTL: time.Minute}, nil)
	ctx := context.Background()
	key := Key([]byte("a b"), opts(1))

	calls := 0
	compute := func(context.Context) (*Entry, error) {
		calls++
		return &Entry{Report: []byte("a 1\nb 1\n"), Lines: 1, Words: 2, Occurrences: 2}, nil
	}

	e, cached, err := c.GetOrCompute(ctx, key, compute)
	if err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}
	e2, cached, err := c.GetOrCompute(ctx, key, compute)
	if err != nil || !cached {
		t.Fatalf("second call: cached=%v err=%v", cached, err)
	}
	if string(e2.Report) != string(e.Report) || e2.Words != 2 {
		t.Errorf("cached entry = %+v", e2)
	}
	if calls != 1 {
		t.Errorf("compute called %d times", calls)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Hits != 1 || stats.Misses != 1 || stats.Keys != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemStore(), config.RedisConfig{}, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (*Entry, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("failed computation must not be cached")
	}
}

func TestGetOrComputeCoalesces(t *testing.T) {
	c := New(newMemStore(), config.RedisConfig{}, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*Entry, error) {
		calls.Add(1)
		<-release
		return &Entry{Report: []byte("x 1\n")}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), "same", compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	// Late arrivals may miss the in-flight call but then hit the cache.
	if n := calls.Load(); n > 2 {
		t.Errorf("compute called %d times", n)
	}
}

func TestGetOrComputeSurvivesCancelledCaller(t *testing.T) {
	c := New(newMemStore(), config.RedisConfig{}, nil)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var buildErr atomic.Value
	compute := func(ctx context.Context) (*Entry, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			buildErr.Store(err)
			return nil, err
		}
		return &Entry{Report: []byte("x 1\n")}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(firstCtx, "doc", compute)
		firstDone <- err
	}()
	<-started

	type outcome struct {
		entry *Entry
		err   error
	}
	secondDone := make(chan outcome, 1)
	go func() {
		e, _, err := c.GetOrCompute(context.Background(), "doc", compute)
		secondDone <- outcome{e, err}
	}()
	for c.misses.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	cancelFirst()
	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: err = %v, want context.Canceled", err)
	}
	close(release)

	got := <-secondDone
	if got.err != nil {
		t.Fatalf("caller with a live context failed: %v", got.err)
	}
	if string(got.entry.Report) != "x 1\n" {
		t.Errorf("report = %q", got.entry.Report)
	}
	if v := buildErr.Load(); v != nil {
		t.Errorf("shared build saw cancellation: %v", v)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("compute called %d times, want 1", n)
	}
	if _, ok := c.Get(context.Background(), "doc"); !ok {
		t.Error("shared build result was not cached")
	}
}

func TestStoreFailureIsMiss(t *testing.T) {
	store := newMemStore()
	store.failGet = true
	c := New(store, config.RedisConfig{}, nil)
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatal("expected miss")
	}
	if c.misses.Load() != 1 {
		t.Errorf("misses = %d", c.misses.Load())
	}
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	store := newMemStore()
	store.failGet = true
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(store, config.RedisConfig{BreakerFailures: 3, BreakerCooldown: time.Minute}, m)
	for range 10 {
		c.Get(context.Background(), "k")
	}
	if c.Healthy() {
		t.Fatal("breaker should be open after repeated failures")
	}
	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Breaker != "open" || stats.Misses != 10 {
		t.Errorf("stats = %+v", stats)
	}
	if got := testutil.ToFloat64(m.CacheBreakerState); got != float64(resilience.StateOpen) {
		t.Errorf("breaker gauge = %v, want open", got)
	}

	if _, err := c.Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !c.Healthy() {
		t.Error("successful invalidate should close the breaker")
	}
	if got := testutil.ToFloat64(m.CacheBreakerState); got != float64(resilience.StateClosed) {
		t.Errorf("breaker gauge = %v, want closed", got)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["unrelated"] = "keep"
	c := New(store, config.RedisConfig{}, nil)
	ctx := context.Background()
	c.Set(ctx, Key([]byte("a"), opts(1)), &Entry{})
	c.Set(ctx, Key([]byte("b"), opts(1)), &Entry{})

	n, err := c.Invalidate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	if _, ok := store.data["unrelated"]; !ok {
		t.Error("invalidate removed a foreign key")
	}
}
