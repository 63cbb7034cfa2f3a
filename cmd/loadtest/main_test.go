package main

import (
	"bytes"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, 50 * time.Millisecond},
		{99, 99 * time.Millisecond},
		{100, 100 * time.Millisecond},
		{0, time.Millisecond},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Error("empty input should yield zero")
	}
}

func TestMakeDocuments(t *testing.T) {
	docs := makeDocuments(rand.New(rand.NewSource(7)), 3, 10)
	if len(docs) != 3 {
		t.Fatalf("got %d documents", len(docs))
	}
	for i, d := range docs {
		if n := bytes.Count(d, []byte("\n")); n != 10 {
			t.Errorf("doc %d has %d lines", i, n)
		}
	}
	again := makeDocuments(rand.New(rand.NewSource(7)), 3, 10)
	if !bytes.Equal(docs[0], again[0]) {
		t.Error("documents are not reproducible for a fixed seed")
	}
}

func TestRunLoadTestAgainstStub(t *testing.T) {
	var seen atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/index" || r.URL.Query().Get("workers") == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		seen.Store(true)
		w.Header().Set("X-Index-Cache", "hit")
		w.Write([]byte("a 1\n"))
	}))
	defer srv.Close()

	stats := runLoadTest(Config{
		BaseURL:     srv.URL,
		Concurrency: 1,
		Duration:    50 * time.Millisecond,
		Documents:   [][]byte{[]byte("a\n")},
		Workers:     []int{2},
	})
	if !seen.Load() || stats.successCount.Load() == 0 {
		t.Fatalf("no successful requests recorded")
	}
	if stats.cacheHits.Load() != stats.successCount.Load() {
		t.Errorf("cache hits = %d, successes = %d", stats.cacheHits.Load(), stats.successCount.Load())
	}

	var out bytes.Buffer
	if !printReport(&out, stats, 50*time.Millisecond) {
		t.Error("report should succeed")
	}
	if !strings.Contains(out.String(), "Cache Hit Rate:  100.00%") {
		t.Errorf("unexpected report:\n%s", out.String())
	}
}

func TestRecordRequestErrors(t *testing.T) {
	s := NewStats()
	s.RecordRequest(time.Millisecond, 0, false, 10, errors.New("refused"))
	s.RecordRequest(time.Millisecond, 500, false, 10, nil)
	if s.errorCount.Load() != 2 || s.successCount.Load() != 0 {
		t.Errorf("errors = %d successes = %d", s.errorCount.Load(), s.successCount.Load())
	}
	var out bytes.Buffer
	if !printReport(&out, s, time.Second) {
		t.Error("requests completed, report should succeed")
	}
}
