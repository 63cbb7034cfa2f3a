package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "indexgen_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "indexgen"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func TestSaveAndListRuns(t *testing.T) {
	db := skipIfNoPostgres(t)
	s := New(db)
	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	jobID := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() {
		db.DB.Exec(`DELETE FROM index_runs WHERE job_id LIKE $1`, jobID+"%")
	})

	first := &Run{JobID: jobID + "-a", Source: "cli", Workers: 2, Lines: 3, Words: 5, Occurrences: 9, Status: "ok"}
	second := &Run{JobID: jobID + "-b", Source: "kafka", Workers: 26, Status: "input_error", Error: "no such file",
		CreatedAt: time.Now().UTC().Add(time.Second)}
	for _, r := range []*Run{first, second} {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatal(err)
		}
		if r.ID == 0 {
			t.Error("SaveRun did not assign an id")
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs", len(runs))
	}
	if runs[0].JobID != second.JobID || runs[0].Error != "no such file" {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].Words != 5 || runs[1].Occurrences != 9 {
		t.Errorf("older run = %+v", runs[1])
	}
}
