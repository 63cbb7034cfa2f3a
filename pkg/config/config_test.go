package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Indexer.Workers)
	}
	if cfg.Indexer.Unindexable != UnindexableSkip {
		t.Errorf("expected skip policy, got %q", cfg.Indexer.Unindexable)
	}
	if err := cfg.Indexer.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexgen.yaml")
	data := []byte(`
indexer:
  workers: 7
  stripPunctuation: true
redis:
  cacheTTL: 90s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IG_INDEXER_UNINDEXABLE", "error")
	t.Setenv("IG_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("IG_KAFKA_MAX_ATTEMPTS", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.Workers != 7 {
		t.Errorf("workers: got %d, want 7", cfg.Indexer.Workers)
	}
	if !cfg.Indexer.StripPunctuation {
		t.Error("stripPunctuation should be true")
	}
	if cfg.Indexer.Unindexable != UnindexableError {
		t.Errorf("unindexable: got %q", cfg.Indexer.Unindexable)
	}
	if cfg.Redis.CacheTTL != 90*time.Second {
		t.Errorf("cacheTTL: got %v", cfg.Redis.CacheTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers: got %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.MaxAttempts != 2 || cfg.Kafka.RetryBackoff != time.Second {
		t.Errorf("kafka retry: got %d attempts, backoff %v", cfg.Kafka.MaxAttempts, cfg.Kafka.RetryBackoff)
	}
	if cfg.Postgres.Database != "indexgen" {
		t.Errorf("unset fields should keep defaults, got %q", cfg.Postgres.Database)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing config file, got %v", err)
	}
}

func TestIndexerValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     IndexerConfig
		wantErr bool
	}{
		{"min workers", IndexerConfig{Workers: 1, Unindexable: UnindexableSkip}, false},
		{"max workers", IndexerConfig{Workers: 26, Unindexable: UnindexableError}, false},
		{"zero workers", IndexerConfig{Workers: 0, Unindexable: UnindexableSkip}, true},
		{"too many workers", IndexerConfig{Workers: 27, Unindexable: UnindexableSkip}, true},
		{"unknown policy", IndexerConfig{Workers: 3, Unindexable: "ignore"}, true},
		{"negative max bytes", IndexerConfig{Workers: 3, Unindexable: UnindexableSkip, MaxDocumentBytes: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
