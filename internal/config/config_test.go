package config

import "testing"

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Retrieval.VectorWeight != 0.7 {
		t.Errorf("expected VectorWeight=0.7, got %v", cfg.Retrieval.VectorWeight)
	}
	if cfg.Retrieval.LexicalWeight != 0.3 {
		t.Errorf("expected LexicalWeight=0.3, got %v", cfg.Retrieval.LexicalWeight)
	}
	if cfg.Retrieval.DefaultMaxResults != 10 {
		t.Errorf("expected DefaultMaxResults=10, got %d", cfg.Retrieval.DefaultMaxResults)
	}
	if cfg.Retrieval.MaxResultsCap != 100 {
		t.Errorf("expected MaxResultsCap=100, got %d", cfg.Retrieval.MaxResultsCap)
	}
	if cfg.Retrieval.CandidateK != 50 {
		t.Errorf("expected CandidateK=50, got %d", cfg.Retrieval.CandidateK)
	}
	if cfg.Cache.TTLSec != 300 {
		t.Errorf("expected TTLSec=300, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Cache.MaxEntries != 10000 {
		t.Errorf("expected MaxEntries=10000, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Classify.SimilarN != 5 {
		t.Errorf("expected SimilarN=5, got %d", cfg.Classify.SimilarN)
	}
	if cfg.Classify.CategoryThreshold != 0.5 {
		t.Errorf("expected CategoryThreshold=0.5, got %v", cfg.Classify.CategoryThreshold)
	}
	if cfg.Classify.FallbackConfidence != 0.3 {
		t.Errorf("expected FallbackConfidence=0.3, got %v", cfg.Classify.FallbackConfidence)
	}
	if cfg.Classify.DefaultSeverity != "medium" {
		t.Errorf("expected DefaultSeverity='medium', got %q", cfg.Classify.DefaultSeverity)
	}
	if cfg.Classify.DefaultPriority != "normal" {
		t.Errorf("expected DefaultPriority='normal', got %q", cfg.Classify.DefaultPriority)
	}
	if cfg.Storage.KeyPrefix != "opskb:" {
		t.Errorf("expected KeyPrefix='opskb:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:  DatabaseConfig{ReadinessTimeout: 15},
		Retrieval: RetrievalConfig{VectorWeight: 0.6, LexicalWeight: 0.4, CandidateK: 25},
		Classify:  ClassifyConfig{SimilarN: 3, DefaultSeverity: "low"},
		Storage:   StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Retrieval.VectorWeight != 0.6 || cfg.Retrieval.LexicalWeight != 0.4 {
		t.Errorf("expected weights 0.6/0.4, got %v/%v",
			cfg.Retrieval.VectorWeight, cfg.Retrieval.LexicalWeight)
	}
	if cfg.Retrieval.CandidateK != 25 {
		t.Errorf("expected CandidateK=25, got %d", cfg.Retrieval.CandidateK)
	}
	if cfg.Classify.SimilarN != 3 {
		t.Errorf("expected SimilarN=3, got %d", cfg.Classify.SimilarN)
	}
	if cfg.Classify.DefaultSeverity != "low" {
		t.Errorf("expected DefaultSeverity='low', got %q", cfg.Classify.DefaultSeverity)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 0},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_ZeroWeights(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for zero fusion weights")
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Retrieval: RetrievalConfig{VectorWeight: 0.7, LexicalWeight: 0.3},
		Classify:  ClassifyConfig{CategoryThreshold: 1.5},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for category_threshold above 1")
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
