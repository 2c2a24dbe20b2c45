package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/wonny/indexmodel/pkg/config"
)

func integrationConfig(t *testing.T) *config.Config {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	return &config.Config{
		Database: config.DatabaseConfig{
			URL:             url,
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	}
}

func TestHealthCheck(t *testing.T) {
	cfg := integrationConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if !status.Healthy {
		t.Error("Expected database to be healthy")
	}
	if status.Stats.MaxConns != 4 {
		t.Errorf("Expected MaxConns 4, got %d", status.Stats.MaxConns)
	}

	// Double close should not panic
	db.Close()
	db.Close()
}

func TestNewWithoutURL(t *testing.T) {
	_, err := New(context.Background(), &config.Config{})
	if !errors.Is(err, ErrNoDatabaseURL) {
		t.Errorf("Expected ErrNoDatabaseURL, got %v", err)
	}
}

func TestNewWithInvalidURL(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			URL:      "invalid://url",
			MaxConns: 4,
			MinConns: 1,
		},
	}

	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("Expected error with invalid database URL, got nil")
	}
}
