package options

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewStore_Memory(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, FactoryConfig{Type: "memory"}, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("NewStore('memory') failed: %v", err)
	}
	defer store.Close()

	if err := store.Set(ctx, map[string]string{KeyHeadDomains: "a.com"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, _ := store.Get(ctx, KeyHeadDomains)
	if got != "a.com" {
		t.Errorf("Expected 'a.com', got %q", got)
	}
}

func TestNewStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	store, err := NewStore(context.Background(), FactoryConfig{Type: "file", File: path}, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("NewStore('file') failed: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*FileStore); !ok {
		t.Errorf("Expected *FileStore, got %T", store)
	}
}

func TestNewStore_Unsupported(t *testing.T) {
	_, err := NewStore(context.Background(), FactoryConfig{Type: "redis"}, zerolog.New(io.Discard))
	if err == nil {
		t.Fatal("Expected error for unsupported store type")
	}
	if !strings.Contains(err.Error(), "unsupported store type") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewStore_PostgresInvalidDSN(t *testing.T) {
	_, err := NewStore(context.Background(), FactoryConfig{Type: "postgres", DSN: "postgres://u:p@localhost:notaport/db"}, zerolog.New(io.Discard))
	if err == nil {
		t.Fatal("Expected error for invalid DSN")
	}
}
