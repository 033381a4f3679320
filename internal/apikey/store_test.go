package apikey

import (
	"context"
	"strings"
	"testing"

	"member-portal/internal/auth"
)

var (
	_ auth.APIKeyLookup = (*PostgresStore)(nil)
	_ auth.APIKeyLookup = (*MemoryStore)(nil)
)

func TestMemoryStoreLookup(t *testing.T) {
	s := NewMemoryStore()
	s.Put("scheduler", "k-123")
	ctx := context.Background()

	app, ok, err := s.Lookup(ctx, " k-123 ")
	if err != nil || !ok || app != "scheduler" {
		t.Fatalf("expected scheduler, got %q %v %v", app, ok, err)
	}
	if _, ok, _ := s.Lookup(ctx, "k-124"); ok {
		t.Fatalf("expected unknown key to miss")
	}
	if _, ok, _ := s.Lookup(ctx, ""); ok {
		t.Fatalf("expected empty key to miss")
	}
	if _, ok, _ := s.Lookup(ctx, strings.Repeat("k", maxKeyLen+1)); ok {
		t.Fatalf("expected oversized key to miss")
	}
}
