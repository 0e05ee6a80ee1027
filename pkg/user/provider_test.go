package user

import (
	"context"
	"testing"
)

func TestMemoryProvider_Lookups(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	rec, err := p.Add(Record{
		Key:        "42",
		Identifier: "a@b.com",
		Roles:      []string{"ROLE_USER"},
		Provider:   "github",
		ProviderID: "gh-1001",
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if rec.Key != "42" {
		t.Errorf("Key: expected 42, got %q", rec.Key)
	}

	byID, err := p.FindByIdentifier(ctx, "a@b.com")
	if err != nil || byID == nil || byID.Key != "42" {
		t.Errorf("FindByIdentifier: expected key 42, got %+v (err %v)", byID, err)
	}

	byKey, err := p.FindByKey(ctx, "42")
	if err != nil || byKey == nil || byKey.Identifier != "a@b.com" {
		t.Errorf("FindByKey: expected a@b.com, got %+v (err %v)", byKey, err)
	}

	byProv, err := p.FindByProviderID(ctx, "github", "gh-1001")
	if err != nil || byProv == nil || byProv.Key != "42" {
		t.Errorf("FindByProviderID: expected key 42, got %+v (err %v)", byProv, err)
	}

	absent, err := p.FindByIdentifier(ctx, "nobody@b.com")
	if err != nil || absent != nil {
		t.Errorf("Expected (nil, nil) for unknown identifier, got %+v (err %v)", absent, err)
	}
}

func TestMemoryProvider_DuplicateRejected(t *testing.T) {
	p := NewMemoryProvider()

	if _, err := p.Add(Record{Key: "1", Identifier: "a@b.com", Roles: []string{"ROLE_USER"}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := p.Add(Record{Key: "1", Identifier: "c@d.com"}); err == nil {
		t.Error("Expected duplicate key to be rejected")
	}
	if _, err := p.Add(Record{Identifier: "a@b.com"}); err == nil {
		t.Error("Expected duplicate identifier to be rejected")
	}
}

func TestMemoryProvider_Provision(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	rec, err := p.Provision(ctx, Record{
		Identifier: "new@b.com",
		Provider:   "github",
		ProviderID: "gh-2002",
		Roles:      []string{"ROLE_USER"},
	})
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if rec.Key == "" {
		t.Error("Provision must assign a key")
	}

	found, err := p.FindByProviderID(ctx, "github", "gh-2002")
	if err != nil || found == nil || found.Key != rec.Key {
		t.Errorf("Provisioned record not findable: %+v (err %v)", found, err)
	}
}

func TestMemoryProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewMemoryProvider()
	if _, err := p.FindByKey(ctx, "42"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestBcryptChecker(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	checker := NewBcryptChecker()
	if !checker.Verify("hunter2", hash) {
		t.Error("Expected correct password to verify")
	}
	if checker.Verify("hunter3", hash) {
		t.Error("Expected wrong password to fail")
	}
	if checker.Verify("hunter2", "") {
		t.Error("Empty stored hash must never verify")
	}
}
