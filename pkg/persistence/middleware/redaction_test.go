package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/orgtree/pkg/adapters/memory"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/persistence/middleware"
)

func TestRedactionMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw, err := middleware.NewRedactionMiddleware([]string{"(?i)salar", "ssn"})
	if err != nil {
		t.Fatalf("NewRedactionMiddleware failed: %v", err)
	}
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	chart := []domain.Entry{{
		ID:    "1",
		Label: "Alcalde",
		Fields: map[string]any{
			"area":    "Alcaldía",
			"Salario": 60000,
			"holder": map[string]any{
				"name":       "J. Doe",
				"ssn_number": "999-99-9999",
			},
		},
	}}

	if err := secureStore.Save(ctx, "council", chart); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Caller entries are untouched.
	if chart[0].Fields["Salario"] != 60000 {
		t.Error("Middleware modified the caller's entries!")
	}
	if chart[0].Fields["holder"].(map[string]any)["ssn_number"] != "999-99-9999" {
		t.Error("Middleware modified nested caller data!")
	}

	stored, err := underlyingStore.Load(ctx, "council")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}

	fields := stored[0].Fields
	if fields["area"] != "Alcaldía" {
		t.Error("area shouldn't be masked")
	}
	if fields["Salario"] != middleware.Mask {
		t.Errorf("Salario should be masked, got: %v", fields["Salario"])
	}
	holder := fields["holder"].(map[string]any)
	if holder["ssn_number"] != middleware.Mask {
		t.Errorf("Nested ssn should be masked, got: %v", holder["ssn_number"])
	}
	if holder["name"] != "J. Doe" {
		t.Error("Nested name shouldn't be masked")
	}
	if stored[0].Label != "Alcalde" {
		t.Error("Labels are never masked")
	}
}

func TestRedactionMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewRedactionMiddleware([]string{"("}); err == nil {
		t.Fatal("Expected an error for an invalid pattern")
	}
}

func TestChain_RedactThenEncrypt(t *testing.T) {
	underlyingStore := memory.NewStore()
	redact, err := middleware.NewRedactionMiddleware([]string{"salary"})
	if err != nil {
		t.Fatal(err)
	}
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if err != nil {
		t.Fatal(err)
	}

	store := middleware.Chain(underlyingStore, redact, encrypt)
	ctx := context.Background()

	if err := store.Save(ctx, "chart", []domain.Entry{{ID: "1", Fields: map[string]any{"salary": 1}}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "chart")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded[0].Fields["salary"] != middleware.Mask {
		t.Errorf("Expected redacted value after decryption, got %v", loaded[0].Fields["salary"])
	}
}
