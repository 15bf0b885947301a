package registry

import (
	"path/filepath"
	"testing"
)

func TestSQLiteModelRegistryRegisterAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.db")

	r, err := NewSQLiteModelRegistry(path)
	if err != nil {
		t.Fatalf("NewSQLiteModelRegistry failed: %v", err)
	}
	defer r.Close()

	if err := r.Register("lora", "my-lora", "mylorakeyword"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	info, ok := r.Get("my-lora")
	if !ok {
		t.Fatal("expected my-lora to be registered")
	}
	if info.TriggerPhrase != "mylorakeyword" {
		t.Fatalf("got trigger %q, want %q", info.TriggerPhrase, "mylorakeyword")
	}
}

func TestSQLiteModelRegistryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.db")

	r1, err := NewSQLiteModelRegistry(path)
	if err != nil {
		t.Fatalf("NewSQLiteModelRegistry failed: %v", err)
	}
	if err := r1.Register("embedding", "my-embed", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r2, err := NewSQLiteModelRegistry(path)
	if err != nil {
		t.Fatalf("reopening NewSQLiteModelRegistry failed: %v", err)
	}
	defer r2.Close()

	names := r2.ListNames("embedding")
	if len(names) != 1 || names[0] != "my-embed" {
		t.Fatalf("got %v, want [my-embed] after reopening", names)
	}
}

func TestSQLiteModelRegistryUpsertOverwritesSubtype(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.db")

	r, err := NewSQLiteModelRegistry(path)
	if err != nil {
		t.Fatalf("NewSQLiteModelRegistry failed: %v", err)
	}
	defer r.Close()

	if err := r.Register("lora", "thing", "a"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("embedding", "thing", "b"); err != nil {
		t.Fatalf("Register (upsert) failed: %v", err)
	}

	if len(r.ListNames("lora")) != 0 {
		t.Fatalf("expected thing to no longer be a lora after upsert")
	}
	names := r.ListNames("embedding")
	if len(names) != 1 || names[0] != "thing" {
		t.Fatalf("got %v, want [thing] under embedding", names)
	}
}
