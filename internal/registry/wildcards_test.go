package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestLoadWildcardsFromDirParsesTxtAndYaml(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "colors.txt", "red\ngreen\n# comment\n\nblue\n")
	writeFile(t, dir, "nested/styles.yml", "options:\n  - anime\n  - realistic\n")

	store, err := LoadWildcardsFromDir(dir)
	if err != nil {
		t.Fatalf("LoadWildcardsFromDir failed: %v", err)
	}

	colors, ok := store.Get("colors")
	if !ok {
		t.Fatal("expected colors wildcard to be loaded")
	}
	if len(colors.Options) != 3 {
		t.Fatalf("got %v, want 3 options (comment/blank line skipped)", colors.Options)
	}

	styles, ok := store.Get("nested/styles")
	if !ok {
		t.Fatal("expected nested/styles wildcard to be loaded")
	}
	if len(styles.Options) != 2 {
		t.Fatalf("got %v, want 2 options", styles.Options)
	}
}

func TestFileWildcardStoreGetIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Colors.txt", "red\n")

	store, err := LoadWildcardsFromDir(dir)
	if err != nil {
		t.Fatalf("LoadWildcardsFromDir failed: %v", err)
	}

	if _, ok := store.Get("COLORS"); !ok {
		t.Fatal("expected lookup to be case-insensitive")
	}
}
