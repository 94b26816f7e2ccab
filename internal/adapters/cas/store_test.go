package cas_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.trai.ch/rebuild/internal/adapters/cas"
	"go.trai.ch/rebuild/internal/core/domain"
)

func TestStore_PutAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "state.json")

	store, err := cas.NewStore(storePath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	info := domain.BuildInfo{
		Artifact:  "abc",
		Step:      "compile",
		Job:       "def",
		Timestamp: time.Now(),
	}

	if err := store.Put(info); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get("abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}

	if got.Step != info.Step {
		t.Errorf("expected Step %q, got %q", info.Step, got.Step)
	}

	missing, err := store.Get("nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown artifact, got %+v", missing)
	}
}

func TestStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "state.json")

	// 1. Create store and save data
	store1, err := cas.NewStore(storePath)
	if err != nil {
		t.Fatalf("NewStore 1 failed: %v", err)
	}

	info := domain.BuildInfo{
		Artifact: "xyz",
		Step:     "lint",
	}
	if err := store1.Put(info); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// 2. Create new store instance pointing to same file
	store2, err := cas.NewStore(storePath)
	if err != nil {
		t.Fatalf("NewStore 2 failed: %v", err)
	}

	got, err := store2.Get("xyz")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Step != "lint" {
		t.Errorf("expected Step %q, got %q", "lint", got.Step)
	}
}

func TestStore_OmitZero(t *testing.T) {
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "state.json")

	store, err := cas.NewStore(storePath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	// Only the artifact hash is set
	if err := store.Put(domain.BuildInfo{Artifact: "zero"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	//nolint:gosec // Test file with controlled path
	content, err := os.ReadFile(storePath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	jsonStr := string(content)
	t.Logf("JSON content: %s", jsonStr)

	if strings.Contains(jsonStr, "run_id") {
		t.Error("JSON should not contain 'run_id' for zero value")
	}
	if strings.Contains(jsonStr, "timestamp") {
		t.Error("JSON should not contain 'timestamp' for zero value")
	}
	if !strings.Contains(jsonStr, `"artifact": "zero"`) {
		t.Error("JSON should contain 'artifact'")
	}
}

func TestStore_ListAndReset(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "state.json")

	store, err := cas.NewStore(storePath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	for _, h := range []domain.Hash{"bb", "aa"} {
		if err := store.Put(domain.BuildInfo{Artifact: h}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	infos := store.List()
	if len(infos) != 2 || infos[0].Artifact != "aa" || infos[1].Artifact != "bb" {
		t.Fatalf("expected records ordered by hash, got %+v", infos)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if len(store.List()) != 0 {
		t.Error("expected no records after Reset")
	}
	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Errorf("expected store file to be removed, stat returned %v", err)
	}
}

func TestNewStore_Corrupt(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(storePath, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := cas.NewStore(storePath); err == nil {
		t.Fatal("expected error for corrupt store")
	}
}
