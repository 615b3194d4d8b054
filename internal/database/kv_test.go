package database

import (
	"path/filepath"
	"testing"
)

func TestKVSetGet(t *testing.T) {
	kv := openTestDB(t).KV()

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := kv.Set("k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set("k", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	v, ok, err := kv.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(v) != `{"a":2}` {
		t.Errorf("expected overwritten value, got %s", v)
	}
}

func TestKVEmptyValue(t *testing.T) {
	kv := openTestDB(t).KV()
	if err := kv.Set("empty", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := kv.Get("empty")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(v) != 0 {
		t.Errorf("expected empty value, got %q", v)
	}
}

func TestKVDeleteMany(t *testing.T) {
	kv := openTestDB(t).KV()
	for _, k := range []string{"a", "b", "c"} {
		if err := kv.Set(k, []byte(k)); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}

	if err := kv.Delete("a", "b", "not-there"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	keys, err := kv.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "c" {
		t.Errorf("expected only 'c' to remain, got %v", keys)
	}
}

func TestKVSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.KV().Set("reading_sessions", []byte("[]")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	v, ok, err := db.KV().Get("reading_sessions")
	if err != nil || !ok || string(v) != "[]" {
		t.Errorf("expected persisted value, got %q ok=%v err=%v", v, ok, err)
	}
}
