package store

import (
	"testing"
)

func kvContract(t *testing.T, kv KV) {
	t.Helper()

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v", ok, err)
	}

	if err := kv.Set("k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, ok, err := kv.Get("k")
	if err != nil || !ok || string(data) != `{"a":1}` {
		t.Fatalf("Get = %q ok=%v err=%v", data, ok, err)
	}

	// Overwrite replaces.
	if err := kv.Set("k", []byte(`{"a":2}`)); err != nil {
		t.Fatal(err)
	}
	data, _, _ = kv.Get("k")
	if string(data) != `{"a":2}` {
		t.Errorf("overwrite = %q", data)
	}

	if err := kv.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get("k"); ok {
		t.Error("key survived Delete")
	}
	// Deleting an absent key is a no-op.
	if err := kv.Delete("k"); err != nil {
		t.Errorf("Delete(absent): %v", err)
	}
}

func TestFileStore(t *testing.T) {
	kv, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	kvContract(t, kv)
}

func TestMemStore(t *testing.T) {
	kvContract(t, NewMemStore())
}

func TestMemStoreCopySemantics(t *testing.T) {
	kv := NewMemStore()
	buf := []byte("original")
	if err := kv.Set("k", buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'X'

	data, _, _ := kv.Get("k")
	if string(data) != "original" {
		t.Errorf("stored value aliased the caller's buffer: %q", data)
	}
	data[0] = 'Y'
	again, _, _ := kv.Get("k")
	if string(again) != "original" {
		t.Errorf("returned value aliased the stored buffer: %q", again)
	}
}
