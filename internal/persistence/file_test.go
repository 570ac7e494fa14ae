package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileKV(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "kv")
	kv := NewFileKV(dir)

	// Reading before anything is written must not create the directory
	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	keys, err := kv.Keys(ctx, "")
	if err != nil {
		t.Fatalf("Keys() on missing dir error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys() = %v, want empty", keys)
	}

	if err := kv.Set(ctx, "grad_plan_chatbot_b", `{"b":1}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := kv.Set(ctx, "grad_plan_chatbot_a", `{"a":1}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := kv.Set(ctx, "grad_plan_conversations", `[]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, ok, err := kv.Get(ctx, "grad_plan_chatbot_a")
	if err != nil || !ok || v != `{"a":1}` {
		t.Errorf("Get() = %q, %v, %v", v, ok, err)
	}

	if err := kv.Set(ctx, "grad_plan_chatbot_a", `{"a":2}`); err != nil {
		t.Fatalf("overwrite error = %v", err)
	}
	v, _, _ = kv.Get(ctx, "grad_plan_chatbot_a")
	if v != `{"a":2}` {
		t.Errorf("Get() after overwrite = %q", v)
	}

	keys, err = kv.Keys(ctx, "grad_plan_chatbot_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	want := []string{"grad_plan_chatbot_a", "grad_plan_chatbot_b"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}

	if err := kv.Remove(ctx, "grad_plan_chatbot_a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := kv.Remove(ctx, "grad_plan_chatbot_a"); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "grad_plan_chatbot_a"); ok {
		t.Error("key still present after Remove()")
	}

	// No temp files are left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("directory has %d entries, want 2", len(entries))
	}
}

func TestFileKVRejectsPathKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewFileKV(t.TempDir())

	for _, key := range []string{"", "../escape", "a/b", `a\b`, ".hidden"} {
		if err := kv.Set(ctx, key, "x"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Set(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	if err := kv.Set(ctx, "", "x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Set(\"\") error = %v", err)
	}

	kv.Set(ctx, "p_2", "two")
	kv.Set(ctx, "p_1", "one")
	kv.Set(ctx, "q_1", "other")

	keys, _ := kv.Keys(ctx, "p_")
	if !reflect.DeepEqual(keys, []string{"p_1", "p_2"}) {
		t.Errorf("Keys() = %v", keys)
	}

	kv.Remove(ctx, "p_1")
	if _, ok, _ := kv.Get(ctx, "p_1"); ok {
		t.Error("p_1 still present")
	}
}

func TestLocalStoreOnFileKV(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(NewFileKV(t.TempDir()))

	s := stateCreated("conv_file", testNow)
	if err := store.SaveState(ctx, s); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	loaded, err := store.LoadState(ctx, "conv_file")
	if err != nil || loaded == nil {
		t.Fatalf("LoadState() = %v, %v", loaded, err)
	}
	if loaded.ConversationID != "conv_file" {
		t.Errorf("ConversationID = %q", loaded.ConversationID)
	}
}
