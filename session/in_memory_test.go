package session

import (
	"testing"

	"github.com/askmesh/askmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetCreatesLazily(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sess.ID != "s1" {
		t.Errorf("unexpected id %q", sess.ID)
	}
	if len(sess.Events) != 0 {
		t.Errorf("expected empty history, got %d events", len(sess.Events))
	}
}

func TestInMemoryStore_AppendAndReload(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.AppendEvent("s1", core.NewUserMessageEvent("inv1", "hello")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendEvent("s1", core.NewAnswerEvent("inv1", "assistant", "hi there")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(sess.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sess.Events))
	}
	if sess.Events[1].Text() != "hi there" {
		t.Errorf("unexpected answer text %q", sess.Events[1].Text())
	}
}

func TestInMemoryStore_ApplyDelta(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.ApplyDelta("s1", map[string]interface{}{"backend": "cpu"}); err != nil {
		t.Fatalf("apply delta failed: %v", err)
	}

	sess, _ := store.Get("s1")
	if v, ok := sess.GetState("backend"); !ok || v != "cpu" {
		t.Errorf("delta not applied, got %v (%v)", v, ok)
	}
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	store := NewInMemoryStore()
	_ = store.AppendEvent("s1", core.NewUserMessageEvent("inv1", "hello"))

	sess, _ := store.Get("s1")
	sess.SetState("poison", true)

	fresh, _ := store.Get("s1")
	if _, ok := fresh.GetState("poison"); ok {
		t.Error("mutating a returned session must not affect the store")
	}
}
