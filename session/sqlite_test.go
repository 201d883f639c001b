package session

import (
	"path/filepath"
	"testing"

	"github.com/askmesh/askmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*SQLiteStore)(nil)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_EventsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := store.AppendEvent("s1", core.NewUserMessageEvent("inv1", "what is wasm")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendEvent("s1", core.NewAnswerEvent("inv1", "assistant", "a binary format")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	sess, err := reopened.Get("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(sess.Events) != 2 {
		t.Fatalf("expected 2 events after reopen, got %d", len(sess.Events))
	}
	if sess.Events[0].Text() != "what is wasm" {
		t.Errorf("unexpected first event text %q", sess.Events[0].Text())
	}
	if sess.Events[1].Text() != "a binary format" {
		t.Errorf("unexpected second event text %q", sess.Events[1].Text())
	}
}

func TestSQLiteStore_EventOrderPreserved(t *testing.T) {
	store := openTestStore(t)

	for _, msg := range []string{"first", "second", "third"} {
		if err := store.AppendEvent("s1", core.NewUserMessageEvent("inv1", msg)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(sess.Events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(sess.Events))
	}
	for i, w := range want {
		if got := sess.Events[i].Text(); got != w {
			t.Errorf("event %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestSQLiteStore_ApplyDeltaMerges(t *testing.T) {
	store := openTestStore(t)

	if err := store.ApplyDelta("s1", map[string]interface{}{"backend": "remote"}); err != nil {
		t.Fatalf("apply delta failed: %v", err)
	}
	if err := store.ApplyDelta("s1", map[string]interface{}{"query": "golang"}); err != nil {
		t.Fatalf("apply delta failed: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if v, _ := sess.GetState("backend"); v != "remote" {
		t.Errorf("unexpected backend state: %v", v)
	}
	if v, _ := sess.GetState("query"); v != "golang" {
		t.Errorf("unexpected query state: %v", v)
	}
}

func TestSQLiteStore_CreateResetsHistory(t *testing.T) {
	store := openTestStore(t)

	_ = store.AppendEvent("s1", core.NewUserMessageEvent("inv1", "old"))
	if _, err := store.Create("s1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(sess.Events) != 0 {
		t.Errorf("expected empty history after create, got %d events", len(sess.Events))
	}
}

func TestSQLiteStore_SearchResultsRoundTrip(t *testing.T) {
	store := openTestStore(t)

	results := []core.SearchResult{{ID: "r1", Title: "Go", URL: "https://go.dev", Score: 0.9}}
	if err := store.AppendEvent("s1", core.NewSearchResultsEvent("inv1", "assistant", results)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(sess.Events) != 1 || sess.Events[0].Content == nil {
		t.Fatalf("search results event lost: %+v", sess.Events)
	}
}
