package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEvent_AnswerDeltaIsPartial(t *testing.T) {
	ev := NewAnswerDeltaEvent("inv-1", "assistant", "partial ans")
	if !ev.IsPartial() {
		t.Error("answer delta should be partial")
	}
	if ev.IsFinalResponse() {
		t.Error("partial delta must not be a final response")
	}
	if ev.Text() != "partial ans" {
		t.Errorf("unexpected text %q", ev.Text())
	}
}

func TestEvent_FinalAnswer(t *testing.T) {
	ev := NewAnswerEvent("inv-1", "assistant", "full answer")
	if ev.IsPartial() {
		t.Error("final answer should not be partial")
	}
	if !ev.IsFinalResponse() {
		t.Error("final answer should be a final response")
	}
	if ev.TurnComplete == nil || !*ev.TurnComplete {
		t.Error("final answer should mark the turn complete")
	}
}

func TestEvent_StateAnnouncement(t *testing.T) {
	ev := NewStateEvent("inv-1", "assistant", StateSearching)
	if !ev.IsStateChange() {
		t.Error("expected state change event")
	}
	if *ev.State != StateSearching {
		t.Errorf("unexpected state %v", *ev.State)
	}
	if ev.IsFinalResponse() {
		t.Error("state announcement must not be a final response")
	}
}

func TestEvent_ErrorAndInterrupted(t *testing.T) {
	errEv := NewErrorEvent("inv-1", "assistant", "backend_unavailable", errors.New("boom"))
	if !errEv.IsError() {
		t.Error("expected error event")
	}
	if *errEv.ErrorCode != "backend_unavailable" || *errEv.ErrorMessage != "boom" {
		t.Errorf("unexpected error metadata: %v %v", *errEv.ErrorCode, *errEv.ErrorMessage)
	}

	intEv := NewInterruptedEvent("inv-1", "assistant")
	if intEv.Interrupted == nil || !*intEv.Interrupted {
		t.Error("expected interrupted flag")
	}
}

func TestEvent_SearchResultsPayload(t *testing.T) {
	results := []SearchResult{
		{ID: "r1", Title: "Go", URL: "https://go.dev", Content: "the go language", Score: 0.9},
		{ID: "r2", Content: "second", Score: 0.5},
	}
	ev := NewSearchResultsEvent("inv-1", "assistant", results)
	if ev.Content == nil || len(ev.Content.Parts) != 1 {
		t.Fatal("expected a single data part")
	}
	dp, ok := ev.Content.Parts[0].(DataPart)
	if !ok {
		t.Fatalf("expected DataPart, got %T", ev.Content.Parts[0])
	}
	items, ok := dp.Data["results"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("unexpected results payload: %+v", dp.Data)
	}
}

func TestContent_JSONRoundTrip(t *testing.T) {
	orig := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "hello"},
			DataPart{Data: map[string]any{"k": "v"}},
		},
	}

	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Content
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Role != "assistant" || len(decoded.Parts) != 2 {
		t.Fatalf("round trip lost structure: %+v", decoded)
	}
	if decoded.Text() != "hello" {
		t.Errorf("unexpected text %q", decoded.Text())
	}
	if dp, ok := decoded.Parts[1].(DataPart); !ok || dp.Data["k"] != "v" {
		t.Errorf("data part not preserved: %+v", decoded.Parts[1])
	}
}
