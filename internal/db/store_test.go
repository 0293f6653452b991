package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/transcript"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveRunAndTranscript(t *testing.T) {
	store := openTestStore(t)

	run := &Run{
		Topic:      "Ordering food",
		Model:      "fast",
		Specialist: "daily",
		Langs:      []string{"en", "es"},
		Output:     "done",
		AudioURL:   "http://localhost:8000/outputs/x.flac",
	}
	lines := transcript.Transcript{
		{Speaker: "Sarah", Text: "Hi"},
		{Speaker: "Leo", Text: "Hello"},
	}
	if err := store.SaveRun(run, lines); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected an id to be assigned")
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if got.Topic != "Ordering food" || got.AudioURL != run.AudioURL {
		t.Errorf("run = %+v", got)
	}
	if len(got.Langs) != 2 || got.Langs[1] != "es" {
		t.Errorf("langs = %v", got.Langs)
	}

	tr, err := store.TranscriptForRun(run.ID)
	if err != nil {
		t.Fatalf("TranscriptForRun: %v", err)
	}
	if len(tr) != 2 || tr[0].Speaker != "Sarah" || tr[1].Text != "Hello" {
		t.Errorf("transcript = %+v", tr)
	}
}

func TestGetRunMissing(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetRun("nope")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, topic := range []string{"first", "second", "third"} {
		run := &Run{Topic: topic, Model: "fast", Specialist: "grammar", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.SaveRun(run, nil); err != nil {
			t.Fatalf("SaveRun %s: %v", topic, err)
		}
	}

	runs, err := store.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Topic != "third" || runs[1].Topic != "second" {
		t.Errorf("order = %s, %s", runs[0].Topic, runs[1].Topic)
	}
	if runs[0].Langs != nil {
		t.Errorf("langs = %v, want nil", runs[0].Langs)
	}
}

func TestCreatedAtRoundTrip(t *testing.T) {
	store := openTestStore(t)

	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	run := &Run{Topic: "t", Model: "fast", Specialist: "grammar", CreatedAt: at}
	if err := store.SaveRun(run, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, _ := store.GetRun(run.ID)
	if d := got.CreatedAt.Sub(at); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, at)
	}
}

func TestQueries(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveQuery(&Query{Text: "past tense", Result: "notes"}); err != nil {
		t.Fatalf("SaveQuery: %v", err)
	}
	later := &Query{Text: "future", Result: "more", CreatedAt: time.Now().Add(time.Minute)}
	if err := store.SaveQuery(later); err != nil {
		t.Fatalf("SaveQuery: %v", err)
	}

	qs, err := store.RecentQueries(10)
	if err != nil {
		t.Fatalf("RecentQueries: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d queries, want 2", len(qs))
	}
	if qs[0].Text != "future" || qs[1].Result != "notes" {
		t.Errorf("queries = %+v", qs)
	}
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.SaveQuery(&Query{Text: "x"}); err != nil {
		t.Fatalf("SaveQuery: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	qs, err := reopened.RecentQueries(1)
	if err != nil || len(qs) != 1 {
		t.Fatalf("RecentQueries = %v, %v", qs, err)
	}
}
