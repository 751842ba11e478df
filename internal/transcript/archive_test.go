package transcript

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/joebot/meetchat/internal/bus"
)

func TestSaveLoadMerge(t *testing.T) {
	a, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	const thread = "19%3ameeting_ABC123%40thread.v2"

	first := []bus.Message{
		{ID: "1", Content: "hi", SenderDisplayName: "Ada"},
		{ID: "2", Content: "hello", SenderDisplayName: "Grace"},
	}
	if err := a.Save(thread, first); err != nil {
		t.Fatal(err)
	}
	second := []bus.Message{
		{ID: "2", Content: "hello", SenderDisplayName: "Grace"},
		{ID: "3", Content: "bye", SenderDisplayName: "Ada", Own: true},
	}
	if err := a.Save(thread, second); err != nil {
		t.Fatal(err)
	}

	got, err := a.Load(thread)
	if err != nil {
		t.Fatal(err)
	}
	ids := ""
	for _, m := range got {
		ids += m.ID
	}
	if ids != "123" {
		t.Fatalf("ids: got %q, want 123", ids)
	}
	if !got[2].Own || got[2].Content != "bye" {
		t.Errorf("last message: %+v", got[2])
	}
}

func TestLoadMissing(t *testing.T) {
	a, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Load("nope"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v, want ErrNotExist", err)
	}
	if err := a.Save("", nil); err == nil {
		t.Fatal("expected error for empty thread id")
	}
}

func TestListNewestFirst(t *testing.T) {
	a, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	a.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	a.Save("older:thread", []bus.Message{{ID: "a"}})
	a.Save("newer/thread", []bus.Message{{ID: "b"}, {ID: "c"}})
	os.WriteFile(a.Dir()+"/garbage.jsonl", []byte("not json\n"), 0o600)

	entries, err := a.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: %+v", entries)
	}
	if entries[0].ThreadID != "newer/thread" || entries[0].Count != 2 {
		t.Errorf("first entry: %+v", entries[0])
	}
	if entries[1].ThreadID != "older:thread" {
		t.Errorf("second entry: %+v", entries[1])
	}
}
