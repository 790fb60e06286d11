package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	j.Record(ctx, Entry{EventID: "m1", Kind: "message", Category: "text", State: StateDelivered})
	j.Record(ctx, Entry{EventID: "m2", Kind: "message", Category: "image", State: StateFailed, ErrorKind: "NETWORK"})
	j.Record(ctx, Entry{EventID: "m3", Kind: "message", Category: "system", State: StateFiltered})

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].EventID != "m3" || entries[0].State != StateFiltered {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].ErrorKind != "NETWORK" {
		t.Errorf("error kind not persisted: %+v", entries[1])
	}
}

func TestRecent_Limit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		j.Record(ctx, Entry{EventID: "m", Kind: "message", State: StateDelivered})
	}
	entries, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestRecent_Empty(t *testing.T) {
	j := openTestJournal(t)
	entries, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
