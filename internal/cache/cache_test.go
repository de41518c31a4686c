package cache

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestPartnerUpsertAndList(t *testing.T) {
	db := testDB(t)

	p := &Partner{ID: 7, FullName: "Ana Souza", Email: "ana@example.com", LastMessage: "hi", LastMessageAt: 1000}
	if err := db.UpsertPartner(p); err != nil {
		t.Fatal(err)
	}

	// Update display name.
	p.FullName = "Ana S."
	if err := db.UpsertPartner(p); err != nil {
		t.Fatal(err)
	}

	partners, err := db.ListPartners()
	if err != nil {
		t.Fatal(err)
	}
	if len(partners) != 1 {
		t.Fatalf("got %d partners, want 1", len(partners))
	}
	if partners[0].FullName != "Ana S." {
		t.Errorf("name = %q, want Ana S.", partners[0].FullName)
	}
}

func TestListPartnersOrdering(t *testing.T) {
	db := testDB(t)

	seed := []Partner{
		{ID: 1, FullName: "Old", LastMessageAt: 1000},
		{ID: 2, FullName: "New", LastMessageAt: 5000},
		{ID: 3, FullName: "Never"}, // no messages, sorts last
	}
	if err := db.ReplacePartners(seed); err != nil {
		t.Fatal(err)
	}

	partners, err := db.ListPartners()
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []int64{2, 1, 3}
	for i, want := range wantOrder {
		if partners[i].ID != want {
			t.Errorf("position %d: id = %d, want %d", i, partners[i].ID, want)
		}
	}
}

func TestReplacePartnersDropsStale(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertPartner(&Partner{ID: 1, FullName: "Stale"}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplacePartners([]Partner{{ID: 2, FullName: "Fresh"}}); err != nil {
		t.Fatal(err)
	}

	p, err := db.GetPartner(1)
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Error("stale partner survived ReplacePartners")
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{ServerID: 41, PartnerID: 7, SenderID: 7, ReceiverID: 1, Body: "hello", Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (upsert must be idempotent)", len(msgs))
	}
}

func TestListMessagesOldestFirst(t *testing.T) {
	db := testDB(t)

	history := []Message{
		{ServerID: 2, SenderID: 1, ReceiverID: 7, Body: "second", Timestamp: 2000},
		{ServerID: 1, SenderID: 7, ReceiverID: 1, Body: "first", Timestamp: 1000},
	}
	if err := db.ReplaceHistory(7, history); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Errorf("wrong order: %+v", msgs)
	}
}

func TestMarkRead(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertPartner(&Partner{ID: 7, UnreadCount: 3}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ServerID: 1, PartnerID: 7, SenderID: 7, ReceiverID: 1, Body: "x", Timestamp: 1000}); err != nil {
		t.Fatal(err)
	}

	if err := db.MarkRead(7); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := db.MarkRead(7); err != nil {
		t.Fatal(err)
	}

	p, err := db.GetPartner(7)
	if err != nil {
		t.Fatal(err)
	}
	if p.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", p.UnreadCount)
	}
	msgs, err := db.ListMessages(7)
	if err != nil {
		t.Fatal(err)
	}
	if !msgs[0].Read {
		t.Error("message still unread after MarkRead")
	}
}
