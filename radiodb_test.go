package genairadio

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "radio.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.CloseDB() })
	if err := db.CreateTables(); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	return db
}

func TestAuthenticate(t *testing.T) {
	db := openTestDB(t)

	user, created, err := db.Authenticate("alice", "s3cret")
	if err != nil || !created {
		t.Fatalf("first login: created=%v err=%v", created, err)
	}
	if user.PasswordHash == "s3cret" || user.PasswordHash == "" {
		t.Fatal("password stored in the clear")
	}

	again, created, err := db.Authenticate("alice", "s3cret")
	if err != nil || created {
		t.Fatalf("second login: created=%v err=%v", created, err)
	}
	if again.ID != user.ID {
		t.Fatalf("id = %d, want %d", again.ID, user.ID)
	}

	if _, _, err := db.Authenticate("alice", "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}

	if _, err := db.GetUser("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPodcastStorage(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		err := db.CreatePodcast(&Podcast{
			ID:        id,
			Username:  "alice",
			Topics:    []string{"Sports", "AI Technology", "History"},
			Filename:  "podcast_" + id + ".mp3",
			Narration: "Narration " + id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := db.CreatePodcast(&Podcast{ID: "b1", Username: "bob", Topics: []string{"Politics"}, CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	p, err := db.GetPodcast("p2")
	if err != nil {
		t.Fatal(err)
	}
	if p.Username != "alice" || p.Narration != "Narration p2" || len(p.Topics) != 3 || p.Topics[1] != "AI Technology" {
		t.Fatalf("GetPodcast = %+v", p)
	}
	if !p.CreatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("created_at = %v", p.CreatedAt)
	}

	if _, err := db.GetPodcast("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	list, err := db.ListPodcasts("alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].ID != "p3" || list[2].ID != "p1" {
		t.Fatalf("ListPodcasts order = %+v", list)
	}

	limited, err := db.ListPodcasts("alice", 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("limited list: %d, %v", len(limited), err)
	}

	if err := db.CreatePodcast(&Podcast{ID: "p1", Username: "alice", CreatedAt: base}); err == nil {
		t.Fatal("duplicate id accepted")
	}
}
