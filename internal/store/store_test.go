package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-test/deep"
	"gorm.io/gorm"
)

// Creates a database for testing. For the sake of simplicity, this only uses
// the SQLite engine and creates a new database on every invocation since it
// is relatively cheap to do so.
func setUpStore(t *testing.T) *Store {
	t.Helper()
	testDBFile := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(testDBFile))
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}

	s, err := NewWithDB(db)
	if err != nil {
		t.Fatalf("error migrating test database: %s", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestSaveAndLoadGame(t *testing.T) {
	s := setUpStore(t)

	pits := [12]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	rec := &GameRecord{
		ID:      42,
		PlayerA: "alice",
		PlayerB: "bob",
		Winner:  "alice",
		ScoreA:  27,
		ScoreB:  21,
		Board:   EncodeBoard(pits),
	}
	if err := s.SaveGame(rec); err != nil {
		t.Fatalf("SaveGame() returned an error: %s", err)
	}

	loaded, err := s.LoadGame(42)
	if err != nil {
		t.Fatalf("LoadGame() returned an error: %s", err)
	}
	if loaded.PlayerA != "alice" || loaded.Winner != "alice" || loaded.ScoreA != 27 {
		t.Errorf("unexpected record: %+v", loaded)
	}
	if diff := deep.Equal(pits, DecodeBoard(loaded.Board)); diff != nil {
		t.Errorf("board blob did not survive a round trip: %v", diff)
	}
}

func TestLoadGameValidatesChecksum(t *testing.T) {
	s := setUpStore(t)

	rec := &GameRecord{ID: 7, PlayerA: "a", PlayerB: "b", Board: EncodeBoard([12]int{})}
	if err := s.SaveGame(rec); err != nil {
		t.Fatal(err)
	}

	// Corrupt the blob behind the store's back.
	if err := s.db.Model(&GameRecord{}).Where("id = ?", 7).
		Update("board", []byte{9, 9, 9}).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := s.LoadGame(7); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("want ErrChecksumMismatch, got %v", err)
	}
}

func TestLoadGameNotFound(t *testing.T) {
	s := setUpStore(t)
	if _, err := s.LoadGame(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteGame(t *testing.T) {
	s := setUpStore(t)

	rec := &GameRecord{ID: 5, PlayerA: "a", PlayerB: "b", Board: EncodeBoard([12]int{})}
	if err := s.SaveGame(rec); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteGame(5); err != nil {
		t.Fatalf("DeleteGame() returned an error: %s", err)
	}
	if _, err := s.LoadGame(5); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound after delete, got %v", err)
	}
}

func TestSavePlayerUpsertsByHandle(t *testing.T) {
	s := setUpStore(t)

	if err := s.SavePlayer(&PlayerRecord{Handle: "alice", Rating: 1200}); err != nil {
		t.Fatalf("SavePlayer() returned an error: %s", err)
	}
	if err := s.SavePlayer(&PlayerRecord{Handle: "alice", Rating: 1250, Won: 3}); err != nil {
		t.Fatalf("SavePlayer() update returned an error: %s", err)
	}

	players, err := s.LoadPlayers()
	if err != nil {
		t.Fatalf("LoadPlayers() returned an error: %s", err)
	}
	if len(players) != 1 {
		t.Fatalf("want exactly one record after upsert, got %d", len(players))
	}
	if players[0].Rating != 1250 || players[0].Won != 3 {
		t.Errorf("update lost fields: %+v", players[0])
	}
}
