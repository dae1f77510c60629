// The store package persists finished games and the player directory. The
// rest of the server treats it as all-or-nothing: a call either succeeds or
// fails, and nothing else inspects the on-disk layout.
package store

import (
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/awale-net/awale/internal/core"
)

var (
	// ErrNotFound is returned when no record exists for the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrChecksumMismatch is returned when a stored board blob fails CRC
	// validation, indicating corruption.
	ErrChecksumMismatch = errors.New("board blob failed checksum validation")
)

// GameRecord is one finished game. Board holds the final pit counts as a
// fixed-size blob validated by Checksum on load.
type GameRecord struct {
	ID         uint32 `gorm:"primaryKey"`
	PlayerA    string `gorm:"not null"`
	PlayerB    string `gorm:"not null"`
	Winner     string
	Draw       bool
	ScoreA     int
	ScoreB     int
	Board      []byte
	Checksum   uint32
	FinishedAt time.Time
}

// PlayerRecord is one player directory entry as persisted across restarts.
type PlayerRecord struct {
	ID         uint64 `gorm:"primaryKey"`
	Handle     string `gorm:"unique; not null"`
	IP         string
	Played     int
	Won        int
	Lost       int
	Drawn      int
	TotalScore int
	Rating     int
	Bio        string
	Friends    string // newline-separated handles
	LastSeen   time.Time
}

// Store wraps the database handle used for game and player persistence.
type Store struct {
	db *gorm.DB
}

// Initialize opens the configured database engine and migrates the schema.
func Initialize(cfg *core.Config) (*Store, error) {
	// By default only log errors but enable full SQL query prints-to-console
	// with debug mode.
	log := logger.Default.LogMode(logger.Error)
	if cfg.Debugging.DatabaseLoggingEnabled {
		log = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Database.Engine {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.Database.Filename)
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL())
	default:
		return nil, fmt.Errorf("unsupported database engine: %s", cfg.Database.Engine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := db.AutoMigrate(&GameRecord{}, &PlayerRecord{}); err != nil {
		return nil, fmt.Errorf("error auto migrating db: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened database, used by tests.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&GameRecord{}, &PlayerRecord{}); err != nil {
		return nil, fmt.Errorf("error auto migrating db: %w", err)
	}
	return &Store{db: db}, nil
}

// Shutdown closes the underlying database connection.
func (s *Store) Shutdown() error {
	database, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("error while getting current connection: %w", err)
	}
	if err := database.Close(); err != nil {
		return fmt.Errorf("error while closing database connection: %w", err)
	}
	return nil
}

// EncodeBoard packs pit counts into the fixed-size blob stored with a game
// record.
func EncodeBoard(pits [12]int) []byte {
	blob := make([]byte, len(pits))
	for i, seeds := range pits {
		blob[i] = byte(seeds)
	}
	return blob
}

// DecodeBoard unpacks a board blob back into pit counts.
func DecodeBoard(blob []byte) [12]int {
	var pits [12]int
	for i := 0; i < len(pits) && i < len(blob); i++ {
		pits[i] = int(blob[i])
	}
	return pits
}

// SaveGame persists a finished game, stamping the board checksum.
func (s *Store) SaveGame(rec *GameRecord) error {
	rec.Checksum = crc32.ChecksumIEEE(rec.Board)
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	return s.db.Save(rec).Error
}

// LoadGame fetches a game record by id, validating the board checksum.
func (s *Store) LoadGame(id uint32) (*GameRecord, error) {
	var rec GameRecord
	err := s.db.First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if crc32.ChecksumIEEE(rec.Board) != rec.Checksum {
		return nil, ErrChecksumMismatch
	}
	return &rec, nil
}

// DeleteGame removes a game record by id.
func (s *Store) DeleteGame(id uint32) error {
	return s.db.Delete(&GameRecord{}, "id = ?", id).Error
}

// ListGames returns every persisted game, most recently finished first.
func (s *Store) ListGames() ([]GameRecord, error) {
	var recs []GameRecord
	err := s.db.Order("finished_at desc").Find(&recs).Error
	return recs, err
}

// SavePlayer inserts or updates the directory entry for rec.Handle.
func (s *Store) SavePlayer(rec *PlayerRecord) error {
	var existing PlayerRecord
	err := s.db.Where("handle = ?", rec.Handle).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(rec).Error
	}
	if err != nil {
		return err
	}

	rec.ID = existing.ID
	return s.db.Save(rec).Error
}

// LoadPlayers returns the full persisted player directory.
func (s *Store) LoadPlayers() ([]PlayerRecord, error) {
	var recs []PlayerRecord
	err := s.db.Find(&recs).Error
	return recs, err
}
