// The game package maintains the registry of concurrent game instances.
// The manager lock covers only table membership; every instance owns its
// own lock for board mutation, so moves on unrelated games never contend.
package game

import (
	"errors"
	"sync"

	"github.com/awale-net/awale/internal/rules"
)

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameAlreadyExists = errors.New("game already exists for this pair")
	ErrGameCapacity      = errors.New("game table is full")
	ErrPlayerNotInGame   = errors.New("player is not part of this game")
	ErrSpectatorCapacity = errors.New("spectator list is full")
	ErrNoLegalMove       = errors.New("no legal move available")
)

// Engine is the rules collaborator consumed by the manager. It is called
// exclusively while holding the relevant instance's lock and must not keep
// side effects beyond the board passed in.
type Engine interface {
	NewBoard() *rules.Board
	Move(b *rules.Board, side, pit int) (int, error)
	GameOver(b *rules.Board) bool
	Winner(b *rules.Board) int
}

// Instance is one in-progress game: its board, participants and bounded
// spectator set, guarded by the instance's own lock.
type Instance struct {
	ID      uint32
	PlayerA string
	PlayerB string

	mu            sync.Mutex
	board         *rules.Board
	active        bool
	spectators    map[string]struct{}
	maxSpectators int
}

// sideOf resolves a handle to a board side by identity match against the
// two stored handles.
func (g *Instance) sideOf(handle string) (int, bool) {
	switch handle {
	case g.PlayerA:
		return rules.SideA, true
	case g.PlayerB:
		return rules.SideB, true
	}
	return 0, false
}

// Snapshot is a copy of an instance's externally visible state, taken under
// the instance lock.
type Snapshot struct {
	ID       uint32
	PlayerA  string
	PlayerB  string
	Pits     [rules.NumPits]int
	ScoreA   int
	ScoreB   int
	ToMove   string
	Over     bool
	Draw     bool
	Winner   string
	Watchers int
}

func (g *Instance) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:       g.ID,
		PlayerA:  g.PlayerA,
		PlayerB:  g.PlayerB,
		Pits:     g.board.Pits,
		ScoreA:   g.board.Scores[rules.SideA],
		ScoreB:   g.board.Scores[rules.SideB],
		Over:     g.board.GameOver(),
		Watchers: len(g.spectators),
	}

	if g.board.ToMove == rules.SideA {
		snap.ToMove = g.PlayerA
	} else {
		snap.ToMove = g.PlayerB
	}

	switch g.board.Winner() {
	case rules.SideA:
		snap.Winner = g.PlayerA
	case rules.SideB:
		snap.Winner = g.PlayerB
	case rules.DrawGame:
		snap.Draw = true
	}
	return snap
}

// Snapshot returns a consistent copy of the instance state.
func (g *Instance) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// AddSpectator attaches handle to the bounded spectator set. Adding an
// existing spectator is idempotent. Returns the resulting count.
func (g *Instance) AddSpectator(handle string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.spectators[handle]; ok {
		return len(g.spectators), nil
	}
	if len(g.spectators) >= g.maxSpectators {
		return len(g.spectators), ErrSpectatorCapacity
	}
	g.spectators[handle] = struct{}{}
	return len(g.spectators), nil
}

// RemoveSpectator detaches handle; removing an absent spectator is a no-op.
// Returns the resulting count.
func (g *Instance) RemoveSpectator(handle string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.spectators, handle)
	return len(g.spectators)
}

// Spectators returns a snapshot of the attached spectator handles.
func (g *Instance) Spectators() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	handles := make([]string, 0, len(g.spectators))
	for h := range g.spectators {
		handles = append(handles, h)
	}
	return handles
}
