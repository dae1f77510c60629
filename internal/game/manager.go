package game

import (
	"hash/fnv"
	"sync"

	"github.com/awale-net/awale/internal/rules"
)

// Manager is the registry of active game instances. Its lock is held only
// long enough to look up or change table membership; board mutation happens
// under the per-instance lock after the table lock is released.
type Manager struct {
	engine        Engine
	maxGames      int
	maxSpectators int

	mu    sync.Mutex
	games map[uint32]*Instance
}

// NewManager returns an empty Manager using engine as its rules
// collaborator.
func NewManager(engine Engine, maxGames, maxSpectators int) *Manager {
	if maxGames <= 0 {
		maxGames = 32
	}
	if maxSpectators <= 0 {
		maxSpectators = 8
	}
	return &Manager{
		engine:        engine,
		maxGames:      maxGames,
		maxSpectators: maxSpectators,
		games:         make(map[uint32]*Instance, maxGames),
	}
}

// GameID derives the deterministic instance id for an ordered player pair.
func GameID(playerA, playerB string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(playerA))
	h.Write([]byte{0})
	h.Write([]byte(playerB))
	id := h.Sum32()
	if id == 0 {
		id = 1
	}
	return id
}

// CreateGame allocates a new instance for the ordered pair (playerA,
// playerB) with a fresh board from the rules engine.
func (m *Manager) CreateGame(playerA, playerB string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.games) >= m.maxGames {
		return nil, ErrGameCapacity
	}

	id := GameID(playerA, playerB)
	if _, ok := m.games[id]; ok {
		return nil, ErrGameAlreadyExists
	}
	for _, g := range m.games {
		if samePlayers(g, playerA, playerB) {
			return nil, ErrGameAlreadyExists
		}
	}

	g := &Instance{
		ID:            id,
		PlayerA:       playerA,
		PlayerB:       playerB,
		board:         m.engine.NewBoard(),
		active:        true,
		spectators:    make(map[string]struct{}),
		maxSpectators: m.maxSpectators,
	}
	m.games[id] = g
	return g, nil
}

func samePlayers(g *Instance, a, b string) bool {
	return (g.PlayerA == a && g.PlayerB == b) || (g.PlayerA == b && g.PlayerB == a)
}

// FindGame looks up an instance by id.
func (m *Manager) FindGame(id uint32) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	return g, ok
}

// FindGameByPlayers looks up the instance for a pair of handles in either
// order.
func (m *Manager) FindGameByPlayers(a, b string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range m.games {
		if samePlayers(g, a, b) {
			return g, true
		}
	}
	return nil, false
}

// PlayMove executes a move on behalf of handle. The table lock is released
// before the instance lock is taken, so a long move never blocks lookups or
// moves on other games. Returns the captured-seed count; the caller queries
// the terminal state separately via Snapshot.
func (m *Manager) PlayMove(gameID uint32, handle string, pit int) (int, error) {
	m.mu.Lock()
	g, ok := m.games[gameID]
	m.mu.Unlock()
	if !ok {
		return 0, ErrGameNotFound
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	side, ok := g.sideOf(handle)
	if !ok {
		return 0, ErrPlayerNotInGame
	}
	return m.engine.Move(g.board, side, pit)
}

// SuggestMove computes the strongest pit for handle's side on the current
// board, searching depth plies ahead. The search runs on a clone so the
// live board is never touched; the instance lock is held only to copy.
func (m *Manager) SuggestMove(gameID uint32, handle string, depth int) (int, error) {
	m.mu.Lock()
	g, ok := m.games[gameID]
	m.mu.Unlock()
	if !ok {
		return 0, ErrGameNotFound
	}

	g.mu.Lock()
	side, sideOK := g.sideOf(handle)
	board := g.board.Clone()
	g.mu.Unlock()

	if !sideOK {
		return 0, ErrPlayerNotInGame
	}
	pit := rules.BestMove(board, side, depth)
	if pit < 0 {
		return 0, ErrNoLegalMove
	}
	return pit, nil
}

// Remove deletes a finished instance from the active table. Statistics
// updates and persistence are the caller's responsibility and run under
// their own locks.
func (m *Manager) Remove(gameID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
}

// ListGames returns snapshots of every active instance.
func (m *Manager) ListGames() []Snapshot {
	m.mu.Lock()
	games := make([]*Instance, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(games))
	for _, g := range games {
		snapshots = append(snapshots, g.Snapshot())
	}
	return snapshots
}

// GamesFor returns snapshots of the instances handle plays in.
func (m *Manager) GamesFor(handle string) []Snapshot {
	var snapshots []Snapshot
	for _, snap := range m.ListGames() {
		if snap.PlayerA == handle || snap.PlayerB == handle {
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots
}

// DropSpectator removes handle as a spectator from every active game,
// returning the ids of the games that were affected.
func (m *Manager) DropSpectator(handle string) []uint32 {
	m.mu.Lock()
	games := make([]*Instance, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.mu.Unlock()

	var affected []uint32
	for _, g := range games {
		g.mu.Lock()
		if _, ok := g.spectators[handle]; ok {
			delete(g.spectators, handle)
			affected = append(affected, g.ID)
		}
		g.mu.Unlock()
	}
	return affected
}

// Count returns the number of active games.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games)
}
