// The matchmaking package owns the player directory and the challenge
// ledger: who is known to the server, their statistics and ratings, and
// which invitations are pending. All state is guarded by one lock scoped to
// this package; game and session state have their own.
package matchmaking

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	// InitialRating is the Elo rating assigned to new players.
	InitialRating = 1200
	// ratingKFactor tunes how quickly ratings move after a result.
	ratingKFactor = 32

	// MaxBioLines bounds the free-text bio.
	MaxBioLines = 4
	// MaxBioLength bounds the bio in bytes.
	MaxBioLength = 256
	// MaxFriends bounds the friends list of one player.
	MaxFriends = 16
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrBioTooLong     = errors.New("bio exceeds line or length limits")
	ErrFriendCapacity = errors.New("friends list is full")
)

// Player is one directory entry. Entries are created on first connect and
// survive disconnects (marked not connected) so statistics persist across
// sessions.
type Player struct {
	Handle     string
	IP         string
	Played     int
	Won        int
	Lost       int
	Drawn      int
	TotalScore int
	Rating     int
	Bio        string
	Friends    []string
	Connected  bool
	LastSeen   time.Time
}

func (p *Player) clone() Player {
	copied := *p
	copied.Friends = append([]string(nil), p.Friends...)
	return copied
}

// UpsertPlayer creates or refreshes the directory entry for handle and
// marks it connected.
func (m *Matchmaker) UpsertPlayer(handle, ip string) Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[handle]
	if !ok {
		p = &Player{Handle: handle, Rating: InitialRating}
		m.players[handle] = p
	}
	p.IP = ip
	p.Connected = true
	p.LastSeen = time.Now()
	return p.clone()
}

// MarkDisconnected flags the entry for handle as offline, retaining its
// statistics.
func (m *Matchmaker) MarkDisconnected(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.players[handle]; ok {
		p.Connected = false
		p.LastSeen = time.Now()
	}
}

// GetPlayer returns a copy of the directory entry for handle.
func (m *Matchmaker) GetPlayer(handle string) (Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[handle]
	if !ok {
		return Player{}, false
	}
	return p.clone(), true
}

// ListPlayers returns a copy of every directory entry.
func (m *Matchmaker) ListPlayers() []Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	players := make([]Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p.clone())
	}
	return players
}

// SetBio replaces the free-text bio for handle, enforcing the line and
// length bounds.
func (m *Matchmaker) SetBio(handle, bio string) error {
	if len(bio) > MaxBioLength || strings.Count(bio, "\n") >= MaxBioLines {
		return ErrBioTooLong
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[handle]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Bio = bio
	return nil
}

// AddFriend appends friend to handle's bounded friends list. Adding an
// existing friend is a no-op.
func (m *Matchmaker) AddFriend(handle, friend string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[handle]
	if !ok {
		return ErrPlayerNotFound
	}
	for _, f := range p.Friends {
		if f == friend {
			return nil
		}
	}
	if len(p.Friends) >= MaxFriends {
		return ErrFriendCapacity
	}
	p.Friends = append(p.Friends, friend)
	return nil
}

// RemoveFriend drops friend from handle's friends list if present.
func (m *Matchmaker) RemoveFriend(handle, friend string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[handle]
	if !ok {
		return ErrPlayerNotFound
	}
	for i, f := range p.Friends {
		if f == friend {
			p.Friends = append(p.Friends[:i], p.Friends[i+1:]...)
			return nil
		}
	}
	return nil
}

// Result outcomes for ApplyResult.
const (
	ResultWinA = iota
	ResultWinB
	ResultDraw
)

// ApplyResult records a finished game between a and b: win/loss/draw
// counters, score totals, and an Elo-style rating update. Both entries are
// updated under the matchmaking lock in one step.
func (m *Matchmaker) ApplyResult(a, b string, outcome, scoreA, scoreB int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pa, okA := m.players[a]
	pb, okB := m.players[b]
	if !okA || !okB {
		return ErrPlayerNotFound
	}

	pa.Played++
	pb.Played++
	pa.TotalScore += scoreA
	pb.TotalScore += scoreB

	var actualA float64
	switch outcome {
	case ResultWinA:
		pa.Won++
		pb.Lost++
		actualA = 1
	case ResultWinB:
		pa.Lost++
		pb.Won++
		actualA = 0
	default:
		pa.Drawn++
		pb.Drawn++
		actualA = 0.5
	}

	expectedA := 1 / (1 + math.Pow(10, float64(pb.Rating-pa.Rating)/400))
	delta := int(math.Round(ratingKFactor * (actualA - expectedA)))
	pa.Rating += delta
	pb.Rating -= delta
	return nil
}

// RestorePlayer seeds the directory with an entry loaded from the store at
// startup. Loaded players start disconnected.
func (m *Matchmaker) RestorePlayer(p Player) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.Connected = false
	restored := p
	m.players[p.Handle] = &restored
}
