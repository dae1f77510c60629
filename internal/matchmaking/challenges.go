package matchmaking

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrSelfChallenge      = errors.New("cannot challenge yourself")
	ErrDuplicateChallenge = errors.New("challenge already pending for this pair")
	ErrChallengeCapacity  = errors.New("challenge table is full")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrNotYourChallenge   = errors.New("challenge is addressed to another player")
	ErrChallengeThrottled = errors.New("too many declined challenges, try again later")
)

// Challenge is one pending invitation. At most one active challenge exists
// per ordered (challenger, opponent) pair.
type Challenge struct {
	ID         uint32
	Challenger string
	Opponent   string
	CreatedAt  time.Time
}

// Config carries the advisory throttling thresholds. Zero values disable
// throttling entirely.
type Config struct {
	// MaxChallenges bounds the pending-challenge table.
	MaxChallenges int
	// ChallengeMaxAge is how long an unanswered challenge survives a sweep.
	ChallengeMaxAge time.Duration
	// DeclineThreshold is the number of consecutive declines after which
	// repeat challenges to the same opponent are refused for Cooldown.
	DeclineThreshold int
	Cooldown         time.Duration
}

// Matchmaker owns the player directory and challenge ledger.
type Matchmaker struct {
	cfg Config

	mu         sync.Mutex
	players    map[string]*Player
	challenges map[uint32]*Challenge
	nextID     uint32

	// declineCounts is keyed per ordered pair and expires on its own; it is
	// advisory throttling state, not part of the ledger invariants.
	declineCounts *Cache
}

// New returns an empty Matchmaker with the given throttling configuration.
func New(cfg Config) *Matchmaker {
	if cfg.MaxChallenges <= 0 {
		cfg.MaxChallenges = 64
	}
	return &Matchmaker{
		cfg:           cfg,
		players:       make(map[string]*Player),
		challenges:    make(map[uint32]*Challenge),
		declineCounts: NewCache(),
	}
}

func pairKey(challenger, opponent string) string {
	return fmt.Sprintf("%s|%s", challenger, opponent)
}

// Match describes a resolved mutual challenge. PlayerA is the earlier
// challenger of the two.
type Match struct {
	PlayerA string
	PlayerB string
}

// CreateChallenge records a new challenge from challenger to opponent and
// returns its id. If the mirror challenge is already pending, both records
// are consumed atomically and the returned Match is non-nil; the caller
// then creates the game instance.
func (m *Matchmaker) CreateChallenge(challenger, opponent string) (uint32, *Match, error) {
	if challenger == opponent {
		return 0, nil, ErrSelfChallenge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[opponent]; !ok {
		return 0, nil, ErrPlayerNotFound
	}

	if m.throttled(challenger, opponent) {
		return 0, nil, ErrChallengeThrottled
	}

	var mirror *Challenge
	for _, c := range m.challenges {
		if c.Challenger == challenger && c.Opponent == opponent {
			return 0, nil, ErrDuplicateChallenge
		}
		if c.Challenger == opponent && c.Opponent == challenger {
			mirror = c
		}
	}

	if mirror != nil {
		// Mutual match: the earlier challenger takes side A.
		delete(m.challenges, mirror.ID)
		return mirror.ID, &Match{PlayerA: mirror.Challenger, PlayerB: mirror.Opponent}, nil
	}

	if len(m.challenges) >= m.cfg.MaxChallenges {
		return 0, nil, ErrChallengeCapacity
	}

	m.nextID++
	c := &Challenge{
		ID:         m.nextID,
		Challenger: challenger,
		Opponent:   opponent,
		CreatedAt:  time.Now(),
	}
	m.challenges[c.ID] = c
	return c.ID, nil, nil
}

// AcceptByID resolves a pending challenge. The caller must be the recorded
// opponent. On success the challenge is consumed and the resulting match
// returned, with the challenger as side A.
func (m *Matchmaker) AcceptByID(caller string, id uint32) (*Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if c.Opponent != caller {
		return nil, ErrNotYourChallenge
	}

	delete(m.challenges, id)
	m.declineCounts.Delete(pairKey(c.Challenger, c.Opponent))
	return &Match{PlayerA: c.Challenger, PlayerB: c.Opponent}, nil
}

// DeclineByID removes a pending challenge and records the decline against
// the (challenger, opponent) pair. Returns the removed challenge so the
// caller can notify the challenger best-effort.
func (m *Matchmaker) DeclineByID(caller string, id uint32) (Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[id]
	if !ok {
		return Challenge{}, ErrChallengeNotFound
	}
	if c.Opponent != caller {
		return Challenge{}, ErrNotYourChallenge
	}

	delete(m.challenges, id)
	m.recordDecline(c.Challenger, c.Opponent)
	return *c, nil
}

// PendingChallenges returns a snapshot of every pending challenge.
func (m *Matchmaker) PendingChallenges() []Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]Challenge, 0, len(m.challenges))
	for _, c := range m.challenges {
		pending = append(pending, *c)
	}
	return pending
}

// PendingFor returns the pending challenges addressed to or sent by handle.
func (m *Matchmaker) PendingFor(handle string) []Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []Challenge
	for _, c := range m.challenges {
		if c.Challenger == handle || c.Opponent == handle {
			pending = append(pending, *c)
		}
	}
	return pending
}

// Sweep removes challenges older than the configured maximum age and
// returns the removed records so callers can notify the parties.
func (m *Matchmaker) Sweep() []Challenge {
	if m.cfg.ChallengeMaxAge <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.cfg.ChallengeMaxAge)
	var swept []Challenge
	for id, c := range m.challenges {
		if c.CreatedAt.Before(cutoff) {
			swept = append(swept, *c)
			delete(m.challenges, id)
		}
	}
	return swept
}

// DropPlayer removes every pending challenge involving handle, typically on
// disconnect.
func (m *Matchmaker) DropPlayer(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range m.challenges {
		if c.Challenger == handle || c.Opponent == handle {
			delete(m.challenges, id)
		}
	}
}

func (m *Matchmaker) recordDecline(challenger, opponent string) {
	if m.cfg.DeclineThreshold <= 0 {
		return
	}

	key := pairKey(challenger, opponent)
	count := 1
	if v, ok := m.declineCounts.Get(key); ok {
		count = v.(int) + 1
	}
	m.declineCounts.Put(key, count, m.cfg.Cooldown)
}

// throttled reports whether challenger has been declined by opponent often
// enough, and recently enough, that a repeat challenge should be refused.
func (m *Matchmaker) throttled(challenger, opponent string) bool {
	if m.cfg.DeclineThreshold <= 0 {
		return false
	}

	if v, ok := m.declineCounts.Get(pairKey(challenger, opponent)); ok {
		return v.(int) >= m.cfg.DeclineThreshold
	}
	return false
}
