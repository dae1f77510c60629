// The rules package implements the deterministic awale move engine: seed
// sowing, captures, the starvation rule and terminal detection. It holds no
// locks and performs no I/O; callers are expected to serialize access to a
// Board themselves.
package rules

import "errors"

const (
	// NumPits is the total number of sowing pits on the board.
	NumPits = 12
	// PitsPerSide is the number of pits owned by each player.
	PitsPerSide = 6
	// StartingSeeds is the initial seed count of every pit.
	StartingSeeds = 4

	// WinThreshold is the score at which a player has won outright: more
	// than half of the 48 seeds in play.
	WinThreshold = 25
)

// Sides of the board. SideA owns pits 0-5, SideB owns pits 6-11.
const (
	SideA = 0
	SideB = 1
)

// Winner results for boards that are not (yet) won by either side.
const (
	NoWinner = -1
	DrawGame = -2
)

var (
	ErrGameOver        = errors.New("game is already over")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrWrongSide       = errors.New("pit is not on your side")
	ErrEmptyPit        = errors.New("pit is empty")
	ErrStarveViolation = errors.New("move must feed the starving opponent")
)

// Board is the full state of one awale game. Pits are indexed 0-11
// counterclockwise; sowing proceeds in increasing pit order.
type Board struct {
	Pits   [NumPits]int
	Scores [2]int
	ToMove int
	over   bool
	winner int
}

// NewBoard returns a fresh board with four seeds in every pit and side A
// to move.
func NewBoard() *Board {
	b := &Board{ToMove: SideA, winner: NoWinner}
	for i := range b.Pits {
		b.Pits[i] = StartingSeeds
	}
	return b
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() *Board {
	copied := *b
	return &copied
}

// SideOfPit returns which side owns the given pit index.
func SideOfPit(pit int) int {
	if pit < PitsPerSide {
		return SideA
	}
	return SideB
}

func rowRange(side int) (lo, hi int) {
	if side == SideA {
		return 0, PitsPerSide
	}
	return PitsPerSide, NumPits
}

func (b *Board) rowTotal(side int) int {
	lo, hi := rowRange(side)
	total := 0
	for i := lo; i < hi; i++ {
		total += b.Pits[i]
	}
	return total
}

// LegalMoves returns the pits from which side could legally sow, taking the
// starvation rule into account.
func (b *Board) LegalMoves(side int) []int {
	if b.over || side != b.ToMove {
		return nil
	}

	var moves []int
	lo, hi := rowRange(side)
	for pit := lo; pit < hi; pit++ {
		if b.Pits[pit] == 0 {
			continue
		}
		if b.rowTotal(1-side) == 0 && !b.reachesOpponent(side, pit) {
			continue
		}
		moves = append(moves, pit)
	}
	return moves
}

// reachesOpponent reports whether sowing from pit would drop at least one
// seed into the opponent's row.
func (b *Board) reachesOpponent(side, pit int) bool {
	seeds := b.Pits[pit]
	idx := pit
	for s := 0; s < seeds; s++ {
		idx = (idx + 1) % NumPits
		if idx == pit {
			idx = (idx + 1) % NumPits
		}
		if SideOfPit(idx) != side {
			return true
		}
	}
	return false
}

// Move sows the seeds from pit for side, applying captures, and returns the
// number of seeds captured. The pit index is absolute (0-11). Rule errors
// leave the board untouched.
func (b *Board) Move(side, pit int) (int, error) {
	switch {
	case b.over:
		return 0, ErrGameOver
	case side != b.ToMove:
		return 0, ErrNotYourTurn
	case pit < 0 || pit >= NumPits:
		return 0, ErrWrongSide
	case SideOfPit(pit) != side:
		return 0, ErrWrongSide
	case b.Pits[pit] == 0:
		return 0, ErrEmptyPit
	}

	opponent := 1 - side
	if b.rowTotal(opponent) == 0 && !b.reachesOpponent(side, pit) {
		// An alternative that feeds the opponent makes this pit illegal;
		// with no alternative at all the mover keeps their seeds and the
		// game ends.
		if len(b.LegalMoves(side)) == 0 {
			b.endStarved(side)
			return 0, nil
		}
		return 0, ErrStarveViolation
	}

	// Sow counterclockwise, skipping the origin pit on a full lap.
	seeds := b.Pits[pit]
	b.Pits[pit] = 0
	idx := pit
	for s := 0; s < seeds; s++ {
		idx = (idx + 1) % NumPits
		if idx == pit {
			idx = (idx + 1) % NumPits
		}
		b.Pits[idx]++
	}

	captured := b.capture(side, idx)
	b.Scores[side] += captured
	b.ToMove = opponent

	b.checkTerminal()
	return captured, nil
}

// capture collects opponent pits holding 2 or 3 seeds, walking backwards
// from the pit where the last seed landed. A capture that would empty the
// opponent's entire row is forfeited (the move still stands).
func (b *Board) capture(side, lastPit int) int {
	opponent := 1 - side
	if SideOfPit(lastPit) != opponent {
		return 0
	}

	var capturedPits []int
	captured := 0
	lo, hi := rowRange(opponent)
	for i := lastPit; i >= lo && i < hi; i-- {
		if b.Pits[i] != 2 && b.Pits[i] != 3 {
			break
		}
		captured += b.Pits[i]
		capturedPits = append(capturedPits, i)
	}

	if captured == b.rowTotal(opponent) {
		return 0
	}

	for _, i := range capturedPits {
		b.Pits[i] = 0
	}
	return captured
}

// endStarved ends the game when side cannot feed the starving opponent:
// the remaining seeds on the board go to side.
func (b *Board) endStarved(side int) {
	lo, hi := rowRange(side)
	for i := lo; i < hi; i++ {
		b.Scores[side] += b.Pits[i]
		b.Pits[i] = 0
	}
	b.finish()
}

// checkTerminal updates the terminal state after a committed move.
func (b *Board) checkTerminal() {
	for side := range b.Scores {
		if b.Scores[side] >= WinThreshold {
			b.finish()
			return
		}
	}

	// The player now to move has no seeds and cannot be fed: the previous
	// player keeps the seeds remaining in their row.
	if b.rowTotal(b.ToMove) == 0 {
		b.endStarved(1 - b.ToMove)
	}
}

func (b *Board) finish() {
	b.over = true
	switch {
	case b.Scores[SideA] > b.Scores[SideB]:
		b.winner = SideA
	case b.Scores[SideB] > b.Scores[SideA]:
		b.winner = SideB
	default:
		b.winner = DrawGame
	}
}

// GameOver reports whether the board has reached a terminal state.
func (b *Board) GameOver() bool { return b.over }

// Winner returns the winning side, DrawGame for a tie, or NoWinner while
// the game is still in progress.
func (b *Board) Winner() int {
	if !b.over {
		return NoWinner
	}
	return b.winner
}

// Engine adapts the package functions to the collaborator interface the
// game manager consumes.
type Engine struct{}

func (Engine) NewBoard() *Board                          { return NewBoard() }
func (Engine) Move(b *Board, side, pit int) (int, error) { return b.Move(side, pit) }
func (Engine) GameOver(b *Board) bool                    { return b.GameOver() }
func (Engine) Winner(b *Board) int                       { return b.Winner() }
