package rules

// BestMove runs a fixed-depth minimax search for side and returns the pit
// to sow from, or -1 when side has no legal move. The evaluation is the
// captured-seed differential, which is crude but plays a reasonable game at
// depths of 4 and above.
func BestMove(b *Board, side, depth int) int {
	moves := b.LegalMoves(side)
	if len(moves) == 0 {
		return -1
	}

	bestPit := moves[0]
	bestScore := minScore
	for _, pit := range moves {
		next := b.Clone()
		if _, err := next.Move(side, pit); err != nil {
			continue
		}
		score := -negamax(next, 1-side, depth-1)
		if score > bestScore {
			bestScore = score
			bestPit = pit
		}
	}
	return bestPit
}

const (
	minScore = -1 << 30
	maxScore = 1 << 30
)

func negamax(b *Board, side, depth int) int {
	if b.GameOver() {
		switch b.Winner() {
		case side:
			return maxScore / 2
		case DrawGame:
			return 0
		default:
			return minScore / 2
		}
	}
	if depth <= 0 {
		return b.Scores[side] - b.Scores[1-side]
	}

	moves := b.LegalMoves(side)
	if len(moves) == 0 {
		return b.Scores[side] - b.Scores[1-side]
	}

	best := minScore
	for _, pit := range moves {
		next := b.Clone()
		if _, err := next.Move(side, pit); err != nil {
			continue
		}
		if score := -negamax(next, 1-side, depth-1); score > best {
			best = score
		}
	}
	return best
}
