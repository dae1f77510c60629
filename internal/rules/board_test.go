package rules

import (
	"errors"
	"testing"
)

func TestNewBoard(t *testing.T) {
	b := NewBoard()

	for i, seeds := range b.Pits {
		if seeds != StartingSeeds {
			t.Errorf("pit %d want %d seeds, got %d", i, StartingSeeds, seeds)
		}
	}
	if b.ToMove != SideA {
		t.Errorf("want side A to move first, got %d", b.ToMove)
	}
	if b.GameOver() {
		t.Error("a fresh board should not be over")
	}
	if b.Winner() != NoWinner {
		t.Errorf("a fresh board should have no winner, got %d", b.Winner())
	}
}

func TestMoveSowsCounterclockwise(t *testing.T) {
	b := NewBoard()

	captured, err := b.Move(SideA, 2)
	if err != nil {
		t.Fatalf("Move() returned an error: %s", err)
	}
	if captured != 0 {
		t.Errorf("opening move should capture nothing, got %d", captured)
	}

	if b.Pits[2] != 0 {
		t.Errorf("origin pit should be empty, got %d", b.Pits[2])
	}
	for _, pit := range []int{3, 4, 5, 6} {
		if b.Pits[pit] != StartingSeeds+1 {
			t.Errorf("pit %d want %d seeds, got %d", pit, StartingSeeds+1, b.Pits[pit])
		}
	}
	if b.ToMove != SideB {
		t.Errorf("turn should pass to side B, got %d", b.ToMove)
	}
}

func TestMoveSkipsOriginOnFullLap(t *testing.T) {
	b := NewBoard()
	b.Pits = [NumPits]int{14, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	if _, err := b.Move(SideA, 0); err != nil {
		t.Fatalf("Move() returned an error: %s", err)
	}

	if b.Pits[0] != 0 {
		t.Errorf("origin pit should be skipped while sowing, got %d seeds", b.Pits[0])
	}
	// 14 seeds over 11 sowable pits: every other pit gets one, the first
	// three past the origin get a second.
	for _, pit := range []int{1, 2, 3} {
		if b.Pits[pit] != 2 {
			t.Errorf("pit %d want 2 seeds, got %d", pit, b.Pits[pit])
		}
	}
}

func TestMoveCapturesTwosAndThrees(t *testing.T) {
	b := NewBoard()
	b.Pits = [NumPits]int{0, 0, 0, 0, 0, 2, 1, 2, 4, 4, 4, 4}

	captured, err := b.Move(SideA, 5)
	if err != nil {
		t.Fatalf("Move() returned an error: %s", err)
	}

	// Sowing 2 seeds from pit 5 makes pits 6 and 7 hold 2 and 3; both are
	// captured walking backwards from the last seed.
	if captured != 5 {
		t.Errorf("want 5 captured seeds, got %d", captured)
	}
	if b.Pits[6] != 0 || b.Pits[7] != 0 {
		t.Errorf("captured pits should be empty, got %d and %d", b.Pits[6], b.Pits[7])
	}
	if b.Pits[8] != 4 {
		t.Errorf("pit 8 should keep its seeds, got %d", b.Pits[8])
	}
	if b.Scores[SideA] != 5 {
		t.Errorf("side A score want 5, got %d", b.Scores[SideA])
	}
}

func TestMoveForfeitsGrandSlamCapture(t *testing.T) {
	b := NewBoard()
	b.Pits = [NumPits]int{0, 0, 0, 0, 0, 2, 1, 2, 0, 0, 0, 0}

	captured, err := b.Move(SideA, 5)
	if err != nil {
		t.Fatalf("Move() returned an error: %s", err)
	}

	// The capture would sweep side B's entire row, so it is forfeited and
	// the sown seeds remain in place.
	if captured != 0 {
		t.Errorf("grand slam capture should be forfeited, got %d seeds", captured)
	}
	if b.Pits[6] != 2 || b.Pits[7] != 3 {
		t.Errorf("sown seeds should remain, got %d and %d", b.Pits[6], b.Pits[7])
	}
}

func TestMoveRuleErrors(t *testing.T) {
	b := NewBoard()
	b.Pits[3] = 0

	cases := []struct {
		name string
		side int
		pit  int
		want error
	}{
		{"wrong turn", SideB, 6, ErrNotYourTurn},
		{"opponent pit", SideA, 8, ErrWrongSide},
		{"pit out of range", SideA, 12, ErrWrongSide},
		{"empty pit", SideA, 3, ErrEmptyPit},
	}
	for _, tt := range cases {
		if _, err := b.Move(tt.side, tt.pit); !errors.Is(err, tt.want) {
			t.Errorf("%s: want %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestMoveStarveViolation(t *testing.T) {
	b := NewBoard()
	// Side B has nothing; pit 0 cannot reach them but pit 5 can.
	b.Pits = [NumPits]int{1, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0}

	if _, err := b.Move(SideA, 0); !errors.Is(err, ErrStarveViolation) {
		t.Fatalf("want ErrStarveViolation, got %v", err)
	}

	if _, err := b.Move(SideA, 5); err != nil {
		t.Fatalf("the feeding move should be legal, got %v", err)
	}
}

func TestGameEndsWhenOpponentCannotBeFed(t *testing.T) {
	b := NewBoard()
	// Side B is empty and side A's lone seed cannot reach them: side A
	// collects its remaining seeds and the game ends.
	b.Pits = [NumPits]int{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	b.Scores = [2]int{20, 10}

	if _, err := b.Move(SideA, 0); err != nil {
		t.Fatalf("Move() returned an error: %s", err)
	}

	if !b.GameOver() {
		t.Fatal("game should be over")
	}
	if b.Winner() != SideA {
		t.Errorf("want side A to win, got %d", b.Winner())
	}
	if b.Scores[SideA] != 21 {
		t.Errorf("side A should keep its last seed, got score %d", b.Scores[SideA])
	}
}

func TestWinByScoreThreshold(t *testing.T) {
	b := NewBoard()
	b.Pits = [NumPits]int{0, 0, 0, 0, 0, 2, 1, 2, 4, 4, 4, 4}
	b.Scores = [2]int{20, 0}

	if _, err := b.Move(SideA, 5); err != nil {
		t.Fatalf("Move() returned an error: %s", err)
	}

	if !b.GameOver() {
		t.Fatal("reaching the win threshold should end the game")
	}
	if b.Winner() != SideA {
		t.Errorf("want side A as winner, got %d", b.Winner())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := NewBoard()
	clone := b.Clone()

	if _, err := clone.Move(SideA, 0); err != nil {
		t.Fatalf("Move() returned an error: %s", err)
	}

	if b.Pits[0] != StartingSeeds {
		t.Error("mutating a clone changed the original board")
	}
}

func TestBestMoveReturnsLegalPit(t *testing.T) {
	b := NewBoard()

	pit := BestMove(b, SideA, 4)
	if SideOfPit(pit) != SideA || b.Pits[pit] == 0 {
		t.Fatalf("BestMove() returned illegal pit %d", pit)
	}

	if _, err := b.Move(SideA, pit); err != nil {
		t.Errorf("BestMove() pit was rejected by the engine: %s", err)
	}
}

func TestBestMovePrefersImmediateCapture(t *testing.T) {
	b := NewBoard()
	b.Pits = [NumPits]int{4, 0, 0, 0, 0, 2, 1, 2, 4, 4, 4, 4}

	// Sowing from pit 5 captures pits 6 and 7 immediately.
	if pit := BestMove(b, SideA, 2); pit != 5 {
		t.Errorf("want BestMove to pick the capturing pit 5, got %d", pit)
	}
}
