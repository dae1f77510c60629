package matchmaking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestMatchmaker(players ...string) *Matchmaker {
	m := New(Config{MaxChallenges: 8})
	for _, handle := range players {
		m.UpsertPlayer(handle, "127.0.0.1")
	}
	return m
}

func TestMutualChallengeResolvesToOneMatch(t *testing.T) {
	m := newTestMatchmaker("alice", "bob")

	if _, match, err := m.CreateChallenge("alice", "bob"); err != nil || match != nil {
		t.Fatalf("first challenge: match=%v err=%v", match, err)
	}

	_, match, err := m.CreateChallenge("bob", "alice")
	if err != nil {
		t.Fatalf("mirror challenge returned an error: %s", err)
	}
	if match == nil {
		t.Fatal("mirror challenge should resolve to a match")
	}
	// The earlier challenger takes side A.
	if diff := cmp.Diff(&Match{PlayerA: "alice", PlayerB: "bob"}, match); diff != "" {
		t.Errorf("wrong match pairing; diff:\n%s", diff)
	}

	if pending := m.PendingChallenges(); len(pending) != 0 {
		t.Errorf("both challenge records should be consumed, %d remain", len(pending))
	}
}

func TestCreateChallengeRejections(t *testing.T) {
	m := newTestMatchmaker("alice", "bob")

	if _, _, err := m.CreateChallenge("alice", "alice"); !errors.Is(err, ErrSelfChallenge) {
		t.Errorf("self challenge: want ErrSelfChallenge, got %v", err)
	}
	if _, _, err := m.CreateChallenge("alice", "nobody"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("unknown opponent: want ErrPlayerNotFound, got %v", err)
	}

	if _, _, err := m.CreateChallenge("alice", "bob"); err != nil {
		t.Fatalf("CreateChallenge() returned an error: %s", err)
	}
	if _, _, err := m.CreateChallenge("alice", "bob"); !errors.Is(err, ErrDuplicateChallenge) {
		t.Errorf("duplicate pair: want ErrDuplicateChallenge, got %v", err)
	}
}

func TestChallengeCapacityLeavesTableIntact(t *testing.T) {
	m := New(Config{MaxChallenges: 2})
	for _, h := range []string{"a", "b", "c", "d"} {
		m.UpsertPlayer(h, "127.0.0.1")
	}

	if _, _, err := m.CreateChallenge("a", "b"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.CreateChallenge("a", "c"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.CreateChallenge("a", "d"); !errors.Is(err, ErrChallengeCapacity) {
		t.Fatalf("want ErrChallengeCapacity, got %v", err)
	}

	// Full read-back: the pre-existing entries are unchanged.
	pending := m.PendingChallenges()
	if len(pending) != 2 {
		t.Fatalf("want 2 pending challenges, got %d", len(pending))
	}
	opponents := map[string]bool{}
	for _, c := range pending {
		if c.Challenger != "a" {
			t.Errorf("unexpected challenger %q", c.Challenger)
		}
		opponents[c.Opponent] = true
	}
	if !opponents["b"] || !opponents["c"] {
		t.Errorf("pending opponents corrupted: %v", opponents)
	}
}

func TestAcceptByIDVerifiesOpponent(t *testing.T) {
	m := newTestMatchmaker("alice", "bob", "carol")

	id, _, err := m.CreateChallenge("alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.AcceptByID("carol", id); !errors.Is(err, ErrNotYourChallenge) {
		t.Errorf("accept by third party: want ErrNotYourChallenge, got %v", err)
	}

	match, err := m.AcceptByID("bob", id)
	if err != nil {
		t.Fatalf("AcceptByID() returned an error: %s", err)
	}
	if match.PlayerA != "alice" || match.PlayerB != "bob" {
		t.Errorf("wrong match pairing: %+v", match)
	}

	if _, err := m.AcceptByID("bob", id); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("accepting a consumed id: want ErrChallengeNotFound, got %v", err)
	}
}

func TestDeclineUnknownIDIsHarmless(t *testing.T) {
	m := newTestMatchmaker("alice", "bob")

	id, _, err := m.CreateChallenge("alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.DeclineByID("bob", 999); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("want ErrChallengeNotFound, got %v", err)
	}
	if pending := m.PendingChallenges(); len(pending) != 1 || pending[0].ID != id {
		t.Errorf("declining an unknown id corrupted the ledger: %v", pending)
	}
}

func TestDeclineThrottleKicksInAfterThreshold(t *testing.T) {
	m := New(Config{MaxChallenges: 8, DeclineThreshold: 2, Cooldown: time.Hour})
	m.UpsertPlayer("alice", "127.0.0.1")
	m.UpsertPlayer("bob", "127.0.0.1")

	for i := 0; i < 2; i++ {
		id, _, err := m.CreateChallenge("alice", "bob")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.DeclineByID("bob", id); err != nil {
			t.Fatal(err)
		}
	}

	if _, _, err := m.CreateChallenge("alice", "bob"); !errors.Is(err, ErrChallengeThrottled) {
		t.Errorf("want ErrChallengeThrottled after repeated declines, got %v", err)
	}
	// Other pairs are unaffected.
	if _, _, err := m.CreateChallenge("bob", "alice"); err != nil {
		t.Errorf("throttle should be per ordered pair, got %v", err)
	}
}

func TestSweepRemovesOnlyStaleChallenges(t *testing.T) {
	m := New(Config{MaxChallenges: 8, ChallengeMaxAge: time.Hour})
	for _, h := range []string{"a", "b", "c"} {
		m.UpsertPlayer(h, "127.0.0.1")
	}

	staleID, _, err := m.CreateChallenge("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.CreateChallenge("a", "c"); err != nil {
		t.Fatal(err)
	}

	// Backdate one challenge past the maximum age.
	m.mu.Lock()
	m.challenges[staleID].CreatedAt = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	swept := m.Sweep()
	if len(swept) != 1 || swept[0].ID != staleID {
		t.Fatalf("want exactly the stale challenge swept, got %v", swept)
	}
	if pending := m.PendingChallenges(); len(pending) != 1 || pending[0].Opponent != "c" {
		t.Errorf("fresh challenge should survive the sweep: %v", pending)
	}
}

func TestApplyResultUpdatesStatsAndRatings(t *testing.T) {
	m := newTestMatchmaker("alice", "bob")

	if err := m.ApplyResult("alice", "bob", ResultWinA, 25, 23); err != nil {
		t.Fatalf("ApplyResult() returned an error: %s", err)
	}

	alice, _ := m.GetPlayer("alice")
	bob, _ := m.GetPlayer("bob")

	if alice.Played != 1 || alice.Won != 1 || alice.TotalScore != 25 {
		t.Errorf("alice stats wrong: %+v", alice)
	}
	if bob.Played != 1 || bob.Lost != 1 || bob.TotalScore != 23 {
		t.Errorf("bob stats wrong: %+v", bob)
	}
	// Equal ratings and a K of 32: winner gains 16.
	if alice.Rating != InitialRating+16 || bob.Rating != InitialRating-16 {
		t.Errorf("ratings wrong: alice=%d bob=%d", alice.Rating, bob.Rating)
	}
}

func TestBioAndFriendsBounds(t *testing.T) {
	m := newTestMatchmaker("alice")

	if err := m.SetBio("alice", "line1\nline2"); err != nil {
		t.Fatalf("SetBio() returned an error: %s", err)
	}
	if err := m.SetBio("alice", "a\nb\nc\nd\ne"); !errors.Is(err, ErrBioTooLong) {
		t.Errorf("want ErrBioTooLong for too many lines, got %v", err)
	}
	if err := m.SetBio("nobody", "hi"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("want ErrPlayerNotFound, got %v", err)
	}

	for i := 0; i < MaxFriends; i++ {
		friend := string(rune('a'+i)) + "-friend"
		if err := m.AddFriend("alice", friend); err != nil {
			t.Fatalf("AddFriend() returned an error: %s", err)
		}
	}
	if err := m.AddFriend("alice", "one-too-many"); !errors.Is(err, ErrFriendCapacity) {
		t.Errorf("want ErrFriendCapacity, got %v", err)
	}
	// Re-adding is idempotent, removing frees a slot.
	if err := m.AddFriend("alice", "a-friend"); err != nil {
		t.Errorf("idempotent add should succeed, got %v", err)
	}
	if err := m.RemoveFriend("alice", "a-friend"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddFriend("alice", "one-too-many"); err != nil {
		t.Errorf("add after remove should succeed, got %v", err)
	}
}

func TestDisconnectRetainsStatistics(t *testing.T) {
	m := newTestMatchmaker("alice", "bob")
	if err := m.ApplyResult("alice", "bob", ResultDraw, 24, 24); err != nil {
		t.Fatal(err)
	}

	m.MarkDisconnected("alice")

	alice, ok := m.GetPlayer("alice")
	if !ok {
		t.Fatal("entry should survive disconnect")
	}
	if alice.Connected {
		t.Error("entry should be marked disconnected")
	}
	if alice.Drawn != 1 || alice.Played != 1 {
		t.Errorf("statistics should be retained: %+v", alice)
	}
}
