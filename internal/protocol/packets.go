// Payload layouts for every message type. These are fixed-layout value
// records serialized field by field in little-endian order; there is no
// self-describing schema, so any change here is a protocol change.
package protocol

// CopyHandle writes a handle string into a NUL-padded wire field.
func CopyHandle(dst *[HandleFieldSize]byte, handle string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst[:], handle)
}

type Connect struct {
	Handle  [HandleFieldSize]byte
	Version [8]byte
}

type ConnectAck struct {
	Success   uint32
	SessionID uint32
	Message   [128]byte
}

type ListPlayers struct{}

// PlayerSummary is one entry of a PlayerList response.
type PlayerSummary struct {
	Handle    [HandleFieldSize]byte
	Connected uint32
	Rating    uint32
}

type PlayerList struct {
	Count   uint32
	Players [MaxListEntries]PlayerSummary
}

type Challenge struct {
	Opponent [HandleFieldSize]byte
}

type ChallengeSent struct {
	Opponent    [HandleFieldSize]byte
	ChallengeID uint32
}

type ChallengeReceived struct {
	Challenger  [HandleFieldSize]byte
	ChallengeID uint32
}

type AcceptChallenge struct {
	ChallengeID uint32
}

type DeclineChallenge struct {
	ChallengeID uint32
}

type ChallengeDeclined struct {
	Opponent    [HandleFieldSize]byte
	ChallengeID uint32
}

type ListChallenges struct{}

// ChallengeSummary is one entry of a ChallengeList response.
type ChallengeSummary struct {
	ChallengeID uint32
	Challenger  [HandleFieldSize]byte
	Opponent    [HandleFieldSize]byte
	AgeSeconds  uint32
}

type ChallengeList struct {
	Count      uint32
	Challenges [MaxListEntries]ChallengeSummary
}

type GameStarted struct {
	GameID   uint32
	PlayerA  [HandleFieldSize]byte
	PlayerB  [HandleFieldSize]byte
	YourSide uint32
}

type PlayMove struct {
	GameID uint32
	Pit    uint32
}

type MoveResult struct {
	GameID   uint32
	Player   [HandleFieldSize]byte
	Pit      uint32
	Captured uint32
	GameOver uint32
	Winner   [HandleFieldSize]byte
}

type GetBoard struct {
	GameID uint32
}

type BoardState struct {
	GameID   uint32
	Pits     [12]uint32
	ScoreA   uint32
	ScoreB   uint32
	ToMove   uint32
	GameOver uint32
	Winner   [HandleFieldSize]byte
}

type ListGames struct{}

type ListOwnGames struct{}

// GameSummary is one entry of a GameList response.
type GameSummary struct {
	GameID     uint32
	PlayerA    [HandleFieldSize]byte
	PlayerB    [HandleFieldSize]byte
	Spectators uint32
}

type GameList struct {
	Count uint32
	Games [MaxListEntries]GameSummary
}

type SpectateGame struct {
	GameID uint32
}

type SpectateAck struct {
	GameID         uint32
	SpectatorCount uint32
}

type SpectatorJoined struct {
	GameID         uint32
	Spectator      [HandleFieldSize]byte
	SpectatorCount uint32
}

type StopSpectate struct {
	GameID uint32
}

// SendChat targets one player by handle; an empty target broadcasts to
// every connected player.
type SendChat struct {
	Target  [HandleFieldSize]byte
	Message [256]byte
}

type ChatMessage struct {
	Sender    [HandleFieldSize]byte
	Message   [256]byte
	Broadcast uint32
}

type GetBio struct {
	Handle [HandleFieldSize]byte
}

type SetBio struct {
	Bio [256]byte
}

type BioResponse struct {
	Handle [HandleFieldSize]byte
	Bio    [256]byte
}

type GetPlayerStats struct {
	Handle [HandleFieldSize]byte
}

type PlayerStats struct {
	Handle     [HandleFieldSize]byte
	Played     uint32
	Won        uint32
	Lost       uint32
	Drawn      uint32
	TotalScore uint32
	Rating     uint32
}

type AddFriend struct {
	Handle [HandleFieldSize]byte
}

type RemoveFriend struct {
	Handle [HandleFieldSize]byte
}

type ListFriends struct{}

type FriendList struct {
	Count   uint32
	Friends [MaxFriends][HandleFieldSize]byte
}

type ListSavedGames struct{}

// SavedGameSummary is one entry of a SavedGameList response.
type SavedGameSummary struct {
	GameID  uint32
	PlayerA [HandleFieldSize]byte
	PlayerB [HandleFieldSize]byte
	Winner  [HandleFieldSize]byte
}

type SavedGameList struct {
	Count uint32
	Games [MaxListEntries]SavedGameSummary
}

type ViewSavedGame struct {
	GameID uint32
}

type SavedGame struct {
	GameID  uint32
	PlayerA [HandleFieldSize]byte
	PlayerB [HandleFieldSize]byte
	Winner  [HandleFieldSize]byte
	Pits    [12]uint32
	ScoreA  uint32
	ScoreB  uint32
}

type StartAIGame struct {
	Depth uint32
}

type Ping struct{}

type Error struct {
	Code    uint32
	Message [128]byte
}

type Disconnect struct{}
