// The protocol package implements the binary wire protocol spoken between
// the awale server and its clients: a fixed 16 byte little-endian header
// followed by a fixed-layout payload selected by the header type.
package protocol

const (
	// HeaderSize is the length of the frame header in bytes.
	HeaderSize = 16
	// MaxMessageSize bounds a full frame (header plus payload).
	MaxMessageSize = 8192
	// MaxPayloadSize bounds the payload portion of a frame.
	MaxPayloadSize = MaxMessageSize - HeaderSize

	// MaxHandleLength is the longest player handle the server will accept.
	MaxHandleLength = 31
	// HandleFieldSize is the on-wire width of a handle field (NUL padded).
	HandleFieldSize = 32

	// MaxBioLines bounds the number of newline-separated lines in a bio.
	MaxBioLines = 4

	// MaxListEntries is the number of entries a single list response can carry.
	MaxListEntries = 32
	// MaxFriends bounds the friends list of one player.
	MaxFriends = 16
)

// Message types. Both ends must agree on the payload layout for each type.
const (
	ConnectType uint32 = iota + 1
	ConnectAckType
	ListPlayersType
	PlayerListType
	ChallengeType
	ChallengeSentType
	ChallengeReceivedType
	AcceptChallengeType
	DeclineChallengeType
	ChallengeDeclinedType
	ListChallengesType
	ChallengeListType
	GameStartedType
	PlayMoveType
	MoveResultType
	GetBoardType
	BoardStateType
	ListGamesType
	ListOwnGamesType
	GameListType
	SpectateGameType
	SpectateAckType
	SpectatorJoinedType
	StopSpectateType
	SendChatType
	ChatMessageType
	GetBioType
	SetBioType
	BioResponseType
	GetPlayerStatsType
	PlayerStatsType
	AddFriendType
	RemoveFriendType
	ListFriendsType
	FriendListType
	ListSavedGamesType
	SavedGameListType
	ViewSavedGameType
	SavedGameType
	StartAIGameType
	PingType
	ErrorType
	DisconnectType
)

// Error codes carried by Error frames.
const (
	ErrCodeInvalidArgument uint32 = iota + 1
	ErrCodeGameNotFound
	ErrCodePlayerNotFound
	ErrCodeNotYourTurn
	ErrCodeWrongSide
	ErrCodeEmptyPit
	ErrCodeStarveViolation
	ErrCodeGameAlreadyExists
	ErrCodeCapacityExceeded
	ErrCodeDuplicateEntry
	ErrCodeNetworkError
	ErrCodeSerializationError
	ErrCodeTimeout
)

// Sides of the board. SideA is the earlier challenger in a mutual match.
const (
	SideA uint32 = 0
	SideB uint32 = 1
)

// ValidHandle reports whether a player handle is acceptable: 1 to
// MaxHandleLength characters, each alphanumeric, underscore or hyphen.
func ValidHandle(handle string) bool {
	if len(handle) == 0 || len(handle) > MaxHandleLength {
		return false
	}
	for _, c := range []byte(handle) {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
