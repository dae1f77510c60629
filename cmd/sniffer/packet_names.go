package main

import (
	"fmt"

	"github.com/awale-net/awale/internal/protocol"
)

// Janky (and simple) method of including the names of the messages as the
// server defines them. Whenever new message types are defined they must also
// be added here in order for the sniffer to get the name correctly.
var messageNames = map[uint32]string{
	protocol.ConnectType:           "ConnectType",
	protocol.ConnectAckType:        "ConnectAckType",
	protocol.ListPlayersType:       "ListPlayersType",
	protocol.PlayerListType:        "PlayerListType",
	protocol.ChallengeType:         "ChallengeType",
	protocol.ChallengeSentType:     "ChallengeSentType",
	protocol.ChallengeReceivedType: "ChallengeReceivedType",
	protocol.AcceptChallengeType:   "AcceptChallengeType",
	protocol.DeclineChallengeType:  "DeclineChallengeType",
	protocol.ChallengeDeclinedType: "ChallengeDeclinedType",
	protocol.ListChallengesType:    "ListChallengesType",
	protocol.ChallengeListType:     "ChallengeListType",
	protocol.GameStartedType:       "GameStartedType",
	protocol.PlayMoveType:          "PlayMoveType",
	protocol.MoveResultType:        "MoveResultType",
	protocol.GetBoardType:          "GetBoardType",
	protocol.BoardStateType:        "BoardStateType",
	protocol.ListGamesType:         "ListGamesType",
	protocol.ListOwnGamesType:      "ListOwnGamesType",
	protocol.GameListType:          "GameListType",
	protocol.SpectateGameType:      "SpectateGameType",
	protocol.SpectateAckType:       "SpectateAckType",
	protocol.SpectatorJoinedType:   "SpectatorJoinedType",
	protocol.StopSpectateType:      "StopSpectateType",
	protocol.SendChatType:          "SendChatType",
	protocol.ChatMessageType:       "ChatMessageType",
	protocol.GetBioType:            "GetBioType",
	protocol.SetBioType:            "SetBioType",
	protocol.BioResponseType:       "BioResponseType",
	protocol.GetPlayerStatsType:    "GetPlayerStatsType",
	protocol.PlayerStatsType:       "PlayerStatsType",
	protocol.AddFriendType:         "AddFriendType",
	protocol.RemoveFriendType:      "RemoveFriendType",
	protocol.ListFriendsType:       "ListFriendsType",
	protocol.FriendListType:        "FriendListType",
	protocol.ListSavedGamesType:    "ListSavedGamesType",
	protocol.SavedGameListType:     "SavedGameListType",
	protocol.ViewSavedGameType:     "ViewSavedGameType",
	protocol.SavedGameType:         "SavedGameType",
	protocol.StartAIGameType:       "StartAIGameType",
	protocol.PingType:              "PingType",
	protocol.ErrorType:             "ErrorType",
	protocol.DisconnectType:        "DisconnectType",
}

func messageName(msgType uint32) string {
	if name, ok := messageNames[msgType]; ok {
		return name
	}
	return fmt.Sprintf("unknown (%d)", msgType)
}

// messagePayloads maps message types to constructors for their payload
// structs so the sniffer can decode frames it recognizes.
var messagePayloads = map[uint32]func() interface{}{
	protocol.ConnectType:           func() interface{} { return &protocol.Connect{} },
	protocol.ConnectAckType:        func() interface{} { return &protocol.ConnectAck{} },
	protocol.PlayerListType:        func() interface{} { return &protocol.PlayerList{} },
	protocol.ChallengeType:         func() interface{} { return &protocol.Challenge{} },
	protocol.ChallengeSentType:     func() interface{} { return &protocol.ChallengeSent{} },
	protocol.ChallengeReceivedType: func() interface{} { return &protocol.ChallengeReceived{} },
	protocol.AcceptChallengeType:   func() interface{} { return &protocol.AcceptChallenge{} },
	protocol.DeclineChallengeType:  func() interface{} { return &protocol.DeclineChallenge{} },
	protocol.ChallengeDeclinedType: func() interface{} { return &protocol.ChallengeDeclined{} },
	protocol.ChallengeListType:     func() interface{} { return &protocol.ChallengeList{} },
	protocol.GameStartedType:       func() interface{} { return &protocol.GameStarted{} },
	protocol.PlayMoveType:          func() interface{} { return &protocol.PlayMove{} },
	protocol.MoveResultType:        func() interface{} { return &protocol.MoveResult{} },
	protocol.GetBoardType:          func() interface{} { return &protocol.GetBoard{} },
	protocol.BoardStateType:        func() interface{} { return &protocol.BoardState{} },
	protocol.GameListType:          func() interface{} { return &protocol.GameList{} },
	protocol.SpectateGameType:      func() interface{} { return &protocol.SpectateGame{} },
	protocol.SpectateAckType:       func() interface{} { return &protocol.SpectateAck{} },
	protocol.SpectatorJoinedType:   func() interface{} { return &protocol.SpectatorJoined{} },
	protocol.StopSpectateType:      func() interface{} { return &protocol.StopSpectate{} },
	protocol.SendChatType:          func() interface{} { return &protocol.SendChat{} },
	protocol.ChatMessageType:       func() interface{} { return &protocol.ChatMessage{} },
	protocol.GetBioType:            func() interface{} { return &protocol.GetBio{} },
	protocol.SetBioType:            func() interface{} { return &protocol.SetBio{} },
	protocol.BioResponseType:       func() interface{} { return &protocol.BioResponse{} },
	protocol.GetPlayerStatsType:    func() interface{} { return &protocol.GetPlayerStats{} },
	protocol.PlayerStatsType:       func() interface{} { return &protocol.PlayerStats{} },
	protocol.AddFriendType:         func() interface{} { return &protocol.AddFriend{} },
	protocol.RemoveFriendType:      func() interface{} { return &protocol.RemoveFriend{} },
	protocol.FriendListType:        func() interface{} { return &protocol.FriendList{} },
	protocol.SavedGameListType:     func() interface{} { return &protocol.SavedGameList{} },
	protocol.ViewSavedGameType:     func() interface{} { return &protocol.ViewSavedGame{} },
	protocol.SavedGameType:         func() interface{} { return &protocol.SavedGame{} },
	protocol.StartAIGameType:       func() interface{} { return &protocol.StartAIGame{} },
	protocol.ErrorType:             func() interface{} { return &protocol.Error{} },
}
