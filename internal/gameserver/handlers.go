package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/awale-net/awale/internal/game"
	"github.com/awale-net/awale/internal/matchmaking"
	"github.com/awale-net/awale/internal/protocol"
	"github.com/awale-net/awale/internal/session"
	"github.com/awale-net/awale/internal/store"
)

func ageSeconds(t time.Time) int {
	age := time.Since(t)
	if age < 0 {
		return 0
	}
	return int(age / time.Second)
}

var errMalformedPayload = errors.New("malformed payload")

// decodePayload parses a fixed-layout payload, converting a short or
// corrupt buffer into an error instead of a panic.
func decodePayload(payload []byte, target interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errMalformedPayload
		}
	}()
	protocol.StructFromBytes(payload, target)
	return nil
}

// Handle dispatches one parsed frame to its request handler. Validation
// failures become Error frames for the requester; only network failures on
// this session's own channels propagate and terminate the connection.
func (s *Server) Handle(_ context.Context, sess *session.Session, header protocol.Header, payload []byte) error {
	switch header.Type {
	case protocol.ListPlayersType:
		return s.handleListPlayers(sess)
	case protocol.ChallengeType:
		return s.handleChallenge(sess, payload)
	case protocol.AcceptChallengeType:
		return s.handleAcceptChallenge(sess, payload)
	case protocol.DeclineChallengeType:
		return s.handleDeclineChallenge(sess, payload)
	case protocol.ListChallengesType:
		return s.handleListChallenges(sess)
	case protocol.PlayMoveType:
		return s.handlePlayMove(sess, payload)
	case protocol.GetBoardType:
		return s.handleGetBoard(sess, payload)
	case protocol.ListGamesType:
		return s.handleListGames(sess, false)
	case protocol.ListOwnGamesType:
		return s.handleListGames(sess, true)
	case protocol.SpectateGameType:
		return s.handleSpectateGame(sess, payload)
	case protocol.StopSpectateType:
		return s.handleStopSpectate(sess, payload)
	case protocol.SendChatType:
		return s.handleSendChat(sess, payload)
	case protocol.GetBioType:
		return s.handleGetBio(sess, payload)
	case protocol.SetBioType:
		return s.handleSetBio(sess, payload)
	case protocol.GetPlayerStatsType:
		return s.handleGetPlayerStats(sess, payload)
	case protocol.AddFriendType:
		return s.handleAddFriend(sess, payload)
	case protocol.RemoveFriendType:
		return s.handleRemoveFriend(sess, payload)
	case protocol.ListFriendsType:
		return s.handleListFriends(sess)
	case protocol.ListSavedGamesType:
		return s.handleListSavedGames(sess)
	case protocol.ViewSavedGameType:
		return s.handleViewSavedGame(sess, payload)
	case protocol.StartAIGameType:
		return s.handleStartAIGame(sess, payload)
	case protocol.PingType:
		return sess.Send(protocol.PingType, nil)
	case protocol.DisconnectType:
		return errClientDisconnected
	default:
		s.Logger.Infof("[%s] received unknown message type %d from %s", s.Name, header.Type, sess.Handle())
		return s.sendError(sess, fmt.Errorf("unknown message type %d", header.Type))
	}
}

func (s *Server) handleListPlayers(sess *session.Session) error {
	players := s.Matchmaker.ListPlayers()
	sort.Slice(players, func(i, j int) bool { return players[i].Handle < players[j].Handle })

	list := &protocol.PlayerList{}
	for _, p := range players {
		if list.Count >= protocol.MaxListEntries {
			break
		}
		entry := &list.Players[list.Count]
		protocol.CopyHandle(&entry.Handle, p.Handle)
		if p.Connected {
			entry.Connected = 1
		}
		entry.Rating = uint32(p.Rating)
		list.Count++
	}
	return sess.Send(protocol.PlayerListType, list)
}

func (s *Server) handleChallenge(sess *session.Session, payload []byte) error {
	var req protocol.Challenge
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}
	opponent := protocol.PaddedString(req.Opponent[:])
	handle := sess.Handle()

	id, match, err := s.Matchmaker.CreateChallenge(handle, opponent)
	if err != nil {
		return s.sendError(sess, err)
	}

	if match != nil {
		// Mutual challenge: both records are consumed and the game starts.
		_, err := s.startGame(sess, match.PlayerA, match.PlayerB)
		return err
	}

	sent := &protocol.ChallengeSent{ChallengeID: id}
	protocol.CopyHandle(&sent.Opponent, opponent)
	if err := sess.Send(protocol.ChallengeSentType, sent); err != nil {
		return err
	}

	received := &protocol.ChallengeReceived{ChallengeID: id}
	protocol.CopyHandle(&received.Challenger, handle)
	s.push(opponent, protocol.ChallengeReceivedType, received)
	return nil
}

func (s *Server) handleAcceptChallenge(sess *session.Session, payload []byte) error {
	var req protocol.AcceptChallenge
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}

	match, err := s.Matchmaker.AcceptByID(sess.Handle(), req.ChallengeID)
	if err != nil {
		return s.sendError(sess, err)
	}
	_, err = s.startGame(sess, match.PlayerA, match.PlayerB)
	return err
}

func (s *Server) handleDeclineChallenge(sess *session.Session, payload []byte) error {
	var req protocol.DeclineChallenge
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}

	challenge, err := s.Matchmaker.DeclineByID(sess.Handle(), req.ChallengeID)
	if err != nil {
		return s.sendError(sess, err)
	}

	// Acknowledge the decliner, then tell the challenger best-effort.
	ack := &protocol.ChallengeDeclined{ChallengeID: challenge.ID}
	protocol.CopyHandle(&ack.Opponent, challenge.Challenger)
	if err := sess.Send(protocol.ChallengeDeclinedType, ack); err != nil {
		return err
	}

	notify := &protocol.ChallengeDeclined{ChallengeID: challenge.ID}
	protocol.CopyHandle(&notify.Opponent, challenge.Opponent)
	s.push(challenge.Challenger, protocol.ChallengeDeclinedType, notify)
	return nil
}

func (s *Server) handleListChallenges(sess *session.Session) error {
	pending := s.Matchmaker.PendingFor(sess.Handle())
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	list := &protocol.ChallengeList{}
	for _, c := range pending {
		if list.Count >= protocol.MaxListEntries {
			break
		}
		entry := &list.Challenges[list.Count]
		entry.ChallengeID = c.ID
		protocol.CopyHandle(&entry.Challenger, c.Challenger)
		protocol.CopyHandle(&entry.Opponent, c.Opponent)
		entry.AgeSeconds = uint32(ageSeconds(c.CreatedAt))
		list.Count++
	}
	return sess.Send(protocol.ChallengeListType, list)
}

// startGame creates the instance for a resolved match and notifies both
// players. playerA is always the earlier challenger.
func (s *Server) startGame(sess *session.Session, playerA, playerB string) (*game.Instance, error) {
	g, err := s.Games.CreateGame(playerA, playerB)
	if err != nil {
		return nil, s.sendError(sess, err)
	}

	for side, handle := range []string{playerA, playerB} {
		started := &protocol.GameStarted{GameID: g.ID, YourSide: uint32(side)}
		protocol.CopyHandle(&started.PlayerA, playerA)
		protocol.CopyHandle(&started.PlayerB, playerB)
		s.push(handle, protocol.GameStartedType, started)
	}

	s.Logger.Infof("[%s] game %d started: %s vs %s", s.Name, g.ID, playerA, playerB)
	return g, nil
}

func (s *Server) handlePlayMove(sess *session.Session, payload []byte) error {
	var req protocol.PlayMove
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}
	handle := sess.Handle()

	captured, err := s.Games.PlayMove(req.GameID, handle, int(req.Pit))
	if err != nil {
		return s.sendError(sess, err)
	}

	g, ok := s.Games.FindGame(req.GameID)
	if !ok {
		return s.sendError(sess, game.ErrGameNotFound)
	}
	snap := g.Snapshot()
	s.broadcastMove(g, snap, handle, req.Pit, uint32(captured))

	if snap.Over {
		s.finishGame(snap)
		return nil
	}
	if snap.ToMove == AIHandle {
		s.playAIMove(g)
	}
	return nil
}

// broadcastMove fans the result of a committed move out to both players
// and pushes the refreshed board to every spectator.
func (s *Server) broadcastMove(g *game.Instance, snap game.Snapshot, mover string, pit, captured uint32) {
	result := &protocol.MoveResult{GameID: snap.ID, Pit: pit, Captured: captured}
	protocol.CopyHandle(&result.Player, mover)
	if snap.Over {
		result.GameOver = 1
		protocol.CopyHandle(&result.Winner, snap.Winner)
	}

	s.push(snap.PlayerA, protocol.MoveResultType, result)
	s.push(snap.PlayerB, protocol.MoveResultType, result)

	board := boardStateFromSnapshot(snap)
	for _, spectator := range g.Spectators() {
		s.push(spectator, protocol.BoardStateType, board)
	}
}

// playAIMove lets the built-in opponent take its turn, then fans out the
// result exactly like a human move.
func (s *Server) playAIMove(g *game.Instance) {
	depth := s.Config.Game.AIDepth
	if override, ok := s.aiDepths.Load(g.ID); ok {
		depth = override.(int)
	}
	if depth <= 0 {
		depth = 4
	}

	pit, err := s.Games.SuggestMove(g.ID, AIHandle, depth)
	if err != nil {
		s.Logger.Warnf("[%s] AI has no move in game %d: %s", s.Name, g.ID, err)
		return
	}
	captured, err := s.Games.PlayMove(g.ID, AIHandle, pit)
	if err != nil {
		s.Logger.Warnf("[%s] AI move rejected in game %d: %s", s.Name, g.ID, err)
		return
	}

	snap := g.Snapshot()
	s.broadcastMove(g, snap, AIHandle, uint32(pit), uint32(captured))
	if snap.Over {
		s.finishGame(snap)
	}
}

// finishGame runs the termination sequence for a terminal board: update
// statistics, drop the instance from the active table, persist the record.
// Each step takes and releases its own lock; this is deliberately not one
// transaction.
func (s *Server) finishGame(snap game.Snapshot) {
	if snap.PlayerA != AIHandle && snap.PlayerB != AIHandle {
		outcome := matchmaking.ResultDraw
		switch snap.Winner {
		case snap.PlayerA:
			outcome = matchmaking.ResultWinA
		case snap.PlayerB:
			outcome = matchmaking.ResultWinB
		}
		if err := s.Matchmaker.ApplyResult(snap.PlayerA, snap.PlayerB, outcome, snap.ScoreA, snap.ScoreB); err != nil {
			s.Logger.Warnf("[%s] failed to record result of game %d: %s", s.Name, snap.ID, err)
		}
	}

	s.Games.Remove(snap.ID)
	s.aiDepths.Delete(snap.ID)

	if s.Store != nil {
		rec := &store.GameRecord{
			ID:      snap.ID,
			PlayerA: snap.PlayerA,
			PlayerB: snap.PlayerB,
			Winner:  snap.Winner,
			Draw:    snap.Draw,
			ScoreA:  snap.ScoreA,
			ScoreB:  snap.ScoreB,
			Board:   store.EncodeBoard(snap.Pits),
		}
		if err := s.Store.SaveGame(rec); err != nil {
			s.Logger.Warnf("[%s] failed to persist game %d: %s", s.Name, snap.ID, err)
		}
		s.persistPlayer(snap.PlayerA)
		s.persistPlayer(snap.PlayerB)
	}

	s.Logger.Infof("[%s] game %d finished (%s %d - %d %s)",
		s.Name, snap.ID, snap.PlayerA, snap.ScoreA, snap.ScoreB, snap.PlayerB)
}

func boardStateFromSnapshot(snap game.Snapshot) *protocol.BoardState {
	board := &protocol.BoardState{GameID: snap.ID}
	for i, seeds := range snap.Pits {
		board.Pits[i] = uint32(seeds)
	}
	board.ScoreA = uint32(snap.ScoreA)
	board.ScoreB = uint32(snap.ScoreB)
	if snap.ToMove == snap.PlayerB {
		board.ToMove = protocol.SideB
	}
	if snap.Over {
		board.GameOver = 1
		protocol.CopyHandle(&board.Winner, snap.Winner)
	}
	return board
}

func (s *Server) handleGetBoard(sess *session.Session, payload []byte) error {
	var req protocol.GetBoard
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}

	g, ok := s.Games.FindGame(req.GameID)
	if !ok {
		return s.sendError(sess, game.ErrGameNotFound)
	}
	return sess.Send(protocol.BoardStateType, boardStateFromSnapshot(g.Snapshot()))
}

func (s *Server) handleListGames(sess *session.Session, ownOnly bool) error {
	var snapshots []game.Snapshot
	if ownOnly {
		snapshots = s.Games.GamesFor(sess.Handle())
	} else {
		snapshots = s.Games.ListGames()
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID < snapshots[j].ID })

	list := &protocol.GameList{}
	for _, snap := range snapshots {
		if list.Count >= protocol.MaxListEntries {
			break
		}
		entry := &list.Games[list.Count]
		entry.GameID = snap.ID
		protocol.CopyHandle(&entry.PlayerA, snap.PlayerA)
		protocol.CopyHandle(&entry.PlayerB, snap.PlayerB)
		entry.Spectators = uint32(snap.Watchers)
		list.Count++
	}
	return sess.Send(protocol.GameListType, list)
}

func (s *Server) handleSpectateGame(sess *session.Session, payload []byte) error {
	var req protocol.SpectateGame
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}
	handle := sess.Handle()

	g, ok := s.Games.FindGame(req.GameID)
	if !ok {
		return s.sendError(sess, game.ErrGameNotFound)
	}

	count, err := g.AddSpectator(handle)
	if err != nil {
		return s.sendError(sess, err)
	}

	ack := &protocol.SpectateAck{GameID: g.ID, SpectatorCount: uint32(count)}
	if err := sess.Send(protocol.SpectateAckType, ack); err != nil {
		return err
	}

	// Everyone already attached to the game hears about the newcomer.
	joined := &protocol.SpectatorJoined{GameID: g.ID, SpectatorCount: uint32(count)}
	protocol.CopyHandle(&joined.Spectator, handle)
	s.push(g.PlayerA, protocol.SpectatorJoinedType, joined)
	s.push(g.PlayerB, protocol.SpectatorJoinedType, joined)
	for _, spectator := range g.Spectators() {
		if spectator != handle {
			s.push(spectator, protocol.SpectatorJoinedType, joined)
		}
	}
	return nil
}

func (s *Server) handleStopSpectate(sess *session.Session, payload []byte) error {
	var req protocol.StopSpectate
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}

	g, ok := s.Games.FindGame(req.GameID)
	if !ok {
		return s.sendError(sess, game.ErrGameNotFound)
	}

	count := g.RemoveSpectator(sess.Handle())
	return sess.Send(protocol.SpectateAckType, &protocol.SpectateAck{GameID: g.ID, SpectatorCount: uint32(count)})
}

func (s *Server) handleSendChat(sess *session.Session, payload []byte) error {
	var req protocol.SendChat
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}
	sender := sess.Handle()
	target := protocol.PaddedString(req.Target[:])

	msg := &protocol.ChatMessage{Message: req.Message}
	protocol.CopyHandle(&msg.Sender, sender)

	if target == "" {
		msg.Broadcast = 1
		for _, other := range s.Sessions.All() {
			if other.Handle() != sender {
				if err := other.Send(protocol.ChatMessageType, msg); err != nil {
					s.Logger.Debugf("[%s] chat push to %s dropped: %s", s.Name, other.Handle(), err)
				}
			}
		}
	} else {
		// A miss just means the recipient is offline.
		s.push(target, protocol.ChatMessageType, msg)
	}

	// Echo back to the sender as the direct response.
	return sess.Send(protocol.ChatMessageType, msg)
}

func (s *Server) handleGetBio(sess *session.Session, payload []byte) error {
	var req protocol.GetBio
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}
	handle := protocol.PaddedString(req.Handle[:])
	if handle == "" {
		handle = sess.Handle()
	}

	p, ok := s.Matchmaker.GetPlayer(handle)
	if !ok {
		return s.sendError(sess, matchmaking.ErrPlayerNotFound)
	}

	resp := &protocol.BioResponse{}
	protocol.CopyHandle(&resp.Handle, p.Handle)
	copy(resp.Bio[:], p.Bio)
	return sess.Send(protocol.BioResponseType, resp)
}

func (s *Server) handleSetBio(sess *session.Session, payload []byte) error {
	var req protocol.SetBio
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}
	handle := sess.Handle()

	if err := s.Matchmaker.SetBio(handle, protocol.PaddedString(req.Bio[:])); err != nil {
		return s.sendError(sess, err)
	}

	resp := &protocol.BioResponse{Bio: req.Bio}
	protocol.CopyHandle(&resp.Handle, handle)
	return sess.Send(protocol.BioResponseType, resp)
}

func (s *Server) handleGetPlayerStats(sess *session.Session, payload []byte) error {
	var req protocol.GetPlayerStats
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}
	handle := protocol.PaddedString(req.Handle[:])
	if handle == "" {
		handle = sess.Handle()
	}

	p, ok := s.Matchmaker.GetPlayer(handle)
	if !ok {
		return s.sendError(sess, matchmaking.ErrPlayerNotFound)
	}

	stats := &protocol.PlayerStats{
		Played:     uint32(p.Played),
		Won:        uint32(p.Won),
		Lost:       uint32(p.Lost),
		Drawn:      uint32(p.Drawn),
		TotalScore: uint32(p.TotalScore),
		Rating:     uint32(p.Rating),
	}
	protocol.CopyHandle(&stats.Handle, p.Handle)
	return sess.Send(protocol.PlayerStatsType, stats)
}

func (s *Server) handleAddFriend(sess *session.Session, payload []byte) error {
	var req protocol.AddFriend
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}

	friend := protocol.PaddedString(req.Handle[:])
	if !protocol.ValidHandle(friend) {
		return s.sendError(sess, errors.New("invalid friend handle"))
	}
	if err := s.Matchmaker.AddFriend(sess.Handle(), friend); err != nil {
		return s.sendError(sess, err)
	}
	return s.handleListFriends(sess)
}

func (s *Server) handleRemoveFriend(sess *session.Session, payload []byte) error {
	var req protocol.RemoveFriend
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}

	if err := s.Matchmaker.RemoveFriend(sess.Handle(), protocol.PaddedString(req.Handle[:])); err != nil {
		return s.sendError(sess, err)
	}
	return s.handleListFriends(sess)
}

func (s *Server) handleListFriends(sess *session.Session) error {
	p, ok := s.Matchmaker.GetPlayer(sess.Handle())
	if !ok {
		return s.sendError(sess, matchmaking.ErrPlayerNotFound)
	}

	list := &protocol.FriendList{}
	for _, friend := range p.Friends {
		if list.Count >= protocol.MaxFriends {
			break
		}
		protocol.CopyHandle(&list.Friends[list.Count], friend)
		list.Count++
	}
	return sess.Send(protocol.FriendListType, list)
}

func (s *Server) handleListSavedGames(sess *session.Session) error {
	if s.Store == nil {
		return s.sendError(sess, errors.New("saved games are not available"))
	}

	recs, err := s.Store.ListGames()
	if err != nil {
		return s.sendError(sess, err)
	}

	list := &protocol.SavedGameList{}
	for _, rec := range recs {
		if list.Count >= protocol.MaxListEntries {
			break
		}
		entry := &list.Games[list.Count]
		entry.GameID = rec.ID
		protocol.CopyHandle(&entry.PlayerA, rec.PlayerA)
		protocol.CopyHandle(&entry.PlayerB, rec.PlayerB)
		protocol.CopyHandle(&entry.Winner, rec.Winner)
		list.Count++
	}
	return sess.Send(protocol.SavedGameListType, list)
}

func (s *Server) handleViewSavedGame(sess *session.Session, payload []byte) error {
	var req protocol.ViewSavedGame
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}
	if s.Store == nil {
		return s.sendError(sess, errors.New("saved games are not available"))
	}

	rec, err := s.Store.LoadGame(req.GameID)
	if err != nil {
		return s.sendError(sess, err)
	}

	saved := &protocol.SavedGame{
		GameID: rec.ID,
		ScoreA: uint32(rec.ScoreA),
		ScoreB: uint32(rec.ScoreB),
	}
	protocol.CopyHandle(&saved.PlayerA, rec.PlayerA)
	protocol.CopyHandle(&saved.PlayerB, rec.PlayerB)
	protocol.CopyHandle(&saved.Winner, rec.Winner)
	for i, seeds := range store.DecodeBoard(rec.Board) {
		saved.Pits[i] = uint32(seeds)
	}
	return sess.Send(protocol.SavedGameType, saved)
}

func (s *Server) handleStartAIGame(sess *session.Session, payload []byte) error {
	var req protocol.StartAIGame
	if err := decodePayload(payload, &req); err != nil {
		return s.sendError(sess, err)
	}

	// The requester always takes side A and moves first.
	g, err := s.startGame(sess, sess.Handle(), AIHandle)
	if err != nil || g == nil {
		return err
	}
	if req.Depth > 0 {
		s.aiDepths.Store(g.ID, int(req.Depth))
	}
	return nil
}
