// The gameserver package is the GAME backend: the per-connection dispatch
// loop and the request handlers behind it. One instance owns the three
// independently locked registries (sessions, matchmaking, games) and is
// passed to every handler, so tests can run several servers in one process.
package gameserver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/awale-net/awale/internal/core"
	"github.com/awale-net/awale/internal/game"
	"github.com/awale-net/awale/internal/matchmaking"
	"github.com/awale-net/awale/internal/protocol"
	"github.com/awale-net/awale/internal/rules"
	"github.com/awale-net/awale/internal/session"
	"github.com/awale-net/awale/internal/store"
)

// AIHandle is the reserved handle the built-in minimax opponent plays
// under. The leading @ keeps it out of the space of valid player handles.
const AIHandle = "@minimax"

const connectTimeout = 10 * time.Second

// errClientDisconnected signals a clean disconnect request; the frontend
// exits the dispatch loop without logging it as a failure.
var errClientDisconnected = errors.New("client requested disconnect")

// ProtocolVersion is checked against the version string in Connect frames.
// Only the major component has to match.
const ProtocolVersion = "1.0"

// Server implements the GAME backend.
type Server struct {
	Name   string
	Config *core.Config
	Logger *logrus.Logger

	Sessions   *session.Registry
	Matchmaker *matchmaking.Matchmaker
	Games      *game.Manager
	Store      *store.Store

	nextSessionID uint32
	titleCaser    cases.Caser

	// aiDepths holds per-game search depth overrides for AI games.
	aiDepths sync.Map
}

func (s *Server) Identifier() string {
	return s.Name
}

// Init wires up any registries the controller did not inject and reloads
// the persisted player directory.
func (s *Server) Init(_ context.Context) error {
	s.titleCaser = cases.Title(language.English)

	if s.Sessions == nil {
		s.Sessions = session.NewRegistry(s.Config.MaxConnections)
	}
	if s.Matchmaker == nil {
		s.Matchmaker = matchmaking.New(matchmaking.Config{
			MaxChallenges:    s.Config.Matchmaking.MaxChallenges,
			ChallengeMaxAge:  time.Duration(s.Config.Matchmaking.ChallengeMaxAgeSeconds) * time.Second,
			DeclineThreshold: s.Config.Matchmaking.DeclineThreshold,
			Cooldown:         time.Duration(s.Config.Matchmaking.ChallengeCooldownSeconds) * time.Second,
		})
	}
	if s.Games == nil {
		s.Games = game.NewManager(rules.Engine{}, s.Config.Game.MaxGames, s.Config.Game.MaxSpectators)
	}

	if s.Store != nil {
		players, err := s.Store.LoadPlayers()
		if err != nil {
			return err
		}
		for _, rec := range players {
			s.Matchmaker.RestorePlayer(playerFromRecord(rec))
		}
		s.Logger.Infof("[%s] restored %d player directory entries", s.Name, len(players))
	}
	return nil
}

func playerFromRecord(rec store.PlayerRecord) matchmaking.Player {
	p := matchmaking.Player{
		Handle:     rec.Handle,
		IP:         rec.IP,
		Played:     rec.Played,
		Won:        rec.Won,
		Lost:       rec.Lost,
		Drawn:      rec.Drawn,
		TotalScore: rec.TotalScore,
		Rating:     rec.Rating,
		Bio:        rec.Bio,
		LastSeen:   rec.LastSeen,
	}
	if rec.Friends != "" {
		p.Friends = strings.Split(rec.Friends, "\n")
	}
	return p
}

func recordFromPlayer(p matchmaking.Player) store.PlayerRecord {
	return store.PlayerRecord{
		Handle:     p.Handle,
		IP:         p.IP,
		Played:     p.Played,
		Won:        p.Won,
		Lost:       p.Lost,
		Drawn:      p.Drawn,
		TotalScore: p.TotalScore,
		Rating:     p.Rating,
		Bio:        p.Bio,
		Friends:    strings.Join(p.Friends, "\n"),
		LastSeen:   p.LastSeen,
	}
}

// NextSessionID allocates a server-unique session id.
func (s *Server) NextSessionID() uint32 {
	return atomic.AddUint32(&s.nextSessionID, 1)
}

// StartSession authenticates a freshly negotiated channel pair: it consumes
// the Connect frame, validates the handle, registers the session and
// acknowledges. The session becomes reachable for pushes the moment it is
// registered.
func (s *Server) StartSession(sess *session.Session) error {
	header, payload, err := sess.Receive(connectTimeout)
	if err != nil {
		return err
	}
	if header.Type != protocol.ConnectType {
		return s.refuseConnect(sess, "expected a Connect message")
	}

	var connect protocol.Connect
	if err := decodePayload(payload, &connect); err != nil {
		return s.refuseConnect(sess, "malformed connect payload")
	}
	handle := protocol.PaddedString(connect.Handle[:])
	version := protocol.PaddedString(connect.Version[:])

	if !protocol.ValidHandle(handle) {
		return s.refuseConnect(sess, "invalid handle")
	}
	if !compatibleVersion(version) {
		return s.refuseConnect(sess, "unsupported protocol version")
	}

	if err := s.Sessions.Add(handle, sess); err != nil {
		switch {
		case errors.Is(err, session.ErrDuplicateHandle):
			return s.refuseConnect(sess, "handle is already connected")
		case errors.Is(err, session.ErrRegistryFull):
			return s.refuseConnect(sess, "server is full")
		}
		return err
	}

	sess.SetHandle(handle)
	sess.SetAuthenticated(true)
	s.Matchmaker.UpsertPlayer(handle, sess.RemoteIP())

	ack := &protocol.ConnectAck{Success: 1, SessionID: sess.ID()}
	copy(ack.Message[:], "welcome")
	if err := sess.Send(protocol.ConnectAckType, ack); err != nil {
		s.CloseSession(sess)
		return err
	}

	s.Logger.Infof("[%s] player %s connected (session %d)", s.Name, handle, sess.ID())
	return nil
}

func compatibleVersion(version string) bool {
	if version == "" {
		return false
	}
	major := strings.SplitN(version, ".", 2)[0]
	return major == strings.SplitN(ProtocolVersion, ".", 2)[0]
}

func (s *Server) refuseConnect(sess *session.Session, reason string) error {
	ack := &protocol.ConnectAck{Success: 0}
	copy(ack.Message[:], reason)
	_ = sess.Send(protocol.ConnectAckType, ack)
	return errors.New("connect refused: " + reason)
}

// CloseSession runs the disconnect path: deregister first so concurrent
// pushers go quiet, then clean up matchmaking and spectator state, then
// tear down the channels.
func (s *Server) CloseSession(sess *session.Session) {
	handle := sess.Handle()
	if handle != "" {
		s.Sessions.Remove(handle)
		s.Matchmaker.MarkDisconnected(handle)
		s.Matchmaker.DropPlayer(handle)
		s.Games.DropSpectator(handle)
		s.persistPlayer(handle)
	}
	sess.Close()

	if handle != "" {
		s.Logger.Infof("[%s] player %s disconnected", s.Name, handle)
	}
}

// persistPlayer saves one directory entry best-effort.
func (s *Server) persistPlayer(handle string) {
	if s.Store == nil {
		return
	}
	p, ok := s.Matchmaker.GetPlayer(handle)
	if !ok {
		return
	}
	rec := recordFromPlayer(p)
	if err := s.Store.SavePlayer(&rec); err != nil {
		s.Logger.Warnf("[%s] failed to persist player %s: %s", s.Name, handle, err)
	}
}

// SweepChallenges expires stale challenges and notifies both parties
// best-effort. The controller calls this on a timer.
func (s *Server) SweepChallenges() {
	for _, c := range s.Matchmaker.Sweep() {
		s.Logger.Infof("[%s] swept stale challenge %d (%s -> %s)", s.Name, c.ID, c.Challenger, c.Opponent)
		declined := &protocol.ChallengeDeclined{ChallengeID: c.ID}
		protocol.CopyHandle(&declined.Opponent, c.Opponent)
		s.push(c.Challenger, protocol.ChallengeDeclinedType, declined)
	}
}

// push delivers a frame to another player's session. A registry miss or a
// closed session means the player is offline; pushes are at-most-effort and
// never fail the initiating request.
func (s *Server) push(handle string, msgType uint32, payload interface{}) {
	target, ok := s.Sessions.Find(handle)
	if !ok {
		return
	}
	if err := target.Send(msgType, payload); err != nil {
		s.Logger.Debugf("[%s] push to %s dropped: %s", s.Name, handle, err)
	}
}

// sendError converts a validation or registry failure into an Error frame
// for the requester. The connection stays up.
func (s *Server) sendError(sess *session.Session, err error) error {
	frame := &protocol.Error{Code: errorCode(err)}
	copy(frame.Message[:], s.titleCaser.String(err.Error()))
	return sess.Send(protocol.ErrorType, frame)
}

func errorCode(err error) uint32 {
	switch {
	case errors.Is(err, rules.ErrNotYourTurn):
		return protocol.ErrCodeNotYourTurn
	case errors.Is(err, rules.ErrWrongSide):
		return protocol.ErrCodeWrongSide
	case errors.Is(err, rules.ErrEmptyPit):
		return protocol.ErrCodeEmptyPit
	case errors.Is(err, rules.ErrStarveViolation):
		return protocol.ErrCodeStarveViolation
	case errors.Is(err, game.ErrGameNotFound), errors.Is(err, store.ErrNotFound):
		return protocol.ErrCodeGameNotFound
	case errors.Is(err, game.ErrGameAlreadyExists):
		return protocol.ErrCodeGameAlreadyExists
	case errors.Is(err, game.ErrPlayerNotInGame), errors.Is(err, matchmaking.ErrPlayerNotFound):
		return protocol.ErrCodePlayerNotFound
	case errors.Is(err, game.ErrGameCapacity),
		errors.Is(err, game.ErrSpectatorCapacity),
		errors.Is(err, matchmaking.ErrChallengeCapacity),
		errors.Is(err, matchmaking.ErrFriendCapacity),
		errors.Is(err, session.ErrRegistryFull):
		return protocol.ErrCodeCapacityExceeded
	case errors.Is(err, matchmaking.ErrDuplicateChallenge), errors.Is(err, session.ErrDuplicateHandle):
		return protocol.ErrCodeDuplicateEntry
	case errors.Is(err, protocol.ErrTimeout):
		return protocol.ErrCodeTimeout
	case errors.Is(err, errMalformedPayload),
		errors.Is(err, protocol.ErrMalformedHeader),
		errors.Is(err, protocol.ErrOversizedPayload):
		return protocol.ErrCodeSerializationError
	default:
		return protocol.ErrCodeInvalidArgument
	}
}
