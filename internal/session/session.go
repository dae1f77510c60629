// The session package tracks the live connection state for each connected
// player: the two directional channels negotiated by the handshake and the
// registry used to push frames to arbitrary connected players.
package session

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/awale-net/awale/internal/protocol"
)

// ErrSessionClosed is returned by Send once a session has been torn down.
// Pushers treat it the same as an unreachable player.
var ErrSessionClosed = errors.New("session is closed")

const probeWriteTimeout = 2 * time.Second

// Session is the per-connection endpoint for one player. The server always
// reads requests from readConn and always writes responses and pushes to
// writeConn, the two TCP connections established by the handshake.
type Session struct {
	id        uint32
	readConn  net.Conn
	writeConn net.Conn
	createdAt time.Time

	mu            sync.Mutex
	handle        string
	authenticated bool
	lastActive    time.Time
	sequence      uint32
	closed        bool
}

// New wraps a negotiated channel pair in a Session.
func New(id uint32, readConn, writeConn net.Conn) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		readConn:  readConn,
		writeConn: writeConn,
		createdAt: now,
		lastActive: now,
	}
}

func (s *Session) ID() uint32           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) RemoteAddr() string {
	return s.readConn.RemoteAddr().String()
}

// RemoteIP returns the peer address without the port.
func (s *Session) RemoteIP() string {
	if host, _, err := net.SplitHostPort(s.RemoteAddr()); err == nil {
		return host
	}
	return s.RemoteAddr()
}

func (s *Session) Handle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Session) SetHandle(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Send writes one frame on the outbound channel, assigning the next
// sequence number. Sending on a closed session returns ErrSessionClosed
// rather than touching the dead connection.
func (s *Session) Send(msgType uint32, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.sequence++
	return protocol.WriteFrame(s.writeConn, msgType, s.sequence, payload)
}

// Receive blocks for up to wait for the next inbound frame. A
// protocol.ErrTimeout result leaves the connection usable.
func (s *Session) Receive(wait time.Duration) (protocol.Header, []byte, error) {
	header, payload, err := protocol.ReadFrameTimeout(s.readConn, wait)
	if err == nil {
		s.mu.Lock()
		s.lastActive = time.Now()
		s.mu.Unlock()
	}
	return header, payload, err
}

// Probe performs a bounded liveness check on the outbound channel between
// messages. A failed probe means the peer is gone and the session should be
// torn down.
func (s *Session) Probe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	if err := s.writeConn.SetWriteDeadline(time.Now().Add(probeWriteTimeout)); err != nil {
		return err
	}
	defer s.writeConn.SetWriteDeadline(time.Time{})

	s.sequence++
	return protocol.WriteFrame(s.writeConn, protocol.PingType, s.sequence, nil)
}

// Close tears down both channels. It is idempotent and safe to call
// concurrently with Send; in-flight pushers get ErrSessionClosed afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	_ = s.readConn.Close()
	_ = s.writeConn.Close()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
