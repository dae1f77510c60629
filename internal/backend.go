package internal

import (
	"context"

	"github.com/awale-net/awale/internal/protocol"
	"github.com/awale-net/awale/internal/session"
)

// Backend is an interface for a server that handles a specific set of client
// interactions over a negotiated session.
type Backend interface {
	// Name returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// NextSessionID allocates an identifier for a freshly negotiated session.
	NextSessionID() uint32

	// StartSession performs any initialization necessary to begin
	// communicating with the client, namely consuming the Connect message and
	// registering the session.
	StartSession(sess *session.Session) error

	// Handle is the main entry point for processing client messages. It's
	// responsible for generally handling all messages from a client as well
	// as sending any responses.
	Handle(ctx context.Context, sess *session.Session, header protocol.Header, payload []byte) error

	// CloseSession deregisters the session and tears down its channels. It
	// must be safe to call for sessions that never finished StartSession.
	CloseSession(sess *session.Session)
}
