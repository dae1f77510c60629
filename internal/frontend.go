package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awale-net/awale/internal/core"
	awaledebug "github.com/awale-net/awale/internal/core/debug"
	"github.com/awale-net/awale/internal/handshake"
	"github.com/awale-net/awale/internal/protocol"
	"github.com/awale-net/awale/internal/session"
)

// receiveWait bounds each blocking read in the dispatch loop. When it
// elapses without a message the outbound channel is probed so dead peers
// are detected even if they never send anything.
const receiveWait = 30 * time.Second

// frontend implements the concurrent client connection logic.
//
// Connections are accepted on the negotiation port, upgraded to a session
// channel pair via the handshake, and handed to a Backend instance,
// abstracting the lower level connection details away from the Backends.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger

	activeSessions int32
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp4", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp4", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), f.Address)

	connections := make(chan *net.TCPConn)
	go func() {
		for {
			// Poll until we can accept more clients.
			for int(atomic.LoadInt32(&f.activeSessions)) >= f.Config.MaxConnections {
				time.Sleep(time.Second)
			}

			connection, err := socket.AcceptTCP()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			connections <- connection
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			_ = socket.Close()
			break handleLoop
		case connection := <-connections:
			clientWg.Add(1)
			// Note: If there is eventually a need to implement worker pooling rather than spawning
			// new goroutines for each client, this is where it should be implemented.
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient upgrades a negotiation connection to a session channel pair
// and attempts to initiate a session via the Backend. If it succeeds, the
// goroutine moves into the message processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	peer := connection.RemoteAddr().String()
	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), peer)

	readConn, writeConn, err := handshake.Negotiate(connection, handshake.DefaultTimeout)
	if err != nil {
		f.Logger.Warnf("[%s] handshake with %s failed: %s", f.Backend.Identifier(), peer, err)
		return
	}

	sess := session.New(f.Backend.NextSessionID(), readConn, writeConn)

	atomic.AddInt32(&f.activeSessions, 1)
	defer atomic.AddInt32(&f.activeSessions, -1)

	// Installed before StartSession so that a panic anywhere in this
	// session's lifetime tears down only this connection.
	defer f.closeSessionAndRecover(f.Backend.Identifier(), sess)

	if err := f.Backend.StartSession(sess); err != nil {
		f.Logger.Warnf("[%s] session setup for %s failed: %s", f.Backend.Identifier(), peer, err)
		return
	}

	f.processMessages(ctx, sess)
}

// processMessages starts a blocking loop dedicated to reading messages sent
// by a client and only returns once the session has closed.
func (f *frontend) processMessages(ctx context.Context, sess *session.Session) {
	for {
		select {
		case <-ctx.Done():
			// For now just allow the deferred function to close the session.
			return
		default:
		}

		header, payload, err := sess.Receive(receiveWait)
		if errors.Is(err, protocol.ErrTimeout) {
			// Nothing inbound for a while; make sure the peer is alive.
			if err := sess.Probe(); err != nil {
				f.Logger.Infof("[%s] %s stopped responding", f.Backend.Identifier(), sess.Handle())
				return
			}
			continue
		} else if err != nil {
			return
		}

		if f.Config.Debugging.PacketLoggingEnabled {
			awaledebug.PrintFrame(awaledebug.PrintFrameParams{
				Writer:      os.Stdout,
				ServerType:  f.Backend.Identifier(),
				ClientFrame: true,
				Header:      header,
				Payload:     payload,
			})
		}

		if err := f.Backend.Handle(ctx, sess, header, payload); err != nil {
			return
		}
	}
}

// closeSessionAndRecover is the failsafe that catches any panics, disconnects the
// client, and removes them from the registry regardless of the state of the session.
func (f *frontend) closeSessionAndRecover(serverName string, sess *session.Session) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			sess.RemoteAddr(), err, debug.Stack())
	}

	f.Backend.CloseSession(sess)

	f.Logger.Infof("[%s] disconnected client %s", serverName, sess.RemoteAddr())
}
