// The handshake package establishes the session channel pair. One socket
// pressed into both continuous reading and ad-hoc pushing is awkward to
// reason about, so each session gets two independent TCP connections, one
// per direction, negotiated over the short-lived discovery connection.
package handshake

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultTimeout bounds each individual step of the negotiation.
const DefaultTimeout = 10 * time.Second

// ErrHandshakeAborted wraps any step failure. The probed ports are stale at
// that point; callers must restart from discovery rather than retry them.
var ErrHandshakeAborted = errors.New("handshake aborted")

// probePort reserves an ephemeral TCP port by binding and immediately
// releasing it. The port may be stolen by another process before we rebind;
// that race is detected by the rebind failing and aborts the handshake.
func probePort() (int, error) {
	l, err := net.Listen("tcp4", ":0")
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, err
	}
	return port, nil
}

func writePort(conn net.Conn, port int, deadline time.Time) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(port))
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := conn.Write(b[:])
	return err
}

func readPort(conn net.Conn, deadline time.Time) (int, error) {
	var b [4]byte
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	for read := 0; read < len(b); {
		n, err := conn.Read(b[read:])
		if err != nil {
			return 0, err
		}
		read += n
	}
	port := int(binary.LittleEndian.Uint32(b[:]))
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("peer sent invalid port %d", port)
	}
	return port, nil
}

// Negotiate runs the server side of the dual-socket handshake over an
// accepted discovery connection. On success it returns the two live
// channels: readConn carries client requests, writeConn carries responses
// and pushes. On any failure every partially opened socket is closed.
func Negotiate(discoveryConn net.Conn, timeout time.Duration) (readConn, writeConn net.Conn, err error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	defer discoveryConn.Close()

	clientHost, _, err := net.SplitHostPort(discoveryConn.RemoteAddr().String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad peer address: %s", ErrHandshakeAborted, err)
	}

	// The client opens with the ephemeral port it has probed for itself.
	clientPort, err := readPort(discoveryConn, deadline)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading client port: %s", ErrHandshakeAborted, err)
	}

	// Probe our own ephemeral port and hand it back.
	serverPort, err := probePort()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: probing server port: %s", ErrHandshakeAborted, err)
	}
	if err := writePort(discoveryConn, serverPort, deadline); err != nil {
		return nil, nil, fmt.Errorf("%w: sending server port: %s", ErrHandshakeAborted, err)
	}

	// The discovery connection is done; the channel pair replaces it. If
	// another process grabbed the probed port in the meantime the rebind
	// fails and the whole handshake is abandoned.
	listener, err := net.Listen("tcp4", fmt.Sprintf(":%d", serverPort))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: probed port was reused: %s", ErrHandshakeAborted, err)
	}
	defer listener.Close()

	// The connection the client opens to us is the server-to-client
	// direction: we only ever write on it.
	if dl, ok := listener.(*net.TCPListener); ok {
		_ = dl.SetDeadline(deadline)
	}
	writeConn, err = listener.Accept()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: waiting for client connect: %s", ErrHandshakeAborted, err)
	}

	// And we dial the client's probed port for the client-to-server
	// direction: we only ever read from it.
	dialer := net.Dialer{Deadline: deadline}
	readConn, err = dialer.Dial("tcp4", net.JoinHostPort(clientHost, fmt.Sprintf("%d", clientPort)))
	if err != nil {
		writeConn.Close()
		return nil, nil, fmt.Errorf("%w: connecting to client port: %s", ErrHandshakeAborted, err)
	}

	return readConn, writeConn, nil
}

// Dial runs the client side of the handshake against a server's advertised
// negotiation address (as returned by discovery.Resolve). On success,
// readConn carries server pushes and responses, writeConn carries this
// client's requests.
func Dial(serverAddr string, timeout time.Duration) (readConn, writeConn net.Conn, err error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	dialer := net.Dialer{Deadline: deadline}
	discoveryConn, err := dialer.Dial("tcp4", serverAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dialing negotiation port: %s", ErrHandshakeAborted, err)
	}
	defer discoveryConn.Close()

	clientPort, err := probePort()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: probing client port: %s", ErrHandshakeAborted, err)
	}
	if err := writePort(discoveryConn, clientPort, deadline); err != nil {
		return nil, nil, fmt.Errorf("%w: sending client port: %s", ErrHandshakeAborted, err)
	}

	serverPort, err := readPort(discoveryConn, deadline)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading server port: %s", ErrHandshakeAborted, err)
	}

	// Rebind our probed port before dialing the server so its connect
	// attempt never races our listener.
	listener, err := net.Listen("tcp4", fmt.Sprintf(":%d", clientPort))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: probed port was reused: %s", ErrHandshakeAborted, err)
	}
	defer listener.Close()

	serverHost, _, err := net.SplitHostPort(discoveryConn.RemoteAddr().String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad server address: %s", ErrHandshakeAborted, err)
	}

	// The server may not be listening yet; retry until the deadline.
	readConn, err = dialWithRetry(serverHost, serverPort, deadline)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: connecting to server port: %s", ErrHandshakeAborted, err)
	}

	if dl, ok := listener.(*net.TCPListener); ok {
		_ = dl.SetDeadline(deadline)
	}
	writeConn, err = listener.Accept()
	if err != nil {
		readConn.Close()
		return nil, nil, fmt.Errorf("%w: waiting for server connect: %s", ErrHandshakeAborted, err)
	}

	return readConn, writeConn, nil
}

func dialWithRetry(host string, port int, deadline time.Time) (net.Conn, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	var lastErr error
	for time.Now().Before(deadline) {
		dialer := net.Dialer{Deadline: deadline}
		conn, err := dialer.Dial("tcp4", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	return nil, lastErr
}
