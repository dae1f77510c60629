// The discovery package implements the broadcast probe clients use to find
// a server on the local subnet, and the responder that answers it. The
// exchange only yields an address; the handshake package turns that into a
// working channel pair.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RequestLiteral is the fixed datagram clients broadcast to locate a server.
const RequestLiteral = "AWALE_DISCOVER"

// DefaultServerTag prefixes discovery responses: "<tag>:<tcp-port>".
const DefaultServerTag = "AWALE_SERVER"

const maxDatagramSize = 256

// Responder answers broadcast probes with the TCP port on which the server
// negotiates handshakes.
type Responder struct {
	Logger *logrus.Logger
	// Tag identifies this server in responses.
	Tag string
	// TCPPort is the advertised handshake negotiation port.
	TCPPort int

	conn *net.UDPConn
}

// Start binds the UDP port and answers probes until the context is
// cancelled. The worker goroutine is tracked on wg.
func (r *Responder) Start(ctx context.Context, port int, wg *sync.WaitGroup) error {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("error resolving discovery address: %w", err)
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("error binding discovery port: %w", err)
	}
	r.conn = conn

	if r.Tag == "" {
		r.Tag = DefaultServerTag
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		_ = conn.Close()
	}()

	wg.Add(1)
	go r.respondLoop(wg)

	r.Logger.Infof("[DISCOVERY] answering probes on udp port %d", r.Port())
	return nil
}

// Port returns the bound UDP port, useful when started with port 0.
func (r *Responder) Port() int {
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

func (r *Responder) respondLoop(wg *sync.WaitGroup) {
	defer wg.Done()

	buffer := make([]byte, maxDatagramSize)
	for {
		n, peer, err := r.conn.ReadFromUDP(buffer)
		if err != nil {
			// Closed by the context watcher on shutdown.
			return
		}

		if string(buffer[:n]) != RequestLiteral {
			r.Logger.Debugf("[DISCOVERY] ignoring unknown probe from %s", peer)
			continue
		}

		response := fmt.Sprintf("%s:%d", r.Tag, r.TCPPort)
		if _, err := r.conn.WriteToUDP([]byte(response), peer); err != nil {
			r.Logger.Warnf("[DISCOVERY] failed to answer %s: %s", peer, err)
		}
	}
}

// Resolve probes target (a UDP host:port, typically the subnet broadcast
// address) and returns the server's handshake address as host:port. The
// server host comes from the response's source address, the port from the
// response body.
func Resolve(target string, timeout time.Duration) (string, error) {
	targetAddr, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return "", fmt.Errorf("error resolving probe target: %w", err)
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return "", fmt.Errorf("error binding probe socket: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}

	if _, err := conn.WriteToUDP([]byte(RequestLiteral), targetAddr); err != nil {
		return "", fmt.Errorf("error sending probe: %w", err)
	}

	buffer := make([]byte, maxDatagramSize)
	n, peer, err := conn.ReadFromUDP(buffer)
	if err != nil {
		return "", fmt.Errorf("no discovery response: %w", err)
	}

	port, err := parseResponse(string(buffer[:n]))
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(peer.IP.String(), strconv.Itoa(port)), nil
}

// parseResponse extracts the TCP port from a "<tag>:<port>" response.
func parseResponse(response string) (int, error) {
	idx := strings.LastIndex(response, ":")
	if idx < 0 {
		return 0, fmt.Errorf("malformed discovery response %q", response)
	}
	port, err := strconv.Atoi(response[idx+1:])
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("malformed discovery response %q", response)
	}
	return port, nil
}
