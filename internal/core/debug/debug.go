package debug

import (
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/awale-net/awale/internal/protocol"
)

// StartPprofServer starts the default pprof HTTP server that can be accessed
// via localhost to get runtime information about the server.
// See https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// PrintFrameParams is the set of arguments for PrintFrame.
type PrintFrameParams struct {
	Writer      io.Writer
	ServerType  string
	ClientFrame bool
	Header      protocol.Header
	Payload     []byte
}

// PrintFrame writes a decoded header line and a hex/ASCII dump of the
// payload, used when packet logging is enabled.
func PrintFrame(params PrintFrameParams) {
	direction := "server->client"
	if params.ClientFrame {
		direction = "client->server"
	}
	fmt.Fprintf(params.Writer, "[%s] %s type=%d seq=%d len=%d\n",
		params.ServerType, direction, params.Header.Type, params.Header.Sequence, params.Header.Length)

	for offset := 0; offset < len(params.Payload); offset += 16 {
		end := offset + 16
		if end > len(params.Payload) {
			end = len(params.Payload)
		}
		row := params.Payload[offset:end]

		var hexCol, asciiCol strings.Builder
		for _, b := range row {
			fmt.Fprintf(&hexCol, "%02x ", b)
			if b >= 0x20 && b < 0x7f {
				asciiCol.WriteByte(b)
			} else {
				asciiCol.WriteByte('.')
			}
		}
		fmt.Fprintf(params.Writer, "(%04x) %-48s %s\n", offset, hexCol.String(), asciiCol.String())
	}
}
