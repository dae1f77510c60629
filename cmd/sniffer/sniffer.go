package main

import (
	"bufio"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/gopacket"

	"github.com/awale-net/awale/internal/core/debug"
	"github.com/awale-net/awale/internal/protocol"
)

// flowBuffer accumulates the TCP payload bytes of one direction of one
// connection until at least a full frame is available.
type flowBuffer struct {
	data []byte
}

type sniffer struct {
	Writer *bufio.Writer

	flows map[string]*flowBuffer
}

func (s *sniffer) startReading(packetChan chan gopacket.Packet) {
	s.flows = make(map[string]*flowBuffer)

	for packet := range packetChan {
		transport := packet.TransportLayer()
		app := packet.ApplicationLayer()
		if transport == nil || app == nil {
			continue
		}

		flow := transport.TransportFlow()
		key := flow.Src().String() + ">" + flow.Dst().String()
		s.handleSegment(key, app.Payload())
	}
}

// handleSegment appends one TCP segment to its flow and emits every complete
// frame now available. Frames may span segments and multiple frames may share
// one segment.
func (s *sniffer) handleSegment(key string, data []byte) {
	buf, ok := s.flows[key]
	if !ok {
		buf = &flowBuffer{}
		s.flows[key] = buf
	}
	buf.data = append(buf.data, data...)

	for len(buf.data) >= protocol.HeaderSize {
		header, err := protocol.DecodeHeader(buf.data[:protocol.HeaderSize])
		if err != nil {
			// Not frame-aligned (or not our protocol); drop the flow state
			// and resynchronize on the next connection.
			delete(s.flows, key)
			return
		}

		frameSize := protocol.HeaderSize + int(header.Length)
		if len(buf.data) < frameSize {
			return
		}

		s.emitFrame(key, header, buf.data[protocol.HeaderSize:frameSize])
		buf.data = buf.data[frameSize:]
	}
}

func (s *sniffer) emitFrame(key string, header protocol.Header, payload []byte) {
	fmt.Fprintf(s.Writer, "%s %s\n", key, messageName(header.Type))

	dump := payload
	if *truncate && len(dump) > truncateFrameLimit {
		dump = dump[:truncateFrameLimit]
	}
	debug.PrintFrame(debug.PrintFrameParams{
		Writer:      s.Writer,
		ServerType:  "SNIFF",
		ClientFrame: false,
		Header:      header,
		Payload:     dump,
	})

	// With -v, also decode payloads we recognize into their structs.
	if *verbose {
		if build, ok := messagePayloads[header.Type]; ok && len(payload) > 0 {
			if target := decodePayload(payload, build); target != nil {
				fmt.Fprint(s.Writer, spew.Sdump(target))
			}
		}
	}
	s.Writer.Flush()
}

// decodePayload tolerates captured frames whose payloads don't match the
// expected layout (foreign traffic on the same ports).
func decodePayload(payload []byte, build func() interface{}) (target interface{}) {
	defer func() {
		if recover() != nil {
			target = nil
		}
	}()
	target = build()
	protocol.StructFromBytes(payload, target)
	return target
}
