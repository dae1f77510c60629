// The sniffer command captures and pretty prints awale protocol traffic off
// the wire, mostly useful for debugging client implementations.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

var (
	device   = flag.String("d", "en0", "Device on which to listen for packets")
	truncate = flag.Bool("t", false, "Truncate long payloads in the output")
	verbose  = flag.Bool("v", false, "Decode and dump recognized payloads")
)

const truncateFrameLimit = 128

func main() {
	flag.Parse()

	if getDeviceIP() == "" {
		exit("invalid device: %s", *device)
	}

	handle, err := pcap.OpenLive(*device, math.MaxInt32, false, pcap.BlockForever)
	if err != nil {
		exit("error opening handle: %v", err)
	}
	// The channel pairs live on ephemeral ports, so the best we can do
	// generically is to skip the ports that are definitely not ours.
	_ = handle.SetBPFFilter("tcp and not port 443 and not port 80")

	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()

	s := &sniffer{Writer: writer}
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	s.startReading(packetSource.Packets())
}

func exit(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

func getDeviceIP() string {
	devs, _ := pcap.FindAllDevs()
	for _, dev := range devs {
		if dev.Name == *device {
			for _, address := range dev.Addresses {
				return address.IP.String()
			}
		}
	}
	return ""
}
