//go:build pcap
// +build pcap

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/riggy/internal/monitoring"
)

// ReplayPCAP feeds the UDP payloads addressed to port in a capture file
// through l, as fast as they can be read. It is only available when built
// with the pcap tag.
func (l *Loop) ReplayPCAP(ctx context.Context, path string, port int) error {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", port)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filter, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	count := 0
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("PCAP replay cancelled after %d packets", count)
			return nil
		case packet := <-source.Packets():
			if packet == nil {
				monitoring.Logf("PCAP replay complete: %d packets in %v", count, time.Since(start))
				return nil
			}
			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			count++
			l.HandleDatagram(udp.Payload)
		}
	}
}
