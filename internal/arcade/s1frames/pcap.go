package s1frames

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/slicebot/slicebot/internal/security"
	"github.com/slicebot/slicebot/internal/timeutil"
)

// pcapSnapLen is the per-packet capture limit written to pcap headers.
const pcapSnapLen = 65536

// PacketLog writes feed datagrams to a pcap file. Each payload is wrapped
// in a synthetic Ethernet/IPv4/UDP envelope so standard capture tools can
// dissect the result.
type PacketLog struct {
	f    *os.File
	w    *pcapgo.Writer
	port int
}

// NewPacketLog creates a pcap file at path recording datagrams addressed
// to port.
func NewPacketLog(path string, port int, extraDirs ...string) (*PacketLog, error) {
	if err := security.ValidateExportPath(path, extraDirs...); err != nil {
		return nil, fmt.Errorf("pcap path: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap: %w", err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(pcapSnapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &PacketLog{f: f, w: w, port: port}, nil
}

// LogPayload appends one datagram payload stamped with ts.
func (p *PacketLog) LogPayload(payload []byte, ts time.Time) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(127, 0, 0, 1),
		DstIP:    net.IPv4(127, 0, 0, 1),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(p.port),
		DstPort: layers.UDPPort(p.port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("udp checksum layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}

	data := buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	return p.w.WritePacket(ci, data)
}

// Close closes the pcap file.
func (p *PacketLog) Close() error {
	return p.f.Close()
}

// PCAPSource replays a feed packet capture. Packets that are not UDP
// datagrams on the configured port, or whose payload does not decode, are
// skipped. Pacing reproduces capture timestamps the same way ReplaySource
// does.
type PCAPSource struct {
	f     *os.File
	r     *pcapgo.Reader
	port  int
	clock timeutil.Clock
	rate  float64

	lastTS   time.Time
	lastWall time.Time
}

// NewPCAPSource opens the capture at path, filtering to UDP datagrams on
// port. port 0 accepts any destination port; rate and clock behave as in
// NewReplaySource.
func NewPCAPSource(path string, port int, clock timeutil.Clock, rate float64, extraDirs ...string) (*PCAPSource, error) {
	if err := security.ValidateExportPath(path, extraDirs...); err != nil {
		return nil, fmt.Errorf("pcap path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap: %w", err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read pcap header: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	debugf("replaying capture %s at rate %.2f", path, rate)
	return &PCAPSource{f: f, r: r, port: port, clock: clock, rate: rate}, nil
}

// Next returns the next frame in the capture; io.EOF at the end.
func (s *PCAPSource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		data, ci, err := s.r.ReadPacketData()
		if err != nil {
			if err == io.EOF {
				return Frame{}, io.EOF
			}
			return Frame{}, fmt.Errorf("pcap read: %w", err)
		}

		payload, ok := s.udpPayload(data)
		if !ok {
			continue
		}
		frame, err := DecodeFrame(payload)
		if err != nil {
			debugf("skipping bad capture payload: %v", err)
			continue
		}

		s.pace(ci.Timestamp)
		return frame, nil
	}
}

// udpPayload extracts the UDP payload when the packet is addressed to the
// configured port.
func (s *PCAPSource) udpPayload(data []byte) ([]byte, bool) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp := udpLayer.(*layers.UDP)
	if s.port > 0 && int(udp.DstPort) != s.port {
		return nil, false
	}
	return udp.Payload, true
}

func (s *PCAPSource) pace(ts time.Time) {
	if s.rate > 0 && !s.lastTS.IsZero() {
		gap := time.Duration(float64(ts.Sub(s.lastTS)) / s.rate)
		if elapsed := s.clock.Since(s.lastWall); gap > elapsed {
			s.clock.Sleep(gap - elapsed)
		}
	}
	s.lastTS = ts
	s.lastWall = s.clock.Now()
}

// Close closes the capture file.
func (s *PCAPSource) Close() error {
	return s.f.Close()
}
