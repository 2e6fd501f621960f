package s1frames

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// readDeadline bounds each blocking socket read so Next can notice context
// cancellation between datagrams.
const readDeadline = 100 * time.Millisecond

// maxDatagram is the receive buffer for a single datagram. Sidecar frames
// stay a few KB even on crowded screens.
const maxDatagram = 64 * 1024

// UDPSource receives detector frames as JSON datagrams from the sidecar.
type UDPSource struct {
	conn      *net.UDPConn
	packetLog *PacketLog

	frames      atomic.Uint64
	badPayloads atomic.Uint64
}

// SourceStats counts feed events since the source was opened.
type SourceStats struct {
	Frames      uint64
	BadPayloads uint64
}

// NewUDPSource binds addr (host:port) and returns a source reading from it.
// rcvBuf sizes the kernel receive buffer; 0 keeps the system default.
func NewUDPSource(addr string, rcvBuf int) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve feed address %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if rcvBuf > 0 {
		if err := conn.SetReadBuffer(rcvBuf); err != nil {
			debugf("set receive buffer to %d: %v", rcvBuf, err)
		}
	}
	debugf("feed listening on %s", conn.LocalAddr())
	return &UDPSource{conn: conn}, nil
}

// Addr returns the bound listen address, useful when binding port 0.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// SetPacketLog tees every received datagram into pl before decoding. Must
// be called before the first Next.
func (s *UDPSource) SetPacketLog(pl *PacketLog) {
	s.packetLog = pl
}

// Next blocks until a decodable frame arrives. Undecodable datagrams are
// counted and skipped, never surfaced as errors.
func (s *UDPSource) Next(ctx context.Context) (Frame, error) {
	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return Frame{}, ctx.Err()
			}
			return Frame{}, fmt.Errorf("feed read: %w", err)
		}

		payload := buf[:n]
		if s.packetLog != nil {
			if err := s.packetLog.LogPayload(payload, time.Now()); err != nil {
				debugf("packet log write: %v", err)
			}
		}

		frame, err := DecodeFrame(payload)
		if err != nil {
			s.badPayloads.Add(1)
			debugf("dropping datagram from feed: %v", err)
			continue
		}
		s.frames.Add(1)
		return frame, nil
	}
}

// Stats returns the feed counters.
func (s *UDPSource) Stats() SourceStats {
	return SourceStats{
		Frames:      s.frames.Load(),
		BadPayloads: s.badPayloads.Load(),
	}
}

// Close closes the socket and any attached packet log.
func (s *UDPSource) Close() error {
	if s.packetLog != nil {
		if err := s.packetLog.Close(); err != nil {
			debugf("packet log close: %v", err)
		}
	}
	return s.conn.Close()
}
