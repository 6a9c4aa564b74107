package capture

import (
	"fmt"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/p4th0r/gatelist/internal/logging"
)

// Recorder writes every datagram it is handed to a pcapng file as a raw
// IP/UDP packet. It satisfies the resolver's Tap interface and is safe
// for concurrent use.
type Recorder struct {
	filePath string
	logger   *logging.StderrLogger
	comment  string

	mu     sync.Mutex
	file   *os.File
	writer *pcapgo.NgWriter
	buf    gopacket.SerializeBuffer
	count  atomic.Int64
}

// Config holds configuration for creating a Recorder.
type Config struct {
	FilePath string // output pcapng file path
	Logger   *logging.StderrLogger
	Comment  string // pcapng section comment
}

// New creates a new Recorder. Call Start before handing it packets.
func New(cfg Config) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{
		filePath: cfg.FilePath,
		logger:   logger,
		comment:  cfg.Comment,
		buf:      gopacket.NewSerializeBuffer(),
	}
}

// Start creates the capture file.
func (r *Recorder) Start() error {
	f, err := os.Create(r.filePath)
	if err != nil {
		return fmt.Errorf("creating pcap file %s: %w", r.filePath, err)
	}

	intf := pcapgo.NgInterface{
		Name:       "resolver",
		LinkType:   layers.LinkTypeRaw,
		SnapLength: 65535,
	}
	opts := pcapgo.NgWriterOptions{
		SectionInfo: pcapgo.NgSectionInfo{
			Application: "gatelist",
			Comment:     r.comment,
		},
	}
	w, err := pcapgo.NewNgWriterInterface(f, intf, opts)
	if err != nil {
		f.Close()
		os.Remove(r.filePath)
		return fmt.Errorf("creating pcapng writer: %w", err)
	}

	r.mu.Lock()
	r.file = f
	r.writer = w
	r.mu.Unlock()

	r.logger.Debug("Resolver capture started -> %s", r.filePath)
	return nil
}

// Packet records one UDP datagram from src to dst. Packets arriving
// before Start or after Stop are dropped.
func (r *Recorder) Packet(src, dst netip.AddrPort, payload []byte) {
	srcIP, dstIP := sameFamily(src.Addr(), dst.Addr())

	udp := &layers.UDP{
		SrcPort: layers.UDPPort(src.Port()),
		DstPort: layers.UDPPort(dst.Port()),
	}
	var ip gopacket.SerializableLayer
	if srcIP.Is4() {
		v4 := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    srcIP.AsSlice(),
			DstIP:    dstIP.AsSlice(),
		}
		_ = udp.SetNetworkLayerForChecksum(v4)
		ip = v4
	} else {
		v6 := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolUDP,
			SrcIP:      srcIP.AsSlice(),
			DstIP:      dstIP.AsSlice(),
		}
		_ = udp.SetNetworkLayerForChecksum(v6)
		ip = v6
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(r.buf, opts, ip, udp, gopacket.Payload(payload)); err != nil {
		r.logger.Debug("PCAP encode error: %v", err)
		return
	}
	data := r.buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := r.writer.WritePacket(ci, data); err != nil {
		r.logger.Debug("PCAP write error: %v", err)
		return
	}
	r.count.Add(1)
}

// Stop flushes and closes the capture file and reports stats.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.writer != nil {
		if err := r.writer.Flush(); err != nil {
			firstErr = fmt.Errorf("flushing pcapng: %w", err)
		}
		r.writer = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing pcap file: %w", err)
		}
		r.file = nil
	}

	count := r.count.Load()
	if info, err := os.Stat(r.filePath); err == nil {
		r.logger.Info("PCAP saved: %s (%s, %d packets)", r.filePath, formatSize(info.Size()), count)
	} else {
		r.logger.Info("PCAP saved: %s (%d packets)", r.filePath, count)
	}
	return firstErr
}

// Count returns the number of packets written.
func (r *Recorder) Count() int64 { return r.count.Load() }

// sameFamily makes both endpoints one family. A dual-stack socket reports
// its local address as :: even when talking to an IPv4 server.
func sameFamily(a, b netip.Addr) (netip.Addr, netip.Addr) {
	switch {
	case a.Is4() == b.Is4():
		return a, b
	case a.IsUnspecified() && b.Is4():
		return netip.IPv4Unspecified(), b
	case b.IsUnspecified() && a.Is4():
		return a, netip.IPv4Unspecified()
	case a.Is4():
		return netip.AddrFrom16(a.As16()), b
	default:
		return a, netip.AddrFrom16(b.As16())
	}
}

// formatSize returns a human-readable file size string.
func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
	)
	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
