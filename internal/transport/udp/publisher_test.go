package udp

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"github.com/Mattallmighty/audio-visualiser-sub001/internal/analysis"
)

// staticSource hands out a fixed control frame.
type staticSource struct {
	frame analysis.ControlFrame
}

func (s *staticSource) Latest() analysis.ControlFrame { return s.frame }

func listenLoopback(t *testing.T) (*net.UDPConn, string) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().String()
}

func TestNewPublisherValidation(t *testing.T) {
	_, addr := listenLoopback(t)
	sender, err := NewSender(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	if _, err := NewPublisher(time.Millisecond, nil, &staticSource{}); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewPublisher(time.Millisecond, sender, nil); err == nil {
		t.Error("expected error for nil source")
	}

	// Invalid interval falls back to a sane default instead of failing.
	p, err := NewPublisher(0, sender, &staticSource{})
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != 16*time.Millisecond {
		t.Errorf("interval = %v, want 16ms default", p.interval)
	}
}

func TestPublisherPacketLayout(t *testing.T) {
	recv, addr := listenLoopback(t)
	sender, err := NewSender(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	source := &staticSource{frame: analysis.ControlFrame{
		Spectrum: []float64{0.25, 0.5, 0.75},
		Beat: analysis.BeatResult{
			BPM: 128, Confidence: 0.9, BeatPhase: 0.5, IsBeat: true,
		},
		Buildup: analysis.BuildupResult{
			IsBuildup: true, Confidence: 0.6, BeatsToImpact: 6.4,
			Energy: 0.7, Trend: 0.3,
		},
		Reactors: map[string]float64{"zoom": 0.8, "glow": 0.4},
	}}

	p, err := NewPublisher(time.Millisecond, sender, source)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.publish(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 2048)
	recv.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := recv.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}
	packet := buf[:n]
	le := binary.LittleEndian

	if seq := le.Uint32(packet[0:]); seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}
	if flags := packet[4]; flags != 0b11 {
		t.Errorf("flags = %#b, want isBeat|isBuildup", flags)
	}

	f32 := func(off int) float64 {
		return float64(math.Float32frombits(le.Uint32(packet[off:])))
	}
	floats := []struct {
		name string
		off  int
		want float64
	}{
		{"bpm", 5, 128},
		{"beat confidence", 9, 0.9},
		{"beat phase", 13, 0.5},
		{"buildup confidence", 17, 0.6},
		{"beats to impact", 21, 6.4},
		{"energy", 25, 0.7},
		{"trend", 29, 0.3},
	}
	for _, f := range floats {
		if got := f32(f.off); math.Abs(got-f.want) > 1e-6 {
			t.Errorf("%s = %.4f, want %.4f", f.name, got, f.want)
		}
	}

	off := 33
	if count := le.Uint16(packet[off:]); count != 3 {
		t.Fatalf("spectrum count = %d, want 3", count)
	}
	off += 2
	for i, want := range []float64{0.25, 0.5, 0.75} {
		if got := f32(off); math.Abs(got-want) > 1e-6 {
			t.Errorf("spectrum[%d] = %.4f, want %.4f", i, got, want)
		}
		off += 4
	}

	if count := le.Uint16(packet[off:]); count != 2 {
		t.Fatalf("reactor count = %d, want 2", count)
	}
	off += 2

	// Reactors arrive sorted by name: glow before zoom.
	for _, want := range []struct {
		name  string
		value float64
	}{{"glow", 0.4}, {"zoom", 0.8}} {
		nameLen := int(packet[off])
		off++
		name := string(packet[off : off+nameLen])
		off += nameLen
		value := f32(off)
		off += 4

		if name != want.name || math.Abs(value-want.value) > 1e-6 {
			t.Errorf("reactor = %q/%.4f, want %q/%.4f", name, value, want.name, want.value)
		}
	}

	if off != n {
		t.Errorf("packet length = %d, consumed %d", n, off)
	}
}

func TestPublisherSequenceIncrements(t *testing.T) {
	recv, addr := listenLoopback(t)
	sender, err := NewSender(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	p, err := NewPublisher(time.Millisecond, sender, &staticSource{})
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 2048)
	for want := uint32(1); want <= 3; want++ {
		if err := p.publish(); err != nil {
			t.Fatal(err)
		}
		recv.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := recv.ReadFromUDP(buf)
		if err != nil {
			t.Fatal(err)
		}
		if seq := binary.LittleEndian.Uint32(buf[:n]); seq != want {
			t.Errorf("sequence = %d, want %d", seq, want)
		}
	}
}

func TestPublisherStartStop(t *testing.T) {
	recv, addr := listenLoopback(t)
	sender, err := NewSender(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	p, err := NewPublisher(time.Millisecond, sender, &staticSource{})
	if err != nil {
		t.Fatal(err)
	}

	p.Start()
	p.Start() // Repeated Start while running is a no-op.

	buf := make([]byte, 2048)
	recv.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := recv.ReadFromUDP(buf); err != nil {
		t.Fatalf("no packet arrived while running: %v", err)
	}

	p.Stop()
	p.Stop() // Stop is idempotent.
}

func TestSenderClosedRejectsSend(t *testing.T) {
	_, addr := listenLoopback(t)
	sender, err := NewSender(addr)
	if err != nil {
		t.Fatal(err)
	}

	if err := sender.Send([]byte{1}); err != nil {
		t.Fatalf("send before close: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := sender.Send([]byte{1}); err == nil {
		t.Error("expected error sending on closed sender")
	}
}
