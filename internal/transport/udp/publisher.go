// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Mattallmighty/audio-visualiser-sub001/internal/analysis"
	applog "github.com/Mattallmighty/audio-visualiser-sub001/internal/log"
)

// FrameSource supplies the latest control frame. The pipeline implements it;
// Latest must return a copy safe to read off the analysis goroutine.
type FrameSource interface {
	Latest() analysis.ControlFrame
}

// Publisher periodically fetches the latest control frame, packs it into a
// compact binary format, and sends it over UDP. It runs in its own goroutine
// between Start and Stop.
//
// Packet layout (little-endian):
//
//	uint32  sequence number
//	uint8   flags (bit 0: isBeat, bit 1: isBuildup)
//	float32 bpm, beatConfidence, beatPhase
//	float32 buildupConfidence, beatsToImpact, energy, trend
//	uint16  spectrum bin count, then that many float32 bins
//	uint16  reactor count, then per reactor: uint8 name length,
//	        name bytes, float32 value (sorted by name)
type Publisher struct {
	sender   *Sender
	source   FrameSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan across Start/Stop

	sequenceNum uint32

	names  []string      // Reused for deterministic reactor ordering
	packet *bytes.Buffer // Reusable packet buffer
}

// NewPublisher creates a Publisher. An interval <= 0 defaults to ~60Hz.
func NewPublisher(interval time.Duration, sender *Sender, source FrameSource) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("udp publisher: frame source cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("udp publisher: invalid interval, defaulting to %s", interval)
	}

	return &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		packet:   new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Safe to call once per
// Start/Stop cycle; repeated calls while running are no-ops.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("udp publisher: Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker, done := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				if err := p.publish(); err != nil {
					applog.Debugf("udp publisher: %v", err)
				}
			case <-done:
				return
			}
		}
	}()
}

// Stop halts publishing and waits for the goroutine to exit.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		if p.ticker != nil {
			p.ticker.Stop()
			p.ticker = nil
		}
		if p.doneChan != nil {
			close(p.doneChan)
			p.doneChan = nil
		}
		p.mu.Unlock()
		p.wg.Wait()
	})
}

// publish packs the latest frame and sends it.
func (p *Publisher) publish() error {
	frame := p.source.Latest()

	p.packet.Reset()
	p.sequenceNum++

	var flags uint8
	if frame.Beat.IsBeat {
		flags |= 1
	}
	if frame.Buildup.IsBuildup {
		flags |= 2
	}

	le := binary.LittleEndian
	binary.Write(p.packet, le, p.sequenceNum)
	binary.Write(p.packet, le, flags)
	binary.Write(p.packet, le, float32(frame.Beat.BPM))
	binary.Write(p.packet, le, float32(frame.Beat.Confidence))
	binary.Write(p.packet, le, float32(frame.Beat.BeatPhase))
	binary.Write(p.packet, le, float32(frame.Buildup.Confidence))
	binary.Write(p.packet, le, float32(frame.Buildup.BeatsToImpact))
	binary.Write(p.packet, le, float32(frame.Buildup.Energy))
	binary.Write(p.packet, le, float32(frame.Buildup.Trend))

	binary.Write(p.packet, le, uint16(len(frame.Spectrum)))
	for _, v := range frame.Spectrum {
		binary.Write(p.packet, le, float32(v))
	}

	p.names = p.names[:0]
	for name := range frame.Reactors {
		p.names = append(p.names, name)
	}
	sort.Strings(p.names)

	binary.Write(p.packet, le, uint16(len(p.names)))
	for _, name := range p.names {
		binary.Write(p.packet, le, uint8(len(name)))
		p.packet.WriteString(name)
		binary.Write(p.packet, le, float32(frame.Reactors[name]))
	}

	return p.sender.Send(p.packet.Bytes())
}
