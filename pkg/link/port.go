// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// MaxPorts is the number of bus ports a link can address
const MaxPorts = 4

// DefaultSettleDelay is the line driver turnaround time after a direction change
const DefaultSettleDelay = 4 * time.Microsecond

const rdmQueueDepth = 8

// ErrInvalidPort is returned for port indexes at or above MaxPorts
var ErrInvalidPort = errors.New("link: invalid port")

// Stats counts link traffic
type Stats struct {
	FramesReceived uint64
	FramesSent     uint64
	DmxFrames      uint64
	RdmFrames      uint64
	DecodeErrors   uint64
	Dropped        uint64
}

// Option configures a Port
type Option func(*Port)

// WithLogger sets the logger for decode errors and dropped frames
func WithLogger(logger *slog.Logger) Option {
	return func(p *Port) {
		p.logger = logger
	}
}

// WithSettleDelay sets the delay applied after every direction change
func WithSettleDelay(d time.Duration) Option {
	return func(p *Port) {
		p.settle = d
	}
}

// WithSleep replaces time.Sleep, for tests
func WithSleep(sleep func(time.Duration)) Option {
	return func(p *Port) {
		p.sleep = sleep
	}
}

type portState struct {
	rdm       chan []byte
	dmx       []byte
	dmxFresh  bool
	direction PortDirection
	enabled   bool
}

// Port is a DMX/RDM transceiver reached through a framed byte stream.
//
// Run owns the read side. All other methods are safe for concurrent use.
type Port struct {
	conn   io.ReadWriter
	logger *slog.Logger
	settle time.Duration
	sleep  func(time.Duration)

	writeMu sync.Mutex

	mu    sync.Mutex
	ports [MaxPorts]portState
	stats Stats
}

// NewPort creates a transceiver over conn
func NewPort(conn io.ReadWriter, opts ...Option) *Port {
	p := &Port{
		conn:   conn,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		settle: DefaultSettleDelay,
		sleep:  time.Sleep,
	}
	for i := range p.ports {
		p.ports[i] = portState{
			rdm:     make(chan []byte, rdmQueueDepth),
			enabled: true,
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads and dispatches frames until ctx is done or the connection fails
func (p *Port) Run(ctx context.Context) error {
	decoder := NewDecoder()
	buf := make([]byte, 256)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := p.conn.Read(buf)
		if n > 0 {
			decoder.Decode(buf[:n], p.dispatch)
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("link read: %w", err)
		}
	}
}

// Dispatch routes one decoded frame as if it had been read from the connection
func (p *Port) Dispatch(frame *Frame) {
	p.dispatch(frame, nil)
}

func (p *Port) dispatch(frame *Frame, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.stats.DecodeErrors++
		p.logger.Debug("link decode error", "error", err)
		return
	}

	p.stats.FramesReceived++

	if int(frame.port) >= MaxPorts {
		p.stats.Dropped++
		p.logger.Debug("frame for unknown port", "port", frame.port)
		return
	}

	state := &p.ports[frame.port]
	if !state.enabled || state.direction != PortDirectionInput {
		p.stats.Dropped++
		return
	}

	switch {
	case frame.IsDMX():
		p.stats.DmxFrames++
		state.dmx = append(state.dmx[:0], frame.data[1:]...)
		state.dmxFresh = true

	case frame.IsRDM():
		p.stats.RdmFrames++
		select {
		case state.rdm <- frame.data:
		default:
			p.stats.Dropped++
			p.logger.Warn("rdm queue full, frame dropped", "port", frame.port)
		}

	default:
		// Alternate start codes are not handled
		p.stats.Dropped++
	}
}

// Receive returns the next RDM frame for port without blocking, or nil
func (p *Port) Receive(port uint32) []byte {
	if port >= MaxPorts {
		return nil
	}
	select {
	case data := <-p.ports[port].rdm:
		return data
	default:
		return nil
	}
}

// ReceiveTimeout waits up to timeout for the next RDM frame for port
func (p *Port) ReceiveTimeout(port uint32, timeout time.Duration) []byte {
	if port >= MaxPorts {
		return nil
	}
	select {
	case data := <-p.ports[port].rdm:
		return data
	case <-time.After(timeout):
		return nil
	}
}

// DmxAvailable returns the slot data of a DMX frame received since the
// last call, or nil. The returned slice is a copy.
func (p *Port) DmxAvailable(port uint32) []byte {
	if port >= MaxPorts {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state := &p.ports[port]
	if !state.dmxFresh {
		return nil
	}
	state.dmxFresh = false
	return append([]byte(nil), state.dmx...)
}

// SetPortDirection switches the line driver of port. enableData controls
// whether received frames are accepted.
func (p *Port) SetPortDirection(port uint32, dir PortDirection, enableData bool) {
	if port >= MaxPorts {
		return
	}

	p.mu.Lock()
	state := &p.ports[port]
	changed := state.direction != dir
	state.direction = dir
	state.enabled = enableData
	p.mu.Unlock()

	if changed && p.settle > 0 {
		p.sleep(p.settle)
	}
}

// PortDirection returns the current direction of port
func (p *Port) PortDirection(port uint32) PortDirection {
	if port >= MaxPorts {
		return PortDirectionInput
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ports[port].direction
}

// SendRaw transmits an RDM message (start code first) on port
func (p *Port) SendRaw(port uint32, data []byte) error {
	return p.send(port, data)
}

// SendDiscoveryResponse transmits a discovery response datagram on port.
// The line driver sends it without a break.
func (p *Port) SendDiscoveryResponse(port uint32, data []byte) error {
	return p.send(port, data)
}

// SendDmx transmits a DMX frame (slot data without start code) on port
func (p *Port) SendDmx(port uint32, slots []byte) error {
	data := make([]byte, 0, 1+len(slots))
	data = append(data, StartCodeDMX)
	return p.send(port, append(data, slots...))
}

func (p *Port) send(port uint32, data []byte) error {
	if port >= MaxPorts {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	frame, err := EncodeFrame(uint8(port), data)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	_, err = p.conn.Write(frame)
	p.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("link write: %w", err)
	}

	p.mu.Lock()
	p.stats.FramesSent++
	p.mu.Unlock()

	return nil
}

// Stats returns a snapshot of the link counters
func (p *Port) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
