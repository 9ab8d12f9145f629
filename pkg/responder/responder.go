// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package responder implements the RDM responder protocol engine.
//
// A Responder polls a transceiver for RDM frames, answers discovery, GET
// and SET requests against a device.DeviceResponder and feeds received
// DMX universes to the current personality's output. Run is called from
// a single loop and never blocks except for the post-transmit delay.
package responder

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/link"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// Result is the outcome of one Run. Positive values are the number of
// bytes transmitted.
type Result int

const (
	NoData              Result = 0
	DiscoveryResponse   Result = -1
	InvalidDataReceived Result = -2
	InvalidResponse     Result = -3
)

func (r Result) String() string {
	switch r {
	case NoData:
		return "NO_DATA"
	case DiscoveryResponse:
		return "DISCOVERY_RESPONSE"
	case InvalidDataReceived:
		return "INVALID_DATA_RECEIVED"
	case InvalidResponse:
		return "INVALID_RESPONSE"
	default:
		return "SENT"
	}
}

// DiscoveryTimeout ends the discovery-running state after the last
// discovery request
const DiscoveryTimeout = time.Second

const defaultPollInterval = time.Millisecond

// Transceiver sends and receives RDM traffic on a bus port
type Transceiver interface {
	Receive(port uint32) []byte
	SendRaw(port uint32, data []byte) error
	SendDiscoveryResponse(port uint32, data []byte) error
	SetPortDirection(port uint32, dir link.PortDirection, enableData bool)
}

// DmxSource supplies received DMX universes. DmxAvailable returns nil
// when no new frame arrived since the last call.
type DmxSource interface {
	DmxAvailable(port uint32) []byte
}

// Notifier is told about changes a board may want to show or act on
type Notifier interface {
	PersonalityUpdate(personality uint8)
	DmxStartAddressUpdate(address uint16)
	Identify(on bool)
	ResetDevice(cold bool)
}

// NopNotifier ignores every notification
type NopNotifier struct{}

func (NopNotifier) PersonalityUpdate(uint8)      {}
func (NopNotifier) DmxStartAddressUpdate(uint16) {}
func (NopNotifier) Identify(bool)                {}
func (NopNotifier) ResetDevice(bool)             {}

// Delayer waits out the bus turnaround time after a transmit
type Delayer interface {
	Delay()
}

type nopDelayer struct{}

func (nopDelayer) Delay() {}

// Option configures a Responder
type Option func(*Responder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) {
		r.logger = logger
	}
}

func WithNotifier(n Notifier) Option {
	return func(r *Responder) {
		r.notifier = n
	}
}

// WithDelay sets the post-transmit delay collaborator
func WithDelay(d Delayer) Option {
	return func(r *Responder) {
		r.delay = d
	}
}

// WithDmxSource overrides the DMX source. By default the transceiver is
// used when it implements DmxSource.
func WithDmxSource(s DmxSource) Option {
	return func(r *Responder) {
		r.dmx.source = s
	}
}

// WithManufacturerPIDs adds manufacturer-specific PID handlers
func WithManufacturerPIDs(m ...ManufacturerPIDs) Option {
	return func(r *Responder) {
		r.extensions = append(r.extensions, m...)
	}
}

// WithPort selects the bus port, 0 by default
func WithPort(port uint32) Option {
	return func(r *Responder) {
		r.port = port
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(r *Responder) {
		r.now = now
	}
}

// WithPollInterval sets the idle wait of Serve
func WithPollInterval(d time.Duration) Option {
	return func(r *Responder) {
		r.pollInterval = d
	}
}

// Responder is the RDM protocol engine
type Responder struct {
	dev         *device.DeviceResponder
	transceiver Transceiver
	port        uint32

	logger       *slog.Logger
	notifier     Notifier
	delay        Delayer
	now          func() time.Time
	pollInterval time.Duration

	handlers   []pidHandler
	extensions []ManufacturerPIDs
	queue      MessageQueue
	lastStatus []byte

	dmx              dmxReceiver
	subDeviceActive  bool
	muted            bool
	discoveryRunning bool
	discoveryStart   time.Time

	ready    bool
	handling bool

	// scratch buffers reused for every response
	buf       []byte
	pd        []byte
	discovery rdm.DiscoveryResponse
}

// New creates a responder for dev over t. It becomes dev's listener.
// New panics when dev or t is nil.
func New(dev *device.DeviceResponder, t Transceiver, opts ...Option) *Responder {
	if dev == nil || t == nil {
		panic("responder: nil device or transceiver")
	}

	r := &Responder{
		dev:          dev,
		transceiver:  t,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		notifier:     NopNotifier{},
		delay:        nopDelayer{},
		now:          time.Now,
		pollInterval: defaultPollInterval,
		buf:          make([]byte, 0, rdm.MaxMessageSize),
		pd:           make([]byte, 0, rdm.MaxParamDataLength),
	}
	if s, ok := t.(DmxSource); ok {
		r.dmx.source = s
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dmx.port = r.port
	r.dmx.output = dev.Output()
	r.handlers = standardHandlers()

	dev.SetListener(r)
	return r
}

// Device returns the device model
func (r *Responder) Device() *device.DeviceResponder {
	return r.dev
}

// Queue returns the queued message buffer
func (r *Responder) Queue() *MessageQueue {
	return &r.queue
}

// Init initializes the device with params. Changes made after Init outside
// of RDM are queued for controllers.
func (r *Responder) Init(params ...device.Params) {
	r.dev.Init(params...)
	r.dmx.setOutput(r.dev.Output())
	r.ready = true
}

// Start puts the bus port in receive mode
func (r *Responder) Start() {
	r.transceiver.SetPortDirection(r.port, link.PortDirectionInput, true)
}

// DmxDisableOutput stops received DMX from reaching the root output
func (r *Responder) DmxDisableOutput(disable bool) {
	r.dmx.disabled = disable
}

// DiscoveryRunning reports whether discovery traffic was seen within
// DiscoveryTimeout
func (r *Responder) DiscoveryRunning() bool {
	return r.discoveryRunning
}

// Muted reports the discovery mute flag
func (r *Responder) Muted() bool {
	return r.muted
}

// Serve calls Run until ctx is done, waiting the poll interval whenever
// there is nothing to do.
func (r *Responder) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if r.Run() != NoData {
			if err := ctx.Err(); err != nil {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Run performs one step: the DMX receive step, then at most one RDM
// request.
func (r *Responder) Run() Result {
	now := r.now()

	if r.discoveryRunning && now.Sub(r.discoveryStart) > DiscoveryTimeout {
		r.discoveryRunning = false
		r.logger.Info("rdm discovery finished")
	}

	data, lost := r.dmx.run(now, !r.discoveryRunning)
	if r.dev.SubDevices().Count() != 0 {
		r.runSubDevices(data, lost)
	}

	frame := r.transceiver.Receive(r.port)
	if len(frame) == 0 {
		return NoData
	}

	if frame[0] != rdm.StartCode {
		return DiscoveryResponse
	}

	if len(frame) <= offsetCommandClass {
		return InvalidDataReceived
	}

	switch frame[offsetCommandClass] {
	case rdm.DiscoveryCommand, rdm.GetCommand, rdm.SetCommand:
		return r.handleResponse(r.handle(frame))
	default:
		return InvalidDataReceived
	}
}

func (r *Responder) runSubDevices(data []byte, lost bool) {
	subDevices := r.dev.SubDevices()

	switch {
	case lost:
		if r.subDeviceActive {
			subDevices.Stop()
			r.subDeviceActive = false
		}
	case data != nil:
		subDevices.SetData(data)
		if !r.subDeviceActive {
			subDevices.Start()
			r.subDeviceActive = true
		}
	}
}

func (r *Responder) handleResponse(resp []byte) Result {
	if len(resp) == 0 {
		return InvalidResponse
	}

	var send func(uint32, []byte) error
	switch resp[0] {
	case rdm.StartCode:
		send = r.transceiver.SendRaw
	case rdm.DiscoveryPreamble:
		send = r.transceiver.SendDiscoveryResponse
	default:
		return InvalidResponse
	}

	r.transceiver.SetPortDirection(r.port, link.PortDirectionOutput, false)
	err := send(r.port, resp)
	r.transceiver.SetPortDirection(r.port, link.PortDirectionInput, true)

	if err != nil {
		r.logger.Warn("rdm transmit failed", "error", err)
		return InvalidResponse
	}

	r.delay.Delay()
	return Result(len(resp))
}

func (r *Responder) startDiscovery() {
	if !r.discoveryRunning {
		r.logger.Info("rdm discovery started")
	}
	r.discoveryRunning = true
	r.discoveryStart = r.now()
}

// PersonalityUpdate implements device.Listener
func (r *Responder) PersonalityUpdate(out device.DmxOutput) {
	r.dmx.setOutput(out)

	personality := r.dev.PersonalityCurrent(rdm.RootDevice)
	r.notifier.PersonalityUpdate(personality)

	if r.ready && !r.handling {
		r.queue.Add(QueuedMessage{
			CommandClass: rdm.GetCommandResponse,
			PID:          rdm.PIDDMXPersonality,
			ParamData:    []byte{personality, r.dev.PersonalityCount(rdm.RootDevice)},
		})
		r.queueStartAddress()
	}
}

// DmxStartAddressUpdate implements device.Listener
func (r *Responder) DmxStartAddressUpdate() {
	r.notifier.DmxStartAddressUpdate(r.dev.DmxStartAddress(rdm.RootDevice))

	if r.ready && !r.handling {
		r.queueStartAddress()
	}
}

func (r *Responder) queueStartAddress() {
	address := r.dev.DmxStartAddress(rdm.RootDevice)
	r.queue.Add(QueuedMessage{
		CommandClass: rdm.GetCommandResponse,
		PID:          rdm.PIDDMXStartAddress,
		ParamData:    []byte{byte(address >> 8), byte(address)},
	})
}
