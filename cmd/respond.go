// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rdmresponder/internal/config"
	"github.com/Thermoquad/rdmresponder/internal/logging"
	"github.com/Thermoquad/rdmresponder/internal/notify"
	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/params"
	"github.com/Thermoquad/rdmresponder/pkg/pixel"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
	"github.com/Thermoquad/rdmresponder/pkg/responder"
	"github.com/Thermoquad/rdmresponder/pkg/store"
)

// DEVICE_INFO identity of the pixel controller
const (
	manufacturerName   = "Thermoquad"
	deviceModel        = 0x0101
	deviceModelDesc    = "Pixel controller"
	softwareVersion    = 0x00030000
	productDetailPixel = 0x0006 // LED
)

var (
	respondPreview    bool
	respondDumpParams bool
)

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Run the RDM responder",
	Long: `Run an E1.20 RDM responder on the configured link port until interrupted.

The root device drives a pixel strip. Two personality modes are available:

  pixel  personality 1 drives the strip, personality 2 is config mode
         where six DMX slots program type, count, grouping, map and test
         pattern
  types  one personality per pixel type, selecting a personality selects
         the type after the next reset

Device label, sensors, sub-devices and pixel settings are read from the
params directory (rdm_device.yaml, sensors.yaml, subdevices.yaml,
pixel.yaml). Settings changed over RDM are kept in the store file and
take precedence over the params files.

When mqtt.enabled is set, personality, start address, identify and reset
events are published to the broker.

RESET_DEVICE restarts the responder from its stored settings.`,
	RunE: runRespond,
}

func init() {
	rootCmd.AddCommand(respondCmd)
	respondCmd.Flags().BoolVar(&respondPreview, "preview", false, "Render the pixel strip in the terminal")
	respondCmd.Flags().BoolVar(&respondDumpParams, "dump-params", false, "Print the effective params files and exit")
}

// deviceParams holds the params files of the params directory
type deviceParams struct {
	rdm        *params.RdmDeviceParams
	sensors    *params.SensorsParams
	subDevices *params.SubDevicesParams
	pixel      *params.PixelParams
}

func loadDeviceParams(dir string) (*deviceParams, error) {
	var p deviceParams
	var err error
	if p.rdm, err = params.LoadRdmDevice(dir); err != nil {
		return nil, err
	}
	if p.sensors, err = params.LoadSensors(dir); err != nil {
		return nil, err
	}
	if p.subDevices, err = params.LoadSubDevices(dir); err != nil {
		return nil, err
	}
	if p.pixel, err = params.LoadPixel(dir); err != nil {
		return nil, err
	}
	return &p, nil
}

// board is one assembled responder with the parts the command drives
type board struct {
	responder *responder.Responder
	strip     *pixel.Strip
	dmx       *pixel.Dmx
}

// buildBoard assembles the device model, its personalities and the
// responder engine from params and the store
func buildBoard(rc config.ResponderConfig, p *deviceParams, st *store.Store, t responder.Transceiver, n responder.Notifier, log *logging.Logger) (*board, error) {
	serial, err := rc.Serial()
	if err != nil {
		return nil, err
	}

	pc := st.PixelConfig(p.pixel.Apply(pixel.DefaultConfig())).Validate()

	var (
		personalities []*device.Personality
		current       uint8
		dmx           *pixel.Dmx
		strip         *pixel.Strip
		pids          *pixel.PIDs
	)
	switch rc.Personality {
	case config.PersonalityTypes:
		rec := st.Device()
		if rec.Has(store.MaskPersonality) {
			if t := pixel.TypeOfPersonality(rec.Personality); t != pixel.TypeUndefined && t != pc.Type {
				pc.Type, pc.Map = t, t.DefaultMap()
				pc = pc.Validate()
			}
		}
		strip = pixel.NewStrip(int(pc.Count))
		pids = pixel.NewPIDs(pc, st)
		dmx = pixel.NewDmx(pc, strip, pids)
		personalities, current = pixel.TypePersonalities(dmx)

	default:
		strip = pixel.NewStrip(int(pc.Count))
		pids = pixel.NewPIDs(pc, st)
		dmx = pixel.NewDmx(pc, strip, pids)
		personalities = pixel.Personalities(dmx, pixel.NewParamsRdm(st, pids))
		current = device.DefaultPersonality
	}

	if addr, ok := p.pixel.StartAddress(); ok && !dmx.SetDmxStartAddress(addr) {
		log.Warn("pixel start address does not fit the footprint", "address", addr, "footprint", dmx.DmxFootprint())
	}

	dev := device.NewDeviceResponder(device.ResponderConfig{
		Device: device.Config{
			ManufacturerID:   rc.ManufacturerID,
			ManufacturerName: manufacturerName,
			Serial:           serial,
			Label:            rc.Label,
		},
		DeviceModel:          deviceModel,
		DeviceModelDesc:      deviceModelDesc,
		SoftwareVersion:      softwareVersion,
		SoftwareVersionLabel: rc.SoftwareVersionLabel,
		CurrentPersonality:   current,
		ProductDetailIDs:     []uint16{productDetailPixel},
	}, personalities, st)

	// params files set the factory state, the store restores on top
	p.rdm.Set(dev.Device)
	if err := p.sensors.Set(dev.Sensors(), nil); err != nil {
		log.Warn("sensors skipped", "error", err)
	}
	if err := p.subDevices.Set(dev.SubDevices(), busLogWriter{log.With("component", "bus")}); err != nil {
		log.Warn("sub-devices skipped", "error", err)
	}

	r := responder.New(dev, t,
		responder.WithLogger(log.With("component", "responder").Logger),
		responder.WithNotifier(n),
		responder.WithDelay(st),
		responder.WithManufacturerPIDs(pids),
		responder.WithPort(cfg.Link.PortIndex),
	)
	r.Init(st.Restore())

	return &board{responder: r, strip: strip, dmx: dmx}, nil
}

func runRespond(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.With("component", "respond")

	p, err := loadDeviceParams(cfg.Responder.ParamsDir)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path,
		store.WithLogger(logger.With("component", "store").Logger),
		store.WithDelay(cfg.Responder.PostTransmitDelay),
	)
	if err != nil {
		return err
	}

	if respondDumpParams {
		return dumpParams(p, st)
	}

	session, err := openLink(ctx)
	if err != nil {
		return err
	}
	defer session.Close()
	log.Info("link open", "connection", session.desc, "port", cfg.Link.PortIndex)

	serial, err := cfg.Responder.Serial()
	if err != nil {
		return err
	}
	uid := rdm.NewUID(cfg.Responder.ManufacturerID, serial)

	var mqtt *notify.Notifier
	if cfg.MQTT.Enabled {
		mqtt, err = notify.Connect(cfg.MQTT, uid, log.With("component", "mqtt").Logger)
		if err != nil {
			// the responder runs without the broker
			log.Warn("mqtt unavailable", "error", err)
			mqtt = nil
		} else {
			defer mqtt.Close()
		}
	}

	for {
		events := &boardEvents{logger: log, mqtt: mqtt}
		b, err := buildBoard(cfg.Responder, p, st, session.port, events, log)
		if err != nil {
			return err
		}

		runCtx, cancel := context.WithCancel(ctx)
		events.reset = cancel

		log.Info("responder started",
			"uid", uid.String(),
			"label", b.responder.Device().Label(),
			"personality", b.responder.Device().PersonalityCurrent(rdm.RootDevice),
			"start_address", b.responder.Device().DmxStartAddress(rdm.RootDevice),
			"pixels", b.dmx.Config().Description(),
		)

		if respondPreview {
			go runPreview(runCtx, os.Stdout, b, events.identify.Load, uid)
		}

		b.responder.Start()
		serveErr := make(chan error, 1)
		go func() { serveErr <- b.responder.Serve(runCtx) }()

		select {
		case err = <-serveErr:
		case err = <-session.done:
			cancel()
			<-serveErr
			if err == nil {
				err = errors.New("link closed")
			}
		}
		cancel()

		if ctx.Err() != nil {
			log.Info("responder stopped")
			return nil
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		if !events.resetRequested.Load() {
			return nil
		}
		log.Info("restarting after reset", "cold", events.cold.Load())
	}
}

// dumpParams prints the params files as they would be written for the
// current configuration
func dumpParams(p *deviceParams, st *store.Store) error {
	pc := st.PixelConfig(p.pixel.Apply(pixel.DefaultConfig())).Validate()
	startAddress := uint16(device.StartAddressDefault)
	if addr, ok := p.pixel.StartAddress(); ok {
		startAddress = addr
	}

	sections := []struct {
		name    string
		builder func() ([]byte, error)
	}{
		{params.RdmDeviceFile, p.rdm.Builder},
		{params.SensorsFile, p.sensors.Builder},
		{params.SubDevicesFile, p.subDevices.Builder},
		{params.PixelFile, params.PixelParamsFor(pc, startAddress).Builder},
	}
	for _, s := range sections {
		out, err := s.builder()
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		fmt.Fprintf(os.Stdout, "# %s\n%s\n", filepath.Join(cfg.Responder.ParamsDir, s.name), out)
	}
	return nil
}

// boardEvents is the responder notifier of the command. It logs every
// event, forwards it to MQTT when connected and turns RESET_DEVICE into
// a restart.
type boardEvents struct {
	logger *logging.Logger
	mqtt   *notify.Notifier
	reset  context.CancelFunc

	identify       atomic.Bool
	resetRequested atomic.Bool
	cold           atomic.Bool
}

func (e *boardEvents) PersonalityUpdate(personality uint8) {
	e.logger.Info("personality changed", "personality", personality)
	if e.mqtt != nil {
		e.mqtt.PersonalityUpdate(personality)
	}
}

func (e *boardEvents) DmxStartAddressUpdate(address uint16) {
	e.logger.Info("dmx start address changed", "address", address)
	if e.mqtt != nil {
		e.mqtt.DmxStartAddressUpdate(address)
	}
}

func (e *boardEvents) Identify(on bool) {
	e.identify.Store(on)
	e.logger.Info("identify", "on", on)
	if e.mqtt != nil {
		e.mqtt.Identify(on)
	}
}

func (e *boardEvents) ResetDevice(cold bool) {
	e.logger.Info("reset requested", "cold", cold)
	if e.mqtt != nil {
		e.mqtt.ResetDevice(cold)
	}
	e.cold.Store(cold)
	e.resetRequested.Store(true)
	if e.reset != nil {
		e.reset()
	}
}

// busLogWriter stands in for the SPI bus of the sub-device drivers on a
// host without one
type busLogWriter struct {
	logger *logging.Logger
}

func (w busLogWriter) WriteChannels(chipSelect, address uint8, speedHz uint32, values []byte) error {
	w.logger.Debug("sub-device write", "cs", chipSelect, "address", fmt.Sprintf("0x%02X", address), "speed_hz", speedHz, "values", fmt.Sprintf("% X", values))
	return nil
}
