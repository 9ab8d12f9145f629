// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/rdmresponder/internal/config"
	"github.com/Thermoquad/rdmresponder/internal/logging"
	"github.com/Thermoquad/rdmresponder/pkg/link"
	"github.com/Thermoquad/rdmresponder/pkg/params"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
	"github.com/Thermoquad/rdmresponder/pkg/responder"
	"github.com/Thermoquad/rdmresponder/pkg/store"
)

// ============================================================
// Bus double
// ============================================================

// busTransceiver carries requests to a serving responder and collects
// its replies. It is safe for concurrent use.
type busTransceiver struct {
	rx chan []byte

	mu   sync.Mutex
	sent []*rdm.Message
}

func newBusTransceiver() *busTransceiver {
	return &busTransceiver{rx: make(chan []byte, 64)}
}

func (b *busTransceiver) Receive(uint32) []byte {
	select {
	case frame := <-b.rx:
		return frame
	default:
		return nil
	}
}

func (b *busTransceiver) SendRaw(_ uint32, data []byte) error {
	m, err := rdm.Parse(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.sent = append(b.sent, m)
	b.mu.Unlock()
	return nil
}

func (b *busTransceiver) SendDiscoveryResponse(uint32, []byte) error { return nil }

func (b *busTransceiver) SetPortDirection(uint32, link.PortDirection, bool) {}

func (b *busTransceiver) responses() []*rdm.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*rdm.Message(nil), b.sent...)
}

func testResponderConfig() config.ResponderConfig {
	rc := config.Default().Responder
	rc.SerialNumber = "00000042"
	rc.Personality = config.PersonalityPixel
	return rc
}

func testResponderUID(t *testing.T, rc config.ResponderConfig) rdm.UID {
	t.Helper()
	serial, err := rc.Serial()
	if err != nil {
		t.Fatalf("Serial() error = %v", err)
	}
	return rdm.NewUID(rc.ManufacturerID, serial)
}

func buildTestBoard(t *testing.T, dir string, st *store.Store, tr responder.Transceiver, n responder.Notifier) *board {
	t.Helper()
	p, err := loadDeviceParams(dir)
	if err != nil {
		t.Fatalf("loadDeviceParams() error = %v", err)
	}
	b, err := buildBoard(testResponderConfig(), p, st, tr, n, logging.Default())
	if err != nil {
		t.Fatalf("buildBoard() error = %v", err)
	}
	return b
}

// exchange runs one request through the responder and returns the reply
func exchange(t *testing.T, b *board, tr *busTransceiver, req *rdm.Message) *rdm.Message {
	t.Helper()
	before := len(tr.responses())
	tr.rx <- rdm.Encode(req)
	b.responder.Run()

	sent := tr.responses()
	if len(sent) != before+1 {
		t.Fatalf("PID 0x%04X: %d replies, want 1", req.PID, len(sent)-before)
	}
	resp := sent[len(sent)-1]
	if resp.PortID != rdm.ResponseTypeAck {
		t.Fatalf("PID 0x%04X: response type %d, want ACK", req.PID, resp.PortID)
	}
	return resp
}

// ============================================================
// Rebuild after RESET_DEVICE
// ============================================================

func TestBuildBoard_RebuildKeepsStoredSettings(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, params.RdmDeviceFile), []byte("label: Hall\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	storePath := filepath.Join(dir, "store.cbor")
	openStore := func() *store.Store {
		st, err := store.Open(storePath, store.WithDelay(0))
		if err != nil {
			t.Fatalf("store.Open() error = %v", err)
		}
		return st
	}

	rc := testResponderConfig()
	uid := testResponderUID(t, rc)
	tr := newBusTransceiver()

	b := buildTestBoard(t, dir, openStore(), tr, responder.NopNotifier{})
	if got := b.responder.Device().Label(); got != "Hall" {
		t.Fatalf("initial label = %q, want the params label", got)
	}
	if !b.responder.Device().FactoryDefaults() {
		t.Error("fresh board not at factory defaults")
	}

	exchange(t, b, tr, rdm.NewSetDmxStartAddress(uid, testControllerUID, 1, rdm.RootDevice, 3))
	exchange(t, b, tr, rdm.NewSetRequest(uid, testControllerUID, 2, rdm.RootDevice, rdm.PIDDeviceLabel, []byte("kitchen")))

	// the store wins over the params files
	b = buildTestBoard(t, dir, openStore(), tr, responder.NopNotifier{})
	dev := b.responder.Device()
	if got := dev.DmxStartAddress(rdm.RootDevice); got != 3 {
		t.Errorf("start address after rebuild = %d, want 3", got)
	}
	if got := dev.Label(); got != "kitchen" {
		t.Errorf("label after rebuild = %q, want kitchen", got)
	}
	if dev.FactoryDefaults() {
		t.Error("rebuilt board with stored changes reports factory defaults")
	}

	exchange(t, b, tr, rdm.NewSetRequest(uid, testControllerUID, 3, rdm.RootDevice, rdm.PIDFactoryDefaults, nil))

	b = buildTestBoard(t, dir, openStore(), tr, responder.NopNotifier{})
	dev = b.responder.Device()
	if got := dev.DmxStartAddress(rdm.RootDevice); got != 1 {
		t.Errorf("start address after factory reset = %d, want 1", got)
	}
	if got := dev.Label(); got != "Hall" {
		t.Errorf("label after factory reset = %q, want Hall", got)
	}
	if !dev.FactoryDefaults() {
		t.Error("FactoryDefaults() = false after factory reset and rebuild")
	}
}

// ============================================================
// Preview
// ============================================================

// The preview goroutine polls identify while Serve toggles it.
func TestPreview_IdentifyWhileServing(t *testing.T) {
	rc := testResponderConfig()
	uid := testResponderUID(t, rc)
	st, err := store.Open("", store.WithDelay(0))
	if err != nil {
		t.Fatal(err)
	}

	tr := newBusTransceiver()
	events := &boardEvents{logger: logging.Default()}
	b := buildTestBoard(t, t.TempDir(), st, tr, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runPreview(ctx, io.Discard, b, events.identify.Load, uid)
	}()
	go func() {
		defer wg.Done()
		if err := b.responder.Serve(ctx); err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	}()

	const requests = 20
	for i := 0; i < requests; i++ {
		tr.rx <- rdm.Encode(rdm.NewSetIdentify(uid, testControllerUID, uint8(i), i%2 == 0))
		time.Sleep(previewInterval / 10)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(tr.responses()) < requests && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	wg.Wait()

	if got := len(tr.responses()); got != requests {
		t.Fatalf("replies = %d, want %d", got, requests)
	}
	// the last request switched identify off
	if events.identify.Load() || b.responder.Device().Identify() {
		t.Error("identify still on after the final request")
	}
}
