// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store persists responder configuration in a CBOR file.
//
// Every Save call updates the in-memory records and rewrites the file.
// Writes are fire-and-forget: failures are logged and the responder keeps
// running with the in-memory values.
package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/rdmresponder/pkg/pixel"
)

// FormatVersion is written to every file
const FormatVersion = 1

// DefaultDelay is the post-transmit bus turnaround time
const DefaultDelay = 176 * time.Microsecond

// Device record fields present in Mask
const (
	MaskLabel uint32 = 1 << iota
	MaskProductCategory
	MaskProductDetail
	MaskPersonality
	MaskDmxStartAddress
)

// Pixel record fields present in Mask
const (
	MaskPixelType uint32 = 1 << iota
	MaskPixelCount
	MaskPixelGroupingCount
	MaskPixelMap
	MaskPixelTestPattern
)

// DeviceRecord holds the persisted RDM device settings
type DeviceRecord struct {
	Label           string `cbor:"1,keyasint,omitempty"`
	ProductCategory uint16 `cbor:"2,keyasint,omitempty"`
	ProductDetail   uint16 `cbor:"3,keyasint,omitempty"`
	Personality     uint8  `cbor:"4,keyasint,omitempty"`
	DmxStartAddress uint16 `cbor:"5,keyasint,omitempty"`
	Mask            uint32 `cbor:"6,keyasint"`
}

// Has reports whether every field in mask was saved
func (r DeviceRecord) Has(mask uint32) bool {
	return r.Mask&mask == mask
}

// PixelRecord holds the persisted pixel settings
type PixelRecord struct {
	Type          uint8  `cbor:"1,keyasint"`
	Count         uint16 `cbor:"2,keyasint,omitempty"`
	GroupingCount uint16 `cbor:"3,keyasint,omitempty"`
	Map           uint8  `cbor:"4,keyasint"`
	TestPattern   uint8  `cbor:"5,keyasint,omitempty"`
	Mask          uint32 `cbor:"6,keyasint"`
}

func (r PixelRecord) Has(mask uint32) bool {
	return r.Mask&mask == mask
}

type file struct {
	Version uint8        `cbor:"1,keyasint"`
	Device  DeviceRecord `cbor:"2,keyasint"`
	Pixel   PixelRecord  `cbor:"3,keyasint"`
}

// Option configures a Store
type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithDelay sets the duration of Delay
func WithDelay(d time.Duration) Option {
	return func(s *Store) {
		s.delay = d
	}
}

// Store is the persistence collaborator of the device model and the
// pixel PIDs. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	data file
	enc  cbor.EncMode

	logger *slog.Logger
	delay  time.Duration
	sleep  func(time.Duration)
	writes int
}

// Open loads the store at path. A missing file gives empty records. An
// empty path keeps everything in memory.
func Open(path string, opts ...Option) (*Store, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("store: cbor encoder: %w", err)
	}

	s := &Store{
		path:   path,
		enc:    enc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		delay:  DefaultDelay,
		sleep:  time.Sleep,
		data:   file{Version: FormatVersion},
	}
	for _, opt := range opts {
		opt(s)
	}

	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}

	if err := cbor.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	if s.data.Version != FormatVersion {
		return nil, fmt.Errorf("store: %s has format version %d, want %d", path, s.data.Version, FormatVersion)
	}
	return s, nil
}

// Path returns the backing file, empty for a memory store
func (s *Store) Path() string {
	return s.path
}

// Device returns a copy of the device record
func (s *Store) Device() DeviceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Device
}

// Pixel returns a copy of the pixel record
func (s *Store) Pixel() PixelRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Pixel
}

// Writes returns the number of successful file writes
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) updateDevice(mask uint32, fn func(r *DeviceRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.data.Device)
	s.data.Device.Mask |= mask
	s.flush()
}

func (s *Store) updatePixel(mask uint32, fn func(r *PixelRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.data.Pixel)
	s.data.Pixel.Mask |= mask
	s.flush()
}

// flush writes the records through a temporary file. Called with mu held.
func (s *Store) flush() {
	if s.path == "" {
		return
	}
	if err := s.write(); err != nil {
		s.logger.Error("store write failed", "path", s.path, "error", err)
		return
	}
	s.writes++
}

func (s *Store) write() error {
	raw, err := s.enc.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// ============================================================
// device.Store
// ============================================================

func (s *Store) SaveLabel(label string) {
	s.updateDevice(MaskLabel, func(r *DeviceRecord) { r.Label = label })
}

func (s *Store) SaveProductCategory(category uint16) {
	s.updateDevice(MaskProductCategory, func(r *DeviceRecord) { r.ProductCategory = category })
}

func (s *Store) SaveProductDetail(detail uint16) {
	s.updateDevice(MaskProductDetail, func(r *DeviceRecord) { r.ProductDetail = detail })
}

func (s *Store) SavePersonality(personality uint8) {
	s.updateDevice(MaskPersonality, func(r *DeviceRecord) { r.Personality = personality })
}

func (s *Store) SaveDmxStartAddress(address uint16) {
	s.updateDevice(MaskDmxStartAddress, func(r *DeviceRecord) { r.DmxStartAddress = address })
}

// SetFactoryDefaults erases every record
func (s *Store) SetFactoryDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = file{Version: FormatVersion}
	s.flush()
	s.logger.Info("store erased", "path", s.path)
}

// ============================================================
// pixel.Store
// ============================================================

func (s *Store) SaveType(t pixel.Type) {
	s.updatePixel(MaskPixelType, func(r *PixelRecord) { r.Type = uint8(t) })
}

func (s *Store) SaveCount(count uint16) {
	s.updatePixel(MaskPixelCount, func(r *PixelRecord) { r.Count = count })
}

func (s *Store) SaveGroupingCount(count uint16) {
	s.updatePixel(MaskPixelGroupingCount, func(r *PixelRecord) { r.GroupingCount = count })
}

func (s *Store) SaveMap(m pixel.Map) {
	s.updatePixel(MaskPixelMap, func(r *PixelRecord) { r.Map = uint8(m) })
}

func (s *Store) SaveTestPattern(pattern uint8) {
	s.updatePixel(MaskPixelTestPattern, func(r *PixelRecord) { r.TestPattern = pattern })
}

// Delay waits out the post-transmit bus turnaround
func (s *Store) Delay() {
	if s.delay > 0 {
		s.sleep(s.delay)
	}
}
