// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package device models an RDM root device: its identity, personalities,
// sub-devices and sensors, and the DEVICE_INFO record built from them.
//
// The types are not safe for concurrent use. A responder drives them from
// a single loop.
package device

import (
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// Label limits
const (
	LabelMaxLength            = 32
	ManufacturerNameMaxLength = 32
)

// DefaultLabel is the factory root label when none is configured
const DefaultLabel = "Linux RDM Device"

// Store persists mutable device state. Calls are fire-and-forget.
type Store interface {
	SaveLabel(label string)
	SaveProductCategory(category uint16)
	SaveProductDetail(detail uint16)
	SavePersonality(personality uint8)
	SaveDmxStartAddress(address uint16)
	SetFactoryDefaults()
}

// NopStore discards everything
type NopStore struct{}

func (NopStore) SaveLabel(string)           {}
func (NopStore) SaveProductCategory(uint16) {}
func (NopStore) SaveProductDetail(uint16)   {}
func (NopStore) SavePersonality(uint8)      {}
func (NopStore) SaveDmxStartAddress(uint16) {}
func (NopStore) SetFactoryDefaults()        {}

// Params applies configured or persisted values during Init
type Params interface {
	Set(d *Device)
}

// Config holds the construction-time identity of a device
type Config struct {
	ManufacturerID   uint16
	ManufacturerName string
	Serial           [4]byte
	// Label is the factory root label, DefaultLabel when empty
	Label string
}

// Device holds the identity, root label and product classification.
type Device struct {
	uid              rdm.UID
	serial           [4]byte
	manufacturerName string

	label        string
	factoryLabel string

	productCategory uint16
	productDetail   uint16

	checksum    uint16
	initialized bool

	store Store
}

// NewDevice creates a device in its factory state. A nil store is replaced
// by NopStore.
func NewDevice(cfg Config, store Store) *Device {
	if store == nil {
		store = NopStore{}
	}

	label := cfg.Label
	if label == "" {
		label = DefaultLabel
	}

	name := cfg.ManufacturerName
	if len(name) > ManufacturerNameMaxLength {
		name = name[:ManufacturerNameMaxLength]
	}

	d := &Device{
		uid:              rdm.NewUID(cfg.ManufacturerID, cfg.Serial),
		serial:           cfg.Serial,
		manufacturerName: name,
		factoryLabel:     truncateLabel(label),
		productCategory:  rdm.ProductCategoryOther,
		productDetail:    rdm.ProductDetailOther,
		store:            store,
	}
	d.label = d.factoryLabel
	return d
}

// Init moves the device from its factory state to the live state and
// applies params in order. Init panics when called twice.
func (d *Device) Init(params ...Params) {
	if d.initialized {
		panic("device: Init called twice")
	}

	d.SetFactoryDefaults()
	d.initialized = true

	for _, p := range params {
		p.Set(d)
	}
}

// Initialized reports whether Init has run
func (d *Device) Initialized() bool {
	return d.initialized
}

func (d *Device) UID() rdm.UID {
	return d.uid
}

func (d *Device) SerialNumber() [4]byte {
	return d.serial
}

func (d *Device) ManufacturerID() uint16 {
	return d.uid.ManufacturerID()
}

func (d *Device) ManufacturerName() string {
	return d.manufacturerName
}

// SetLabel sets the root label, truncated to LabelMaxLength. Before Init
// the factory label changes too. After Init the label is persisted.
func (d *Device) SetLabel(label string) {
	label = truncateLabel(label)

	if !d.initialized {
		d.factoryLabel = label
		d.label = label
		return
	}

	d.label = label
	d.store.SaveLabel(label)
}

func (d *Device) Label() string {
	return d.label
}

func (d *Device) FactoryLabel() string {
	return d.factoryLabel
}

// SetProductCategory sets the category, persisting changes after Init
func (d *Device) SetProductCategory(category uint16) {
	changed := d.productCategory != category
	d.productCategory = category
	if d.initialized && changed {
		d.store.SaveProductCategory(category)
	}
}

func (d *Device) ProductCategory() uint16 {
	return d.productCategory
}

func (d *Device) SetProductDetail(detail uint16) {
	changed := d.productDetail != detail
	d.productDetail = detail
	if d.initialized && changed {
		d.store.SaveProductDetail(detail)
	}
}

func (d *Device) ProductDetail() uint16 {
	return d.productDetail
}

// SetFactoryDefaults restores the factory label and snapshots the checksum
func (d *Device) SetFactoryDefaults() {
	d.label = d.factoryLabel
	if d.initialized {
		d.store.SaveLabel(d.label)
	}
	d.checksum = d.Checksum()
}

// FactoryDefaults reports whether the label still matches the snapshot
func (d *Device) FactoryDefaults() bool {
	return d.checksum == d.Checksum()
}

// Checksum is the label length plus the sum of the label bytes
func (d *Device) Checksum() uint16 {
	return LabelChecksum(d.label)
}

// LabelChecksum is the length of label plus the sum of its bytes, mod 2^16
func LabelChecksum(label string) uint16 {
	sum := uint16(len(label))
	for i := 0; i < len(label); i++ {
		sum += uint16(label[i])
	}
	return sum
}

func truncateLabel(label string) string {
	if len(label) > LabelMaxLength {
		return label[:LabelMaxLength]
	}
	return label
}
