// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"path/filepath"

	"github.com/Thermoquad/rdmresponder/pkg/device"
)

// Set-mask bits of RdmDeviceParams
const (
	MaskLabel uint32 = 1 << iota
	MaskProductCategory
	MaskProductDetail
)

// RdmDeviceParams holds the root device identity overrides
type RdmDeviceParams struct {
	Label           string
	ProductCategory uint16
	ProductDetail   uint16
	Mask            uint32
}

type rdmDeviceFile struct {
	Label           *string `yaml:"label,omitempty"`
	ProductCategory *Hex16  `yaml:"product_category,omitempty"`
	ProductDetail   *Hex16  `yaml:"product_detail,omitempty"`
}

// LoadRdmDevice reads rdm_device.yaml from dir
func LoadRdmDevice(dir string) (*RdmDeviceParams, error) {
	return LoadRdmDeviceFile(filepath.Join(dir, RdmDeviceFile))
}

func LoadRdmDeviceFile(path string) (*RdmDeviceParams, error) {
	var f rdmDeviceFile
	if _, err := load(path, &f); err != nil {
		return nil, err
	}

	p := &RdmDeviceParams{}
	if f.Label != nil {
		p.Label = *f.Label
		p.Mask |= MaskLabel
	}
	if f.ProductCategory != nil {
		p.ProductCategory = uint16(*f.ProductCategory)
		p.Mask |= MaskProductCategory
	}
	if f.ProductDetail != nil {
		p.ProductDetail = uint16(*f.ProductDetail)
		p.Mask |= MaskProductDetail
	}
	return p, nil
}

func (p *RdmDeviceParams) Has(mask uint32) bool {
	return p.Mask&mask == mask
}

// Set applies the configured values. Applied before Device.Init the label
// becomes the factory label.
func (p *RdmDeviceParams) Set(d *device.Device) {
	if p.Has(MaskLabel) {
		d.SetLabel(p.Label)
	}
	if p.Has(MaskProductCategory) {
		d.SetProductCategory(p.ProductCategory)
	}
	if p.Has(MaskProductDetail) {
		d.SetProductDetail(p.ProductDetail)
	}
}

// Builder renders the configured values. Unset values are omitted.
func (p *RdmDeviceParams) Builder() ([]byte, error) {
	var f rdmDeviceFile
	if p.Has(MaskLabel) {
		f.Label = &p.Label
	}
	if p.Has(MaskProductCategory) {
		v := Hex16(p.ProductCategory)
		f.ProductCategory = &v
	}
	if p.Has(MaskProductDetail) {
		v := Hex16(p.ProductDetail)
		f.ProductDetail = &v
	}
	return build(f)
}
