// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package params loads the YAML params files of a responder node:
// rdm_device.yaml, sensors.yaml, subdevices.yaml and pixel.yaml.
//
// A missing file is not an error and yields the defaults. Every file type
// has a Builder that renders the effective values back to YAML.
package params

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// File names inside a params directory
const (
	RdmDeviceFile  = "rdm_device.yaml"
	SensorsFile    = "sensors.yaml"
	SubDevicesFile = "subdevices.yaml"
	PixelFile      = "pixel.yaml"
)

// load decodes path into v. It reports false when the file does not exist.
func load(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading params file: %w", err)
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing params file %s: %w", path, err)
	}
	return true, nil
}

func build(v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rendering params: %w", err)
	}
	return data, nil
}

// Hex16 is a 16-bit value written as 0xNNNN. Decimal input is accepted.
type Hex16 uint16

func (h Hex16) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: fmt.Sprintf("0x%04X", uint16(h)),
	}, nil
}

func (h *Hex16) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a 16-bit value", node.Line)
	}

	v, err := strconv.ParseUint(node.Value, 0, 16)
	if err != nil {
		return fmt.Errorf("line %d: invalid 16-bit value %q", node.Line, node.Value)
	}
	*h = Hex16(v)
	return nil
}

// Hex8 is an 8-bit value written as 0xNN
type Hex8 uint8

func (h Hex8) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: fmt.Sprintf("0x%02X", uint8(h)),
	}, nil
}

func (h *Hex8) UnmarshalYAML(node *yaml.Node) error {
	v, err := strconv.ParseUint(node.Value, 0, 8)
	if err != nil {
		return fmt.Errorf("line %d: invalid 8-bit value %q", node.Line, node.Value)
	}
	*h = Hex8(v)
	return nil
}
