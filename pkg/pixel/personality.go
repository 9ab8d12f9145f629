// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pixel

import "github.com/Thermoquad/rdmresponder/pkg/device"

// ConfigModeDescription names the config-mode personality
const ConfigModeDescription = "Config mode"

// Personalities returns the pixel personality followed by the config
// mode personality
func Personalities(d *Dmx, params *ParamsRdm) []*device.Personality {
	return []*device.Personality{
		device.NewPersonality(d.Config().Description(), d),
		device.NewPersonality(ConfigModeDescription, params),
	}
}

// TypePersonalities returns one personality per pixel type, all driving
// d, and the personality number of the configured type. Selecting a
// personality selects the type for the next restart.
func TypePersonalities(d *Dmx) ([]*device.Personality, uint8) {
	personalities := make([]*device.Personality, 0, TypeUndefined)
	for t := Type(0); t < TypeUndefined; t++ {
		personalities = append(personalities, device.NewPersonality(t.String(), d))
	}
	return personalities, uint8(d.Config().Type) + 1
}

// TypeOfPersonality maps a TypePersonalities number back to its type
func TypeOfPersonality(n uint8) Type {
	if n == 0 || Type(n-1) >= TypeUndefined {
		return TypeUndefined
	}
	return Type(n - 1)
}
