// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

// PersonalityDescriptionMaxLength bounds DMX_PERSONALITY_DESCRIPTION text
const PersonalityDescriptionMaxLength = 32

// Personality is one operating mode. A nil output means the mode has no
// DMX footprint.
type Personality struct {
	description string
	output      DmxOutput
}

// NewPersonality creates a personality, truncating the description
func NewPersonality(description string, output DmxOutput) *Personality {
	if len(description) > PersonalityDescriptionMaxLength {
		description = description[:PersonalityDescriptionMaxLength]
	}
	return &Personality{description: description, output: output}
}

func (p *Personality) Description() string {
	return p.description
}

// Output returns the DMX output owner, or nil
func (p *Personality) Output() DmxOutput {
	return p.output
}

func (p *Personality) DmxFootprint() uint16 {
	if p.output == nil {
		return 0
	}
	return p.output.DmxFootprint()
}

func (p *Personality) SlotInfo(offset uint16) (SlotInfo, bool) {
	if p.output == nil {
		return SlotInfo{}, false
	}
	return p.output.SlotInfo(offset)
}
