// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pixel

import "sync"

// Colour is one pixel value. W is only used by 4-channel types.
type Colour struct {
	R, G, B, W uint8
}

// Sink receives rendered pixels. Update latches every pixel set since
// the last Update to the strip.
type Sink interface {
	SetPixel(index int, c Colour)
	Update()
	Blackout()
}

// Strip is an in-memory Sink. It is safe to read from another goroutine
// while the responder writes to it.
type Strip struct {
	mu      sync.Mutex
	pending []Colour
	shown   []Colour
	updates int
}

// NewStrip creates a strip of count pixels
func NewStrip(count int) *Strip {
	return &Strip{
		pending: make([]Colour, count),
		shown:   make([]Colour, count),
	}
}

func (s *Strip) SetPixel(index int, c Colour) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index >= 0 && index < len(s.pending) {
		s.pending[index] = c
	}
}

func (s *Strip) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.shown, s.pending)
	s.updates++
}

// Blackout turns every pixel off immediately
func (s *Strip) Blackout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.pending)
	clear(s.shown)
	s.updates++
}

// Pixels returns a copy of the latched pixels
func (s *Strip) Pixels() []Colour {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Colour(nil), s.shown...)
}

// Updates returns the number of Update and Blackout calls
func (s *Strip) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updates
}

// Len returns the number of pixels
func (s *Strip) Len() int {
	return len(s.shown)
}
