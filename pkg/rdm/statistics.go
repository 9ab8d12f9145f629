// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks message statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames        uint64
	ValidMessages      uint64
	ChecksumErrors     uint64
	DecodeErrors       uint64
	MalformedMessages  uint64
	LengthMismatches   uint64
	AnomalousValues    uint64
	BroadcastGets      uint64
	DiscoveryResponses uint64
	Nacks              uint64

	// Per command class
	Discovery uint64
	Gets      uint64
	Sets      uint64
	Responses uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a message and its errors
func (s *Statistics) Update(m *Message, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrChecksum) {
			s.ChecksumErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	switch m.CommandClass {
	case DiscoveryCommand:
		s.Discovery++
	case GetCommand:
		s.Gets++
	case SetCommand:
		s.Sets++
	default:
		if m.IsResponse() {
			s.Responses++
			if m.PortID == ResponseTypeNackReason {
				s.Nacks++
			}
		}
	}

	if len(validationErrors) == 0 {
		s.ValidMessages++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyLengthMismatch:
			s.LengthMismatches++
			s.MalformedMessages++
		case AnomalyInvalidCommandClass, AnomalyInvalidResponseType:
			s.MalformedMessages++
		case AnomalyBroadcastGet:
			s.BroadcastGets++
			s.AnomalousValues++
		case AnomalyInvalidValue:
			s.AnomalousValues++
		}
	}
}

// UpdateDiscoveryResponse counts a discovery response datagram
func (s *Statistics) UpdateDiscoveryResponse(err error) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()
	if err != nil {
		s.DecodeErrors++
		return
	}
	s.DiscoveryResponses++
	s.ValidMessages++
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
}

// ErrorCount returns the number of frames with any error
func (s *Statistics) ErrorCount() uint64 {
	return s.ChecksumErrors + s.DecodeErrors + s.MalformedMessages + s.AnomalousValues
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(v uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(v) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Messages:  %8d (%.1f%%)\n", s.ValidMessages, percent(s.ValidMessages))
	result += fmt.Sprintf("  DISCOVERY/GET/SET: %d/%d/%d  Responses: %d (NACK %d)  DUB replies: %d\n",
		s.Discovery, s.Gets, s.Sets, s.Responses, s.Nacks, s.DiscoveryResponses)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.MalformedMessages > 0 {
		result += fmt.Sprintf("Malformed Msgs:  %8d (%.1f%%)\n", s.MalformedMessages, percent(s.MalformedMessages))
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  PDL Mismatch:     %5d\n", s.LengthMismatches)
		}
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, percent(s.AnomalousValues))
		if s.BroadcastGets > 0 {
			result += fmt.Sprintf("  Broadcast GET:    %5d\n", s.BroadcastGets)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
