// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomUID(rng *rand.Rand) UID {
	return UIDFromUint64(rng.Uint64())
}

// ============================================================
// Message Fuzz Tests
// ============================================================

func TestFuzz_MessageRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	classes := []uint8{DiscoveryCommand, GetCommand, SetCommand, GetCommandResponse, SetCommandResponse}

	for i := 0; i < getFuzzRounds(); i++ {
		pd := make([]byte, rng.Intn(MaxParamDataLength+1))
		rng.Read(pd)

		m := &Message{
			Destination:       randomUID(rng),
			Source:            randomUID(rng),
			TransactionNumber: uint8(rng.Intn(256)),
			PortID:            uint8(rng.Intn(256)),
			MessageCount:      uint8(rng.Intn(256)),
			SubDevice:         uint16(rng.Intn(65536)),
			CommandClass:      classes[rng.Intn(len(classes))],
			PID:               uint16(rng.Intn(65536)),
			ParamData:         pd,
		}

		data := Encode(m)
		parsed, err := Parse(data)
		if err != nil {
			t.Fatalf("Round %d: parse error: %v", i, err)
		}
		if parsed.Destination != m.Destination || parsed.Source != m.Source ||
			parsed.PID != m.PID || parsed.SubDevice != m.SubDevice ||
			string(parsed.ParamData) != string(m.ParamData) {
			t.Fatalf("Round %d: round trip mismatch", i)
		}
	}
}

func TestFuzz_ParseRandomBytes(t *testing.T) {
	rng := newFuzzRng(t)

	for i := 0; i < getFuzzRounds(); i++ {
		data := make([]byte, rng.Intn(300))
		rng.Read(data)
		if len(data) > 1 && rng.Intn(2) == 0 {
			data[0] = StartCode
			data[1] = SubStartCode
		}

		m, err := Parse(data)
		if err == nil {
			// Accidentally valid frames must validate without panicking
			_ = ValidateMessage(m)
			_ = FormatMessage(m)
		}
		_, _ = DecodeDiscoveryResponse(data)
	}
}

func TestFuzz_DiscoveryResponseRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)

	for i := 0; i < getFuzzRounds(); i++ {
		uid := randomUID(rng)
		r := EncodeDiscoveryResponse(uid)
		got, err := DecodeDiscoveryResponse(r[rng.Intn(8):])
		if err != nil {
			t.Fatalf("Round %d: decode error for %v: %v", i, uid, err)
		}
		if got != uid {
			t.Fatalf("Round %d: expected %v, got %v", i, uid, got)
		}
	}
}
