// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rdmresponder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, PersonalityPixel, cfg.Responder.Personality)
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
link:
  port: /dev/ttyACM0
  baud: 250000
  direction_settle: 50us
responder:
  manufacturer_id: 0x7FF0
  serial_number: "0a0b0c0d"
  personality: types
  post_transmit_delay: 1ms
store:
  path: /var/lib/rdmresponder/store.cbor
mqtt:
  enabled: true
  broker:
    host: broker.local
    port: 8883
    tls: true
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Link.Port)
	assert.Equal(t, 250000, cfg.Link.Baud)
	assert.Equal(t, 50*time.Microsecond, cfg.Link.DirectionSettle)
	assert.Equal(t, PersonalityTypes, cfg.Responder.Personality)
	assert.Equal(t, time.Millisecond, cfg.Responder.PostTransmitDelay)
	assert.Equal(t, "/var/lib/rdmresponder/store.cbor", cfg.Store.Path)
	assert.Equal(t, "ssl://broker.local:8883", cfg.MQTT.BrokerURL())
	assert.Equal(t, "debug", cfg.Logging.Level)

	// untouched keys keep their defaults
	assert.Equal(t, "rdmresponder", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "RDM Responder", cfg.Responder.Label)

	serial, err := cfg.Responder.Serial()
	require.NoError(t, err)
	assert.Equal(t, [4]byte{0x0A, 0x0B, 0x0C, 0x0D}, serial)
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(writeConfig(t, "link: [not, a, map]\n"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RDMRESPONDER_URL", "ws://gateway.local/rdm")
	t.Setenv("RDMRESPONDER_STORE", "/tmp/store.cbor")
	t.Setenv("RDMRESPONDER_MQTT_PASSWORD", "secret")
	t.Setenv("RDMRESPONDER_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "mqtt:\n  auth:\n    password: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "ws://gateway.local/rdm", cfg.Link.URL)
	assert.Equal(t, "/tmp/store.cbor", cfg.Store.Path)
	assert.Equal(t, "secret", cfg.MQTT.Auth.Password)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errText string
	}{
		{"both transports", func(c *Config) { c.Link.Port, c.Link.URL = "/dev/ttyUSB0", "ws://x" }, "mutually exclusive"},
		{"baud", func(c *Config) { c.Link.Baud = 0 }, "link.baud"},
		{"manufacturer", func(c *Config) { c.Responder.ManufacturerID = 0xFFFF }, "manufacturer_id"},
		{"serial", func(c *Config) { c.Responder.SerialNumber = "1234" }, "8 hex digits"},
		{"personality", func(c *Config) { c.Responder.Personality = "dimmer" }, "responder.personality"},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"mqtt port", func(c *Config) { c.MQTT.Enabled, c.MQTT.Broker.Port = true, 0 }, "mqtt.broker.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errText)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestSerial_DerivedFromNodeID(t *testing.T) {
	a, err := ResponderConfig{}.Serial()
	require.NoError(t, err)
	b, err := ResponderConfig{}.Serial()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
