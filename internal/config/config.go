// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the rdmresponder application configuration.
//
// Values are layered: defaults, then the YAML file, then RDMRESPONDER_*
// environment variables. Command line flags are applied by the caller.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Link      LinkConfig      `yaml:"link"`
	Responder ResponderConfig `yaml:"responder"`
	Store     StoreConfig     `yaml:"store"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LinkConfig selects the transport to the RDM bus gateway
type LinkConfig struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
	// PortIndex is the bus port of the gateway the responder listens on
	PortIndex uint32 `yaml:"port_index"`
	// DirectionSettle is waited after switching the port to transmit
	DirectionSettle time.Duration `yaml:"direction_settle"`
}

// ResponderConfig holds the device identity and behaviour
type ResponderConfig struct {
	ManufacturerID uint16 `yaml:"manufacturer_id"`
	// SerialNumber is 8 hex digits. Empty derives one from the host node ID.
	SerialNumber         string        `yaml:"serial_number"`
	Label                string        `yaml:"label"`
	Personality          string        `yaml:"personality"`
	PostTransmitDelay    time.Duration `yaml:"post_transmit_delay"`
	SoftwareVersionLabel string        `yaml:"software_version_label"`
	ParamsDir            string        `yaml:"params_dir"`
}

// Personality modes
const (
	PersonalityPixel = "pixel"
	PersonalityTypes = "types"
)

// StoreConfig locates the persisted configuration. An empty path keeps
// it in memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MQTTConfig contains the board notifier connection settings
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the configuration at path. A missing file or an empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults only
func Default() *Config {
	return &Config{
		Link: LinkConfig{
			Baud:            115200,
			DirectionSettle: 0,
		},
		Responder: ResponderConfig{
			ManufacturerID:       0x7FF0,
			Label:                "RDM Responder",
			Personality:          PersonalityPixel,
			PostTransmitDelay:    176 * time.Microsecond,
			SoftwareVersionLabel: "rdmresponder",
			ParamsDir:            ".",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rdmresponder",
			},
			QoS:         1,
			TopicPrefix: "rdmresponder",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies RDMRESPONDER_SECTION_KEY variables
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RDMRESPONDER_PORT"); v != "" {
		cfg.Link.Port = v
	}
	if v := os.Getenv("RDMRESPONDER_URL"); v != "" {
		cfg.Link.URL = v
	}

	if v := os.Getenv("RDMRESPONDER_STORE"); v != "" {
		cfg.Store.Path = v
	}

	if v := os.Getenv("RDMRESPONDER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RDMRESPONDER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RDMRESPONDER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("RDMRESPONDER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []string

	if c.Link.Baud <= 0 {
		errs = append(errs, "link.baud must be positive")
	}
	if c.Link.Port != "" && c.Link.URL != "" {
		errs = append(errs, "link.port and link.url are mutually exclusive")
	}

	if c.Responder.ManufacturerID == 0 || c.Responder.ManufacturerID == 0xFFFF {
		errs = append(errs, "responder.manufacturer_id must not be 0x0000 or 0xFFFF")
	}
	if _, err := c.Responder.Serial(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Responder.Personality {
	case PersonalityPixel, PersonalityTypes:
	default:
		errs = append(errs, fmt.Sprintf("responder.personality must be %q or %q", PersonalityPixel, PersonalityTypes))
	}
	if c.Responder.PostTransmitDelay < 0 {
		errs = append(errs, "responder.post_transmit_delay must not be negative")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Serial returns the configured 4-byte serial number, or the low four
// bytes of the host node ID when none is configured.
func (c ResponderConfig) Serial() ([4]byte, error) {
	var serial [4]byte

	if c.SerialNumber == "" {
		node := uuid.NodeID()
		copy(serial[:], node[len(node)-4:])
		return serial, nil
	}

	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(c.SerialNumber), "0x"))
	if err != nil || len(b) != len(serial) {
		return serial, fmt.Errorf("responder.serial_number %q must be 8 hex digits", c.SerialNumber)
	}
	copy(serial[:], b)
	return serial, nil
}

// BrokerURL returns the tcp:// or ssl:// address of the MQTT broker
func (c MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Broker.Host, c.Broker.Port)
}
