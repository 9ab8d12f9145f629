// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package notify publishes responder board events over MQTT.
//
// Topics are rooted at <topic_prefix>/<uid>:
//
//	status             online/offline, retained, with a last will
//	personality        {"personality":N}, retained
//	dmx_start_address  {"dmx_start_address":N}, retained
//	identify           {"identify":bool}, retained
//	reset              {"cold":bool}
package notify

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Thermoquad/rdmresponder/internal/config"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	keepAlive      = 60 * time.Second
	// milliseconds
	disconnectQuiesce = 250
)

var (
	ErrConnectionFailed = errors.New("mqtt connection failed")
	ErrPublishFailed    = errors.New("mqtt publish failed")
)

// Publisher sends one MQTT message
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Notifier turns responder notifications into MQTT messages. Publish
// failures are logged and never block the responder for longer than the
// publish timeout.
type Notifier struct {
	pub    Publisher
	prefix string
	qos    byte
	logger *slog.Logger
	close  func()
}

// New creates a notifier publishing under prefix/uid
func New(pub Publisher, prefix string, uid rdm.UID, qos byte, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		pub:    pub,
		prefix: Topic(prefix, uid),
		qos:    qos,
		logger: logger,
		close:  func() {},
	}
}

// Topic returns the topic root of a responder
func Topic(prefix string, uid rdm.UID) string {
	return fmt.Sprintf("%s/%04x%08x", prefix, uid.ManufacturerID(), uid.DeviceID())
}

// Connect dials the broker in cfg and returns a Notifier using it
func Connect(cfg config.MQTTConfig, uid rdm.UID, logger *slog.Logger) (*Notifier, error) {
	root := Topic(cfg.TopicPrefix, uid)

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.Broker.ClientID)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(root+"/status", "offline", byte(cfg.QoS), true)
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	n := New(pahoPublisher{client}, cfg.TopicPrefix, uid, byte(cfg.QoS), logger)
	n.close = func() {
		n.publish("status", true, []byte("offline"))
		client.Disconnect(disconnectQuiesce)
	}
	n.publish("status", true, []byte("online"))
	return n, nil
}

// Close publishes offline and disconnects
func (n *Notifier) Close() {
	n.close()
}

func (n *Notifier) PersonalityUpdate(personality uint8) {
	n.publishJSON("personality", true, map[string]any{"personality": personality})
}

func (n *Notifier) DmxStartAddressUpdate(address uint16) {
	n.publishJSON("dmx_start_address", true, map[string]any{"dmx_start_address": address})
}

func (n *Notifier) Identify(on bool) {
	n.publishJSON("identify", true, map[string]any{"identify": on})
}

func (n *Notifier) ResetDevice(cold bool) {
	n.publishJSON("reset", false, map[string]any{"cold": cold})
}

func (n *Notifier) publishJSON(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		n.logger.Error("mqtt payload encode failed", "topic", topic, "error", err)
		return
	}
	n.publish(topic, retained, payload)
}

func (n *Notifier) publish(topic string, retained bool, payload []byte) {
	topic = n.prefix + "/" + topic
	if err := n.pub.Publish(topic, n.qos, retained, payload); err != nil {
		n.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

type pahoPublisher struct {
	client pahomqtt.Client
}

func (p pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("%w: not connected", ErrPublishFailed)
	}
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
