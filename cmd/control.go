// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for configuring RDM responders",
	Long: `Discover and configure RDM responders via an interactive terminal UI.

This command runs as an RDM controller on the configured link port.

Features:
  - Full binary search discovery (DISC_UNIQUE_BRANCH, DISC_MUTE)
  - DEVICE_INFO and DEVICE_LABEL of the selected responder
  - DMX start address and personality changes
  - Identify toggle
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the device list and the controls. Arrow keys navigate
the device list, 'd' runs discovery again.

Supports both serial and WebSocket connections. Set RDMRESPONDER_PASSWORD
when the WebSocket needs a password, reconnects cannot prompt.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// connectionManager owns the link session and the controller driving it.
// The controller is not safe for concurrent use, every request goes
// through do.
type connectionManager struct {
	ctx      context.Context
	mu       sync.Mutex
	session  *linkSession
	ctrl     *controller
	src      rdm.UID
	connInfo string
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) setSession(s *linkSession) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.session = s
	cm.connInfo = s.desc
	cm.ctrl = newController(s.port, cfg.Link.PortIndex, cm.src)
}

// do runs fn with exclusive use of the controller
func (cm *connectionManager) do(fn func(c *controller) error) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.ctrl == nil {
		return errLinkDown
	}
	return fn(cm.ctrl)
}

var errLinkDown = errors.New("connection lost")

func runControl(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("control needs a terminal, use discovery or get/set in scripts")
	}

	src, err := controllerUID()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, err := openLink(ctx)
	if err != nil {
		return err
	}

	cm := &connectionManager{
		ctx:  ctx,
		src:  src,
		done: make(chan struct{}),
	}
	cm.setSession(session)

	m := initialControlModel(cm, session.desc)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.watchLoop()

	_, err = p.Run()
	close(cm.done)
	cancel()
	cm.closeSession()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func (cm *connectionManager) closeSession() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.session != nil {
		cm.session.Close()
	}
	cm.ctrl = nil
}

// watchLoop waits for the link to fail and reconnects
func (cm *connectionManager) watchLoop() {
	for {
		cm.mu.Lock()
		done := cm.session.done
		cm.mu.Unlock()

		select {
		case <-cm.done:
			return
		case err := <-done:
			if err == nil {
				err = errLinkDown
			}
			cm.closeSession()
			cm.p.Send(connectionLostMsg{err: err})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		session, err := openLink(cm.ctx)
		if err == nil {
			cm.setSession(session)
			cm.p.Send(reconnectedMsg{connInfo: session.desc})
			return true
		}
		logger.Debug("reconnect failed", "error", err, "backoff", backoff)

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// discoverCmd runs discovery in the background. Each UID is reported as
// it is muted so the list fills while the search runs.
func (cm *connectionManager) discoverCmd() tea.Cmd {
	return func() tea.Msg {
		var uids []rdm.UID
		err := cm.do(func(c *controller) error {
			var err error
			uids, err = c.discover(func(uid rdm.UID) {
				cm.p.Send(deviceFoundMsg{uid: uid})
			})
			return err
		})
		return discoveryCompleteMsg{uids: uids, err: err}
	}
}

// refreshCmd reads DEVICE_INFO and DEVICE_LABEL of uid
func (cm *connectionManager) refreshCmd(uid rdm.UID) tea.Cmd {
	return func() tea.Msg {
		msg := deviceInfoMsg{uid: uid}
		msg.err = cm.do(func(c *controller) error {
			var err error
			if msg.info, err = c.deviceInfo(uid); err != nil {
				return err
			}
			if label, err := c.label(uid); err == nil {
				msg.label = label
			}
			return nil
		})
		return msg
	}
}

// requestCmd sends one SET built by build and reports the outcome under
// action. A successful SET is followed by a refresh.
func (cm *connectionManager) requestCmd(uid rdm.UID, action string, build func(c *controller) *rdm.Message) tea.Cmd {
	return func() tea.Msg {
		err := cm.do(func(c *controller) error {
			_, err := c.transact(build(c))
			return err
		})
		return commandResultMsg{uid: uid, action: action, err: err}
	}
}

func (cm *connectionManager) setStartAddressCmd(uid rdm.UID, address uint16) tea.Cmd {
	return cm.requestCmd(uid, fmt.Sprintf("DMX_START_ADDRESS=%d", address), func(c *controller) *rdm.Message {
		return rdm.NewSetDmxStartAddress(uid, c.src, c.nextTN(), rdm.RootDevice, address)
	})
}

func (cm *connectionManager) setPersonalityCmd(uid rdm.UID, personality uint8) tea.Cmd {
	return cm.requestCmd(uid, fmt.Sprintf("DMX_PERSONALITY=%d", personality), func(c *controller) *rdm.Message {
		return rdm.NewSetPersonality(uid, c.src, c.nextTN(), rdm.RootDevice, personality)
	})
}

func (cm *connectionManager) identifyCmd(uid rdm.UID, on bool) tea.Cmd {
	return cm.requestCmd(uid, fmt.Sprintf("IDENTIFY_DEVICE=%t", on), func(c *controller) *rdm.Message {
		return rdm.NewSetIdentify(uid, c.src, c.nextTN(), on)
	})
}
