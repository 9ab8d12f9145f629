// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const refreshIntervalSeconds = 5 // Re-read the selected device every N seconds

// Focus states
const (
	focusDeviceList = iota
	focusAddressInput
	focusPersonalityInput
	focusIdentifyButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// rdmDevice is a discovered responder and what was last read from it
type rdmDevice struct {
	uid      rdm.UID
	info     *rdm.DeviceInfo
	label    string
	identify bool
	lastSeen time.Time
}

// Implement list.Item interface
func (d rdmDevice) Title() string { return d.uid.String() }
func (d rdmDevice) Description() string {
	switch {
	case d.label != "":
		return d.label
	case d.info != nil:
		return fmt.Sprintf("model 0x%04X", d.info.DeviceModel)
	default:
		return "..."
	}
}
func (d rdmDevice) FilterValue() string { return d.uid.String() }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	connMgr  *connectionManager
	connInfo string

	// Device tracking
	devices    []rdmDevice
	deviceList list.Model

	// Discovery state
	discovering   bool
	discoveryDone bool

	// Request outcomes
	requests uint64
	acks     uint64
	nacks    uint64
	timeouts uint64
	events   eventLog

	// Control
	addressInput     textinput.Model
	personalityInput textinput.Model
	focusedField     int
	lastRefresh      time.Time

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type deviceFoundMsg struct {
	uid rdm.UID
}

type discoveryCompleteMsg struct {
	uids []rdm.UID
	err  error
}

type deviceInfoMsg struct {
	uid   rdm.UID
	info  rdm.DeviceInfo
	label string
	err   error
}

type commandResultMsg struct {
	uid    rdm.UID
	action string
	err    error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	address := textinput.New()
	address.Placeholder = "1"
	address.CharLimit = 3
	address.Width = 6

	personality := textinput.New()
	personality.Placeholder = "1"
	personality.CharLimit = 3
	personality.Width = 6

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	deviceList := list.New([]list.Item{}, delegate, 30, 10)
	deviceList.Title = "Responders"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:          connMgr,
		connInfo:         connInfo,
		devices:          make([]rdmDevice, 0),
		deviceList:       deviceList,
		discovering:      true,
		addressInput:     address,
		personalityInput: personality,
		focusedField:     focusDeviceList,
		width:            80,
		height:           24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(controlTickCmd(), m.connMgr.discoverCmd())
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.deviceList, _ = m.deviceList.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		cmds = append(cmds, controlTickCmd())
		if !m.discovering && !m.connectionLost && time.Since(m.lastRefresh) >= refreshIntervalSeconds*time.Second {
			if selected := m.getSelectedDevice(); selected != nil {
				m.lastRefresh = time.Now()
				cmds = append(cmds, m.connMgr.refreshCmd(selected.uid))
			}
		}
		return m, tea.Batch(cmds...)

	case deviceFoundMsg:
		if m.addDevice(msg.uid) {
			m.addLogEntry(fmt.Sprintf("Responder discovered: %s", msg.uid), false)
			cmds = append(cmds, m.connMgr.refreshCmd(msg.uid))
		}

	case discoveryCompleteMsg:
		m.finishDiscovery(msg)

	case deviceInfoMsg:
		m.applyDeviceInfo(msg)

	case commandResultMsg:
		cmds = append(cmds, m.applyCommandResult(msg))

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected - starting discovery", false)
		cmds = append(cmds, m.startDiscovery())
	}

	// Update child components
	var cmd tea.Cmd
	switch m.focusedField {
	case focusAddressInput:
		m.addressInput, cmd = m.addressInput.Update(msg)
		cmds = append(cmds, cmd)
	case focusPersonalityInput:
		m.personalityInput, cmd = m.personalityInput.Update(msg)
		cmds = append(cmds, cmd)
	case focusDeviceList:
		m.deviceList, cmd = m.deviceList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	typing := m.focusedField == focusAddressInput || m.focusedField == focusPersonalityInput

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if !typing {
			m.quitting = true
			return m, tea.Quit
		}

	case "d":
		if !typing {
			return m, m.startDiscovery()
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()

	case "up", "k", "down", "j":
		if m.focusedField == focusDeviceList {
			prev := m.deviceList.Index()
			m.deviceList, _ = m.deviceList.Update(msg)
			if selected := m.getSelectedDevice(); selected != nil && m.deviceList.Index() != prev {
				m.lastRefresh = time.Now()
				return m, m.connMgr.refreshCmd(selected.uid)
			}
			return m, nil
		}
	}

	// Pass through to focused component
	var cmd tea.Cmd
	switch m.focusedField {
	case focusAddressInput:
		m.addressInput, cmd = m.addressInput.Update(msg)
	case focusPersonalityInput:
		m.personalityInput, cmd = m.personalityInput.Update(msg)
	}
	return m, cmd
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	if m.getSelectedDevice() == nil {
		m.focusedField = focusDeviceList
		return m
	}

	maxFocus := focusIdentifyButton
	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	m.addressInput.Blur()
	m.personalityInput.Blur()
	switch m.focusedField {
	case focusAddressInput:
		m.addressInput.Focus()
	case focusPersonalityInput:
		m.personalityInput.Focus()
	}

	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}

	selected := m.getSelectedDevice()
	if selected == nil {
		return m, nil
	}

	switch m.focusedField {
	case focusAddressInput:
		address, err := parseStartAddress(inputValue(m.addressInput))
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		m.requests++
		return m, m.connMgr.setStartAddressCmd(selected.uid, address)

	case focusPersonalityInput:
		var count uint8
		if selected.info != nil {
			count = selected.info.PersonalityCount
		}
		personality, err := parsePersonality(inputValue(m.personalityInput), count)
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		m.requests++
		return m, m.connMgr.setPersonalityCmd(selected.uid, personality)

	case focusIdentifyButton:
		m.requests++
		return m, m.connMgr.identifyCmd(selected.uid, !selected.identify)
	}

	return m, nil
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("RDMRESPONDER CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch d=discover", connStatus)))
	s.WriteString("\n\n")

	if m.discovering && len(m.devices) == 0 {
		s.WriteString(m.renderDiscoveryView())
	} else {
		s.WriteString(m.renderControlView())
	}

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderDiscoveryView() string {
	var s strings.Builder

	s.WriteString(warningStyle.Render("Discovering responders..."))
	s.WriteString("\n\n")
	s.WriteString(m.renderEventLog())

	return s.String()
}

func (m controlModel) renderControlView() string {
	var s strings.Builder

	// Layout: left panel (devices) | right panel (control)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusDeviceList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	devicePanel := listStyle.Render(m.deviceList.View())

	controlContent := m.renderControlPanel()
	controlPanel := boxStyle.Width(rightWidth).Render(controlContent)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, devicePanel, " ", controlPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog())

	return s.String()
}

func (m controlModel) renderControlPanel() string {
	var s strings.Builder

	selected := m.getSelectedDevice()
	if selected == nil {
		s.WriteString(headerStyle.Render("No responder selected"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Selected:"), selected.uid))
	if selected.label != "" {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Label:"), statsValueStyle.Render(selected.label)))
	}

	if info := selected.info; info != nil {
		s.WriteString(fmt.Sprintf("%s 0x%04X  %s 0x%04X  %s 0x%08X\n",
			statsLabelStyle.Render("Model:"), info.DeviceModel,
			statsLabelStyle.Render("Category:"), info.ProductCategory,
			statsLabelStyle.Render("Software:"), info.SoftwareVersion))
		s.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s\n",
			statsLabelStyle.Render("Personality:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", info.CurrentPersonality, info.PersonalityCount)),
			statsLabelStyle.Render("Footprint:"), statsValueStyle.Render(fmt.Sprintf("%d", info.DmxFootprint)),
			statsLabelStyle.Render("Start:"), statsValueStyle.Render(formatStartAddress(info.DmxStartAddress))))
		s.WriteString(fmt.Sprintf("%s %d  %s %d\n",
			statsLabelStyle.Render("Sub-devices:"), info.SubDeviceCount,
			statsLabelStyle.Render("Sensors:"), info.SensorCount))
	} else {
		s.WriteString(headerStyle.Render("Reading DEVICE_INFO..."))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	s.WriteString(statsLabelStyle.Render("Start address: "))
	s.WriteString(renderInput(m.addressInput, m.focusedField == focusAddressInput))
	s.WriteString("  ")
	s.WriteString(statsLabelStyle.Render("Personality: "))
	s.WriteString(renderInput(m.personalityInput, m.focusedField == focusPersonalityInput))
	s.WriteString("\n\n")

	btnText := "[ Identify On ]"
	if selected.identify {
		btnText = "[ Identify Off ]"
	}
	if m.focusedField == focusIdentifyButton {
		s.WriteString(focusedButtonStyle.Render(btnText))
	} else {
		s.WriteString(buttonStyle.Render(btnText))
	}

	return s.String()
}

// renderInput shows the input itself when focused, the value as plain
// text otherwise
func renderInput(ti textinput.Model, focused bool) string {
	if focused {
		return ti.View()
	}
	return fmt.Sprintf("[%s]", inputValue(ti))
}

func inputValue(ti textinput.Model) string {
	if v := ti.Value(); v != "" {
		return v
	}
	return ti.Placeholder
}

func formatStartAddress(address uint16) string {
	if address == device.StartAddressNone {
		return "none"
	}
	return strconv.Itoa(int(address))
}

func (m controlModel) renderStatisticsBar() string {
	nacks := statsValueStyle.Render("0")
	if m.nacks > 0 {
		nacks = warningStyle.Render(fmt.Sprintf("%d", m.nacks))
	}
	timeouts := statsValueStyle.Render("0")
	if m.timeouts > 0 {
		timeouts = errorStyle.Render(fmt.Sprintf("%d", m.timeouts))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Responders:"), statsValueStyle.Render(fmt.Sprintf("%d", len(m.devices))),
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", m.requests)),
		statsLabelStyle.Render("ACK:"), statsValueStyle.Render(fmt.Sprintf("%d", m.acks)),
		statsLabelStyle.Render("NACK:"), nacks,
		statsLabelStyle.Render("Timeouts:"), timeouts,
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog() string {
	return statsLabelStyle.Render("EVENTS") + "\n" + m.events.render(8, m.width-4)
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

// addDevice adds uid to the list and reports whether it was new
func (m *controlModel) addDevice(uid rdm.UID) bool {
	if m.findDevice(uid) != nil {
		return false
	}
	m.devices = append(m.devices, rdmDevice{uid: uid, lastSeen: time.Now()})
	slices.SortFunc(m.devices, func(a, b rdmDevice) int {
		return cmp.Compare(a.uid.Uint64(), b.uid.Uint64())
	})
	m.updateDeviceList()
	return true
}

func (m *controlModel) finishDiscovery(msg discoveryCompleteMsg) {
	m.discovering = false
	m.discoveryDone = true

	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("Discovery failed: %v", msg.err), true)
	}
	for _, uid := range msg.uids {
		m.addDevice(uid)
	}

	// responders that did not answer a complete round are dropped
	if msg.err == nil {
		m.devices = slices.DeleteFunc(m.devices, func(d rdmDevice) bool {
			return !slices.Contains(msg.uids, d.uid)
		})
		m.updateDeviceList()
	}

	m.addLogEntry(fmt.Sprintf("Discovery complete: %d responder(s)", len(m.devices)), false)
	if len(m.devices) == 0 {
		m.focusedField = focusDeviceList
	}
}

func (m *controlModel) applyDeviceInfo(msg deviceInfoMsg) {
	d := m.findDevice(msg.uid)
	if d == nil {
		return
	}
	if msg.err != nil {
		m.countError(msg.err)
		m.addLogEntry(fmt.Sprintf("%s: %v", msg.uid, msg.err), true)
		return
	}

	if d.info != nil && *d.info != msg.info {
		if d.info.DmxStartAddress != msg.info.DmxStartAddress {
			m.addLogEntry(fmt.Sprintf("%s: start address %s -> %s", msg.uid,
				formatStartAddress(d.info.DmxStartAddress), formatStartAddress(msg.info.DmxStartAddress)), false)
		}
		if d.info.CurrentPersonality != msg.info.CurrentPersonality {
			m.addLogEntry(fmt.Sprintf("%s: personality %d -> %d", msg.uid,
				d.info.CurrentPersonality, msg.info.CurrentPersonality), false)
		}
	}

	info := msg.info
	d.info = &info
	d.label = msg.label
	d.lastSeen = time.Now()
	m.updateDeviceList()
}

// applyCommandResult logs the outcome of a SET and re-reads the device
func (m *controlModel) applyCommandResult(msg commandResultMsg) tea.Cmd {
	if msg.err != nil {
		m.countError(msg.err)
		m.addLogEntry(fmt.Sprintf("%s %s: %v", msg.uid, msg.action, msg.err), true)
		return nil
	}

	m.acks++
	m.addLogEntry(fmt.Sprintf("%s %s: ACK", msg.uid, msg.action), false)
	if d := m.findDevice(msg.uid); d != nil && strings.HasPrefix(msg.action, "IDENTIFY_DEVICE=") {
		d.identify = strings.HasSuffix(msg.action, "true")
	}
	return m.connMgr.refreshCmd(msg.uid)
}

func (m *controlModel) countError(err error) {
	switch {
	case errors.Is(err, ErrNack):
		m.nacks++
	case errors.Is(err, ErrNoResponse):
		m.timeouts++
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

// parseStartAddress parses a DMX start address in 1..512
func parseStartAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || v == 0 || v > device.DmxUniverseSize {
		return 0, fmt.Errorf("start address must be between 1 and %d", device.DmxUniverseSize)
	}
	return uint16(v), nil
}

// parsePersonality parses a personality number. count bounds it when the
// device reported one.
func parsePersonality(s string, count uint8) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid personality: %q", s)
	}
	if count > 0 && uint8(v) > count {
		return 0, fmt.Errorf("personality must be between 1 and %d", count)
	}
	return uint8(v), nil
}

func (m *controlModel) startDiscovery() tea.Cmd {
	if m.discovering {
		return nil
	}
	m.discovering = true
	m.addLogEntry("Discovery started", false)
	return m.connMgr.discoverCmd()
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.events.add(message, isError)
}

func (m *controlModel) findDevice(uid rdm.UID) *rdmDevice {
	for i := range m.devices {
		if m.devices[i].uid == uid {
			return &m.devices[i]
		}
	}
	return nil
}

func (m *controlModel) getSelectedDevice() *rdmDevice {
	if len(m.devices) == 0 {
		return nil
	}

	idx := m.deviceList.Index()
	if idx < 0 || idx >= len(m.devices) {
		return nil
	}

	return &m.devices[idx]
}

func (m *controlModel) updateDeviceList() {
	items := make([]list.Item, len(m.devices))
	for i, d := range m.devices {
		items[i] = d
	}
	m.deviceList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.deviceList.SetSize(28, listHeight)
}
