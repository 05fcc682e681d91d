// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package sliceui is the interactive terminal UI for reviewing a
// slicing session: it shows decode and slicing progress, lists the
// produced slices with their selection state, and triggers exports.
// The session itself runs in the controller; the UI only observes its
// events and issues commands.
package sliceui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sliceforge/sliceforge/lib/artifact"
	"github.com/sliceforge/sliceforge/lib/export"
	"github.com/sliceforge/sliceforge/lib/session"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	stateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("237")).Foreground(lipgloss.Color("255"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
)

// eventMsg wraps a session event for the bubbletea loop.
type eventMsg session.Event

// exportedMsg reports a finished export command.
type exportedMsg struct {
	path    string
	entries int
	skipped int
	err     error
}

// Model is the viewer's bubbletea model.
type Model struct {
	controller *session.Controller
	events     <-chan session.Event
	keys       KeyMap
	progress   progress.Model

	state     session.State
	percent   int
	rows      []*artifact.SliceArtifact
	cursor    int
	status    string
	statusErr bool
	width     int

	outputDir  string
	outputName string
}

// NewModel returns a viewer model observing controller through
// events. Exports land in outputDir under outputName plus the format
// extension.
func NewModel(controller *session.Controller, events <-chan session.Event, outputDir, outputName string) Model {
	return Model{
		controller: controller,
		events:     events,
		keys:       DefaultKeyMap(),
		progress:   progress.New(progress.WithDefaultGradient()),
		state:      controller.State(),
		outputDir:  outputDir,
		outputName: outputName,
	}
}

// Init starts listening for session events.
func (m Model) Init() tea.Cmd {
	return m.waitEvent()
}

// waitEvent blocks on the next session event. Re-armed after every
// delivery so exactly one reader exists.
func (m Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-m.events)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 4
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil

	case progress.FrameMsg:
		updated, cmd := m.progress.Update(msg)
		m.progress = updated.(progress.Model)
		return m, cmd

	case eventMsg:
		return m.handleEvent(session.Event(msg))

	case exportedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("export failed: %v", msg.err)
			m.statusErr = true
		} else {
			m.status = fmt.Sprintf("wrote %s (%d slices, %d skipped)", msg.path, msg.entries, msg.skipped)
			m.statusErr = false
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleEvent(event session.Event) (tea.Model, tea.Cmd) {
	m.state = event.State
	cmds := []tea.Cmd{m.waitEvent()}

	if event.Percent >= 0 {
		m.percent = event.Percent
		cmds = append(cmds, m.progress.SetPercent(float64(event.Percent)/100))
	}
	if event.NewIndex >= 0 {
		m.rows = m.controller.Artifacts()
		if m.cursor >= len(m.rows) {
			m.cursor = max(0, len(m.rows)-1)
		}
	}
	switch {
	case event.Err != nil:
		m.status = event.Err.Error()
		m.statusErr = true
		if event.State == session.StateIdle {
			m.rows = nil
			m.cursor = 0
		}
	case event.State == session.StateReady && m.status == "":
		m.status = fmt.Sprintf("%d slices ready", len(m.rows))
		m.statusErr = false
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.controller.Reset()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Toggle):
		if m.cursor < len(m.rows) {
			m.controller.Toggle(m.rows[m.cursor].Index)
		}

	case key.Matches(msg, m.keys.SelectAll):
		m.controller.SelectAll()

	case key.Matches(msg, m.keys.DeselectAll):
		m.controller.DeselectAll()

	case key.Matches(msg, m.keys.ExportZip):
		return m, m.exportCmd(export.Archive)

	case key.Matches(msg, m.keys.ExportPDF):
		return m, m.exportCmd(export.Document)
	}
	return m, nil
}

// exportCmd assembles and writes an export off the UI goroutine.
func (m Model) exportCmd(format export.Format) tea.Cmd {
	controller := m.controller
	dir, name := m.outputDir, m.outputName
	return func() tea.Msg {
		result, err := controller.Export(context.Background(), format, name)
		if err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, result.Name)
		if err := os.WriteFile(path, result.Data, 0o644); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path, entries: result.Entries, skipped: len(result.Skipped)}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("sliceforge"))
	b.WriteString("  ")
	b.WriteString(stateStyle.Render(m.state.String()))
	b.WriteString("\n\n")

	switch m.state {
	case session.StateUploading:
		b.WriteString("decoding image...\n")
	case session.StateProcessing:
		b.WriteString(m.progress.View())
		b.WriteString(fmt.Sprintf("  %d%%\n", m.percent))
	}

	if len(m.rows) > 0 {
		b.WriteString("\n")
		for i, row := range m.rows {
			mark := "[ ]"
			if m.controller.IsSelected(row.Index) {
				mark = "[x]"
			}
			line := fmt.Sprintf(" %s slice %d  %dx%d", mark, row.Index+1, row.Width, row.Height)
			if i == m.cursor {
				line = cursorStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(okStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("space toggle · a all · n none · z zip · p pdf · q quit"))
	b.WriteString("\n")
	return b.String()
}
