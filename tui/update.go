package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Viewport gets everything above the separator, input and help.
		vpHeight := msg.Height - m.input.Height() - 3
		if vpHeight < 3 {
			vpHeight = 3
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
		m.input.SetWidth(msg.Width - 4)
		m.markdown.UpdateWidth(msg.Width)
		m.ready = true

		m.rebuildViewportContent()
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state == StateThinking {
			m.rebuildViewportContent()
		}
		return m, cmd

	case streamStartedMsg:
		m.streamCancel = msg.cancel
		m.streamCh = msg.eventCh
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(msg.eventCh)

	case streamTextMsg:
		m.state = StateStreaming
		m.output.WriteString(msg.text)
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(m.streamCh)

	case streamDoneMsg:
		m.endStream()

		final := msg.full
		if final == "" {
			final = m.output.String()
		}
		if final == "" {
			m.addMessage(Message{Role: roleSystem, Text: "(no answer)"})
		} else {
			m.addMessage(Message{Role: roleAssistant, Text: final})
		}
		m.output.Reset()
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()

	case streamErrorMsg:
		m.endStream()

		switch {
		case errors.Is(msg.err, context.Canceled):
			m.addMessage(Message{Role: roleSystem, Text: "(canceled)"})
		case errors.Is(msg.err, context.DeadlineExceeded):
			m.addMessage(Message{Role: roleError, Text: "turn timed out"})
		default:
			m.addMessage(Message{Role: roleError, Text: msg.err.Error()})
		}
		m.output.Reset()
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// endStream releases the in-flight turn's resources.
func (m *Model) endStream() {
	m.state = StateInput
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	m.streamCh = nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlD:
		if m.streamCancel != nil {
			m.streamCancel()
		}
		return m, tea.Quit

	case tea.KeyEsc:
		// Cancel the in-flight turn, keep the session alive.
		if m.state != StateInput && m.streamCancel != nil {
			m.streamCancel()
			return m, nil
		}

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		if m.state != StateInput {
			return m, nil
		}
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m.input.Reset()
		m.addMessage(Message{Role: roleUser, Text: query})
		m.state = StateThinking
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, tea.Batch(m.startStream(query), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
